/*
scheduler.go - Periodic invariant checks

PURPOSE:
  The engine keeps the conserved quantity constant by construction, but
  imported and remote snapshots bypass validation. This scheduler
  re-checks the current snapshot in the background and logs anything off:
  baseline drift and structural violations (ledger.CheckInvariants).

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Checks once on start, then on every tick
  - A version that was already checked is skipped
  - Only reports; it never repairs state

USAGE:
  scheduler := NewInvariantScheduler(eng, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()
*/
package api

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/vault-ledger/engine"
	"github.com/warp/vault-ledger/ledger"
)

// CheckResult is the outcome of one invariant check.
type CheckResult struct {
	Version    uint64             `json:"version"`
	CheckedAt  time.Time          `json:"checkedAt"`
	Drift      ledger.Money       `json:"drift"`
	Violations []ledger.Violation `json:"violations"`
}

// Healthy reports whether nothing was found.
func (c CheckResult) Healthy() bool {
	return c.Drift.IsZero() && len(c.Violations) == 0
}

// InvariantScheduler re-checks the current snapshot periodically.
type InvariantScheduler struct {
	Engine        *engine.Engine
	CheckInterval time.Duration
	Enabled       bool

	log    logrus.FieldLogger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	resultMu sync.Mutex
	last     CheckResult
}

func NewInvariantScheduler(e *engine.Engine, log logrus.FieldLogger) *InvariantScheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &InvariantScheduler{
		Engine:        e,
		CheckInterval: time.Minute,
		Enabled:       true,
		log:           log.WithField("component", "scheduler"),
	}
}

// Start begins the scheduler. It may be started again after Stop.
func (s *InvariantScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		return
	}
	if !s.Enabled || s.CheckInterval <= 0 {
		s.log.Info("invariant checks disabled")
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.run(s.ticker, s.stop)

	s.log.WithField("interval", s.CheckInterval).Info("invariant checks started")
}

// Stop stops the scheduler.
func (s *InvariantScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		s.log.Info("invariant checks stopped")
	}
}

func (s *InvariantScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	s.check(false)
	for {
		select {
		case <-ticker.C:
			s.check(false)
		case <-stop:
			return
		}
	}
}

// RunNow checks the current snapshot immediately, even if its version was
// already checked.
func (s *InvariantScheduler) RunNow() CheckResult {
	return s.check(true)
}

// Last returns the most recent result.
func (s *InvariantScheduler) Last() CheckResult {
	s.resultMu.Lock()
	defer s.resultMu.Unlock()
	return s.last
}

func (s *InvariantScheduler) check(force bool) CheckResult {
	snap := s.Engine.Current()

	s.resultMu.Lock()
	if !force && snap.Version != 0 && snap.Version == s.last.Version {
		last := s.last
		s.resultMu.Unlock()
		return last
	}
	s.resultMu.Unlock()

	result := CheckResult{
		Version:    snap.Version,
		CheckedAt:  time.Now(),
		Drift:      snap.Drift(),
		Violations: ledger.CheckInvariants(snap.State),
	}

	entry := s.log.WithField("version", result.Version)
	if !result.Drift.IsZero() {
		entry.WithField("drift", result.Drift.String()).Error("conservation drift")
	}
	for _, v := range result.Violations {
		entry.WithFields(logrus.Fields{"code": v.Code, "entity": v.EntityID}).Warn(v.Message)
	}
	if result.Healthy() {
		entry.Debug("invariants hold")
	}

	s.resultMu.Lock()
	s.last = result
	s.resultMu.Unlock()
	return result
}
