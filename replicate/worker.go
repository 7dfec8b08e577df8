/*
worker.go - Asynchronous snapshot publisher

PURPOSE:
  The engine calls Publish while holding its writer lock, so publishing
  must never block on the network. Worker queues snapshots on a buffered
  channel and a single goroutine hands them to every sink.

COALESCING:
  Each snapshot is the full state, so only the newest one matters. When
  the queue is full, Publish evicts the oldest queued snapshot instead of
  dropping the new one.

SHUTDOWN:
  Shutdown stops the loop and drains whatever is still queued with a
  fresh context, so the last accepted version still reaches the sinks.
*/
package replicate

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/vault-ledger/engine"
)

// Sink receives snapshots leaving this process.
type Sink interface {
	Name() string
	Send(ctx context.Context, snap engine.Snapshot) error
}

type Worker struct {
	queue   chan engine.Snapshot
	sinks   []Sink
	timeout time.Duration
	log     logrus.FieldLogger

	mu      sync.Mutex
	stopped bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewWorker creates a worker with the given queue size (at least 1).
func NewWorker(log logrus.FieldLogger, bufferSize int, sinks ...Sink) *Worker {
	if bufferSize < 1 {
		bufferSize = 1
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		queue:   make(chan engine.Snapshot, bufferSize),
		sinks:   sinks,
		timeout: 5 * time.Second,
		log:     log.WithField("component", "replicate"),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (w *Worker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-w.ctx.Done():
				w.log.WithField("remaining", len(w.queue)).Info("draining snapshots before shutdown")
				for len(w.queue) > 0 {
					w.deliver(context.Background(), <-w.queue)
				}
				return
			case snap := <-w.queue:
				w.deliver(w.ctx, snap)
			}
		}
	}()
}

// Publish implements engine.Publisher. It never blocks.
func (w *Worker) Publish(snap engine.Snapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		w.log.WithField("version", snap.Version).Warn("publish after shutdown ignored")
		return
	}
	for {
		select {
		case w.queue <- snap:
			return
		default:
		}
		select {
		case old := <-w.queue:
			w.log.WithFields(logrus.Fields{"dropped": old.Version, "version": snap.Version}).Debug("coalesced snapshot")
		default:
		}
	}
}

// Shutdown stops the worker after draining the queue.
func (w *Worker) Shutdown() {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()

	w.cancel()
	w.wg.Wait()
}

func (w *Worker) deliver(parent context.Context, snap engine.Snapshot) {
	for _, sink := range w.sinks {
		ctx, cancel := context.WithTimeout(parent, w.timeout)
		err := sink.Send(ctx, snap)
		cancel()
		if err != nil {
			w.log.WithError(err).WithFields(logrus.Fields{
				"sink":    sink.Name(),
				"version": snap.Version,
			}).Error("failed to publish snapshot")
		}
	}
}
