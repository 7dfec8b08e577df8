/*
engine.go - Single-writer holder of the authoritative ledger state

PURPOSE:
  ledger.Processor is a pure function. Something has to own "the" state,
  serialize writers, and hand new versions to storage and replication.
  That is the Engine.

CONCURRENCY:
  - Readers call Current() and get an immutable Snapshot from an
    atomic.Pointer. They never block and never see a half-applied action.
  - Writers (Dispatch, Import) take one mutex, so at most one Apply is in
    flight at any time.

DISPATCH PIPELINE:
  1. Resolve actor in the current state
  2. Fill actor fields (ledger.Attribute)
  3. access.Authorize
  4. ledger.Validate
  5. Processor.Apply
  6. SnapshotStore.Save   (failure rejects the action)
  7. Swap the pointer, Publish, audit

  Any failure before step 7 leaves the current snapshot untouched.

IMPORT:
  A full-state import bypasses validation. Local imports (admin upload)
  are published; remote ones (from another replica) are not, so replicas
  do not echo each other.
*/
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/warp/vault-ledger/access"
	"github.com/warp/vault-ledger/ledger"
)

var (
	// ErrNotLoaded is returned when the engine is used before Load.
	ErrNotLoaded = errors.New("engine has no state loaded")

	// ErrUnknownActor is returned when the acting user is not in the state.
	ErrUnknownActor = errors.New("unknown actor")
)

// Options configures an Engine. Only Store is required.
type Options struct {
	Store     SnapshotStore
	Audit     AuditLog
	Publisher Publisher
	IDs       ledger.IDSource
	Clock     func() time.Time
	Logger    logrus.FieldLogger
}

type Engine struct {
	processor *ledger.Processor
	store     SnapshotStore
	audit     AuditLog
	publisher Publisher
	clock     func() time.Time
	log       logrus.FieldLogger

	mu      sync.Mutex
	current atomic.Pointer[Snapshot]
}

func New(opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Publisher == nil {
		opts.Publisher = nopPublisher{}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Engine{
		processor: ledger.NewProcessor(opts.IDs, opts.Clock),
		store:     opts.Store,
		audit:     opts.Audit,
		publisher: opts.Publisher,
		clock:     opts.Clock,
		log:       opts.Logger.WithField("component", "engine"),
	}
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Load seeds the engine from the latest stored snapshot. When nothing is
// stored yet, seed is saved as version 1.
func (e *Engine) Load(ctx context.Context, seed ledger.State) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap, err := e.store.Latest(ctx)
	switch {
	case err == nil:
		snap.State = snap.State.Normalize()
		e.current.Store(&snap)
		e.log.WithFields(logrus.Fields{"version": snap.Version, "origin": snap.Origin}).Info("loaded snapshot")
		return nil
	case !errors.Is(err, ErrNoSnapshot):
		return fmt.Errorf("load latest snapshot: %w", err)
	}

	state := seed.Normalize()
	first := Snapshot{
		Version:  1,
		State:    state,
		Origin:   OriginSeed,
		At:       e.clock(),
		Baseline: ledger.Baseline(state),
	}
	if err := e.store.Save(ctx, first); err != nil {
		return fmt.Errorf("save seed snapshot: %w", err)
	}
	e.current.Store(&first)
	e.log.WithField("users", len(state.Users)).Info("seeded new ledger")
	return nil
}

// Current returns the latest snapshot. The zero Snapshot before Load.
func (e *Engine) Current() Snapshot {
	if s := e.current.Load(); s != nil {
		return *s
	}
	return Snapshot{}
}

// =============================================================================
// DISPATCH
// =============================================================================

// Dispatch runs one action on behalf of actorID and returns the new snapshot.
func (e *Engine) Dispatch(ctx context.Context, actorID ledger.ID, action ledger.Action) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.current.Load()
	if cur == nil {
		return Snapshot{}, ErrNotLoaded
	}

	actor, ok := cur.State.User(actorID)
	if !ok {
		err := fmt.Errorf("%w: %d", ErrUnknownActor, actorID)
		e.record(ctx, actorID, action, AuditRejected, 0, err)
		return *cur, err
	}
	action = ledger.Attribute(action, actor.ID)

	if err := access.Authorize(actor, action); err != nil {
		e.record(ctx, actor.ID, action, AuditRejected, 0, err)
		return *cur, err
	}

	if imp, ok := action.(ledger.ImportState); ok {
		return e.importLocked(ctx, actor.ID, imp.State, OriginLocal)
	}

	if err := ledger.Validate(cur.State, action); err != nil {
		e.record(ctx, actor.ID, action, AuditRejected, 0, err)
		return *cur, err
	}
	state, err := e.processor.Apply(cur.State, action)
	if err != nil {
		e.record(ctx, actor.ID, action, AuditRejected, 0, err)
		return *cur, err
	}

	next := Snapshot{
		Version:  cur.Version + 1,
		State:    state,
		Origin:   OriginLocal,
		At:       e.clock(),
		Baseline: cur.Baseline,
	}
	if err := e.commit(ctx, next); err != nil {
		e.record(ctx, actor.ID, action, AuditRejected, 0, err)
		return *cur, err
	}
	e.publisher.Publish(next)
	e.record(ctx, actor.ID, action, AuditAccepted, next.Version, nil)

	e.log.WithFields(logrus.Fields{
		"action":  action.Type(),
		"actor":   actor.ID,
		"version": next.Version,
	}).Debug("action applied")
	return next, nil
}

// Import replaces the whole state. It bypasses validation and authorization;
// callers decide whether the source is trusted.
func (e *Engine) Import(ctx context.Context, state ledger.State, origin Origin) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.importLocked(ctx, 0, state, origin)
}

func (e *Engine) importLocked(ctx context.Context, actorID ledger.ID, state ledger.State, origin Origin) (Snapshot, error) {
	var version uint64 = 1
	prev := e.current.Load()
	if prev != nil {
		version = prev.Version + 1
	}

	imported := state.Normalize()
	next := Snapshot{
		Version:  version,
		State:    imported,
		Origin:   origin,
		At:       e.clock(),
		Baseline: ledger.Baseline(imported),
	}
	action := ledger.ImportState{}
	if err := e.commit(ctx, next); err != nil {
		e.record(ctx, actorID, action, AuditRejected, 0, err)
		if prev != nil {
			return *prev, err
		}
		return Snapshot{}, err
	}
	if origin != OriginRemote {
		e.publisher.Publish(next)
	}
	e.record(ctx, actorID, action, AuditImported, next.Version, nil)

	entry := e.log.WithFields(logrus.Fields{"version": next.Version, "origin": origin})
	if v := ledger.CheckInvariants(imported); len(v) > 0 {
		entry.WithField("violations", len(v)).Warn("imported snapshot breaks invariants")
	} else {
		entry.Info("snapshot imported")
	}
	return next, nil
}

func (e *Engine) commit(ctx context.Context, next Snapshot) error {
	if err := e.store.Save(ctx, next); err != nil {
		return fmt.Errorf("save snapshot %d: %w", next.Version, err)
	}
	e.current.Store(&next)
	return nil
}

// =============================================================================
// AUDIT
// =============================================================================

func (e *Engine) record(ctx context.Context, actorID ledger.ID, action ledger.Action, outcome AuditOutcome, version uint64, cause error) {
	if e.audit == nil {
		return
	}
	entry := AuditEntry{
		ID:      uuid.NewString(),
		At:      e.clock(),
		ActorID: actorID,
		Action:  action.Type(),
		Outcome: outcome,
		Version: version,
	}
	if cause != nil {
		entry.Error = cause.Error()
	}
	if _, isImport := action.(ledger.ImportState); !isImport {
		if env, err := ledger.Encode(action); err == nil {
			entry.Payload = env.Payload
		}
	}
	if err := e.audit.Append(ctx, entry); err != nil {
		e.log.WithError(err).WithField("action", entry.Action).Warn("audit append failed")
	}
}

// Audit queries the audit log. Without an audit log it returns nothing.
func (e *Engine) Audit(ctx context.Context, filter AuditFilter) ([]AuditEntry, error) {
	if e.audit == nil {
		return nil, nil
	}
	return e.audit.Query(ctx, filter)
}
