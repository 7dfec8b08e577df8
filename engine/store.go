/*
store.go - Collaborator interfaces of the state holder

PURPOSE:
  The engine owns the authoritative state in memory. Persistence, audit and
  replication are collaborators behind the interfaces below, so the same
  engine runs on SQLite in production and on memory stores in tests.

KEY INTERFACES:
  SnapshotStore: Versioned snapshots; the latest one seeds the engine
  AuditLog:      Who dispatched what, accepted or rejected
  Publisher:     Hands each new snapshot to the sync collaborator

ORDERING:
  A snapshot is saved before it becomes current and before it is
  published. A failed save rejects the action.

IMPLEMENTATIONS:
  - store/sqlite:   Production SQLite
  - store/memory:   In-memory for testing
  - store/jsonfile: Single JSON file (seed, export, CLI)
  - replicate:      Publisher fanning out to Redis

SEE ALSO:
  - engine.go: The single-writer holder using these
*/
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"time"

	"github.com/warp/vault-ledger/ledger"
)

// =============================================================================
// SNAPSHOT
// =============================================================================

// Origin records where a snapshot came from.
type Origin string

const (
	OriginSeed   Origin = "seed"   // default state on first start
	OriginLocal  Origin = "local"  // produced by Dispatch or a local import
	OriginRemote Origin = "remote" // received from another replica
)

// Snapshot is an immutable, versioned view of the ledger. Readers must not
// modify State; the engine never does.
type Snapshot struct {
	Version uint64       `json:"version"`
	State   ledger.State `json:"state"`
	Origin  Origin       `json:"origin"`
	At      time.Time    `json:"at"`

	// Baseline is the conserved quantity (ledger.Baseline) fixed when the
	// state was seeded or imported. Every later version must match it.
	Baseline ledger.Money `json:"baseline"`
}

// Drift returns how far the state moved from its baseline.
func (s Snapshot) Drift() ledger.Money {
	return ledger.Baseline(s.State).Sub(s.Baseline)
}

var (
	// ErrNoSnapshot is returned by SnapshotStore.Latest when nothing was saved yet.
	ErrNoSnapshot = errors.New("no snapshot stored")

	// ErrStaleVersion is returned by SnapshotStore.Save for a version that
	// is not above the latest stored one.
	ErrStaleVersion = errors.New("snapshot version is not newer than stored")
)

// SnapshotStore persists snapshots.
type SnapshotStore interface {
	// Save persists a snapshot. Versions only grow.
	Save(ctx context.Context, snap Snapshot) error

	// Latest returns the snapshot with the highest version, or ErrNoSnapshot.
	Latest(ctx context.Context) (Snapshot, error)
}

// =============================================================================
// AUDIT LOG - Separate from the activity log, tracks every dispatch
// =============================================================================

type AuditOutcome string

const (
	AuditAccepted AuditOutcome = "accepted"
	AuditRejected AuditOutcome = "rejected"
	AuditImported AuditOutcome = "imported"
)

// AuditEntry records who tried what, when, and what came of it.
type AuditEntry struct {
	ID      string            `json:"id"`
	At      time.Time         `json:"at"`
	ActorID ledger.ID         `json:"actorId"`
	Action  ledger.ActionType `json:"action"`
	Outcome AuditOutcome      `json:"outcome"`
	Version uint64            `json:"version,omitempty"` // resulting version when accepted
	Error   string            `json:"error,omitempty"`
	Payload json.RawMessage   `json:"payload,omitempty"`
}

type AuditFilter struct {
	ActorID  *ledger.ID
	Actions  []ledger.ActionType
	Outcomes []AuditOutcome
	From     *time.Time
	To       *time.Time
	Limit    int // 0 means no limit; newest entries first
}

// Matches reports whether the entry passes the filter (ignoring Limit).
func (f AuditFilter) Matches(e AuditEntry) bool {
	if f.ActorID != nil && e.ActorID != *f.ActorID {
		return false
	}
	if len(f.Actions) > 0 && !slices.Contains(f.Actions, e.Action) {
		return false
	}
	if len(f.Outcomes) > 0 && !slices.Contains(f.Outcomes, e.Outcome) {
		return false
	}
	if f.From != nil && e.At.Before(*f.From) {
		return false
	}
	if f.To != nil && e.At.After(*f.To) {
		return false
	}
	return true
}

// AuditLog stores audit entries. Append-only.
type AuditLog interface {
	Append(ctx context.Context, entry AuditEntry) error
	Query(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

// =============================================================================
// PUBLISHER
// =============================================================================

// Publisher receives every new snapshot that should leave this process.
// Publish must not block the writer.
type Publisher interface {
	Publish(snap Snapshot)
}

type nopPublisher struct{}

func (nopPublisher) Publish(Snapshot) {}
