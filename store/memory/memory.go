// Package memory provides in-memory engine stores for tests and development.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/warp/vault-ledger/engine"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Store keeps every saved snapshot and audit entry. It implements both
// engine.SnapshotStore and engine.AuditLog.
type Store struct {
	mu        sync.RWMutex
	snapshots []engine.Snapshot
	audit     []engine.AuditEntry

	// FailSave, when set, is returned by Save. Lets tests exercise the
	// engine's rejection path.
	FailSave error
}

func New() *Store {
	return &Store{}
}

func (s *Store) Save(_ context.Context, snap engine.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailSave != nil {
		return s.FailSave
	}
	if n := len(s.snapshots); n > 0 && snap.Version <= s.snapshots[n-1].Version {
		return fmt.Errorf("%w: %d <= %d", engine.ErrStaleVersion, snap.Version, s.snapshots[n-1].Version)
	}
	s.snapshots = append(s.snapshots, snap)
	return nil
}

func (s *Store) Latest(_ context.Context) (engine.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.snapshots) == 0 {
		return engine.Snapshot{}, engine.ErrNoSnapshot
	}
	return s.snapshots[len(s.snapshots)-1], nil
}

// Versions returns the saved versions, oldest first.
func (s *Store) Versions() []uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]uint64, len(s.snapshots))
	for i, snap := range s.snapshots {
		out[i] = snap.Version
	}
	return out
}

// =============================================================================
// AUDIT LOG
// =============================================================================

// Append adds an audit entry. Append-only.
func (s *Store) Append(_ context.Context, entry engine.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, entry)
	return nil
}

// Query returns matching entries, newest first.
func (s *Store) Query(_ context.Context, filter engine.AuditFilter) ([]engine.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []engine.AuditEntry
	for _, e := range slices.Backward(s.audit) {
		if !filter.Matches(e) {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}
