/*
Package sqlite provides a SQLite-backed implementation of the engine stores.

PURPOSE:
  Persists versioned ledger snapshots and the dispatch audit trail. The
  engine keeps the live state in memory; this store is what it reloads
  from after a restart.

INTERFACES IMPLEMENTED:
  engine.SnapshotStore: Versioned snapshots
  engine.AuditLog:      Dispatch audit trail

KEY TABLES:
  snapshots:    One row per version, full state as JSON
  audit_events: Append-only record of every dispatch and import

RETENTION:
  Every accepted action writes a full snapshot. With Retain > 0, Save
  drops versions older than the newest Retain in the same transaction.
  The audit trail is never pruned.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. The engine already serializes
  writers; the lock protects readers such as the CLI and the audit API.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so readers don't block
  the writer.

USAGE:
  store, err := sqlite.New("./data/vault.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  eng := engine.New(engine.Options{Store: store, Audit: store})

SEE ALSO:
  - engine/store.go: Interface definitions
  - store/memory:    In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/vault-ledger/engine"
	"github.com/warp/vault-ledger/ledger"
)

// timeLayout has fixed-width fractions so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements the engine stores using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex

	// Retain bounds the number of snapshots kept. Zero keeps all.
	Retain int
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Each connection to ":memory:" is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Ledger snapshots, one per version
	CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		version INTEGER NOT NULL UNIQUE,
		origin TEXT NOT NULL,
		taken_at TEXT NOT NULL,
		baseline TEXT NOT NULL,
		vault_balance TEXT NOT NULL,
		state_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Dispatch audit trail (append-only)
	CREATE TABLE IF NOT EXISTS audit_events (
		id TEXT PRIMARY KEY,
		at TEXT NOT NULL,
		actor_id INTEGER NOT NULL,
		action TEXT NOT NULL,
		outcome TEXT NOT NULL,
		version INTEGER,
		error TEXT,
		payload_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_events_at
		ON audit_events(at);
	CREATE INDEX IF NOT EXISTS idx_audit_events_actor
		ON audit_events(actor_id, at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SNAPSHOTS (engine.SnapshotStore interface)
// =============================================================================

// Save persists a snapshot and applies retention.
func (s *Store) Save(ctx context.Context, snap engine.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stateJSON, err := json.Marshal(snap.State)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var latest sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(version) FROM snapshots`).Scan(&latest); err != nil {
		return fmt.Errorf("failed to read latest version: %w", err)
	}
	if latest.Valid && snap.Version <= uint64(latest.Int64) {
		return fmt.Errorf("%w: %d <= %d", engine.ErrStaleVersion, snap.Version, latest.Int64)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots
		(id, version, origin, taken_at, baseline, vault_balance, state_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(),
		snap.Version,
		snap.Origin,
		snap.At.UTC().Format(timeLayout),
		snap.Baseline.String(),
		snap.State.VaultBalance.String(),
		string(stateJSON),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: version %d", engine.ErrStaleVersion, snap.Version)
		}
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	if s.Retain > 0 {
		_, err = tx.ExecContext(ctx,
			`DELETE FROM snapshots WHERE version <= ?`, int64(snap.Version)-int64(s.Retain))
		if err != nil {
			return fmt.Errorf("failed to prune snapshots: %w", err)
		}
	}

	return tx.Commit()
}

// Latest returns the newest snapshot.
func (s *Store) Latest(ctx context.Context) (engine.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.scanSnapshot(s.db.QueryRowContext(ctx, `
		SELECT version, origin, taken_at, baseline, state_json
		FROM snapshots ORDER BY version DESC LIMIT 1`))
}

// Snapshot returns one stored version.
func (s *Store) Snapshot(ctx context.Context, version uint64) (engine.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.scanSnapshot(s.db.QueryRowContext(ctx, `
		SELECT version, origin, taken_at, baseline, state_json
		FROM snapshots WHERE version = ?`, version))
}

// SnapshotInfo summarizes a stored version without its state.
type SnapshotInfo struct {
	Version      uint64        `json:"version"`
	Origin       engine.Origin `json:"origin"`
	At           time.Time     `json:"at"`
	VaultBalance ledger.Money  `json:"vaultBalance"`
}

// History lists stored versions, newest first.
func (s *Store) History(ctx context.Context, limit int) ([]SnapshotInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT version, origin, taken_at, vault_balance FROM snapshots ORDER BY version DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SnapshotInfo
	for rows.Next() {
		var info SnapshotInfo
		var at, vault string
		if err := rows.Scan(&info.Version, &info.Origin, &at, &vault); err != nil {
			return nil, err
		}
		info.At, _ = time.Parse(timeLayout, at)
		info.VaultBalance, err = ledger.ParseMoney(vault)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

func (s *Store) scanSnapshot(row *sql.Row) (engine.Snapshot, error) {
	var snap engine.Snapshot
	var at, baseline, stateJSON string

	err := row.Scan(&snap.Version, &snap.Origin, &at, &baseline, &stateJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.Snapshot{}, engine.ErrNoSnapshot
	}
	if err != nil {
		return engine.Snapshot{}, err
	}

	snap.At, _ = time.Parse(timeLayout, at)
	if snap.Baseline, err = ledger.ParseMoney(baseline); err != nil {
		return engine.Snapshot{}, err
	}
	if err := json.Unmarshal([]byte(stateJSON), &snap.State); err != nil {
		return engine.Snapshot{}, fmt.Errorf("failed to decode snapshot %d: %w", snap.Version, err)
	}
	return snap, nil
}

// =============================================================================
// AUDIT (engine.AuditLog interface)
// =============================================================================

// Append adds an audit event. There is no update or delete.
func (s *Store) Append(ctx context.Context, e engine.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, at, actor_id, action, outcome, version, error, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.At.UTC().Format(timeLayout),
		e.ActorID,
		e.Action,
		e.Outcome,
		e.Version,
		nullString(e.Error),
		nullString(string(e.Payload)),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	return nil
}

// Query returns matching audit events, newest first.
func (s *Store) Query(ctx context.Context, f engine.AuditFilter) ([]engine.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var where []string
	var args []any
	if f.ActorID != nil {
		where = append(where, "actor_id = ?")
		args = append(args, *f.ActorID)
	}
	if len(f.Actions) > 0 {
		where = append(where, "action IN ("+placeholders(len(f.Actions))+")")
		for _, a := range f.Actions {
			args = append(args, a)
		}
	}
	if len(f.Outcomes) > 0 {
		where = append(where, "outcome IN ("+placeholders(len(f.Outcomes))+")")
		for _, o := range f.Outcomes {
			args = append(args, o)
		}
	}
	if f.From != nil {
		where = append(where, "at >= ?")
		args = append(args, f.From.UTC().Format(timeLayout))
	}
	if f.To != nil {
		where = append(where, "at <= ?")
		args = append(args, f.To.UTC().Format(timeLayout))
	}

	query := `SELECT id, at, actor_id, action, outcome, version, error, payload_json FROM audit_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY at DESC, rowid DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.AuditEntry
	for rows.Next() {
		var e engine.AuditEntry
		var at string
		var version sql.NullInt64
		var errText, payload sql.NullString
		if err := rows.Scan(&e.ID, &at, &e.ActorID, &e.Action, &e.Outcome, &version, &errText, &payload); err != nil {
			return nil, err
		}
		e.At, _ = time.Parse(timeLayout, at)
		e.Version = uint64(version.Int64)
		e.Error = errText.String
		if payload.Valid {
			e.Payload = json.RawMessage(payload.String)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
