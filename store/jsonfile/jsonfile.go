/*
Package jsonfile keeps ledger state in a single JSON file.

PURPOSE:
  The export/import format of the ledger is one JSON document holding the
  whole state. This package reads and writes that document, and offers a
  file-backed engine.SnapshotStore for development and the CLI.

ATOMIC WRITES:
  Every write goes to path+".tmp" first and is then renamed over the
  target, so a crash mid-write never leaves a truncated file behind.

FILE FORMATS:
  WriteState/ReadState: bare ledger.State (the export format)
  Store:                engine.Snapshot (version, origin, baseline, state)

  ReadState accepts both, so a snapshot file can be fed to the CLI.
*/
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/warp/vault-ledger/engine"
	"github.com/warp/vault-ledger/ledger"
)

// ReadState loads a state from path. A file holding a full snapshot
// yields its state.
func ReadState(path string) (ledger.State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ledger.State{}, err
	}
	return DecodeState(data)
}

// DecodeState parses either a bare state or a snapshot document.
func DecodeState(data []byte) (ledger.State, error) {
	var doc struct {
		Version *uint64         `json:"version"`
		State   json.RawMessage `json:"state"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return ledger.State{}, fmt.Errorf("decode state: %w", err)
	}
	if doc.Version != nil && len(doc.State) > 0 {
		data = doc.State
	}

	var s ledger.State
	if err := json.Unmarshal(data, &s); err != nil {
		return ledger.State{}, fmt.Errorf("decode state: %w", err)
	}
	return s.Normalize(), nil
}

// WriteState writes a bare state to path atomically.
func WriteState(path string, s ledger.State) error {
	return writeJSON(path, s)
}

func writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// =============================================================================
// FILE STORE - engine.SnapshotStore keeping only the latest version
// =============================================================================

type Store struct {
	path string
	mu   sync.Mutex
}

func New(path string) *Store {
	return &Store{path: path}
}

// Save overwrites the file with snap. Older versions are rejected.
func (s *Store) Save(_ context.Context, snap engine.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, err := s.read()
	switch {
	case err == nil:
		if snap.Version <= prev.Version {
			return fmt.Errorf("%w: %d <= %d", engine.ErrStaleVersion, snap.Version, prev.Version)
		}
	case !errors.Is(err, engine.ErrNoSnapshot):
		return err
	}
	return writeJSON(s.path, snap)
}

// Latest reads the file. A missing file is ErrNoSnapshot.
func (s *Store) Latest(_ context.Context) (engine.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *Store) read() (engine.Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return engine.Snapshot{}, engine.ErrNoSnapshot
	}
	if err != nil {
		return engine.Snapshot{}, err
	}
	var snap engine.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return engine.Snapshot{}, fmt.Errorf("decode snapshot %s: %w", s.path, err)
	}
	return snap, nil
}
