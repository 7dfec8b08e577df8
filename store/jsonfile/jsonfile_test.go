package jsonfile_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/vault-ledger/engine"
	"github.com/warp/vault-ledger/ledger"
	"github.com/warp/vault-ledger/store/jsonfile"
)

func sampleState() ledger.State {
	return ledger.State{
		Users:        []ledger.User{{ID: 1, Username: "admin", Role: ledger.RoleOwner}},
		Projects:     []ledger.Project{{ID: 2, Name: "Roof", Goal: ledger.NewMoney(50), Status: ledger.StatusActive}},
		VaultBalance: ledger.MustParseMoney("99.75"),
	}
}

func TestWriteAndReadState(t *testing.T) {
	// GIVEN: A state written to a nested path
	// WHEN: Reading it back
	// THEN: Values survive and empty collections are filled in

	path := filepath.Join(t.TempDir(), "export", "vault.json")
	require.NoError(t, jsonfile.WriteState(path, sampleState()))

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temporary file is renamed away")

	got, err := jsonfile.ReadState(path)
	require.NoError(t, err)
	assert.True(t, got.VaultBalance.Equal(ledger.MustParseMoney("99.75")))
	assert.Equal(t, "Roof", got.Projects[0].Name)
	assert.NotNil(t, got.Users[0].Permissions)
	assert.NotNil(t, got.Projects[0].AssignedMembers)
	assert.NotNil(t, got.ActivityLog)
}

func TestDecodeState_AcceptsSnapshotDocument(t *testing.T) {
	doc := `{"version": 4, "origin": "local", "state": {"users": [], "vaultBalance": 12}}`

	got, err := jsonfile.DecodeState([]byte(doc))
	require.NoError(t, err)
	assert.True(t, got.VaultBalance.Equal(ledger.NewMoney(12)))
}

func TestDecodeState_RejectsGarbage(t *testing.T) {
	_, err := jsonfile.DecodeState([]byte("not json"))
	assert.Error(t, err)
}

func TestStore_SnapshotLifecycle(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snap.json")
	store := jsonfile.New(path)

	_, err := store.Latest(ctx)
	assert.ErrorIs(t, err, engine.ErrNoSnapshot)

	snap := engine.Snapshot{Version: 3, State: sampleState(), Origin: engine.OriginLocal, Baseline: ledger.NewMoney(7)}
	require.NoError(t, store.Save(ctx, snap))
	assert.ErrorIs(t, store.Save(ctx, snap), engine.ErrStaleVersion)

	got, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), got.Version)
	assert.True(t, got.Baseline.Equal(ledger.NewMoney(7)))

	state, err := jsonfile.ReadState(path)
	require.NoError(t, err)
	assert.True(t, state.VaultBalance.Equal(ledger.MustParseMoney("99.75")))
}
