package main

import (
	"bytes"
	"context"
	"flag"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/subcommands"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/vault-ledger/access"
	"github.com/warp/vault-ledger/engine"
	"github.com/warp/vault-ledger/ledger"
	"github.com/warp/vault-ledger/store/jsonfile"
	"github.com/warp/vault-ledger/store/sqlite"
)

func run(t *testing.T, cmd subcommands.Command, args ...string) subcommands.ExitStatus {
	t.Helper()
	f := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	cmd.SetFlags(f)
	require.NoError(t, f.Parse(args))
	return cmd.Execute(context.Background(), f)
}

func writeSample(t *testing.T, mutate func(*ledger.State)) string {
	t.Helper()
	s := access.DefaultSeed()
	s.VaultBalance = ledger.NewMoney(900)
	s.ActivityLog = []ledger.LogEntry{
		{ID: 2, Date: "2025-01-02", Kind: ledger.KindDeposit, Amount: ledger.NewMoney(1000), UserID: 1, Description: "Deposit"},
		{ID: 4, Date: "2025-01-03", Kind: ledger.KindSpend, Amount: ledger.NewMoney(100), UserID: 1, SpendingID: 3, Description: "Groceries"},
	}
	s.Spending = []ledger.SpendingEntry{{ID: 3, Date: "2025-01-03", Amount: ledger.NewMoney(100), Type: ledger.SpendingHouse, UserID: 1}}
	if mutate != nil {
		mutate(&s)
	}
	path := filepath.Join(t.TempDir(), "vault.json")
	require.NoError(t, jsonfile.WriteState(path, s))
	return path
}

func TestVerify(t *testing.T) {
	var out bytes.Buffer
	assert.Equal(t, subcommands.ExitSuccess, run(t, &verifyCmd{out: &out}, "-f", writeSample(t, nil)))
	assert.Contains(t, out.String(), "ok")

	broken := writeSample(t, func(s *ledger.State) {
		s.Projects = []ledger.Project{{ID: 9, Name: "Roof", Goal: ledger.NewMoney(10), Current: ledger.NewMoney(20), Status: ledger.StatusActive}}
	})
	out.Reset()
	assert.Equal(t, subcommands.ExitFailure, run(t, &verifyCmd{out: &out}, "-f", broken))
	assert.Contains(t, out.String(), "1 violation(s)")
}

func TestReport(t *testing.T) {
	var out bytes.Buffer
	status := run(t, &reportCmd{out: &out}, "-f", writeSample(t, nil), "-from", "2025-01-01")
	require.Equal(t, subcommands.ExitSuccess, status)

	assert.Contains(t, out.String(), "Groceries")
	assert.Contains(t, out.String(), "income:   1,000 IQD")
	assert.Contains(t, out.String(), "net:      900 IQD")

	assert.Equal(t, subcommands.ExitUsageError, run(t, &reportCmd{out: &out}, "-f", writeSample(t, nil), "-type", "bogus"))
	assert.Equal(t, subcommands.ExitFailure, run(t, &reportCmd{out: &out}, "-f", writeSample(t, nil), "-as", "nobody"))
}

func TestSeedWithPassword(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	require.Equal(t, subcommands.ExitSuccess, run(t, &seedCmd{}, "-o", path, "-password", "s3cret"))

	s, err := jsonfile.ReadState(path)
	require.NoError(t, err)
	require.Len(t, s.Users, 1)
	assert.True(t, engine.IsHashed(s.Users[0].Password))
	assert.True(t, engine.CheckPassword(s.Users[0].Password, "s3cret"))
}

func TestHashPassword(t *testing.T) {
	var out bytes.Buffer
	require.Equal(t, subcommands.ExitSuccess, run(t, &hashCmd{out: &out}, "pw"))
	assert.True(t, engine.CheckPassword(string(bytes.TrimSpace(out.Bytes())), "pw"))

	assert.Equal(t, subcommands.ExitUsageError, run(t, &hashCmd{out: &out}))
}

func TestExport(t *testing.T) {
	// GIVEN: A database with two stored versions
	// WHEN: Exporting the latest and then version 1
	// THEN: Each file holds that version's state

	ctx := context.Background()
	dir := t.TempDir()
	db := filepath.Join(dir, "vault.db")

	store, err := sqlite.New(db)
	require.NoError(t, err)
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, snap := range []engine.Snapshot{
		{Version: 1, State: ledger.State{VaultBalance: ledger.NewMoney(10)}, Origin: engine.OriginSeed, At: at},
		{Version: 2, State: ledger.State{VaultBalance: ledger.NewMoney(20)}, Origin: engine.OriginLocal, At: at},
	} {
		require.NoError(t, store.Save(ctx, snap))
	}
	require.NoError(t, store.Close())

	latest := filepath.Join(dir, "latest.json")
	require.Equal(t, subcommands.ExitSuccess, run(t, &exportCmd{}, "-db", db, "-o", latest))
	s, err := jsonfile.ReadState(latest)
	require.NoError(t, err)
	assert.True(t, s.VaultBalance.Equal(ledger.NewMoney(20)))

	first := filepath.Join(dir, "v1.json")
	require.Equal(t, subcommands.ExitSuccess, run(t, &exportCmd{}, "-db", db, "-o", first, "-version", "1"))
	s, err = jsonfile.ReadState(first)
	require.NoError(t, err)
	assert.True(t, s.VaultBalance.Equal(ledger.NewMoney(10)))
}
