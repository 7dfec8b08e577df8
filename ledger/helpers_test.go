package ledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/warp/vault-ledger/ledger"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

const (
	ownerID   ledger.ID = 1
	managerID ledger.ID = 2
	memberID  ledger.ID = 3
)

var testNow = time.Date(2025, time.March, 10, 9, 30, 0, 0, time.UTC)

func money(n int64) ledger.Money { return ledger.NewMoney(n) }

func newProcessor() *ledger.Processor {
	return ledger.NewProcessor(ledger.NewCounter(0), func() time.Time { return testNow })
}

// seedState has one user per role and the given vault balance.
func seedState(vault int64) ledger.State {
	return ledger.State{
		Users: []ledger.User{
			{ID: ownerID, Username: "admin", Password: "admin", Role: ledger.RoleOwner, FullName: "Ahmed Ali", Permissions: []string{}},
			{ID: managerID, Username: "sara", Password: "pw", Role: ledger.RoleManager, FullName: "Sara Karim", Permissions: []string{"add_money"}},
			{ID: memberID, Username: "omar", Password: "pw", Role: ledger.RoleMember, FullName: "Omar Hadi", Permissions: []string{}},
		},
		Projects:     []ledger.Project{},
		Spending:     []ledger.SpendingEntry{},
		ActivityLog:  []ledger.LogEntry{},
		VaultBalance: money(vault),
	}
}

// apply validates and applies, failing the test on any error.
func apply(t *testing.T, p *ledger.Processor, s ledger.State, a ledger.Action) ledger.State {
	t.Helper()
	require.NoError(t, ledger.Validate(s, a), "validate %s", a.Type())
	out, err := p.Apply(s, a)
	require.NoError(t, err, "apply %s", a.Type())
	return out
}

func lastLog(t *testing.T, s ledger.State) ledger.LogEntry {
	t.Helper()
	require.NotEmpty(t, s.ActivityLog)
	return s.ActivityLog[len(s.ActivityLog)-1]
}

func lastProject(t *testing.T, s ledger.State) ledger.Project {
	t.Helper()
	require.NotEmpty(t, s.Projects)
	return s.Projects[len(s.Projects)-1]
}

func project(t *testing.T, s ledger.State, id ledger.ID) ledger.Project {
	t.Helper()
	p, ok := s.Project(id)
	require.True(t, ok, "project %d not found", id)
	return p
}

// withProject creates and funds a project, returning the new state and its id.
func withProject(t *testing.T, p *ledger.Processor, s ledger.State, goal, funded int64) (ledger.State, ledger.ID) {
	t.Helper()
	s = apply(t, p, s, ledger.CreateProject{Name: "Roof", Goal: money(goal), CreatorID: ownerID})
	id := lastProject(t, s).ID
	if funded > 0 {
		s = apply(t, p, s, ledger.FundProject{ProjectID: id, Amount: money(funded), UserID: managerID})
	}
	return s, id
}

func assertMoney(t *testing.T, want int64, got ledger.Money, what string) {
	t.Helper()
	require.True(t, money(want).Equal(got), "%s: want %d, got %s", what, want, got)
}
