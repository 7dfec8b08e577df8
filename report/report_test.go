package report_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/vault-ledger/access"
	"github.com/warp/vault-ledger/ledger"
	"github.com/warp/vault-ledger/report"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var (
	owner   = ledger.User{ID: 1, Username: "admin", Password: "x", Role: ledger.RoleOwner, Permissions: access.DefaultCapabilities(ledger.RoleOwner)}
	manager = ledger.User{ID: 2, Username: "sara", Role: ledger.RoleManager, Permissions: access.DefaultCapabilities(ledger.RoleManager)}
	member  = ledger.User{ID: 3, Username: "omar", Password: "pw", Role: ledger.RoleMember, Permissions: access.DefaultCapabilities(ledger.RoleMember)}
)

func m(n int64) ledger.Money { return ledger.NewMoney(n) }

func testState() ledger.State {
	return ledger.State{
		Users: []ledger.User{owner, manager, member},
		ActivityLog: []ledger.LogEntry{
			{ID: 10, Date: "2025-01-05", Kind: ledger.KindDeposit, Amount: m(1000), UserID: 1},
			{ID: 11, Date: "2025-01-06", Kind: ledger.KindDeposit, Amount: m(500), UserID: 2},
			{ID: 12, Date: "2025-02-01", Kind: ledger.KindSpend, Amount: m(100), UserID: 2},
			{ID: 13, Date: "2025-02-03", Kind: ledger.KindPeerTransfer, Amount: m(50), UserID: 2, FromUserID: 2, ToUserID: 3},
			{ID: 14, Date: "2025-02-10", Kind: ledger.KindProjectFund, Amount: m(300), UserID: 2, ProjectID: 5},
			{ID: 15, Date: "2025-03-01", Kind: ledger.KindProjectReactivate, Amount: m(200), UserID: 1, ProjectID: 5},
			{ID: 16, Date: "2025-03-02", Kind: ledger.KindProjectWithdraw, Amount: m(20), UserID: 2, ProjectID: 5},
		},
	}
}

func ids(entries []ledger.LogEntry) []ledger.ID {
	out := make([]ledger.ID, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

// =============================================================================
// REPORT
// =============================================================================

func TestBuild_Totals(t *testing.T) {
	// GIVEN: Deposits, a spend, a peer transfer and project moves
	// WHEN: Building an unfiltered report as the owner
	// THEN: Project fund/withdraw count as neither income nor expense

	r, err := report.Build(owner, testState(), report.Filter{})
	require.NoError(t, err)

	assert.Len(t, r.Entries, 7)
	assert.True(t, r.Totals.Income.Equal(m(1700)), "deposits + reactivation")
	assert.True(t, r.Totals.Expenses.Equal(m(150)), "spending + give_money")
	assert.True(t, r.Totals.Net.Equal(m(1550)))
}

func TestBuild_Filters(t *testing.T) {
	tests := []struct {
		name   string
		filter report.Filter
		want   []ledger.ID
	}{
		{"date range inclusive", report.Filter{From: "2025-02-01", To: "2025-02-10"}, []ledger.ID{12, 13, 14}},
		{"kind", report.Filter{Kind: ledger.KindDeposit}, []ledger.ID{10, 11}},
		{"user as counterpart", report.Filter{UserID: 3}, []ledger.ID{13}},
		{"open start", report.Filter{To: "2025-01-05"}, []ledger.ID{10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := report.Build(owner, testState(), tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(r.Entries))
		})
	}
}

func TestBuild_HidesHiddenOwner(t *testing.T) {
	r, err := report.Build(manager, testState(), report.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []ledger.ID{11, 12, 13, 14, 16}, ids(r.Entries))
	assert.True(t, r.Totals.Income.Equal(m(500)))
}

func TestFilter_Validate(t *testing.T) {
	assert.ErrorIs(t, report.Filter{From: "01/02/2025"}.Validate(), report.ErrInvalidFilter)
	assert.ErrorIs(t, report.Filter{From: "2025-03-01", To: "2025-01-01"}.Validate(), report.ErrInvalidFilter)
	assert.ErrorIs(t, report.Filter{Kind: "bogus"}.Validate(), report.ErrInvalidFilter)
	assert.NoError(t, report.Filter{From: "2025-01-01", Kind: ledger.KindSpend}.Validate())
}

// =============================================================================
// STATEMENT
// =============================================================================

func TestStatement_ManagerSplitsPersonalAndOperational(t *testing.T) {
	st, err := report.BuildStatement(owner, testState(), manager.ID)
	require.NoError(t, err)

	assert.Equal(t, []ledger.ID{11}, ids(st.Personal))
	assert.Equal(t, []ledger.ID{16, 14, 13, 12}, ids(st.Operational), "newest first")
	assert.True(t, st.Deposited.Equal(m(500)))
	assert.True(t, st.Received.IsZero())
}

func TestStatement_MemberHasOnlyPersonal(t *testing.T) {
	st, err := report.BuildStatement(member, testState(), member.ID)
	require.NoError(t, err)

	assert.Equal(t, []ledger.ID{13}, ids(st.Personal))
	assert.Empty(t, st.Operational)
	assert.True(t, st.Received.Equal(m(50)))
	assert.Empty(t, st.User.Password)
}

func TestStatement_Access(t *testing.T) {
	_, err := report.BuildStatement(member, testState(), manager.ID)
	assert.ErrorIs(t, err, access.ErrForbidden)

	_, err = report.BuildStatement(manager, testState(), owner.ID)
	assert.ErrorIs(t, err, ledger.ErrUserNotFound, "hidden owners do not exist for others")

	_, err = report.BuildStatement(owner, testState(), 99)
	assert.ErrorIs(t, err, ledger.ErrUserNotFound)
}

// =============================================================================
// FORMATTING
// =============================================================================

func TestFormatIQD(t *testing.T) {
	assert.Equal(t, "1,250,000 IQD", report.FormatIQD(m(1250000)))
	assert.Equal(t, "0 IQD", report.FormatIQD(ledger.Zero))
	assert.Equal(t, "-750 IQD", report.FormatIQD(m(-750)))
	assert.Equal(t, "12.5 IQD", report.FormatIQD(ledger.MustParseMoney("12.5")))
}
