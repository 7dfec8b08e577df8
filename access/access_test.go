package access_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/vault-ledger/access"
	"github.com/warp/vault-ledger/ledger"
)

func users() (owner, hiddenOwner, manager, member ledger.User) {
	owner = ledger.User{ID: 1, Role: ledger.RoleOwner, VisibleToLowerRoles: true, Permissions: access.DefaultCapabilities(ledger.RoleOwner)}
	hiddenOwner = ledger.User{ID: 2, Role: ledger.RoleOwner, Password: "secret", Permissions: access.DefaultCapabilities(ledger.RoleOwner)}
	manager = ledger.User{ID: 3, Role: ledger.RoleManager, Permissions: access.DefaultCapabilities(ledger.RoleManager)}
	member = ledger.User{ID: 4, Role: ledger.RoleMember, Permissions: access.DefaultCapabilities(ledger.RoleMember)}
	return
}

func testState() ledger.State {
	owner, hidden, manager, member := users()
	return ledger.State{
		Users: []ledger.User{owner, hidden, manager, member},
		Projects: []ledger.Project{
			{ID: 10, Name: "public", CreatorID: owner.ID, Status: ledger.StatusActive},
			{ID: 11, Name: "private", CreatorID: hidden.ID, Status: ledger.StatusActive, AssignedMembers: []ledger.ID{member.ID}},
		},
		Spending: []ledger.SpendingEntry{
			{ID: 20, UserID: hidden.ID},
			{ID: 21, UserID: manager.ID},
		},
		ActivityLog: []ledger.LogEntry{
			{ID: 30, Kind: ledger.KindDeposit, UserID: manager.ID},
			{ID: 31, Kind: ledger.KindDeposit, UserID: manager.ID, OperatorID: hidden.ID},
			{ID: 32, Kind: ledger.KindPeerTransfer, FromUserID: manager.ID, ToUserID: member.ID},
		},
		VaultBalance: ledger.NewMoney(100),
	}
}

// =============================================================================
// VISIBILITY
// =============================================================================

func TestVisible_HiddenOwner(t *testing.T) {
	owner, hidden, manager, member := users()

	assert.True(t, access.Visible(owner, hidden), "owners see everyone")
	assert.False(t, access.Visible(manager, hidden))
	assert.False(t, access.Visible(member, hidden))
	assert.True(t, access.Visible(manager, owner), "opted-in owner is visible")
	assert.True(t, access.Visible(member, manager))
}

func TestLogVisible_AllIdentities(t *testing.T) {
	// GIVEN: A deposit by a manager typed in by a hidden owner
	// WHEN: A manager looks at the log
	// THEN: The entry is hidden because one referenced identity is hidden

	_, _, manager, _ := users()
	s := testState()

	assert.True(t, access.LogVisible(manager, s.ActivityLog[0], s.Users))
	assert.False(t, access.LogVisible(manager, s.ActivityLog[1], s.Users))
}

func TestFilterProjects_ByRole(t *testing.T) {
	owner, _, manager, member := users()
	s := testState()

	assert.Len(t, access.FilterProjects(owner, s), 2)

	got := access.FilterProjects(manager, s)
	require.Len(t, got, 1)
	assert.Equal(t, "public", got[0].Name)

	got = access.FilterProjects(member, s)
	require.Len(t, got, 1)
	assert.Equal(t, "private", got[0].Name, "members see assigned projects only")
}

func TestFilterLog_Personal(t *testing.T) {
	_, _, _, member := users()
	s := testState()

	got := access.FilterLog(member, s, true)
	require.Len(t, got, 1)
	assert.Equal(t, ledger.ID(32), got[0].ID)
}

func TestFilterState_StripsCredentials(t *testing.T) {
	owner, _, manager, member := users()
	s := testState()

	for _, u := range access.FilterState(owner, s).Users {
		assert.Empty(t, u.Password)
	}

	mv := access.FilterState(manager, s)
	assert.Len(t, mv.Users, 3)
	assert.Len(t, mv.Spending, 1)
	assert.Len(t, mv.ActivityLog, 2)
	assert.True(t, mv.VaultBalance.Equal(ledger.NewMoney(100)))

	memv := access.FilterState(member, s)
	assert.True(t, memv.VaultBalance.IsZero(), "members without view_vault see no balance")
	assert.Len(t, memv.ActivityLog, 1)
}

// =============================================================================
// AUTHORIZATION
// =============================================================================

func TestAuthorize(t *testing.T) {
	owner, _, manager, member := users()

	tests := []struct {
		name   string
		actor  ledger.User
		action ledger.Action
		ok     bool
	}{
		{"manager deposits", manager, ledger.Deposit{}, true},
		{"member cannot deposit", member, ledger.Deposit{}, false},
		{"manager funds", manager, ledger.FundProject{}, true},
		{"member cannot fund", member, ledger.FundProject{}, false},
		{"manager cannot delete project", manager, ledger.DeleteProject{}, false},
		{"owner reactivates", owner, ledger.ReactivateProject{}, true},
		{"manager cannot reactivate", manager, ledger.ReactivateProject{}, false},
		{"manager cannot delete log", manager, ledger.DeleteLog{}, false},
		{"owner amends log", owner, ledger.AmendLog{}, true},
		{"manager cannot add users", manager, ledger.AddUser{}, false},
		{"owner imports", owner, ledger.ImportState{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := access.Authorize(tt.actor, tt.action)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, access.ErrForbidden)
			var de *access.DeniedError
			assert.ErrorAs(t, err, &de)
		})
	}
}

func TestAuthorize_CapabilityRevoked(t *testing.T) {
	// GIVEN: An owner whose add_money flag was removed
	// WHEN: Depositing
	// THEN: Denied; the role alone does not grant flag-gated actions

	owner, _, _, _ := users()
	owner.Permissions = []string{access.CapAccessAdmin}

	err := access.Authorize(owner, ledger.Deposit{})
	assert.ErrorIs(t, err, access.ErrForbidden)
}

func TestDefaultSeed(t *testing.T) {
	s := access.DefaultSeed()
	require.Len(t, s.Users, 1)
	admin := s.Users[0]
	assert.Equal(t, ledger.RoleOwner, admin.Role)
	for _, c := range access.AllCapabilities {
		assert.True(t, access.Can(admin, c), c)
	}
	assert.True(t, s.VaultBalance.IsZero())
	assert.Empty(t, ledger.CheckInvariants(s))
}
