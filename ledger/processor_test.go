package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/vault-ledger/ledger"
)

// =============================================================================
// PURITY & DETERMINISM
// =============================================================================

func TestApply_DoesNotMutateInput(t *testing.T) {
	// GIVEN: A state with a funded project
	// WHEN: Applying further actions
	// THEN: The original value is unchanged

	p := newProcessor()
	s, id := withProject(t, p, seedState(1000), 500, 200)
	before := s.Clone()

	_ = apply(t, p, s, ledger.FundProject{ProjectID: id, Amount: money(100)})
	_ = apply(t, p, s, ledger.AssignMembers{ProjectID: id, MemberIDs: []ledger.ID{memberID}})
	_ = apply(t, p, s, ledger.UpdateUser{User: ledger.User{ID: memberID, Username: "omar", Role: ledger.RoleManager, FullName: "Omar"}})

	assert.Equal(t, before, s)
}

func TestApply_Deterministic(t *testing.T) {
	// GIVEN: Two processors with identical id sources and clocks
	// WHEN: Applying the same actions
	// THEN: The resulting states are identical

	actions := []ledger.Action{
		ledger.Deposit{Amount: money(1000), UserID: ownerID},
		ledger.CreateProject{Name: "Roof", Goal: money(500), CreatorID: ownerID},
		ledger.LogSpending{Amount: money(20), Description: "Tea", Kind: ledger.SpendingHouse, UserID: managerID},
		ledger.GiveMoney{Amount: money(30), FromUserID: ownerID, ToUserID: memberID},
	}

	run := func() ledger.State {
		p := newProcessor()
		s := seedState(0)
		for _, a := range actions {
			s = apply(t, p, s, a)
		}
		return s
	}

	assert.Equal(t, run(), run())
}

func TestApply_IDsStrictlyIncreasing(t *testing.T) {
	// GIVEN: Spending creates a SpendingEntry and a LogEntry in one action
	// WHEN: Applying several actions in a row
	// THEN: Every id is unique and the pair is ordered spending < log

	p := newProcessor()
	s := seedState(100)
	s = apply(t, p, s, ledger.LogSpending{Amount: money(10), Description: "Bread", Kind: ledger.SpendingHouse, UserID: ownerID})
	s = apply(t, p, s, ledger.LogSpending{Amount: money(10), Description: "Milk", Kind: ledger.SpendingHouse, UserID: ownerID})

	require.Len(t, s.Spending, 2)
	require.Len(t, s.ActivityLog, 2)
	for i := range s.Spending {
		assert.Less(t, s.Spending[i].ID, s.ActivityLog[i].ID)
		assert.Equal(t, s.Spending[i].ID, s.ActivityLog[i].SpendingID)
	}
	assert.Less(t, s.ActivityLog[0].ID, s.Spending[1].ID)
	assert.Empty(t, ledger.CheckInvariants(s))
}

func TestApply_IDsStayAboveImportedIDs(t *testing.T) {
	// GIVEN: An imported snapshot whose ids are far above the counter
	// WHEN: Creating a new entity
	// THEN: The new id is above every imported id

	p := newProcessor()
	imported := seedState(0)
	imported.Users[2].ID = 1_700_000_000_000

	s, err := p.Apply(seedState(0), ledger.ImportState{State: imported})
	require.NoError(t, err)

	s = apply(t, p, s, ledger.CreateProject{Name: "Well", Goal: money(10)})
	assert.Greater(t, lastProject(t, s).ID, ledger.ID(1_700_000_000_000))
}

// =============================================================================
// VAULT ACTIONS
// =============================================================================

func TestApply_Deposit(t *testing.T) {
	p := newProcessor()
	s := apply(t, p, seedState(100), ledger.Deposit{Amount: money(50), UserID: managerID, OperatorID: ownerID, Note: "cash"})

	assertMoney(t, 150, s.VaultBalance, "vault")
	e := lastLog(t, s)
	assert.Equal(t, ledger.KindDeposit, e.Kind)
	assert.Equal(t, managerID, e.UserID)
	assert.Equal(t, ownerID, e.OperatorID)
	assert.Equal(t, "cash", e.Note)
	assert.Equal(t, "2025-03-10", e.Date)
}

func TestApply_LogSpending(t *testing.T) {
	p := newProcessor()
	s := apply(t, p, seedState(100), ledger.LogSpending{
		Amount: money(40), Description: "Generator fuel", Tag: "utilities",
		Kind: ledger.SpendingGeneral, UserID: managerID, Note: "march",
	})

	assertMoney(t, 60, s.VaultBalance, "vault")
	require.Len(t, s.Spending, 1)
	sp := s.Spending[0]
	assert.Equal(t, ledger.SpendingGeneral, sp.Type)
	assert.Equal(t, "utilities", sp.Tag)

	e := lastLog(t, s)
	assert.Equal(t, ledger.KindSpend, e.Kind)
	assert.Equal(t, "Spending: Generator fuel", e.Description)
	assert.Equal(t, sp.ID, e.SpendingID)
}

func TestApply_GiveMoney(t *testing.T) {
	p := newProcessor()
	s := apply(t, p, seedState(100), ledger.GiveMoney{Amount: money(25), FromUserID: ownerID, ToUserID: memberID})

	assertMoney(t, 75, s.VaultBalance, "vault")
	require.Len(t, s.Spending, 1)
	assert.Equal(t, ledger.SpendingPeer, s.Spending[0].Type)
	assert.Equal(t, ledger.TagPeerPayment, s.Spending[0].Tag)

	e := lastLog(t, s)
	assert.Equal(t, ledger.KindPeerTransfer, e.Kind)
	assert.Equal(t, "Gave money to Omar Hadi", e.Description)
	assert.Equal(t, memberID, e.ToUserID)
	assert.Equal(t, ownerID, e.FromUserID)
}

func TestApply_VaultMayGoNegative(t *testing.T) {
	// GIVEN: An empty vault
	// WHEN: Spending is recorded before the matching deposit
	// THEN: The vault goes negative; nothing rejects it

	p := newProcessor()
	s := apply(t, p, seedState(0), ledger.LogSpending{Amount: money(10), Description: "Taxi", Kind: ledger.SpendingGeneral})
	assertMoney(t, -10, s.VaultBalance, "vault")
}

// =============================================================================
// PROJECT ACTIONS
// =============================================================================

func TestApply_FundAndWithdraw(t *testing.T) {
	p := newProcessor()
	s, id := withProject(t, p, seedState(1000), 500, 300)

	assertMoney(t, 700, s.VaultBalance, "vault after fund")
	assertMoney(t, 300, project(t, s, id).Current, "current after fund")
	assert.Equal(t, "Funded Project: Roof", lastLog(t, s).Description)

	s = apply(t, p, s, ledger.WithdrawProject{ProjectID: id, Amount: money(100), UserID: managerID})
	assertMoney(t, 800, s.VaultBalance, "vault after withdraw")
	assertMoney(t, 200, project(t, s, id).Current, "current after withdraw")
	assert.Equal(t, ledger.KindProjectWithdraw, lastLog(t, s).Kind)
}

func TestApply_DeleteActiveProject_RefundsVault(t *testing.T) {
	// GIVEN: An active project holding 300
	// WHEN: Deleting it
	// THEN: 300 returns to the vault with a withdraw entry describing the refund

	p := newProcessor()
	s, id := withProject(t, p, seedState(1000), 500, 300)
	s = apply(t, p, s, ledger.DeleteProject{ProjectID: id, UserID: ownerID})

	assertMoney(t, 1000, s.VaultBalance, "vault")
	assert.Empty(t, s.Projects)
	e := lastLog(t, s)
	assert.Equal(t, ledger.KindProjectWithdraw, e.Kind)
	assert.Equal(t, "Project Deleted: Roof (Refunded to Vault)", e.Description)
	assertMoney(t, 300, e.Amount, "refund")
}

func TestApply_DeleteEmptyProject_NoLog(t *testing.T) {
	p := newProcessor()
	s, id := withProject(t, p, seedState(1000), 500, 0)
	s = apply(t, p, s, ledger.DeleteProject{ProjectID: id})

	assert.Empty(t, s.Projects)
	assert.Empty(t, s.ActivityLog)
}

func TestApply_UnknownProject_IsNoOp(t *testing.T) {
	// GIVEN: No project with id 999
	// WHEN: Applying id-addressed project actions without validation
	// THEN: Nothing changes and no error is returned

	p := newProcessor()
	s := seedState(100)
	for _, a := range []ledger.Action{
		ledger.UpdateProject{ProjectID: 999, Name: "x", Goal: money(1)},
		ledger.DeleteProject{ProjectID: 999},
		ledger.FundProject{ProjectID: 999, Amount: money(10)},
		ledger.WithdrawProject{ProjectID: 999, Amount: money(10)},
		ledger.CompleteProject{ProjectID: 999},
		ledger.ReactivateProject{ProjectID: 999},
		ledger.AssignMembers{ProjectID: 999, MemberIDs: []ledger.ID{memberID}},
	} {
		out, err := p.Apply(s, a)
		require.NoError(t, err, "%s", a.Type())
		assert.Equal(t, s, out, "%s", a.Type())
	}
}

func TestApply_AssignMembers_SortsAndDedupes(t *testing.T) {
	p := newProcessor()
	s, id := withProject(t, p, seedState(0), 100, 0)
	s = apply(t, p, s, ledger.AssignMembers{ProjectID: id, MemberIDs: []ledger.ID{memberID, managerID, memberID}})

	assert.Equal(t, []ledger.ID{managerID, memberID}, project(t, s, id).AssignedMembers)
}

// =============================================================================
// USER ACTIONS
// =============================================================================

func TestApply_UserManagement(t *testing.T) {
	p := newProcessor()
	s := apply(t, p, seedState(0), ledger.AddUser{User: ledger.User{Username: "zain", Password: "z", Role: ledger.RoleMember, FullName: "Zain"}})

	added := s.Users[len(s.Users)-1]
	assert.Greater(t, added.ID, memberID)
	assert.NotNil(t, added.Permissions)

	// Empty password keeps the stored one.
	s = apply(t, p, s, ledger.UpdateUser{User: ledger.User{ID: added.ID, Username: "zain", Role: ledger.RoleManager, FullName: "Zain K"}})
	u, ok := s.User(added.ID)
	require.True(t, ok)
	assert.Equal(t, "z", u.Password)
	assert.Equal(t, ledger.RoleManager, u.Role)

	s = apply(t, p, s, ledger.DeleteUser{UserID: added.ID})
	_, ok = s.User(added.ID)
	assert.False(t, ok)
}

func TestApply_ImportReplacesWholesale(t *testing.T) {
	p := newProcessor()
	s, _ := withProject(t, p, seedState(1000), 500, 100)

	incoming := ledger.State{VaultBalance: money(7), Users: []ledger.User{{ID: 5, Username: "x", Role: ledger.RoleOwner}}}
	out, err := p.Apply(s, ledger.ImportState{State: incoming})
	require.NoError(t, err)

	assertMoney(t, 7, out.VaultBalance, "vault")
	assert.Empty(t, out.Projects)
	assert.NotNil(t, out.Spending)
	assert.Equal(t, []string{}, out.Users[0].Permissions)
}

// =============================================================================
// CONSERVATION
// =============================================================================

func TestApply_VaultDeltaIsSumOfActionDeltas(t *testing.T) {
	// GIVEN: A mix of deposit, spend, transfer, fund and withdraw actions
	// WHEN: Applying them in two different orders
	// THEN: The vault ends at the same value, the signed sum of each delta

	build := func(order []int) ledger.State {
		p := newProcessor()
		s, id := withProject(t, p, seedState(1000), 1000, 0)
		actions := []ledger.Action{
			ledger.Deposit{Amount: money(500), UserID: ownerID},
			ledger.LogSpending{Amount: money(120), Description: "Paint", Kind: ledger.SpendingHouse},
			ledger.GiveMoney{Amount: money(30), FromUserID: ownerID, ToUserID: memberID},
			ledger.FundProject{ProjectID: id, Amount: money(200)},
			ledger.WithdrawProject{ProjectID: id, Amount: money(50)},
		}
		for _, i := range order {
			s = apply(t, p, s, actions[i])
		}
		return s
	}

	a := build([]int{0, 1, 2, 3, 4})
	b := build([]int{3, 0, 2, 4, 1})

	// 1000 + 500 - 120 - 30 - 200 + 50
	assertMoney(t, 1200, a.VaultBalance, "vault in order a")
	assertMoney(t, 1200, b.VaultBalance, "vault in order b")
	assert.True(t, ledger.Baseline(a).Equal(ledger.Baseline(b)))
}
