package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/vault-ledger/ledger"
)

func TestValidate_Rules(t *testing.T) {
	p := newProcessor()
	s, active := withProject(t, p, seedState(1000), 500, 300)
	s, closed := withProject(t, p, s, 100, 100)
	s = apply(t, p, s, ledger.CompleteProject{ProjectID: closed})

	tests := []struct {
		name   string
		action ledger.Action
		want   error
	}{
		{"zero deposit", ledger.Deposit{Amount: money(0), UserID: ownerID}, ledger.ErrInvalidAmount},
		{"negative spending", ledger.LogSpending{Amount: money(-5), Kind: ledger.SpendingHouse}, ledger.ErrInvalidAmount},
		{"deposit for unknown user", ledger.Deposit{Amount: money(5), UserID: 999}, ledger.ErrUserNotFound},
		{"spending claims closeout type", ledger.LogSpending{Amount: money(5), Kind: ledger.SpendingCloseout}, ledger.ErrInvalidSpendingType},
		{"gift to unknown user", ledger.GiveMoney{Amount: money(5), ToUserID: 999}, ledger.ErrUserNotFound},
		{"project without name", ledger.CreateProject{Name: "  ", Goal: money(10)}, ledger.ErrInvalidProject},
		{"negative goal", ledger.CreateProject{Name: "x", Goal: money(-1)}, ledger.ErrInvalidGoal},
		{"goal below current", ledger.UpdateProject{ProjectID: active, Name: "Roof", Goal: money(299)}, ledger.ErrInvalidGoal},
		{"edit closed project", ledger.UpdateProject{ProjectID: closed, Name: "x", Goal: money(100)}, ledger.ErrProjectClosed},
		{"delete closed project", ledger.DeleteProject{ProjectID: closed}, ledger.ErrProjectClosed},
		{"fund above goal", ledger.FundProject{ProjectID: active, Amount: money(201)}, ledger.ErrGoalExceeded},
		{"fund closed project", ledger.FundProject{ProjectID: closed, Amount: money(1)}, ledger.ErrProjectClosed},
		{"fund unknown project", ledger.FundProject{ProjectID: 999, Amount: money(1)}, ledger.ErrProjectNotFound},
		{"withdraw above current", ledger.WithdrawProject{ProjectID: active, Amount: money(301)}, ledger.ErrInsufficientProjectFunds},
		{"assign unknown member", ledger.AssignMembers{ProjectID: active, MemberIDs: []ledger.ID{999}}, ledger.ErrUserNotFound},
		{"duplicate username", ledger.AddUser{User: ledger.User{Username: "ADMIN", Role: ledger.RoleMember}}, ledger.ErrDuplicateUsername},
		{"unknown role", ledger.AddUser{User: ledger.User{Username: "new", Role: "Boss"}}, ledger.ErrInvalidUser},
		{"demote last owner", ledger.UpdateUser{User: ledger.User{ID: ownerID, Username: "admin", Role: ledger.RoleManager}}, ledger.ErrLastOwner},
		{"delete last owner", ledger.DeleteUser{UserID: ownerID}, ledger.ErrLastOwner},
		{"delete unknown log", ledger.DeleteLog{LogID: 999}, ledger.ErrLogNotFound},
		{"amend to zero", ledger.AmendLog{LogID: lastLog(t, s).ID, Amount: money(0)}, ledger.ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ledger.Validate(s, tt.action)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValidate_FundExactlyToGoal(t *testing.T) {
	// GIVEN: current 300, goal 500
	// WHEN: Funding 200
	// THEN: Accepted; current == goal is allowed

	p := newProcessor()
	s, id := withProject(t, p, seedState(1000), 500, 300)

	require.NoError(t, ledger.Validate(s, ledger.FundProject{ProjectID: id, Amount: money(200)}))

	var he *ledger.HeadroomError
	err := ledger.Validate(s, ledger.FundProject{ProjectID: id, Amount: money(201)})
	require.ErrorAs(t, err, &he)
	assertMoney(t, 300, he.Current, "current")
	assert.True(t, ledger.IsClientError(err))
}

func TestValidate_Accepts(t *testing.T) {
	s := seedState(0)

	for _, a := range []ledger.Action{
		ledger.LogSpending{Amount: money(10), Kind: ledger.SpendingGeneral, Description: "Overdraw"},
		ledger.UpdateUser{User: ledger.User{ID: memberID, Username: "OMAR", Role: ledger.RoleMember}},
		ledger.UpdateUser{User: ledger.User{ID: ownerID, Username: "admin", Role: ledger.RoleOwner}},
		ledger.AddUser{User: ledger.User{Username: "admin2", Role: ledger.RoleOwner}},
		ledger.ImportState{},
	} {
		assert.NoError(t, ledger.Validate(s, a), "%s", a.Type())
	}
}

func TestValidate_NoteOnlyAmendOfZeroEntry(t *testing.T) {
	// GIVEN: An unfunded project closed out, leaving a zero-amount close-out log
	// WHEN: Amending only the note
	// THEN: Accepted; changing the amount to anything but a positive value is not

	p := newProcessor()
	s, id := withProject(t, p, seedState(0), 200, 0)
	s = apply(t, p, s, ledger.CompleteProject{ProjectID: id})
	closeout := lastLog(t, s)
	require.True(t, closeout.Amount.IsZero())

	s = apply(t, p, s, ledger.AmendLog{LogID: closeout.ID, Amount: money(0), Note: "never started"})
	assert.Equal(t, "never started", lastLog(t, s).Note)
	assert.Empty(t, ledger.CheckInvariants(s))

	err := ledger.Validate(s, ledger.AmendLog{LogID: closeout.ID, Amount: money(-1)})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
}
