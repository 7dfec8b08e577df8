package access

import (
	"errors"
	"fmt"

	"github.com/warp/vault-ledger/ledger"
)

// ErrForbidden is returned when the actor may not dispatch the action.
var ErrForbidden = errors.New("forbidden")

// DeniedError names what the actor was missing.
type DeniedError struct {
	Action  ledger.ActionType
	ActorID ledger.ID
	Needs   string // a capability or "role:<Role>"
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("user %d may not %s: requires %s", e.ActorID, e.Action, e.Needs)
}

func (e *DeniedError) Unwrap() error { return ErrForbidden }

// requirement is either a capability or a minimum role.
type requirement struct {
	cap  Capability
	role ledger.Role
}

var requirements = map[ledger.ActionType]requirement{
	ledger.ActionDeposit:           {cap: CapAddMoney},
	ledger.ActionCreateProject:     {cap: CapCreateProject},
	ledger.ActionLogSpending:       {cap: CapLogExpense},
	ledger.ActionGiveMoney:         {cap: CapGiveMoney},
	ledger.ActionFundProject:       {role: ledger.RoleManager},
	ledger.ActionWithdrawProject:   {role: ledger.RoleManager},
	ledger.ActionCompleteProject:   {role: ledger.RoleManager},
	ledger.ActionUpdateProject:     {role: ledger.RoleOwner},
	ledger.ActionDeleteProject:     {role: ledger.RoleOwner},
	ledger.ActionReactivateProject: {role: ledger.RoleOwner},
	ledger.ActionAssignMembers:     {role: ledger.RoleOwner},
	ledger.ActionAddUser:           {cap: CapAccessAdmin},
	ledger.ActionUpdateUser:        {cap: CapAccessAdmin},
	ledger.ActionDeleteUser:        {cap: CapAccessAdmin},
	ledger.ActionImportState:       {cap: CapAccessAdmin},
	ledger.ActionDeleteLog:         {role: ledger.RoleOwner},
	ledger.ActionAmendLog:          {role: ledger.RoleOwner},
}

// Authorize checks whether actor may dispatch action.
func Authorize(actor ledger.User, action ledger.Action) error {
	req, ok := requirements[action.Type()]
	if !ok {
		return &DeniedError{Action: action.Type(), ActorID: actor.ID, Needs: "a known action"}
	}
	if req.cap != "" && !Can(actor, req.cap) {
		return &DeniedError{Action: action.Type(), ActorID: actor.ID, Needs: req.cap}
	}
	if req.role != "" && !actor.Role.AtLeast(req.role) {
		return &DeniedError{Action: action.Type(), ActorID: actor.ID, Needs: "role:" + string(req.role)}
	}
	return nil
}
