/*
validate.go - Business rules checked before Apply

PURPOSE:
  Apply is total: it does not refuse to overfund a project or to withdraw
  more than a project holds. Those are the caller's rules, collected here
  so every caller enforces the same ones.

RULES:
  - Amounts are strictly positive; a note-only amend keeps the recorded one
  - Funding keeps current <= goal (no clamping)
  - Withdrawals never exceed current
  - Project edits, funding and deletion need an active project
  - Lifecycle moves follow lifecycle.go
  - Usernames are unique (case-insensitive); the last owner stays

NOT A RULE:
  The vault may go negative. Real-world cash can be spent before the
  matching deposit is recorded, so spending and peer payments are never
  rejected for insufficient vault balance.
*/
package ledger

import (
	"fmt"
	"strings"
)

// Validate checks action against state without changing anything.
func Validate(state State, action Action) error {
	switch a := action.(type) {
	case Deposit:
		if err := positive(a.Amount); err != nil {
			return err
		}
		return userExists(state, a.UserID)

	case LogSpending:
		if err := positive(a.Amount); err != nil {
			return err
		}
		if a.Kind != SpendingHouse && a.Kind != SpendingGeneral {
			return fmt.Errorf("%w: %q", ErrInvalidSpendingType, a.Kind)
		}
		return nil

	case GiveMoney:
		if err := positive(a.Amount); err != nil {
			return err
		}
		return userExists(state, a.ToUserID)

	case CreateProject:
		if strings.TrimSpace(a.Name) == "" {
			return fmt.Errorf("%w: name is required", ErrInvalidProject)
		}
		if a.Goal.IsNegative() {
			return fmt.Errorf("%w: goal %s is negative", ErrInvalidGoal, a.Goal)
		}
		return nil

	case UpdateProject:
		p, err := activeProject(state, a.ProjectID)
		if err != nil {
			return err
		}
		if strings.TrimSpace(a.Name) == "" {
			return fmt.Errorf("%w: name is required", ErrInvalidProject)
		}
		if a.Goal.IsNegative() || a.Goal.LessThan(p.Current) {
			return fmt.Errorf("%w: goal %s below current %s", ErrInvalidGoal, a.Goal, p.Current)
		}
		return nil

	case DeleteProject:
		_, err := activeProject(state, a.ProjectID)
		return err

	case AssignMembers:
		if _, ok := state.Project(a.ProjectID); !ok {
			return fmt.Errorf("%w: %d", ErrProjectNotFound, a.ProjectID)
		}
		for _, id := range a.MemberIDs {
			if err := userExists(state, id); err != nil {
				return err
			}
		}
		return nil

	case FundProject:
		if err := positive(a.Amount); err != nil {
			return err
		}
		p, err := activeProject(state, a.ProjectID)
		if err != nil {
			return err
		}
		if p.Current.Add(a.Amount).GreaterThan(p.Goal) {
			return &HeadroomError{ProjectID: p.ID, Current: p.Current, Goal: p.Goal, Requested: a.Amount}
		}
		return nil

	case WithdrawProject:
		if err := positive(a.Amount); err != nil {
			return err
		}
		p, err := activeProject(state, a.ProjectID)
		if err != nil {
			return err
		}
		if a.Amount.GreaterThan(p.Current) {
			return &ProjectFundsError{ProjectID: p.ID, Current: p.Current, Requested: a.Amount}
		}
		return nil

	case CompleteProject:
		p, ok := state.Project(a.ProjectID)
		if !ok {
			return fmt.Errorf("%w: %d", ErrProjectNotFound, a.ProjectID)
		}
		next := CloseoutStatus(p.Current, p.Goal)
		if !CanTransition(p.Status, next) {
			return &TransitionError{ProjectID: p.ID, From: p.Status, To: next}
		}
		return nil

	case ReactivateProject:
		p, ok := state.Project(a.ProjectID)
		if !ok {
			return fmt.Errorf("%w: %d", ErrProjectNotFound, a.ProjectID)
		}
		if !CanTransition(p.Status, StatusActive) {
			return &TransitionError{ProjectID: p.ID, From: p.Status, To: StatusActive}
		}
		return nil

	case AddUser:
		return validateUser(state, a.User, 0)

	case UpdateUser:
		if err := validateUser(state, a.User, a.User.ID); err != nil {
			return err
		}
		if a.User.Role != RoleOwner && isLastOwner(state, a.User.ID) {
			return ErrLastOwner
		}
		return nil

	case DeleteUser:
		if isLastOwner(state, a.UserID) {
			return ErrLastOwner
		}
		return nil

	case DeleteLog:
		e, ok := state.LogEntry(a.LogID)
		if !ok {
			return &LogError{LogID: a.LogID, Op: "delete", Err: ErrLogNotFound}
		}
		if !HasReversalRule(e.Kind) {
			return &LogError{LogID: e.ID, Kind: e.Kind, Op: "delete", Err: ErrNoReversalRule}
		}
		return nil

	case AmendLog:
		e, ok := state.LogEntry(a.LogID)
		if !ok {
			return &LogError{LogID: a.LogID, Op: "amend", Err: ErrLogNotFound}
		}
		// A note-only edit keeps whatever amount was recorded, zero included.
		if a.Amount.Equal(e.Amount) {
			return nil
		}
		return positive(a.Amount)

	case ImportState:
		return nil

	default:
		return fmt.Errorf("%w: %T", ErrUnknownAction, action)
	}
}

func positive(m Money) error {
	if !m.IsPositive() {
		return fmt.Errorf("%w: got %s", ErrInvalidAmount, m)
	}
	return nil
}

func userExists(state State, id ID) error {
	if _, ok := state.User(id); !ok {
		return fmt.Errorf("%w: %d", ErrUserNotFound, id)
	}
	return nil
}

func activeProject(state State, id ID) (Project, error) {
	p, ok := state.Project(id)
	if !ok {
		return Project{}, fmt.Errorf("%w: %d", ErrProjectNotFound, id)
	}
	if !p.IsActive() {
		return Project{}, fmt.Errorf("%w: project %d is %s", ErrProjectClosed, id, p.Status)
	}
	return p, nil
}

func validateUser(state State, u User, self ID) error {
	if strings.TrimSpace(u.Username) == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidUser)
	}
	if !u.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidUser, u.Role)
	}
	for _, other := range state.Users {
		if other.ID != self && strings.EqualFold(other.Username, u.Username) {
			return fmt.Errorf("%w: %q", ErrDuplicateUsername, u.Username)
		}
	}
	return nil
}

// isLastOwner reports whether id is the only Owner-role user.
func isLastOwner(state State, id ID) bool {
	u, ok := state.User(id)
	if !ok || u.Role != RoleOwner {
		return false
	}
	for _, other := range state.Users {
		if other.ID != id && other.Role == RoleOwner {
			return false
		}
	}
	return true
}
