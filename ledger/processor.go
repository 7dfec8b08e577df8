/*
processor.go - The action processor

PURPOSE:
  Apply turns (State, Action) into a new State. It is the only code that
  performs forward mutations of the ledger.

GUARANTEES:
  1. PURE: the input State is never mutated. Apply works on a deep clone
     and either returns it whole or returns an error and discards it.
  2. DETERMINISTIC: given the same IDSource and Clock the output is
     identical. No other hidden input is consulted.
  3. TOTAL: structurally valid actions always succeed. The only failures
     are from DeleteLog/AmendLog (nothing sensible to degrade to) and
     lifecycle moves from the wrong source state.

NOT-FOUND POLICY:
  Actions addressing a project or user by id are silent no-ops when the id
  is unknown. Business rules (headroom, balances, lifecycle) are checked by
  Validate before Apply is called.

LOG ENTRIES:
  Every ledger-affecting action appends exactly one LogEntry, or for
  spending/peer payments one SpendingEntry plus one linked LogEntry. Ids
  are minted from the IDSource so the SpendingEntry always gets the
  smaller id of the pair.

SEE ALSO:
  - lifecycle.go: CompleteProject / ReactivateProject
  - reversal.go:  DeleteLog / AmendLog
  - validate.go:  Rules to check before Apply
*/
package ledger

import (
	"fmt"
	"slices"
	"time"
)

// =============================================================================
// PROCESSOR
// =============================================================================

type Processor struct {
	IDs   IDSource
	Clock func() time.Time
}

// NewProcessor creates a processor. Nil arguments fall back to a
// clock-derived Sequence and time.Now.
func NewProcessor(ids IDSource, clock func() time.Time) *Processor {
	if clock == nil {
		clock = time.Now
	}
	if ids == nil {
		ids = NewSequence(clock)
	}
	return &Processor{IDs: ids, Clock: clock}
}

// Apply computes the state that results from applying action to state.
func (p *Processor) Apply(state State, action Action) (State, error) {
	if imp, ok := action.(ImportState); ok {
		return imp.State.Normalize(), nil
	}

	m := &mutation{
		State: state.Clone(),
		ids:   p.IDs,
		floor: state.MaxID(),
		date:  FormatDate(p.Clock()),
	}
	if err := m.apply(action); err != nil {
		return state, err
	}
	return m.State, nil
}

// mutation is the private working copy of one Apply call.
type mutation struct {
	State
	ids   IDSource
	floor ID
	date  string
}

func (m *mutation) newID() ID {
	id := m.ids.Next(m.floor)
	m.floor = id
	return id
}

func (m *mutation) apply(action Action) error {
	switch a := action.(type) {
	case Deposit:
		m.deposit(a)
	case LogSpending:
		m.logSpending(a)
	case GiveMoney:
		m.giveMoney(a)
	case CreateProject:
		m.createProject(a)
	case UpdateProject:
		m.updateProject(a)
	case DeleteProject:
		m.deleteProject(a)
	case AssignMembers:
		m.assignMembers(a)
	case FundProject:
		m.fundProject(a)
	case WithdrawProject:
		m.withdrawProject(a)
	case CompleteProject:
		return m.completeProject(a)
	case ReactivateProject:
		return m.reactivateProject(a)
	case AddUser:
		m.addUser(a)
	case UpdateUser:
		m.updateUser(a)
	case DeleteUser:
		m.deleteUser(a)
	case DeleteLog:
		return m.deleteLog(a.LogID)
	case AmendLog:
		return m.amendLog(a.LogID, a.Amount, a.Note)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownAction, action)
	}
	return nil
}

func (m *mutation) appendLog(e LogEntry) LogEntry {
	e.ID = m.newID()
	e.Date = m.date
	m.ActivityLog = append(m.ActivityLog, e)
	return e
}

func (m *mutation) appendSpending(e SpendingEntry) SpendingEntry {
	e.ID = m.newID()
	e.Date = m.date
	m.Spending = append(m.Spending, e)
	return e
}

// =============================================================================
// VAULT
// =============================================================================

func (m *mutation) deposit(a Deposit) {
	m.VaultBalance = m.VaultBalance.Add(a.Amount)
	m.appendLog(LogEntry{
		Description: "Added to Vault",
		Amount:      a.Amount,
		Kind:        KindDeposit,
		UserID:      a.UserID,
		Note:        a.Note,
		OperatorID:  a.OperatorID,
	})
}

func (m *mutation) logSpending(a LogSpending) {
	m.VaultBalance = m.VaultBalance.Sub(a.Amount)
	sp := m.appendSpending(SpendingEntry{
		Description: a.Description,
		Amount:      a.Amount,
		Type:        a.Kind,
		Tag:         a.Tag,
		Note:        a.Note,
		UserID:      a.UserID,
	})
	m.appendLog(LogEntry{
		Description: "Spending: " + a.Description,
		Amount:      a.Amount,
		Kind:        KindSpend,
		UserID:      a.UserID,
		SpendingID:  sp.ID,
		Note:        a.Note,
	})
}

func (m *mutation) giveMoney(a GiveMoney) {
	m.VaultBalance = m.VaultBalance.Sub(a.Amount)

	recipient, _ := m.User(a.ToUserID)
	description := "Gave money to " + recipient.FullName

	sp := m.appendSpending(SpendingEntry{
		Description: description,
		Amount:      a.Amount,
		Type:        SpendingPeer,
		Tag:         TagPeerPayment,
		Note:        a.Note,
		UserID:      a.FromUserID,
	})
	m.appendLog(LogEntry{
		Description: description,
		Amount:      a.Amount,
		Kind:        KindPeerTransfer,
		ToUserID:    a.ToUserID,
		FromUserID:  a.FromUserID,
		SpendingID:  sp.ID,
		Note:        a.Note,
	})
}

// =============================================================================
// PROJECTS
// =============================================================================

func (m *mutation) project(id ID) *Project {
	i := m.projectIndex(id)
	if i < 0 {
		return nil
	}
	return &m.Projects[i]
}

func (m *mutation) createProject(a CreateProject) {
	m.Projects = append(m.Projects, Project{
		ID:              m.newID(),
		Name:            a.Name,
		Goal:            a.Goal,
		Status:          StatusActive,
		AssignedMembers: []ID{},
		CreatorID:       a.CreatorID,
	})
}

func (m *mutation) updateProject(a UpdateProject) {
	p := m.project(a.ProjectID)
	if p == nil {
		return
	}
	p.Name = a.Name
	p.Goal = a.Goal
}

func (m *mutation) deleteProject(a DeleteProject) {
	p := m.project(a.ProjectID)
	if p == nil {
		return
	}
	if p.IsActive() && p.Current.IsPositive() {
		m.VaultBalance = m.VaultBalance.Add(p.Current)
		m.appendLog(LogEntry{
			Description: fmt.Sprintf("Project Deleted: %s (Refunded to Vault)", p.Name),
			Amount:      p.Current,
			Kind:        KindProjectWithdraw,
			ProjectID:   p.ID,
			UserID:      a.UserID,
		})
	}
	m.Projects = slices.DeleteFunc(m.Projects, func(x Project) bool { return x.ID == a.ProjectID })
}

func (m *mutation) assignMembers(a AssignMembers) {
	p := m.project(a.ProjectID)
	if p == nil {
		return
	}
	members := slices.Clone(a.MemberIDs)
	slices.Sort(members)
	p.AssignedMembers = slices.Compact(members)
	if p.AssignedMembers == nil {
		p.AssignedMembers = []ID{}
	}
}

func (m *mutation) fundProject(a FundProject) {
	p := m.project(a.ProjectID)
	if p == nil {
		return
	}
	p.Current = p.Current.Add(a.Amount)
	m.VaultBalance = m.VaultBalance.Sub(a.Amount)
	m.appendLog(LogEntry{
		Description: "Funded Project: " + p.Name,
		Amount:      a.Amount,
		Kind:        KindProjectFund,
		ProjectID:   p.ID,
		UserID:      a.UserID,
	})
}

func (m *mutation) withdrawProject(a WithdrawProject) {
	p := m.project(a.ProjectID)
	if p == nil {
		return
	}
	p.Current = p.Current.Sub(a.Amount)
	m.VaultBalance = m.VaultBalance.Add(a.Amount)
	m.appendLog(LogEntry{
		Description: "Withdrew from Project: " + p.Name,
		Amount:      a.Amount,
		Kind:        KindProjectWithdraw,
		ProjectID:   p.ID,
		UserID:      a.UserID,
	})
}

// =============================================================================
// USERS
// =============================================================================

func (m *mutation) addUser(a AddUser) {
	u := a.User
	u.ID = m.newID()
	u.Permissions = slices.Clone(u.Permissions)
	if u.Permissions == nil {
		u.Permissions = []string{}
	}
	m.Users = append(m.Users, u)
}

func (m *mutation) updateUser(a UpdateUser) {
	i := m.userIndex(a.User.ID)
	if i < 0 {
		return
	}
	u := a.User
	if u.Password == "" {
		u.Password = m.Users[i].Password
	}
	u.Permissions = slices.Clone(u.Permissions)
	if u.Permissions == nil {
		u.Permissions = []string{}
	}
	m.Users[i] = u
}

func (m *mutation) deleteUser(a DeleteUser) {
	m.Users = slices.DeleteFunc(m.Users, func(u User) bool { return u.ID == a.UserID })
}
