/*
reversal.go - Deleting and amending historical log entries

PURPOSE:
  An administrator may delete a past log entry (undoing its financial
  effect) or amend its amount and note (propagating the difference). Both
  work from the information recorded in the LogEntry alone; there is no
  replay of history.

DESIGN:
  Two declarative tables keyed by log kind:

    reversals:  kind -> inverse of the forward effect
    amendments: kind -> the forward effect scaled by (new - old)

  A kind missing from a table fails with ErrNoReversalRule or
  ErrNoAmendmentRule instead of silently doing nothing, so a new kind added
  without updating the tables cannot make the ledger drift.

REVERSAL TABLE:
  add_money          vault -= amount
  spending           close-out: project back to active, current += amount
                     otherwise: vault += amount
                     linked SpendingEntry removed
  give_money         vault += amount, linked SpendingEntry removed
  fund_project       vault += amount, project.current -= amount
  withdraw_project   vault -= amount, project.current += amount
  reactivate_project project.current -= amount (vault untouched)

AMENDMENT TABLE (diff = new - old):
  add_money          vault += diff
  spending           vault -= diff, linked SpendingEntry amount = new
  give_money         vault -= diff, linked SpendingEntry amount = new
  fund_project       vault -= diff, project.current += diff
  withdraw_project   vault += diff, project.current -= diff

  reactivate_project and close-out spending entries have no amount rule:
  their amount is fixed by the project they closed or restored. A
  note-only amendment (diff == 0) is accepted for every kind.

CONFLICTS:
  Entries that adjust a project require that project to still exist and
  to be in a state where the adjustment keeps its invariants
  (0 <= current <= goal while active). Otherwise the operation fails with
  ErrReversalConflict and nothing changes. There is no vault-only
  correction for a project that is gone: its money was already returned
  to the vault when it was deleted.

FAILURE:
  Every rule runs against the private clone of one Apply call; a failure
  discards the clone, so the log entry is still there afterwards.
*/
package ledger

import (
	"fmt"
	"slices"
)

type reverseFunc func(m *mutation, e LogEntry) error

type amendFunc func(m *mutation, e LogEntry, diff, newAmount Money, note string) error

var reversals = map[Kind]reverseFunc{
	KindDeposit:           reverseDeposit,
	KindSpend:             reverseSpend,
	KindPeerTransfer:      reversePeerTransfer,
	KindProjectFund:       reverseProjectFund,
	KindProjectWithdraw:   reverseProjectWithdraw,
	KindProjectReactivate: reverseProjectReactivate,
}

var amendments = map[Kind]amendFunc{
	KindDeposit:         amendDeposit,
	KindSpend:           amendSpend,
	KindPeerTransfer:    amendSpend,
	KindProjectFund:     amendProjectFund,
	KindProjectWithdraw: amendProjectWithdraw,
}

// HasReversalRule reports whether entries of the kind can be deleted.
func HasReversalRule(k Kind) bool {
	_, ok := reversals[k]
	return ok
}

// HasAmendmentRule reports whether entries of the kind can change amount.
func HasAmendmentRule(k Kind) bool {
	_, ok := amendments[k]
	return ok
}

// =============================================================================
// DELETE
// =============================================================================

func (m *mutation) deleteLog(id ID) error {
	i := m.logIndex(id)
	if i < 0 {
		return &LogError{LogID: id, Op: "delete", Err: ErrLogNotFound}
	}
	e := m.ActivityLog[i]

	reverse, ok := reversals[e.Kind]
	if !ok {
		return &LogError{LogID: id, Kind: e.Kind, Op: "delete", Err: ErrNoReversalRule}
	}
	if err := reverse(m, e); err != nil {
		return &LogError{LogID: id, Kind: e.Kind, Op: "delete", Err: err}
	}

	m.ActivityLog = slices.DeleteFunc(m.ActivityLog, func(l LogEntry) bool { return l.ID == id })
	return nil
}

func reverseDeposit(m *mutation, e LogEntry) error {
	m.VaultBalance = m.VaultBalance.Sub(e.Amount)
	return nil
}

func reverseSpend(m *mutation, e LogEntry) error {
	if projectID, ok := m.closeoutProject(e); ok {
		if _, linked := m.SpendingEntry(e.SpendingID); !linked {
			return fmt.Errorf("%w: close-out of project %d already undone", ErrReversalConflict, projectID)
		}
		p := m.project(projectID)
		if p == nil {
			return fmt.Errorf("%w: closed-out project %d no longer exists", ErrReversalConflict, projectID)
		}
		if !p.Status.IsClosed() {
			return fmt.Errorf("%w: project %d is %s, close-out already undone", ErrReversalConflict, p.ID, p.Status)
		}
		p.Status = StatusActive
		p.Current = p.Current.Add(e.Amount)
		p.SpentAmount = Zero
	} else {
		m.VaultBalance = m.VaultBalance.Add(e.Amount)
	}
	m.removeSpending(e.SpendingID)
	return nil
}

func reversePeerTransfer(m *mutation, e LogEntry) error {
	m.VaultBalance = m.VaultBalance.Add(e.Amount)
	m.removeSpending(e.SpendingID)
	return nil
}

func reverseProjectFund(m *mutation, e LogEntry) error {
	p, err := m.activeProjectFor(e)
	if err != nil {
		return err
	}
	if err := p.checkCurrent(p.Current.Sub(e.Amount)); err != nil {
		return err
	}
	m.VaultBalance = m.VaultBalance.Add(e.Amount)
	p.Current = p.Current.Sub(e.Amount)
	return nil
}

func reverseProjectWithdraw(m *mutation, e LogEntry) error {
	p, err := m.activeProjectFor(e)
	if err != nil {
		return err
	}
	if err := p.checkCurrent(p.Current.Add(e.Amount)); err != nil {
		return err
	}
	m.VaultBalance = m.VaultBalance.Sub(e.Amount)
	p.Current = p.Current.Add(e.Amount)
	return nil
}

func reverseProjectReactivate(m *mutation, e LogEntry) error {
	p, err := m.activeProjectFor(e)
	if err != nil {
		return err
	}
	if err := p.checkCurrent(p.Current.Sub(e.Amount)); err != nil {
		return err
	}
	p.Current = p.Current.Sub(e.Amount)
	return nil
}

// =============================================================================
// AMEND
// =============================================================================

func (m *mutation) amendLog(id ID, newAmount Money, note string) error {
	i := m.logIndex(id)
	if i < 0 {
		return &LogError{LogID: id, Op: "amend", Err: ErrLogNotFound}
	}
	e := m.ActivityLog[i]
	diff := newAmount.Sub(e.Amount)

	if !diff.IsZero() {
		amend, ok := amendments[e.Kind]
		if !ok {
			return &LogError{LogID: id, Kind: e.Kind, Op: "amend", Err: ErrNoAmendmentRule}
		}
		if err := amend(m, e, diff, newAmount, note); err != nil {
			return &LogError{LogID: id, Kind: e.Kind, Op: "amend", Err: err}
		}
	}

	m.ActivityLog[i].Amount = newAmount
	m.ActivityLog[i].Note = note
	if sp := m.spending(e.SpendingID); sp != nil {
		sp.Note = note
	}
	return nil
}

func amendDeposit(m *mutation, _ LogEntry, diff, _ Money, _ string) error {
	m.VaultBalance = m.VaultBalance.Add(diff)
	return nil
}

func amendSpend(m *mutation, e LogEntry, diff, newAmount Money, _ string) error {
	if _, ok := m.closeoutProject(e); ok {
		return fmt.Errorf("%w: close-out amount is fixed by the project", ErrNoAmendmentRule)
	}
	m.VaultBalance = m.VaultBalance.Sub(diff)
	if sp := m.spending(e.SpendingID); sp != nil {
		sp.Amount = newAmount
	}
	return nil
}

func amendProjectFund(m *mutation, e LogEntry, diff, _ Money, _ string) error {
	p, err := m.activeProjectFor(e)
	if err != nil {
		return err
	}
	if err := p.checkCurrent(p.Current.Add(diff)); err != nil {
		return err
	}
	m.VaultBalance = m.VaultBalance.Sub(diff)
	p.Current = p.Current.Add(diff)
	return nil
}

func amendProjectWithdraw(m *mutation, e LogEntry, diff, _ Money, _ string) error {
	p, err := m.activeProjectFor(e)
	if err != nil {
		return err
	}
	if err := p.checkCurrent(p.Current.Sub(diff)); err != nil {
		return err
	}
	m.VaultBalance = m.VaultBalance.Add(diff)
	p.Current = p.Current.Sub(diff)
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// closeoutProject returns the project a spending log entry closed out. The
// linked SpendingEntry is authoritative; when it is gone (reactivation
// deletes it) the entry's own project reference is used. Only a close-out
// whose SpendingEntry still exists may be reversed.
func (m *mutation) closeoutProject(e LogEntry) (ID, bool) {
	if e.Kind != KindSpend {
		return 0, false
	}
	if sp, ok := m.SpendingEntry(e.SpendingID); ok {
		return sp.OriginalProjectID, sp.OriginalProjectID != 0
	}
	return e.ProjectID, e.ProjectID != 0
}

func (m *mutation) activeProjectFor(e LogEntry) (*Project, error) {
	p := m.project(e.ProjectID)
	if p == nil {
		return nil, fmt.Errorf("%w: project %d no longer exists", ErrReversalConflict, e.ProjectID)
	}
	if !p.IsActive() {
		return nil, fmt.Errorf("%w: project %d is %s", ErrReversalConflict, p.ID, p.Status)
	}
	return p, nil
}

// checkCurrent verifies an active project could hold the given amount.
func (p *Project) checkCurrent(current Money) error {
	if current.IsNegative() || current.GreaterThan(p.Goal) {
		return fmt.Errorf("%w: project %d would hold %s (goal %s)",
			ErrReversalConflict, p.ID, current, p.Goal)
	}
	return nil
}

func (m *mutation) spending(id ID) *SpendingEntry {
	if id == 0 {
		return nil
	}
	i := m.spendingIndex(id)
	if i < 0 {
		return nil
	}
	return &m.Spending[i]
}

func (m *mutation) removeSpending(id ID) {
	if id == 0 {
		return
	}
	m.Spending = slices.DeleteFunc(m.Spending, func(s SpendingEntry) bool { return s.ID == id })
}
