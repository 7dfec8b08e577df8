/*
lifecycle.go - Project status state machine

STATES:
  active    - accepting funds and withdrawals
  spent     - closed out below goal
  completed - closed out at or above goal

TRANSITIONS:
  active          --Complete-->   spent | completed
  spent|completed --Reactivate--> active

  Nothing else is legal. Validate rejects illegal moves before Apply, and
  Apply refuses them too rather than silently accepting.

MONEY:
  Neither transition touches the vault. Complete moves the project's
  current funds into a close-out SpendingEntry; Reactivate deletes that
  entry and puts the amount back into current.
*/
package ledger

import (
	"fmt"
	"slices"
)

var transitions = map[ProjectStatus][]ProjectStatus{
	StatusActive:    {StatusSpent, StatusCompleted},
	StatusSpent:     {StatusActive},
	StatusCompleted: {StatusActive},
}

// CanTransition reports whether a project may move from one status to another.
func CanTransition(from, to ProjectStatus) bool {
	return slices.Contains(transitions[from], to)
}

// CloseoutStatus is the status Complete assigns: completed exactly when the
// goal was reached.
func CloseoutStatus(current, goal Money) ProjectStatus {
	if current.GreaterThanOrEqual(goal) {
		return StatusCompleted
	}
	return StatusSpent
}

// IsClosed reports whether the status is one of the close-out states.
func (s ProjectStatus) IsClosed() bool {
	return s == StatusSpent || s == StatusCompleted
}

func (m *mutation) completeProject(a CompleteProject) error {
	p := m.project(a.ProjectID)
	if p == nil {
		return nil
	}
	amount := p.Current
	next := CloseoutStatus(amount, p.Goal)
	if !CanTransition(p.Status, next) {
		return &TransitionError{ProjectID: p.ID, From: p.Status, To: next}
	}

	sp := m.appendSpending(SpendingEntry{
		Description:       "Project Completion: " + p.Name,
		Amount:            amount,
		Type:              SpendingCloseout,
		Tag:               TagProject,
		OriginalProjectID: p.ID,
		UserID:            a.UserID,
	})
	m.appendLog(LogEntry{
		Description: "Completed/Spent Project: " + p.Name,
		Amount:      amount,
		Kind:        KindSpend,
		ProjectID:   p.ID,
		UserID:      a.UserID,
		SpendingID:  sp.ID,
	})

	p.Status = next
	p.SpentAmount = amount
	p.Current = Zero
	return nil
}

func (m *mutation) reactivateProject(a ReactivateProject) error {
	p := m.project(a.ProjectID)
	if p == nil {
		return nil
	}
	if !CanTransition(p.Status, StatusActive) {
		return &TransitionError{ProjectID: p.ID, From: p.Status, To: StatusActive}
	}
	restored := p.SpentAmount

	// A true deletion: the close-out log entry stays in the journal.
	m.Spending = slices.DeleteFunc(m.Spending, func(s SpendingEntry) bool {
		return s.OriginalProjectID == p.ID && s.Type == SpendingCloseout
	})

	p.Status = StatusActive
	p.Current = restored
	p.SpentAmount = Zero

	m.appendLog(LogEntry{
		Description: fmt.Sprintf("Reactivated Project: %s", p.Name),
		Amount:      restored,
		Kind:        KindProjectReactivate,
		ProjectID:   p.ID,
		UserID:      a.UserID,
	})
	return nil
}
