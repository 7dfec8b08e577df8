/*
conservation.go - Advisory consistency checks

PURPOSE:
  The ledger does not enforce global invariants inside Apply; it relies on
  Validate plus the reversal tables. This file lets operators and tests
  verify after the fact that nothing drifted.

CONSERVATION:
  Money moves between the vault and active projects, and leaves through
  spending and peer payments. Reactivation brings closed-out money back
  into an active project without a vault movement. So

    (vault + Σ active current) - (deposits - spends - peer + reactivations)

  is the same number before and after every action except ImportState.
  Baseline computes it; tests and the invariant scheduler compare it.

STRUCTURAL CHECKS:
  CheckInvariants reports each per-entity rule that does not hold, rather
  than stopping at the first one, so an operator sees the full picture.
  Close-out spending entries are matched against project status: a closed
  project owns exactly one, an active project none.
*/
package ledger

import "fmt"

// Baseline returns the conserved quantity of the state.
func Baseline(s State) Money {
	held := s.VaultBalance
	for _, p := range s.Projects {
		if p.IsActive() {
			held = held.Add(p.Current)
		}
	}

	journal := Zero
	for _, e := range s.ActivityLog {
		switch e.Kind {
		case KindDeposit, KindProjectReactivate:
			journal = journal.Add(e.Amount)
		case KindSpend, KindPeerTransfer:
			journal = journal.Sub(e.Amount)
		}
	}
	return held.Sub(journal)
}

// Violation codes.
const (
	ViolationActiveSpent    = "active_spent_amount"
	ViolationClosedCurrent  = "closed_current"
	ViolationOverGoal       = "current_exceeds_goal"
	ViolationNegative       = "negative_current"
	ViolationDanglingLink   = "dangling_spending_link"
	ViolationDuplicateID    = "duplicate_id"
	ViolationUnknownKind    = "unknown_log_kind"
	ViolationUnknownProject = "unknown_project_status"
	ViolationCloseout       = "closeout_mismatch"
)

// Violation is one broken rule.
type Violation struct {
	Code     string `json:"code"`
	EntityID ID     `json:"entityId"`
	Message  string `json:"message"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s(%d): %s", v.Code, v.EntityID, v.Message)
}

// CheckInvariants returns every structural rule the state breaks.
func CheckInvariants(s State) []Violation {
	var out []Violation
	add := func(code string, id ID, format string, args ...any) {
		out = append(out, Violation{Code: code, EntityID: id, Message: fmt.Sprintf(format, args...)})
	}

	for _, p := range s.Projects {
		switch p.Status {
		case StatusActive:
			if !p.SpentAmount.IsZero() {
				add(ViolationActiveSpent, p.ID, "active project %q has spent amount %s", p.Name, p.SpentAmount)
			}
			if p.Current.GreaterThan(p.Goal) {
				add(ViolationOverGoal, p.ID, "project %q holds %s above goal %s", p.Name, p.Current, p.Goal)
			}
		case StatusSpent, StatusCompleted:
			if !p.Current.IsZero() {
				add(ViolationClosedCurrent, p.ID, "%s project %q still holds %s", p.Status, p.Name, p.Current)
			}
		default:
			add(ViolationUnknownProject, p.ID, "project %q has status %q", p.Name, p.Status)
		}
		if p.Current.IsNegative() {
			add(ViolationNegative, p.ID, "project %q holds %s", p.Name, p.Current)
		}
	}

	for _, e := range s.ActivityLog {
		if !HasReversalRule(e.Kind) {
			add(ViolationUnknownKind, e.ID, "log entry has kind %q", e.Kind)
		}
		if e.SpendingID == 0 {
			continue
		}
		if _, ok := s.SpendingEntry(e.SpendingID); ok {
			continue
		}
		// Reactivation deletes the close-out spending entry but keeps the log.
		if e.Kind == KindSpend && e.ProjectID != 0 {
			continue
		}
		add(ViolationDanglingLink, e.ID, "log entry references missing spending %d", e.SpendingID)
	}

	// A closed project has exactly one close-out entry; an active one has none.
	closeouts := make(map[ID]int)
	for _, sp := range s.Spending {
		if sp.IsCloseout() {
			closeouts[sp.OriginalProjectID]++
		}
	}
	for _, p := range s.Projects {
		n := closeouts[p.ID]
		switch {
		case p.Status == StatusActive && n > 0:
			add(ViolationCloseout, p.ID, "active project %q has %d close-out entries", p.Name, n)
		case p.Status.IsClosed() && n != 1:
			add(ViolationCloseout, p.ID, "%s project %q has %d close-out entries", p.Status, p.Name, n)
		}
	}

	seen := make(map[ID]bool)
	check := func(id ID) {
		if seen[id] {
			add(ViolationDuplicateID, id, "id %d is used more than once", id)
		}
		seen[id] = true
	}
	for _, u := range s.Users {
		check(u.ID)
	}
	for _, p := range s.Projects {
		check(p.ID)
	}
	for _, sp := range s.Spending {
		check(sp.ID)
	}
	for _, l := range s.ActivityLog {
		check(l.ID)
	}
	return out
}
