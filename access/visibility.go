package access

import "github.com/warp/vault-ledger/ledger"

// =============================================================================
// VISIBILITY - Hidden owners
// =============================================================================

// Visible reports whether viewer may see subject. Owners see everyone; an
// Owner-role subject is visible to others only when it opted in.
func Visible(viewer, subject ledger.User) bool {
	if viewer.Role == ledger.RoleOwner {
		return true
	}
	return subject.Role != ledger.RoleOwner || subject.VisibleToLowerRoles
}

// visibleID applies Visible to a user id. Unknown ids (deleted users) do not
// hide anything.
func visibleID(viewer ledger.User, id ledger.ID, users []ledger.User) bool {
	if id == 0 {
		return true
	}
	for _, u := range users {
		if u.ID == id {
			return Visible(viewer, u)
		}
	}
	return true
}

// LogVisible reports whether every identity the entry references is visible.
func LogVisible(viewer ledger.User, e ledger.LogEntry, users []ledger.User) bool {
	for _, id := range e.Identities() {
		if !visibleID(viewer, id, users) {
			return false
		}
	}
	return true
}

// ProjectVisible applies the creator rule, and for Members the assignment rule.
func ProjectVisible(viewer ledger.User, p ledger.Project, users []ledger.User) bool {
	switch viewer.Role {
	case ledger.RoleOwner:
		return true
	case ledger.RoleMember:
		return p.IsAssigned(viewer.ID)
	default:
		return visibleID(viewer, p.CreatorID, users)
	}
}

// =============================================================================
// FILTERS
// =============================================================================

func FilterUsers(viewer ledger.User, users []ledger.User) []ledger.User {
	out := make([]ledger.User, 0, len(users))
	for _, u := range users {
		if Visible(viewer, u) {
			u.Password = ""
			out = append(out, u)
		}
	}
	return out
}

func FilterProjects(viewer ledger.User, s ledger.State) []ledger.Project {
	out := make([]ledger.Project, 0, len(s.Projects))
	for _, p := range s.Projects {
		if ProjectVisible(viewer, p, s.Users) {
			out = append(out, p)
		}
	}
	return out
}

func FilterSpending(viewer ledger.User, s ledger.State) []ledger.SpendingEntry {
	out := make([]ledger.SpendingEntry, 0, len(s.Spending))
	for _, sp := range s.Spending {
		if visibleID(viewer, sp.UserID, s.Users) {
			out = append(out, sp)
		}
	}
	return out
}

// FilterLog returns the visible entries. With personal set only entries the
// viewer is involved in are kept.
func FilterLog(viewer ledger.User, s ledger.State, personal bool) []ledger.LogEntry {
	out := make([]ledger.LogEntry, 0, len(s.ActivityLog))
	for _, e := range s.ActivityLog {
		if personal && !e.Involves(viewer.ID) {
			continue
		}
		if LogVisible(viewer, e, s.Users) {
			out = append(out, e)
		}
	}
	return out
}

// PersonalOnly reports whether the viewer is limited to their own activity.
func PersonalOnly(viewer ledger.User) bool {
	return !Can(viewer, CapViewActivity)
}

// FilterState is the state as the viewer may see it. Credentials never leave.
func FilterState(viewer ledger.User, s ledger.State) ledger.State {
	out := ledger.State{
		Users:        FilterUsers(viewer, s.Users),
		Projects:     FilterProjects(viewer, s),
		Spending:     FilterSpending(viewer, s),
		ActivityLog:  FilterLog(viewer, s, PersonalOnly(viewer)),
		VaultBalance: s.VaultBalance,
	}
	if !Can(viewer, CapViewVault) {
		out.VaultBalance = ledger.Zero
	}
	return out
}
