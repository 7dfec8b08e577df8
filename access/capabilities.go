/*
Package access decides who may see and who may do what.

PURPOSE:
  The ledger engine always works on the full, authoritative state. This
  package is the read-side filter (which users, projects and log entries a
  viewer may see) and the write-side gate (which actions an actor may
  dispatch). Nothing here mutates state.

TWO LAYERS:
  1. Capabilities: flags granted per user (add_money, view_reports, ...)
  2. Roles: Owner > Manager > Member, for actions no flag covers

SEE ALSO:
  - visibility.go: read-side filtering
  - authorize.go:  write-side gate
*/
package access

import "github.com/warp/vault-ledger/ledger"

// Capability is a permission flag stored on a user.
type Capability = string

const (
	CapAddMoney       Capability = "add_money"
	CapCreateProject  Capability = "create_project"
	CapLogExpense     Capability = "log_expense"
	CapGiveMoney      Capability = "give_money"
	CapViewVault      Capability = "view_vault"
	CapViewProjects   Capability = "view_projects"
	CapViewMyProjects Capability = "view_my_projects"
	CapViewSpending   Capability = "view_spending"
	CapViewActivity   Capability = "view_activity"
	CapViewMyActivity Capability = "view_my_activity"
	CapViewAccounts   Capability = "view_accounts"
	CapViewReports    Capability = "view_reports"
	CapAccessAdmin    Capability = "access_admin"
)

// AllCapabilities lists every flag, in the order an admin screen shows them.
var AllCapabilities = []Capability{
	CapAddMoney, CapCreateProject, CapLogExpense, CapGiveMoney,
	CapViewVault, CapViewProjects, CapViewMyProjects, CapViewSpending,
	CapViewActivity, CapViewMyActivity, CapViewAccounts, CapViewReports,
	CapAccessAdmin,
}

// DefaultCapabilities returns the flags a new user of the role starts with.
func DefaultCapabilities(role ledger.Role) []Capability {
	switch role {
	case ledger.RoleOwner:
		return append([]Capability(nil), AllCapabilities...)
	case ledger.RoleManager:
		return []Capability{
			CapAddMoney, CapCreateProject, CapLogExpense, CapGiveMoney,
			CapViewVault, CapViewProjects, CapViewSpending, CapViewActivity,
			CapViewAccounts,
		}
	case ledger.RoleMember:
		return []Capability{CapViewMyProjects, CapViewMyActivity}
	default:
		return []Capability{}
	}
}

// Can reports whether the user holds the capability.
func Can(u ledger.User, c Capability) bool {
	return u.HasPermission(c)
}

// DefaultSeed is the ledger a fresh installation starts from: one Owner
// "admin" with password "admin" and every capability, an empty vault.
func DefaultSeed() ledger.State {
	return ledger.State{
		Users: []ledger.User{{
			ID:          1,
			Username:    "admin",
			Password:    "admin",
			Role:        ledger.RoleOwner,
			FullName:    "Administrator",
			Permissions: DefaultCapabilities(ledger.RoleOwner),
		}},
		Projects:    []ledger.Project{},
		Spending:    []ledger.SpendingEntry{},
		ActivityLog: []ledger.LogEntry{},
	}
}
