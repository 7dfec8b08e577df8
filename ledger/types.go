/*
Package ledger provides the ledger state engine for the shared vault.

PURPOSE:
  This package owns the authoritative data model of the organization's
  money: a cash vault, funding projects, spending records and the activity
  log that doubles as audit trail and undo journal. It turns intents
  (Actions) into new, consistent State values.

KEY CONCEPTS IN THIS FILE (types.go):
  - User:          Identity, role and capability flags
  - Project:       A ring-fenced funding goal with a lifecycle status
  - SpendingEntry: Money leaving the vault (spending, peer payment, close-out)
  - LogEntry:      Audit/undo record of one ledger-affecting action
  - State:         The aggregate root, identical to the replicated snapshot

DESIGN PRINCIPLES:
  1. Values, not objects: Apply never mutates its input State
  2. Precision: Money is decimal, never float
  3. Wire compatibility: JSON field names and enum values match the
     snapshot format exchanged with the sync collaborator
  4. Reversibility: every LogEntry carries enough to invert its effect

SEE ALSO:
  - processor.go: Forward mutations (Apply)
  - lifecycle.go: Project status state machine
  - reversal.go:  Delete/amend of historical log entries
  - validate.go:  Caller-side business rules
*/
package ledger

import (
	"slices"
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// ID identifies users, projects, spending entries and log entries.
// Zero means "absent" for optional references.
type ID int64

// =============================================================================
// USER
// =============================================================================

// Role is strictly ordered by privilege: Owner > Manager > Member.
// Wire names are the ones the snapshot has always used.
type Role string

const (
	RoleOwner   Role = "Admin"
	RoleManager Role = "Manager"
	RoleMember  Role = "Employee"
)

// Rank returns a comparable privilege level; higher is more privileged.
// Unknown roles rank below Member.
func (r Role) Rank() int {
	switch r {
	case RoleOwner:
		return 3
	case RoleManager:
		return 2
	case RoleMember:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether r is as privileged as other.
func (r Role) AtLeast(other Role) bool { return r.Rank() >= other.Rank() }

func (r Role) Valid() bool { return r.Rank() > 0 }

type User struct {
	ID          ID       `json:"id"`
	Username    string   `json:"username"`
	Password    string   `json:"password,omitempty"`
	Role        Role     `json:"role"`
	FullName    string   `json:"fullName"`
	Permissions []string `json:"permissions"`

	// VisibleToLowerRoles only matters for Owner-role users: when false the
	// owner is hidden from Managers and Members.
	VisibleToLowerRoles bool `json:"isVisibleToManagers,omitempty"`
}

// HasPermission reports whether the capability flag is granted.
func (u User) HasPermission(p string) bool {
	return slices.Contains(u.Permissions, p)
}

// =============================================================================
// PROJECT
// =============================================================================

type ProjectStatus string

const (
	StatusActive    ProjectStatus = "active"
	StatusSpent     ProjectStatus = "spent"
	StatusCompleted ProjectStatus = "completed"
)

// Project is a funding goal.
//
// INVARIANTS:
//   - active:           SpentAmount == 0, 0 <= Current <= Goal
//   - spent, completed: Current == 0, SpentAmount holds the closed-out amount
type Project struct {
	ID              ID            `json:"id"`
	Name            string        `json:"name"`
	Current         Money         `json:"current"`
	Goal            Money         `json:"goal"`
	Status          ProjectStatus `json:"status"`
	AssignedMembers []ID          `json:"assignedEmployees"`
	SpentAmount     Money         `json:"spentAmount"`
	CreatorID       ID            `json:"creatorId,omitempty"`
}

func (p Project) IsActive() bool { return p.Status == StatusActive }

// IsAssigned reports whether the user is one of the project's members.
func (p Project) IsAssigned(userID ID) bool {
	return slices.Contains(p.AssignedMembers, userID)
}

// =============================================================================
// SPENDING ENTRY
// =============================================================================

// SpendingType categorizes why money left the vault.
type SpendingType string

const (
	SpendingHouse    SpendingType = "House"
	SpendingGeneral  SpendingType = "General"
	SpendingPeer     SpendingType = "User"    // peer-to-peer gift
	SpendingCloseout SpendingType = "Project" // project completion payout
)

const (
	TagPeerPayment = "payment"
	TagProject     = "project"
)

type SpendingEntry struct {
	ID                ID           `json:"id"`
	Date              string       `json:"date"`
	Description       string       `json:"description"`
	Amount            Money        `json:"amount"`
	Type              SpendingType `json:"type"`
	Tag               string       `json:"tag,omitempty"`
	Note              string       `json:"note,omitempty"`
	OriginalProjectID ID           `json:"originalProjectId,omitempty"`
	UserID            ID           `json:"userId,omitempty"`
}

// IsCloseout reports whether the entry was produced by CompleteProject.
func (s SpendingEntry) IsCloseout() bool {
	return s.Type == SpendingCloseout && s.OriginalProjectID != 0
}

// =============================================================================
// LOG ENTRY
// =============================================================================

// Kind discriminates log entries. Each kind has a reversal rule and
// (except reactivation) an amendment rule in reversal.go.
type Kind string

const (
	KindDeposit           Kind = "add_money"
	KindSpend             Kind = "spending"
	KindPeerTransfer      Kind = "give_money"
	KindProjectFund       Kind = "fund_project"
	KindProjectWithdraw   Kind = "withdraw_project"
	KindProjectReactivate Kind = "reactivate_project"
)

// Kinds lists every log entry kind in a stable order.
var Kinds = []Kind{
	KindDeposit, KindSpend, KindPeerTransfer,
	KindProjectFund, KindProjectWithdraw, KindProjectReactivate,
}

type LogEntry struct {
	ID          ID     `json:"id"`
	Date        string `json:"date"`
	Description string `json:"description"`
	Amount      Money  `json:"amount"`
	Kind        Kind   `json:"type"`
	UserID      ID     `json:"userId,omitempty"`
	ToUserID    ID     `json:"toUserId,omitempty"`
	FromUserID  ID     `json:"fromUserId,omitempty"`
	ProjectID   ID     `json:"projectId,omitempty"`
	SpendingID  ID     `json:"spendingId,omitempty"`
	Note        string `json:"note,omitempty"`
	OperatorID  ID     `json:"operatorId,omitempty"`
}

// Identities returns every non-zero user id the entry references
// (actor, operator, counterparts).
func (l LogEntry) Identities() []ID {
	var ids []ID
	for _, id := range []ID{l.UserID, l.OperatorID, l.FromUserID, l.ToUserID} {
		if id != 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

// Involves reports whether the user appears as actor or counterpart.
func (l LogEntry) Involves(userID ID) bool {
	return l.UserID == userID || l.FromUserID == userID || l.ToUserID == userID
}

// =============================================================================
// STATE - Aggregate root and replicated snapshot
// =============================================================================

// State is the full ledger. Its JSON form is the snapshot exchanged with the
// sync collaborator.
//
// Conservation (advisory, see conservation.go):
//
//	vault + Σ active current == opening + deposits - spends - peer + reactivations
type State struct {
	Users        []User          `json:"users"`
	Projects     []Project       `json:"projects"`
	Spending     []SpendingEntry `json:"spending"`
	ActivityLog  []LogEntry      `json:"activityLog"`
	VaultBalance Money           `json:"vaultBalance"`
}

// Clone returns a deep copy. Apply works on clones so the caller's value is
// never observably mutated.
func (s State) Clone() State {
	out := State{
		Users:        make([]User, len(s.Users)),
		Projects:     make([]Project, len(s.Projects)),
		Spending:     slices.Clone(s.Spending),
		ActivityLog:  slices.Clone(s.ActivityLog),
		VaultBalance: s.VaultBalance,
	}
	for i, u := range s.Users {
		u.Permissions = slices.Clone(u.Permissions)
		out.Users[i] = u
	}
	for i, p := range s.Projects {
		p.AssignedMembers = slices.Clone(p.AssignedMembers)
		out.Projects[i] = p
	}
	if out.Spending == nil {
		out.Spending = []SpendingEntry{}
	}
	if out.ActivityLog == nil {
		out.ActivityLog = []LogEntry{}
	}
	return out
}

// Normalize fills missing collections and permission lists, the way a
// snapshot arriving from the sync collaborator may omit empty arrays.
func (s State) Normalize() State {
	out := s.Clone()
	for i := range out.Users {
		if out.Users[i].Permissions == nil {
			out.Users[i].Permissions = []string{}
		}
	}
	for i := range out.Projects {
		if out.Projects[i].AssignedMembers == nil {
			out.Projects[i].AssignedMembers = []ID{}
		}
	}
	return out
}

// MaxID returns the largest id used by any entity in the state.
func (s State) MaxID() ID {
	var max ID
	bump := func(id ID) {
		if id > max {
			max = id
		}
	}
	for _, u := range s.Users {
		bump(u.ID)
	}
	for _, p := range s.Projects {
		bump(p.ID)
	}
	for _, sp := range s.Spending {
		bump(sp.ID)
	}
	for _, l := range s.ActivityLog {
		bump(l.ID)
	}
	return max
}

// =============================================================================
// LOOKUPS
// =============================================================================

func (s State) User(id ID) (User, bool) {
	i := s.userIndex(id)
	if i < 0 {
		return User{}, false
	}
	return s.Users[i], true
}

func (s State) Project(id ID) (Project, bool) {
	i := s.projectIndex(id)
	if i < 0 {
		return Project{}, false
	}
	return s.Projects[i], true
}

func (s State) SpendingEntry(id ID) (SpendingEntry, bool) {
	i := s.spendingIndex(id)
	if i < 0 {
		return SpendingEntry{}, false
	}
	return s.Spending[i], true
}

func (s State) LogEntry(id ID) (LogEntry, bool) {
	i := s.logIndex(id)
	if i < 0 {
		return LogEntry{}, false
	}
	return s.ActivityLog[i], true
}

func (s State) userIndex(id ID) int {
	return slices.IndexFunc(s.Users, func(u User) bool { return u.ID == id })
}

func (s State) projectIndex(id ID) int {
	return slices.IndexFunc(s.Projects, func(p Project) bool { return p.ID == id })
}

func (s State) spendingIndex(id ID) int {
	return slices.IndexFunc(s.Spending, func(e SpendingEntry) bool { return e.ID == id })
}

func (s State) logIndex(id ID) int {
	return slices.IndexFunc(s.ActivityLog, func(l LogEntry) bool { return l.ID == id })
}

// FormatDate renders the day a record is dated with.
func FormatDate(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}
