/*
actions.go - Intents accepted by the action processor

PURPOSE:
  Every mutation of the ledger is expressed as an Action value. Actions are
  plain data: they carry the fields of the intent and nothing else. The
  processor (processor.go) gives them meaning.

WIRE FORMAT:
  Actions travel as an envelope {"type": "...", "payload": {...}} with the
  type names below. DecodeAction turns an envelope into a concrete Action.

ACTOR ATTRIBUTION:
  Fields naming "who did it" (operatorId, creatorId, userId, fromUserId)
  may be left zero by remote callers; Attribute fills them from the
  authenticated identity.
*/
package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ActionType names an action on the wire.
type ActionType string

const (
	ActionDeposit           ActionType = "ADD_MONEY"
	ActionCreateProject     ActionType = "CREATE_PROJECT"
	ActionUpdateProject     ActionType = "UPDATE_PROJECT"
	ActionDeleteProject     ActionType = "DELETE_PROJECT"
	ActionAssignMembers     ActionType = "ASSIGN_MEMBERS"
	ActionLogSpending       ActionType = "LOG_SPENDING"
	ActionGiveMoney         ActionType = "GIVE_MONEY"
	ActionFundProject       ActionType = "FUND_PROJECT"
	ActionWithdrawProject   ActionType = "WITHDRAW_PROJECT"
	ActionCompleteProject   ActionType = "COMPLETE_PROJECT"
	ActionReactivateProject ActionType = "REACTIVATE_PROJECT"
	ActionAddUser           ActionType = "ADD_USER"
	ActionUpdateUser        ActionType = "UPDATE_USER"
	ActionDeleteUser        ActionType = "DELETE_USER"
	ActionDeleteLog         ActionType = "DELETE_LOG"
	ActionAmendLog          ActionType = "UPDATE_LOG"
	ActionImportState       ActionType = "IMPORT_DATA"
)

// Action is an intent to change the ledger.
type Action interface {
	Type() ActionType
}

// =============================================================================
// VAULT ACTIONS
// =============================================================================

// Deposit adds money to the vault on behalf of UserID. OperatorID records
// who typed it in when different from the depositor.
type Deposit struct {
	Amount     Money  `json:"amount"`
	UserID     ID     `json:"userId"`
	OperatorID ID     `json:"operatorId,omitempty"`
	Note       string `json:"note,omitempty"`
}

// LogSpending records general or house spending out of the vault.
type LogSpending struct {
	Amount      Money        `json:"amount"`
	Description string       `json:"description"`
	Tag         string       `json:"tag"`
	Kind        SpendingType `json:"type"`
	UserID      ID           `json:"userId,omitempty"`
	Note        string       `json:"note,omitempty"`
}

// GiveMoney pays a user out of the vault.
type GiveMoney struct {
	Amount     Money  `json:"amount"`
	FromUserID ID     `json:"fromUserId,omitempty"`
	ToUserID   ID     `json:"toUserId"`
	Note       string `json:"note,omitempty"`
}

// =============================================================================
// PROJECT ACTIONS
// =============================================================================

type CreateProject struct {
	Name      string `json:"name"`
	Goal      Money  `json:"goal"`
	CreatorID ID     `json:"creatorId,omitempty"`
}

type UpdateProject struct {
	ProjectID ID     `json:"id"`
	Name      string `json:"name"`
	Goal      Money  `json:"goal"`
}

// DeleteProject removes a project, refunding an active project's funds.
type DeleteProject struct {
	ProjectID ID `json:"projectId"`
	UserID    ID `json:"userId,omitempty"`
}

// AssignMembers replaces the set of users working on a project.
type AssignMembers struct {
	ProjectID ID   `json:"projectId"`
	MemberIDs []ID `json:"memberIds"`
}

type FundProject struct {
	ProjectID ID    `json:"projectId"`
	Amount    Money `json:"amount"`
	UserID    ID    `json:"userId,omitempty"`
}

type WithdrawProject struct {
	ProjectID ID    `json:"projectId"`
	Amount    Money `json:"amount"`
	UserID    ID    `json:"userId,omitempty"`
}

type CompleteProject struct {
	ProjectID ID `json:"projectId"`
	UserID    ID `json:"userId,omitempty"`
}

type ReactivateProject struct {
	ProjectID ID `json:"projectId"`
	UserID    ID `json:"userId,omitempty"`
}

// =============================================================================
// USER ACTIONS
// =============================================================================

// AddUser creates a user; the id in User is ignored and minted fresh.
type AddUser struct {
	User User
}

// UpdateUser replaces the user with the same id. An empty password keeps
// the stored one.
type UpdateUser struct {
	User User
}

type DeleteUser struct {
	UserID ID `json:"id"`
}

// =============================================================================
// HISTORY ACTIONS
// =============================================================================

// DeleteLog reverses a historical log entry and removes it.
type DeleteLog struct {
	LogID ID `json:"id"`
}

// AmendLog re-scales a historical log entry to Amount and replaces its note.
type AmendLog struct {
	LogID  ID     `json:"id"`
	Amount Money  `json:"amount"`
	Note   string `json:"note"`
}

// ImportState replaces the whole ledger. It bypasses every rule and is
// reserved for trusted snapshots.
type ImportState struct {
	State State
}

func (Deposit) Type() ActionType           { return ActionDeposit }
func (LogSpending) Type() ActionType       { return ActionLogSpending }
func (GiveMoney) Type() ActionType         { return ActionGiveMoney }
func (CreateProject) Type() ActionType     { return ActionCreateProject }
func (UpdateProject) Type() ActionType     { return ActionUpdateProject }
func (DeleteProject) Type() ActionType     { return ActionDeleteProject }
func (AssignMembers) Type() ActionType     { return ActionAssignMembers }
func (FundProject) Type() ActionType       { return ActionFundProject }
func (WithdrawProject) Type() ActionType   { return ActionWithdrawProject }
func (CompleteProject) Type() ActionType   { return ActionCompleteProject }
func (ReactivateProject) Type() ActionType { return ActionReactivateProject }
func (AddUser) Type() ActionType           { return ActionAddUser }
func (UpdateUser) Type() ActionType        { return ActionUpdateUser }
func (DeleteUser) Type() ActionType        { return ActionDeleteUser }
func (DeleteLog) Type() ActionType         { return ActionDeleteLog }
func (AmendLog) Type() ActionType          { return ActionAmendLog }
func (ImportState) Type() ActionType       { return ActionImportState }

// =============================================================================
// ENVELOPE
// =============================================================================

// Envelope is the wire form of an action.
type Envelope struct {
	Type    ActionType      `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Encode wraps an action in an envelope.
func Encode(a Action) (Envelope, error) {
	var payload any = a
	switch v := a.(type) {
	case AddUser:
		payload = v.User
	case UpdateUser:
		payload = v.User
	case ImportState:
		payload = v.State
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", a.Type(), err)
	}
	return Envelope{Type: a.Type(), Payload: raw}, nil
}

// DecodeAction turns an envelope into a concrete action.
func DecodeAction(env Envelope) (Action, error) {
	switch env.Type {
	case ActionDeposit:
		return decodeInto[Deposit](env)
	case ActionCreateProject:
		return decodeInto[CreateProject](env)
	case ActionUpdateProject:
		return decodeInto[UpdateProject](env)
	case ActionDeleteProject:
		return decodeInto[DeleteProject](env)
	case ActionAssignMembers:
		return decodeInto[AssignMembers](env)
	case ActionLogSpending:
		return decodeInto[LogSpending](env)
	case ActionGiveMoney:
		return decodeInto[GiveMoney](env)
	case ActionFundProject:
		return decodeInto[FundProject](env)
	case ActionWithdrawProject:
		return decodeInto[WithdrawProject](env)
	case ActionCompleteProject:
		return decodeInto[CompleteProject](env)
	case ActionReactivateProject:
		return decodeInto[ReactivateProject](env)
	case ActionAmendLog:
		return decodeInto[AmendLog](env)
	case ActionAddUser:
		u, err := decodeInto[User](env)
		return AddUser{User: u}, err
	case ActionUpdateUser:
		u, err := decodeInto[User](env)
		return UpdateUser{User: u}, err
	case ActionImportState:
		s, err := decodeInto[State](env)
		return ImportState{State: s}, err
	case ActionDeleteUser:
		id, err := decodeID(env)
		return DeleteUser{UserID: id}, err
	case ActionDeleteLog:
		id, err := decodeID(env)
		return DeleteLog{LogID: id}, err
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, env.Type)
	}
}

func decodeInto[T any](env Envelope) (T, error) {
	var v T
	if err := json.Unmarshal(env.Payload, &v); err != nil {
		return v, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return v, nil
}

// decodeID accepts either a bare id or {"id": n}.
func decodeID(env Envelope) (ID, error) {
	raw := bytes.TrimSpace(env.Payload)
	if n, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
		return ID(n), nil
	}
	var body struct {
		ID ID `json:"id"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return 0, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return body.ID, nil
}

// =============================================================================
// ACTOR ATTRIBUTION
// =============================================================================

// Attribute fills unset actor fields with the authenticated user's id.
// Fields the caller set explicitly are left alone.
func Attribute(a Action, actor ID) Action {
	fill := func(id *ID) {
		if *id == 0 {
			*id = actor
		}
	}
	switch v := a.(type) {
	case Deposit:
		fill(&v.OperatorID)
		fill(&v.UserID)
		return v
	case LogSpending:
		fill(&v.UserID)
		return v
	case GiveMoney:
		fill(&v.FromUserID)
		return v
	case CreateProject:
		fill(&v.CreatorID)
		return v
	case DeleteProject:
		fill(&v.UserID)
		return v
	case FundProject:
		fill(&v.UserID)
		return v
	case WithdrawProject:
		fill(&v.UserID)
		return v
	case CompleteProject:
		fill(&v.UserID)
		return v
	case ReactivateProject:
		fill(&v.UserID)
		return v
	default:
		return a
	}
}
