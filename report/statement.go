package report

import (
	"fmt"
	"slices"

	"github.com/warp/vault-ledger/access"
	"github.com/warp/vault-ledger/ledger"
)

// Statement is one user's account history.
//
// Personal entries change what the user holds against the vault: money they
// deposited and money they received from it. Operational entries are
// actions they performed on the vault: payments sent, spending logged and
// project moves. Members only have a personal history.
type Statement struct {
	User        ledger.User       `json:"user"`
	Personal    []ledger.LogEntry `json:"personal"`
	Operational []ledger.LogEntry `json:"operational"`

	Deposited ledger.Money `json:"deposited"`
	Received  ledger.Money `json:"received"`
}

// BuildStatement returns the statement of userID as the viewer may see it,
// newest entries first. Viewers need view_accounts for anyone but themselves.
func BuildStatement(viewer ledger.User, s ledger.State, userID ledger.ID) (Statement, error) {
	subject, ok := s.User(userID)
	if !ok {
		return Statement{}, fmt.Errorf("%w: %d", ledger.ErrUserNotFound, userID)
	}
	if viewer.ID != userID && !access.Can(viewer, access.CapViewAccounts) {
		return Statement{}, &access.DeniedError{Action: "view_statement", ActorID: viewer.ID, Needs: access.CapViewAccounts}
	}
	if !access.Visible(viewer, subject) {
		return Statement{}, fmt.Errorf("%w: %d", ledger.ErrUserNotFound, userID)
	}

	subject.Password = ""
	st := Statement{User: subject, Personal: []ledger.LogEntry{}, Operational: []ledger.LogEntry{}}
	for _, e := range slices.Backward(s.ActivityLog) {
		if !e.Involves(userID) || !access.LogVisible(viewer, e, s.Users) {
			continue
		}
		switch {
		case e.Kind == ledger.KindDeposit && e.UserID == userID:
			st.Personal = append(st.Personal, e)
			st.Deposited = st.Deposited.Add(e.Amount)
		case e.Kind == ledger.KindPeerTransfer && e.ToUserID == userID:
			st.Personal = append(st.Personal, e)
			st.Received = st.Received.Add(e.Amount)
		case subject.Role == ledger.RoleMember:
		case e.Kind == ledger.KindPeerTransfer && e.FromUserID == userID:
			st.Operational = append(st.Operational, e)
		case e.UserID == userID && isOperational(e.Kind):
			st.Operational = append(st.Operational, e)
		}
	}
	return st, nil
}

func isOperational(k ledger.Kind) bool {
	switch k {
	case ledger.KindSpend, ledger.KindProjectFund, ledger.KindProjectWithdraw, ledger.KindProjectReactivate:
		return true
	}
	return false
}
