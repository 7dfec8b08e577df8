/*
Package report summarizes the activity log.

PURPOSE:
  Read-side views over a ledger.State: filtered activity reports with
  income/expense totals, and per-user account statements. Everything here
  goes through the access package, so a viewer never sees entries that
  involve users hidden from them.

TOTALS:
  Income   = add_money + reactivate_project
  Expenses = spending + give_money
  Net      = Income - Expenses

  Project funding and withdrawals move money between the vault and a
  project and count as neither.
*/
package report

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/warp/vault-ledger/access"
	"github.com/warp/vault-ledger/ledger"
)

// ErrInvalidFilter is returned for malformed report filters.
var ErrInvalidFilter = errors.New("invalid report filter")

// =============================================================================
// ACTIVITY REPORT
// =============================================================================

// Filter selects log entries. Zero fields match everything.
type Filter struct {
	From   string      `json:"from,omitempty"` // inclusive, YYYY-MM-DD
	To     string      `json:"to,omitempty"`   // inclusive, YYYY-MM-DD
	Kind   ledger.Kind `json:"type,omitempty"`
	UserID ledger.ID   `json:"userId,omitempty"`
}

// Validate checks dates and kind.
func (f Filter) Validate() error {
	for _, d := range []string{f.From, f.To} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(time.DateOnly, d); err != nil {
			return fmt.Errorf("%w: date %q", ErrInvalidFilter, d)
		}
	}
	if f.From != "" && f.To != "" && f.From > f.To {
		return fmt.Errorf("%w: from %s is after to %s", ErrInvalidFilter, f.From, f.To)
	}
	if f.Kind != "" && !slices.Contains(ledger.Kinds, f.Kind) {
		return fmt.Errorf("%w: type %q", ErrInvalidFilter, f.Kind)
	}
	return nil
}

// Matches reports whether e passes the filter. Dates compare as text since
// entries carry YYYY-MM-DD.
func (f Filter) Matches(e ledger.LogEntry) bool {
	if f.From != "" && e.Date < f.From {
		return false
	}
	if f.To != "" && e.Date > f.To {
		return false
	}
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if f.UserID != 0 && !e.Involves(f.UserID) {
		return false
	}
	return true
}

type Totals struct {
	Income   ledger.Money `json:"income"`
	Expenses ledger.Money `json:"expenses"`
	Net      ledger.Money `json:"net"`
}

type Report struct {
	Filter  Filter            `json:"filter"`
	Entries []ledger.LogEntry `json:"entries"`
	Totals  Totals            `json:"totals"`
}

// Build filters the log as the viewer sees it and totals the result.
func Build(viewer ledger.User, s ledger.State, f Filter) (Report, error) {
	if err := f.Validate(); err != nil {
		return Report{}, err
	}

	r := Report{Filter: f, Entries: []ledger.LogEntry{}}
	for _, e := range s.ActivityLog {
		if !f.Matches(e) || !access.LogVisible(viewer, e, s.Users) {
			continue
		}
		r.Entries = append(r.Entries, e)
	}
	r.Totals = Total(r.Entries)
	return r, nil
}

// Total computes income, expenses and net over entries.
func Total(entries []ledger.LogEntry) Totals {
	var t Totals
	for _, e := range entries {
		switch e.Kind {
		case ledger.KindDeposit, ledger.KindProjectReactivate:
			t.Income = t.Income.Add(e.Amount)
		case ledger.KindSpend, ledger.KindPeerTransfer:
			t.Expenses = t.Expenses.Add(e.Amount)
		}
	}
	t.Net = t.Income.Sub(t.Expenses)
	return t
}
