/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Wire shapes that are not already ledger or report types. Ledger state,
  log entries and reports are served as-is; they already carry the JSON
  names clients know.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers
*/
package api

import (
	"time"

	"github.com/warp/vault-ledger/access"
	"github.com/warp/vault-ledger/engine"
	"github.com/warp/vault-ledger/ledger"
	"github.com/warp/vault-ledger/report"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// SESSION
// =============================================================================

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      ledger.User `json:"user"`
}

// MeDTO is the authenticated user with resolved capabilities.
type MeDTO struct {
	User         ledger.User         `json:"user"`
	Capabilities []access.Capability `json:"capabilities"`
}

// =============================================================================
// STATE
// =============================================================================

// StateResponse is a filtered state plus the version it was taken from.
type StateResponse struct {
	Version uint64       `json:"version"`
	State   ledger.State `json:"state"`
}

type VaultDTO struct {
	Version   uint64       `json:"version"`
	Balance   ledger.Money `json:"balance"`
	Formatted string       `json:"formatted"`
}

type HealthDTO struct {
	Status  string        `json:"status"`
	Version uint64        `json:"version"`
	Origin  engine.Origin `json:"origin"`
	Drift   ledger.Money  `json:"drift"`
}

// =============================================================================
// REPORTS
// =============================================================================

type ReportResponse struct {
	report.Report
	Formatted FormattedTotalsDTO `json:"formatted"`
}

type FormattedTotalsDTO struct {
	Income   string `json:"income"`
	Expenses string `json:"expenses"`
	Net      string `json:"net"`
}

func toReportResponse(r report.Report) ReportResponse {
	return ReportResponse{
		Report: r,
		Formatted: FormattedTotalsDTO{
			Income:   report.FormatIQD(r.Totals.Income),
			Expenses: report.FormatIQD(r.Totals.Expenses),
			Net:      report.FormatIQD(r.Totals.Net),
		},
	}
}
