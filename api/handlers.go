/*
handlers.go - HTTP API handlers for the vault ledger

PURPOSE:
  Exposes the engine over REST. Reads are served from the current
  snapshot through the access filters; every write is one action envelope
  dispatched through the engine.

ENDPOINTS:
  Session:
    POST   /api/login                  Exchange credentials for a token
    GET    /api/me                     Current user and capabilities

  Reads:
    GET    /api/state                  Filtered state
    GET    /api/vault                  Vault balance (view_vault)
    GET    /api/projects               Visible projects
    GET    /api/activity?view=         general | personal
    GET    /api/spending               Spending entries (view_spending)
    GET    /api/users                  Visible users (view_accounts)
    GET    /api/users/{id}/statement   Account statement
    GET    /api/reports                Filtered report (view_reports)

  Writes:
    POST   /api/actions                {type, payload} action envelope

  Admin (access_admin):
    GET    /api/admin/export           Full state download
    POST   /api/admin/import           Replace the state
    GET    /api/admin/audit            Dispatch audit trail
    GET    /api/admin/snapshots        Stored versions

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: Missing or bad credentials
  - 403: Capability or role missing
  - 404: Referenced entity not found
  - 409: Lifecycle and reversal conflicts
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - auth.go: Sessions and middleware
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/warp/vault-ledger/access"
	"github.com/warp/vault-ledger/engine"
	"github.com/warp/vault-ledger/ledger"
	"github.com/warp/vault-ledger/report"
	"github.com/warp/vault-ledger/store/jsonfile"
	"github.com/warp/vault-ledger/store/sqlite"
)

// maxBodyBytes bounds request bodies; an import carries the whole state.
const maxBodyBytes = 16 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// SnapshotHistory lists stored versions. Implemented by store/sqlite.
type SnapshotHistory interface {
	History(ctx context.Context, limit int) ([]sqlite.SnapshotInfo, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine   *engine.Engine
	Sessions *Sessions
	History  SnapshotHistory // optional
	Log      logrus.FieldLogger
}

func NewHandler(e *engine.Engine, sessions *Sessions, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{Engine: e, Sessions: sessions, Log: log.WithField("component", "api")}
}

// =============================================================================
// SESSION HANDLERS
// =============================================================================

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	user, err := h.Engine.Login(req.Username, req.Password)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	token, expires, err := h.Sessions.Issue(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token", err)
		return
	}

	user.Password = ""
	writeJSON(w, http.StatusOK, LoginResponse{Token: token, ExpiresAt: expires, User: user})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	var caps []access.Capability
	for _, c := range access.AllCapabilities {
		if access.Can(actor, c) {
			caps = append(caps, c)
		}
	}
	actor.Password = ""
	writeJSON(w, http.StatusOK, MeDTO{User: actor, Capabilities: caps})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	snap := h.Engine.Current()
	if snap.Version == 0 {
		writeError(w, http.StatusServiceUnavailable, "Not loaded", nil)
		return
	}
	writeJSON(w, http.StatusOK, HealthDTO{
		Status:  "ok",
		Version: snap.Version,
		Origin:  snap.Origin,
		Drift:   snap.Drift(),
	})
}

// =============================================================================
// READ HANDLERS
// =============================================================================

func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	snap := h.Engine.Current()
	writeJSON(w, http.StatusOK, StateResponse{
		Version: snap.Version,
		State:   access.FilterState(actorFrom(r), snap.State),
	})
}

func (h *Handler) GetVault(w http.ResponseWriter, r *http.Request) {
	snap := h.Engine.Current()
	writeJSON(w, http.StatusOK, VaultDTO{
		Version:   snap.Version,
		Balance:   snap.State.VaultBalance,
		Formatted: report.FormatIQD(snap.State.VaultBalance),
	})
}

func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, access.FilterProjects(actorFrom(r), h.Engine.Current().State))
}

// ListActivity returns the activity log. view=personal narrows it to the
// caller's own entries; callers without view_activity always get that.
func (h *Handler) ListActivity(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	personal := access.PersonalOnly(actor)
	switch view := r.URL.Query().Get("view"); view {
	case "", "general":
	case "personal":
		personal = true
	default:
		writeError(w, http.StatusBadRequest, "Invalid view", fmt.Errorf("unknown view %q", view))
		return
	}
	writeJSON(w, http.StatusOK, access.FilterLog(actor, h.Engine.Current().State, personal))
}

func (h *Handler) ListSpending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, access.FilterSpending(actorFrom(r), h.Engine.Current().State))
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, access.FilterUsers(actorFrom(r), h.Engine.Current().State.Users))
}

func (h *Handler) GetStatement(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user id", err)
		return
	}
	st, err := report.BuildStatement(actorFrom(r), h.Engine.Current().State, id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// GetReport builds a report from ?from=&to=&type=&user= (all optional).
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := report.Filter{
		From: q.Get("from"),
		To:   q.Get("to"),
		Kind: ledger.Kind(q.Get("type")),
	}
	if filter.Kind == "all" {
		filter.Kind = ""
	}
	if u := q.Get("user"); u != "" && u != "all" {
		id, err := parseID(u)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid user", err)
			return
		}
		filter.UserID = id
	}

	rep, err := report.Build(actorFrom(r), h.Engine.Current().State, filter)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReportResponse(rep))
}

// =============================================================================
// WRITE HANDLERS
// =============================================================================

// Dispatch decodes one action envelope and runs it as the caller.
func (h *Handler) Dispatch(w http.ResponseWriter, r *http.Request) {
	var env ledger.Envelope
	if err := decodeJSON(r, &env); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	action, err := ledger.DecodeAction(env)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid action", err)
		return
	}
	h.dispatch(w, r, action)
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request, action ledger.Action) {
	actor := actorFrom(r)
	snap, err := h.Engine.Dispatch(r.Context(), actor.ID, action)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StateResponse{
		Version: snap.Version,
		State:   access.FilterState(actor, snap.State),
	})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// Export returns the full, unfiltered state as a download.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	snap := h.Engine.Current()
	name := fmt.Sprintf("vault-%s-v%d.json", snap.At.UTC().Format("20060102"), snap.Version)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	writeJSON(w, http.StatusOK, snap.State)
}

// Import replaces the state with the uploaded document. Accepts an export
// or a stored snapshot.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read body", err)
		return
	}
	state, err := jsonfile.DecodeState(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid state document", err)
		return
	}
	h.dispatch(w, r, ledger.ImportState{State: state})
}

// ListAudit returns audit entries. Query: actor, action, outcome, limit.
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := engine.AuditFilter{Limit: 100}
	if v := q.Get("actor"); v != "" {
		id, err := parseID(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid actor", err)
			return
		}
		filter.ActorID = &id
	}
	if v := q.Get("action"); v != "" {
		filter.Actions = []ledger.ActionType{ledger.ActionType(v)}
	}
	if v := q.Get("outcome"); v != "" {
		filter.Outcomes = []engine.AuditOutcome{engine.AuditOutcome(v)}
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		filter.Limit = n
	}

	entries, err := h.Engine.Audit(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query audit log", err)
		return
	}
	if entries == nil {
		entries = []engine.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	if h.History == nil {
		writeJSON(w, http.StatusOK, []sqlite.SnapshotInfo{})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	infos, err := h.History.History(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list snapshots", err)
		return
	}
	if infos == nil {
		infos = []sqlite.SnapshotInfo{}
	}
	writeJSON(w, http.StatusOK, infos)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine, access and ledger errors to a status.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidCredentials), errors.Is(err, engine.ErrUnknownActor):
		writeError(w, http.StatusUnauthorized, "Unauthorized", err)
	case errors.Is(err, access.ErrForbidden):
		writeError(w, http.StatusForbidden, "Forbidden", err)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case ledger.IsConflict(err):
		writeError(w, http.StatusConflict, "Conflict", err)
	case ledger.IsClientError(err), errors.Is(err, report.ErrInvalidFilter):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	case errors.Is(err, engine.ErrNotLoaded):
		writeError(w, http.StatusServiceUnavailable, "Not loaded", err)
	default:
		h.Log.WithError(err).Error("request failed")
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	return dec.Decode(v)
}

func parseID(s string) (ledger.ID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return ledger.ID(n), nil
}
