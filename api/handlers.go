/*
handlers.go - HTTP API handlers for the payroll back office

PURPOSE:
  Exposes the payroll core via REST. Handles HTTP request/response and
  JSON serialization, and delegates to the domain logic (engine,
  workflow, authenticator). No business rule lives here.

ENDPOINTS:
  Auth:
    POST   /api/auth/accountant           Authenticate accountant -> token
    POST   /api/auth/worker               Authenticate worker -> token

  Workers (accountant unless noted):
    GET    /api/workers                   List all workers
    POST   /api/workers                   Add a worker
    GET    /api/workers/{id}              Get one worker (worker: own record)
    PATCH  /api/workers/{id}              Direct edit of one editable field
    POST   /api/workers/{id}/change-requests  Submit change request (worker)

  Financial entry (accountant):
    POST   /api/workers/{id}/sick-leaves  Record sick leave
    POST   /api/workers/{id}/allowances   Record allowance

  Workflow (accountant):
    GET    /api/requests/pending          Pending requests, oldest first
    POST   /api/requests/{id}/approve     Approve
    POST   /api/requests/{id}/reject      Reject

  Reporting (accountant):
    GET    /api/reports/payroll?year=&month=  Payroll report with totals
    GET    /api/audit?worker=&year=&month=    Financial audit trail

ERROR HANDLING:
  Domain errors map onto status codes:
  - 400: validation (range, field, allowance type, amount, coercion, period)
  - 401: authentication failure
  - 403: role mismatch
  - 404: worker / pending request not found (includes already-resolved)
  - 409: duplicate badge number
  - 500: everything else

SEE ALSO:
  - dto.go:    Request/response shapes
  - auth.go:   Token issuing and role middleware
  - server.go: Router wiring
*/
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/period"
)

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine    *payroll.Engine
	Workflow  *payroll.Workflow
	Auth      *payroll.Auth
	Store     payroll.TxStore
	Log       *zap.Logger
	JWTSecret []byte
}

// NewHandler wires the handler over one store handle.
func NewHandler(store payroll.TxStore, policy payroll.Policy, jwtSecret []byte, log *zap.Logger) *Handler {
	return &Handler{
		Engine:    payroll.NewEngine(store, policy),
		Workflow:  payroll.NewWorkflow(store),
		Auth:      payroll.NewAuth(store),
		Store:     store,
		Log:       log,
		JWTSecret: jwtSecret,
	}
}

// =============================================================================
// AUTH HANDLERS
// =============================================================================

// AuthenticateAccountant exchanges accountant credentials for a token.
func (h *Handler) AuthenticateAccountant(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	acc, err := h.Auth.AuthenticateAccountant(r.Context(), req.Login, req.Secret)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	token, err := h.issueToken(Actor{Role: RoleAccountant, Login: acc.Login})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token", err)
		return
	}
	writeJSON(w, http.StatusOK, TokenDTO{Token: token, Role: RoleAccountant, Login: acc.Login})
}

// AuthenticateWorker exchanges a badge number and secret for a token.
func (h *Handler) AuthenticateWorker(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	worker, err := h.Auth.AuthenticateWorker(r.Context(), req.Badge, req.Secret)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	token, err := h.issueToken(Actor{Role: RoleWorker, WorkerID: worker.ID})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token", err)
		return
	}
	writeJSON(w, http.StatusOK, TokenDTO{Token: token, Role: RoleWorker, WorkerID: worker.ID})
}

// =============================================================================
// WORKER HANDLERS
// =============================================================================

// ListWorkers returns all workers, full name ascending.
func (h *Handler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := h.Store.ListWorkers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list workers", err)
		return
	}

	dtos := make([]WorkerDTO, len(workers))
	for i, wk := range workers {
		dtos[i] = workerDTO(wk)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateWorker adds a worker record.
func (h *Handler) CreateWorker(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.BadgeNumber == "" || req.FullName == "" || req.Position == "" {
		writeError(w, http.StatusBadRequest, "badge_number, full_name and position are required", nil)
		return
	}

	salary, err := decimal.NewFromString(req.Salary)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid salary", err)
		return
	}

	// Fresh workers get the stock secret until they change it.
	secret := req.Secret
	if secret == "" {
		secret = "1234"
	}
	hash, err := payroll.HashSecret(secret)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to hash secret", err)
		return
	}

	worker := &payroll.Worker{
		BadgeNumber:   req.BadgeNumber,
		FullName:      req.FullName,
		Position:      req.Position,
		Salary:        salary,
		MaritalStatus: req.MaritalStatus,
		ChildrenCount: req.ChildrenCount,
		SecretHash:    hash,
	}
	if err := h.Store.InsertWorker(r.Context(), worker); err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.Log.Info("worker created",
		zap.Int64("worker_id", worker.ID),
		zap.String("badge", worker.BadgeNumber))
	writeJSON(w, http.StatusCreated, workerDTO(*worker))
}

// GetWorker returns one worker. Workers may only read their own record.
func (h *Handler) GetWorker(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if actor, _ := ActorFrom(r.Context()); actor.Role == RoleWorker && actor.WorkerID != id {
		writeError(w, http.StatusForbidden, "Workers may only access their own record", nil)
		return
	}

	worker, err := h.Store.GetWorker(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, workerDTO(*worker))
}

// UpdateWorkerField applies a direct accountant edit to one editable field.
func (h *Handler) UpdateWorkerField(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req FieldChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	field, err := payroll.ParseField(req.Field)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	change, err := payroll.ParseFieldChange(field, req.NewValue)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if err := h.Store.UpdateWorkerField(r.Context(), id, change); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": string(field)})
}

// =============================================================================
// CHANGE-REQUEST HANDLERS
// =============================================================================

// SubmitChangeRequest creates a PENDING request for the calling worker.
func (h *Handler) SubmitChangeRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	actor, _ := ActorFrom(r.Context())
	if actor.Role == RoleWorker && actor.WorkerID != id {
		writeError(w, http.StatusForbidden, "Workers may only request changes to their own record", nil)
		return
	}

	var req FieldChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	created, err := h.Workflow.Submit(r.Context(), id, req.Field, req.NewValue)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.Log.Info("change request submitted",
		zap.Int64("request_id", created.ID),
		zap.Int64("worker_id", id),
		zap.String("field", string(created.Field)))
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":     created.ID,
		"status": string(created.Status),
	})
}

// ListPendingRequests returns pending requests oldest first.
func (h *Handler) ListPendingRequests(w http.ResponseWriter, r *http.Request) {
	pending, err := h.Workflow.ListPending(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list pending requests", err)
		return
	}

	dtos := make([]PendingRequestDTO, len(pending))
	for i, p := range pending {
		dtos[i] = pendingRequestDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ApproveRequest applies a pending request and marks it APPROVED.
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	actor, _ := ActorFrom(r.Context())

	if err := h.Workflow.Approve(r.Context(), id, actor.Login); err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.Log.Info("change request approved",
		zap.Int64("request_id", id),
		zap.String("resolver", actor.Login))
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": string(payroll.StatusApproved)})
}

// RejectRequest marks a pending request REJECTED without touching the worker.
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	actor, _ := ActorFrom(r.Context())

	if err := h.Workflow.Reject(r.Context(), id, actor.Login); err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.Log.Info("change request rejected",
		zap.Int64("request_id", id),
		zap.String("resolver", actor.Login))
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": string(payroll.StatusRejected)})
}

// =============================================================================
// FINANCIAL ENTRY HANDLERS
// =============================================================================

// AddSickLeave records a sick-leave entry, audit-paired.
func (h *Handler) AddSickLeave(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req SickLeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start, err := period.ParseDate(req.DateStart)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date_start", err)
		return
	}
	end, err := period.ParseDate(req.DateEnd)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date_end", err)
		return
	}

	actor, _ := ActorFrom(r.Context())
	entry, err := h.Engine.RecordSickLeave(r.Context(), id,
		period.DateRange{Start: start, End: end},
		payroll.Cycle{Year: req.Year, Month: req.Month},
		actor.Login)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.Log.Info("sick leave recorded",
		zap.Int64("entry_id", entry.ID),
		zap.Int64("worker_id", id),
		zap.String("range", entry.Range.String()))
	writeJSON(w, http.StatusCreated, map[string]any{"id": entry.ID})
}

// AddAllowance records an allowance entry, audit-paired.
func (h *Handler) AddAllowance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req AllowanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	actor, _ := ActorFrom(r.Context())
	entry, err := h.Engine.RecordAllowance(r.Context(), id, req.Type, amount,
		payroll.Cycle{Year: req.Year, Month: req.Month}, actor.Login)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.Log.Info("allowance recorded",
		zap.Int64("entry_id", entry.ID),
		zap.Int64("worker_id", id),
		zap.String("type", entry.Type))
	writeJSON(w, http.StatusCreated, map[string]any{"id": entry.ID})
}

// =============================================================================
// REPORTING HANDLERS
// =============================================================================

// PayrollReport computes the report for a cycle.
func (h *Handler) PayrollReport(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}

	report, err := h.Engine.GenerateReport(r.Context(), payroll.Cycle{Year: year, Month: month})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	dto := ReportDTO{
		Year:       report.Cycle.Year,
		Month:      report.Cycle.Month,
		Rows:       make([]BreakdownDTO, len(report.Rows)),
		TotalGross: report.TotalGross.StringFixed(2),
		TotalTax:   report.TotalTax.StringFixed(2),
		TotalNet:   report.TotalNet.StringFixed(2),
	}
	for i, row := range report.Rows {
		dto.Rows[i] = breakdownDTO(row)
	}
	writeJSON(w, http.StatusOK, dto)
}

// AuditTrail lists financial-audit rows, optionally narrowed by worker
// and cycle.
func (h *Handler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	var filter payroll.AuditFilter
	if v := r.URL.Query().Get("worker"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid worker id", err)
			return
		}
		filter.WorkerID = &id
	}
	if y, m := r.URL.Query().Get("year"), r.URL.Query().Get("month"); y != "" && m != "" {
		year, err1 := strconv.Atoi(y)
		month, err2 := strconv.Atoi(m)
		if err1 != nil || err2 != nil {
			writeError(w, http.StatusBadRequest, "Invalid period", nil)
			return
		}
		filter.Cycle = &payroll.Cycle{Year: year, Month: month}
	}

	entries, err := h.Store.AuditTrail(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query audit trail", err)
		return
	}

	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = AuditEntryDTO{
			ID:       e.ID,
			Action:   string(e.Action),
			EntityID: e.EntityID,
			WorkerID: e.WorkerID,
			Year:     e.Cycle.Year,
			Month:    e.Cycle.Month,
			Actor:    e.Actor,
			At:       e.At.Format("2006-01-02T15:04:05Z07:00"),
			Details:  e.Details,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id", err)
		return 0, false
	}
	return id, true
}

// writeDomainError maps domain errors onto HTTP status codes.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, payroll.ErrAuthenticationFailed):
		writeError(w, http.StatusUnauthorized, "Authentication failed", nil)
	case errors.Is(err, period.ErrInvalidPeriod) || payroll.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Validation failed", err)
	case payroll.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case payroll.IsConflict(err):
		writeError(w, http.StatusConflict, "Conflict", err)
	default:
		h.Log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

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
