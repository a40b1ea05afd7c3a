/*
handlers_test.go - End-to-end tests over the HTTP surface

Exercises the full stack: router, role middleware, handlers, domain
core and the sqlite store, using an in-memory database per test.
*/
package api_test

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warp/payroll-engine/api"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	policy := payroll.Policy{
		TaxRate:        decimal.RequireFromString("0.13"),
		AllowanceTypes: []string{"bonus", "seniority", "qualification"},
	}
	h := api.NewHandler(store, policy, []byte("test-secret"), zap.NewNop())
	return api.NewRouter(h)
}

// do issues a request against the router and returns the recorder.
func do(t *testing.T, srv http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func adminToken(t *testing.T, srv http.Handler) string {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/api/auth/accountant", "",
		api.LoginRequest{Login: "admin", Secret: "admin"})
	require.Equal(t, http.StatusOK, rec.Code)
	return decode[api.TokenDTO](t, rec).Token
}

func createWorker(t *testing.T, srv http.Handler, token, badge, name, salary string) api.WorkerDTO {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/api/workers", token, api.CreateWorkerRequest{
		BadgeNumber: badge,
		FullName:    name,
		Position:    "engineer",
		Salary:      salary,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	return decode[api.WorkerDTO](t, rec)
}

// =============================================================================
// AUTHENTICATION
// =============================================================================

func TestAPI_AccountantLogin(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/auth/accountant", "",
		api.LoginRequest{Login: "admin", Secret: "admin"})
	require.Equal(t, http.StatusOK, rec.Code)
	token := decode[api.TokenDTO](t, rec)
	assert.Equal(t, api.RoleAccountant, token.Role)
	assert.Equal(t, "admin", token.Login)
	assert.NotEmpty(t, token.Token)

	rec = do(t, srv, http.MethodPost, "/api/auth/accountant", "",
		api.LoginRequest{Login: "admin", Secret: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_WorkerLoginWithDefaultSecret(t *testing.T) {
	// Workers created without an explicit secret get the stock "1234".

	srv := newTestServer(t)
	admin := adminToken(t, srv)
	w := createWorker(t, srv, admin, "W-1", "Ada Klein", "30000")

	rec := do(t, srv, http.MethodPost, "/api/auth/worker", "",
		api.LoginRequest{Badge: "W-1", Secret: "1234"})
	require.Equal(t, http.StatusOK, rec.Code)
	token := decode[api.TokenDTO](t, rec)
	assert.Equal(t, api.RoleWorker, token.Role)
	assert.Equal(t, w.ID, token.WorkerID)

	rec = do(t, srv, http.MethodPost, "/api/auth/worker", "",
		api.LoginRequest{Badge: "W-1", Secret: "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_MissingTokenRejected(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/workers", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/workers", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// =============================================================================
// WORKERS
// =============================================================================

func TestAPI_CreateAndListWorkers(t *testing.T) {
	srv := newTestServer(t)
	admin := adminToken(t, srv)

	created := createWorker(t, srv, admin, "W-2", "Ben Oreb", "28500.50")
	assert.Equal(t, "28500.50", created.Salary)

	rec := do(t, srv, http.MethodGet, "/api/workers", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	workers := decode[[]api.WorkerDTO](t, rec)
	require.Len(t, workers, 1)
	assert.Equal(t, "Ben Oreb", workers[0].FullName)

	// Same badge again conflicts.
	rec = do(t, srv, http.MethodPost, "/api/workers", admin, api.CreateWorkerRequest{
		BadgeNumber: "W-2", FullName: "Imposter", Position: "clerk", Salary: "1",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAPI_WorkerSeesOnlyOwnRecord(t *testing.T) {
	srv := newTestServer(t)
	admin := adminToken(t, srv)
	w1 := createWorker(t, srv, admin, "W-3", "Cleo Drum", "30000")
	w2 := createWorker(t, srv, admin, "W-4", "Dan Eck", "30000")

	rec := do(t, srv, http.MethodPost, "/api/auth/worker", "",
		api.LoginRequest{Badge: "W-3", Secret: "1234"})
	require.Equal(t, http.StatusOK, rec.Code)
	token := decode[api.TokenDTO](t, rec).Token

	rec = do(t, srv, http.MethodGet, fmt.Sprintf("/api/workers/%d", w1.ID), token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodGet, fmt.Sprintf("/api/workers/%d", w2.ID), token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// The worker role has no access to the roster or accountant routes.
	rec = do(t, srv, http.MethodGet, "/api/workers", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = do(t, srv, http.MethodGet, "/api/requests/pending", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAPI_UpdateWorkerField(t *testing.T) {
	srv := newTestServer(t)
	admin := adminToken(t, srv)
	w := createWorker(t, srv, admin, "W-5", "Eva Frost", "30000")

	rec := do(t, srv, http.MethodPatch, fmt.Sprintf("/api/workers/%d", w.ID), admin,
		api.FieldChangeRequest{Field: "children_count", NewValue: "2"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodGet, fmt.Sprintf("/api/workers/%d", w.ID), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[api.WorkerDTO](t, rec).ChildrenCount)

	// Salary is not an editable field.
	rec = do(t, srv, http.MethodPatch, fmt.Sprintf("/api/workers/%d", w.ID), admin,
		api.FieldChangeRequest{Field: "salary", NewValue: "99999"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Coercion failure surfaces as a validation error.
	rec = do(t, srv, http.MethodPatch, fmt.Sprintf("/api/workers/%d", w.ID), admin,
		api.FieldChangeRequest{Field: "children_count", NewValue: "abc"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// CHANGE-REQUEST WORKFLOW
// =============================================================================

func TestAPI_ChangeRequestLifecycle(t *testing.T) {
	srv := newTestServer(t)
	admin := adminToken(t, srv)
	w := createWorker(t, srv, admin, "W-6", "Gil Hart", "30000")

	rec := do(t, srv, http.MethodPost, "/api/auth/worker", "",
		api.LoginRequest{Badge: "W-6", Secret: "1234"})
	require.Equal(t, http.StatusOK, rec.Code)
	workerToken := decode[api.TokenDTO](t, rec).Token

	// Worker submits a request against their own record.
	rec = do(t, srv, http.MethodPost, fmt.Sprintf("/api/workers/%d/change-requests", w.ID),
		workerToken, api.FieldChangeRequest{Field: "position", NewValue: "senior engineer"})
	require.Equal(t, http.StatusCreated, rec.Code)
	submitted := decode[map[string]any](t, rec)
	reqID := int64(submitted["id"].(float64))
	assert.Equal(t, "PENDING", submitted["status"])

	// Not against someone else's.
	rec = do(t, srv, http.MethodPost, fmt.Sprintf("/api/workers/%d/change-requests", w.ID+1),
		workerToken, api.FieldChangeRequest{Field: "position", NewValue: "ceo"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Accountant sees it in the pending queue.
	rec = do(t, srv, http.MethodGet, "/api/requests/pending", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pending := decode[[]api.PendingRequestDTO](t, rec)
	require.Len(t, pending, 1)
	assert.Equal(t, reqID, pending[0].ID)
	assert.Equal(t, "W-6", pending[0].BadgeNumber)

	// Approval mutates the worker and empties the queue.
	rec = do(t, srv, http.MethodPost, fmt.Sprintf("/api/requests/%d/approve", reqID), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodGet, fmt.Sprintf("/api/workers/%d", w.ID), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "senior engineer", decode[api.WorkerDTO](t, rec).Position)

	// A second resolution of the same request is gone.
	rec = do(t, srv, http.MethodPost, fmt.Sprintf("/api/requests/%d/approve", reqID), admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, srv, http.MethodPost, fmt.Sprintf("/api/requests/%d/reject", reqID), admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// FINANCIAL ENTRIES + REPORTING
// =============================================================================

func TestAPI_SickLeaveAllowanceAndReport(t *testing.T) {
	srv := newTestServer(t)
	admin := adminToken(t, srv)
	w := createWorker(t, srv, admin, "W-7", "Ivy Joss", "30000")

	rec := do(t, srv, http.MethodPost, fmt.Sprintf("/api/workers/%d/sick-leaves", w.ID), admin,
		api.SickLeaveRequest{DateStart: "2024-04-10", DateEnd: "2024-04-14", Year: 2024, Month: 4})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, srv, http.MethodPost, fmt.Sprintf("/api/workers/%d/allowances", w.ID), admin,
		api.AllowanceRequest{Type: "bonus", Amount: "2000", Year: 2024, Month: 4})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/reports/payroll?year=2024&month=4", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[api.ReportDTO](t, rec)
	require.Len(t, report.Rows, 1)

	row := report.Rows[0]
	assert.Equal(t, 5, row.SickDays)
	assert.Equal(t, "27500.00", row.Base)
	assert.Equal(t, "2000.00", row.Allowances)
	assert.Equal(t, "29500.00", row.Gross)
	assert.Equal(t, "3835.00", row.Tax)
	assert.Equal(t, "25665.00", row.Net)
	assert.Equal(t, "29500.00", report.TotalGross)
	assert.Equal(t, "3835.00", report.TotalTax)
	assert.Equal(t, "25665.00", report.TotalNet)
}

func TestAPI_EntryValidationErrors(t *testing.T) {
	srv := newTestServer(t)
	admin := adminToken(t, srv)
	w := createWorker(t, srv, admin, "W-8", "Kai Lund", "30000")

	rec := do(t, srv, http.MethodPost, fmt.Sprintf("/api/workers/%d/allowances", w.ID), admin,
		api.AllowanceRequest{Type: "hazard", Amount: "100", Year: 2024, Month: 4})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, fmt.Sprintf("/api/workers/%d/allowances", w.ID), admin,
		api.AllowanceRequest{Type: "bonus", Amount: "-5", Year: 2024, Month: 4})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, fmt.Sprintf("/api/workers/%d/sick-leaves", w.ID), admin,
		api.SickLeaveRequest{DateStart: "2024-04-14", DateEnd: "2024-04-10", Year: 2024, Month: 4})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, fmt.Sprintf("/api/workers/%d/sick-leaves", w.ID), admin,
		api.SickLeaveRequest{DateStart: "2024-04-10", DateEnd: "2024-04-12", Year: 2024, Month: 13})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown worker id.
	rec = do(t, srv, http.MethodPost, "/api/workers/999/allowances", admin,
		api.AllowanceRequest{Type: "bonus", Amount: "100", Year: 2024, Month: 4})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// AUDIT TRAIL
// =============================================================================

func TestAPI_AuditTrailFiltering(t *testing.T) {
	srv := newTestServer(t)
	admin := adminToken(t, srv)
	w := createWorker(t, srv, admin, "W-9", "Mia Nye", "30000")

	rec := do(t, srv, http.MethodPost, fmt.Sprintf("/api/workers/%d/sick-leaves", w.ID), admin,
		api.SickLeaveRequest{DateStart: "2024-04-02", DateEnd: "2024-04-04", Year: 2024, Month: 4})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = do(t, srv, http.MethodPost, fmt.Sprintf("/api/workers/%d/allowances", w.ID), admin,
		api.AllowanceRequest{Type: "seniority", Amount: "150.5", Year: 2024, Month: 4})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, srv, http.MethodGet,
		fmt.Sprintf("/api/audit?worker=%d&year=2024&month=4", w.ID), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]api.AuditEntryDTO](t, rec)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, "admin", e.Actor)
		assert.Equal(t, w.ID, e.WorkerID)
		assert.Equal(t, 2024, e.Year)
		assert.Equal(t, 4, e.Month)
	}

	// A different cycle has no rows.
	rec = do(t, srv, http.MethodGet,
		fmt.Sprintf("/api/audit?worker=%d&year=2024&month=5", w.ID), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]api.AuditEntryDTO](t, rec))
}
