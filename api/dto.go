/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the
  domain model from the wire contract. Monetary values travel as
  fixed two-decimal strings; periods as (year, month) integers.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// AUTH
// =============================================================================

// LoginRequest carries credentials for either role. Accountants send
// login, workers send badge.
type LoginRequest struct {
	Login  string `json:"login,omitempty"`
	Badge  string `json:"badge,omitempty"`
	Secret string `json:"secret"`
}

// TokenDTO is the response to a successful authentication.
type TokenDTO struct {
	Token    string `json:"token"`
	Role     string `json:"role"`
	Login    string `json:"login,omitempty"`
	WorkerID int64  `json:"worker_id,omitempty"`
}

// =============================================================================
// WORKERS
// =============================================================================

// WorkerDTO represents a worker in API responses. The credential secret
// never leaves the server.
type WorkerDTO struct {
	ID            int64  `json:"id"`
	BadgeNumber   string `json:"badge_number"`
	FullName      string `json:"full_name"`
	Position      string `json:"position"`
	Salary        string `json:"salary"`
	MaritalStatus string `json:"marital_status,omitempty"`
	ChildrenCount int    `json:"children_count"`
}

func workerDTO(w payroll.Worker) WorkerDTO {
	return WorkerDTO{
		ID:            w.ID,
		BadgeNumber:   w.BadgeNumber,
		FullName:      w.FullName,
		Position:      w.Position,
		Salary:        w.Salary.StringFixed(2),
		MaritalStatus: w.MaritalStatus,
		ChildrenCount: w.ChildrenCount,
	}
}

// CreateWorkerRequest is the accountant's request to add a worker.
type CreateWorkerRequest struct {
	BadgeNumber   string `json:"badge_number"`
	FullName      string `json:"full_name"`
	Position      string `json:"position"`
	Salary        string `json:"salary"`
	MaritalStatus string `json:"marital_status"`
	ChildrenCount int    `json:"children_count"`
	Secret        string `json:"secret,omitempty"`
}

// FieldChangeRequest targets one editable worker field, for both direct
// accountant edits and worker change-request submissions.
type FieldChangeRequest struct {
	Field    string `json:"field"`
	NewValue string `json:"new_value"`
}

// =============================================================================
// FINANCIAL ENTRIES
// =============================================================================

// SickLeaveRequest records a sick-leave range attributed to a cycle.
type SickLeaveRequest struct {
	DateStart string `json:"date_start"`
	DateEnd   string `json:"date_end"`
	Year      int    `json:"year"`
	Month     int    `json:"month"`
}

// AllowanceRequest records an allowance attributed to a cycle.
type AllowanceRequest struct {
	Type   string `json:"type"`
	Amount string `json:"amount"`
	Year   int    `json:"year"`
	Month  int    `json:"month"`
}

// =============================================================================
// CHANGE REQUESTS
// =============================================================================

// PendingRequestDTO is a pending change request joined with worker identity.
type PendingRequestDTO struct {
	ID          int64  `json:"id"`
	WorkerName  string `json:"worker_name"`
	BadgeNumber string `json:"badge_number"`
	Field       string `json:"field"`
	NewValue    string `json:"new_value"`
	SubmittedAt string `json:"submitted_at"`
}

func pendingRequestDTO(p payroll.PendingRequest) PendingRequestDTO {
	return PendingRequestDTO{
		ID:          p.ID,
		WorkerName:  p.WorkerName,
		BadgeNumber: p.BadgeNumber,
		Field:       string(p.Field),
		NewValue:    p.NewValue,
		SubmittedAt: p.SubmittedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// REPORTS
// =============================================================================

// BreakdownDTO is the computed salary tuple for one worker and cycle.
type BreakdownDTO struct {
	WorkerID    int64  `json:"worker_id"`
	BadgeNumber string `json:"badge_number"`
	FullName    string `json:"full_name"`
	Position    string `json:"position"`
	SickDays    int    `json:"sick_days"`
	Base        string `json:"base"`
	Allowances  string `json:"allowances"`
	Gross       string `json:"gross"`
	Tax         string `json:"tax"`
	Net         string `json:"net"`
}

func breakdownDTO(b payroll.Breakdown) BreakdownDTO {
	return BreakdownDTO{
		WorkerID:    b.WorkerID,
		BadgeNumber: b.BadgeNumber,
		FullName:    b.FullName,
		Position:    b.Position,
		SickDays:    b.SickDays,
		Base:        b.Base.StringFixed(2),
		Allowances:  b.AllowanceSum.StringFixed(2),
		Gross:       b.Gross.StringFixed(2),
		Tax:         b.Tax.StringFixed(2),
		Net:         b.Net.StringFixed(2),
	}
}

// ReportDTO is the payroll report for one cycle.
type ReportDTO struct {
	Year       int            `json:"year"`
	Month      int            `json:"month"`
	Rows       []BreakdownDTO `json:"rows"`
	TotalGross string         `json:"total_gross"`
	TotalTax   string         `json:"total_tax"`
	TotalNet   string         `json:"total_net"`
}

// =============================================================================
// AUDIT
// =============================================================================

// AuditEntryDTO is one financial-audit row.
type AuditEntryDTO struct {
	ID       int64  `json:"id"`
	Action   string `json:"action"`
	EntityID int64  `json:"entity_id"`
	WorkerID int64  `json:"worker_id"`
	Year     int    `json:"year"`
	Month    int    `json:"month"`
	Actor    string `json:"actor"`
	At       string `json:"at"`
	Details  string `json:"details,omitempty"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
