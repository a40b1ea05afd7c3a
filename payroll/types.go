/*
Package payroll contains the back-office core: the ledger entities, the
monthly salary engine, and the personal-data change-request workflow.

PURPOSE:
  Everything with business rules lives here. Persistence is behind the
  Store interface (store/sqlite implements it), the HTTP surface lives
  in api/, and calendar arithmetic lives in period/. The engine and the
  workflow are plain functions of (input, store handle) so they can be
  exercised against an in-memory database in tests.

KEY CONCEPTS IN THIS FILE (types.go):
  - Worker:        An employee record with base monthly salary.
  - SickLeave:     An immutable sick-leave entry attributed to a cycle.
  - Allowance:     An immutable allowance entry attributed to a cycle.
  - ChangeRequest: A worker-submitted personal-data edit, pending
    accountant resolution.
  - AuditEntry:    Append-only trail of financial mutations.
  - Breakdown:     The computed per-worker salary tuple for one cycle.

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for all money, banker's rounding on output.
  2. Immutability: sick leaves, allowances, and audit rows are never
     edited after insert; corrections are new entries.
  3. Explicit periods: a cycle is a (year, month) pair stored as two
     integer columns, filtered by equality.

SEE ALSO:
  - engine.go:   Salary computation and report generation
  - workflow.go: Change-request state machine
  - store.go:    Persistence interface
  - errors.go:   Error taxonomy
*/
package payroll

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/period"
)

// =============================================================================
// CYCLE - (year, month) payroll period
// =============================================================================

// Cycle identifies one payroll period.
type Cycle struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// Bounds resolves the cycle's calendar range and day count.
func (c Cycle) Bounds() (period.DateRange, int, error) {
	return period.MonthBounds(c.Year, c.Month)
}

// =============================================================================
// ACTORS
// =============================================================================

// Accountant is a back-office operator identified by login.
type Accountant struct {
	Login      string
	FullName   string
	SecretHash string // bcrypt
}

// Worker is an employee record. Workers are created by accountants and
// never deleted; personal fields change only through approved change
// requests or direct accountant edits.
type Worker struct {
	ID            int64
	BadgeNumber   string // unique external identifier, used to authenticate
	FullName      string
	Position      string
	Salary        decimal.Decimal // base monthly salary, >= 0
	MaritalStatus string
	ChildrenCount int
	SecretHash    string // bcrypt
}

// =============================================================================
// FINANCIAL ENTRIES - Immutable once created
// =============================================================================

// SickLeave is an inclusive date range attributed to a reporting cycle.
// Multiple entries per worker per cycle are allowed and summed.
type SickLeave struct {
	ID        int64
	WorkerID  int64
	Range     period.DateRange
	Cycle     Cycle
	CreatedBy string // accountant login
	CreatedAt time.Time
}

// Allowance is a non-negative amount of a configured category attributed
// to a reporting cycle.
type Allowance struct {
	ID        int64
	WorkerID  int64
	Type      string
	Amount    decimal.Decimal
	Cycle     Cycle
	CreatedBy string
	CreatedAt time.Time
}

// =============================================================================
// CHANGE REQUESTS
// =============================================================================

// RequestStatus is the change-request lifecycle state.
type RequestStatus string

const (
	StatusPending  RequestStatus = "PENDING"
	StatusApproved RequestStatus = "APPROVED"
	StatusRejected RequestStatus = "REJECTED"
)

// ChangeRequest is a worker-submitted proposal to alter one personal
// field. It transitions exactly once, PENDING -> APPROVED|REJECTED;
// terminal states are immutable.
type ChangeRequest struct {
	ID          int64
	WorkerID    int64
	Field       Field
	NewValue    string // raw value as submitted; coerced on approval
	SubmittedAt time.Time
	Status      RequestStatus
	ResolvedBy  string // accountant login, set on resolution
	ResolvedAt  time.Time
}

// PendingRequest is a pending change request joined with the owning
// worker's display identity, as shown to the resolving accountant.
type PendingRequest struct {
	ID          int64
	WorkerName  string
	BadgeNumber string
	Field       Field
	NewValue    string
	SubmittedAt time.Time
}

// =============================================================================
// AUDIT TRAIL
// =============================================================================

// AuditAction identifies the kind of financial mutation recorded.
type AuditAction string

const (
	AuditAddSickLeave AuditAction = "ADD_SICK"
	AuditAddAllowance AuditAction = "ADD_ALLOW"
)

// AuditEntry records one financial mutation. The trail is append-only
// and exists for traceability; the engine never reads it.
type AuditEntry struct {
	ID       int64
	Action   AuditAction
	EntityID int64 // id of the sick-leave or allowance row
	WorkerID int64
	Cycle    Cycle
	Actor    string // accountant login
	At       time.Time
	Details  string
}

// =============================================================================
// BREAKDOWN - Computed salary tuple
// =============================================================================

// Breakdown is the per-worker salary computation for one cycle. All
// monetary fields carry two decimal places (banker's rounding); SickDays
// is an exact integer.
type Breakdown struct {
	WorkerID     int64
	BadgeNumber  string
	FullName     string
	Position     string
	SickDays     int
	Base         decimal.Decimal
	AllowanceSum decimal.Decimal
	Gross        decimal.Decimal
	Tax          decimal.Decimal
	Net          decimal.Decimal
}

// Report is the payroll report for one cycle: per-worker breakdowns in
// worker list order plus aggregate totals.
type Report struct {
	Cycle      Cycle
	Rows       []Breakdown
	TotalGross decimal.Decimal
	TotalTax   decimal.Decimal
	TotalNet   decimal.Decimal
}
