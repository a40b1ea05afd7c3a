/*
store.go - Persistence interface for the payroll ledger

PURPOSE:
  Defines the boundary between the domain logic and the database. The
  engine and the workflow receive a Store handle explicitly; nothing in
  this package touches a global connection, which keeps both testable
  against an in-memory database.

AUDIT PAIRING CONTRACT:
  InsertSickLeave and InsertAllowance MUST append their audit-trail row
  within the same database transaction as the financial row. A write
  whose audit append fails must not be observed as committed.

AT-MOST-ONCE RESOLUTION:
  ResolveRequest only transitions a PENDING request. Implementations
  must report ErrRequestNotFound when the id is missing or already
  terminal, so re-approving a resolved request fails instead of
  double-applying.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite store

SEE ALSO:
  - engine.go:   Reads workers, sick leaves, allowance sums
  - workflow.go: Uses WithTx for the approve step
*/
package payroll

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Store handles persistence of all payroll entities.
type Store interface {
	// Accountants. GetAccountant returns (nil, nil) when the login is
	// unknown; the authenticator folds that into ErrAuthenticationFailed.
	GetAccountant(ctx context.Context, login string) (*Accountant, error)
	InsertAccountant(ctx context.Context, a *Accountant) error

	// Workers. InsertWorker assigns the surrogate id and returns
	// ErrDuplicateBadge on a badge uniqueness violation. ListWorkers
	// orders by full name ascending.
	InsertWorker(ctx context.Context, w *Worker) error
	GetWorker(ctx context.Context, id int64) (*Worker, error)
	GetWorkerByBadge(ctx context.Context, badge string) (*Worker, error)
	ListWorkers(ctx context.Context) ([]Worker, error)
	UpdateWorkerField(ctx context.Context, workerID int64, change FieldChange) error

	// Financial entries. Both inserts append the matching audit row in
	// the same transaction and return ErrInvalidRange / ErrNegativeAmount
	// on structural violations.
	InsertSickLeave(ctx context.Context, s *SickLeave) error
	SickLeavesFor(ctx context.Context, workerID int64, c Cycle) ([]SickLeave, error)
	InsertAllowance(ctx context.Context, a *Allowance) error
	AllowanceSum(ctx context.Context, workerID int64, c Cycle) (decimal.Decimal, error)

	// Change requests. GetPendingRequest and ResolveRequest treat
	// missing and already-resolved ids identically (ErrRequestNotFound).
	// ListPendingRequests orders by submission time ascending.
	InsertChangeRequest(ctx context.Context, r *ChangeRequest) error
	ListPendingRequests(ctx context.Context) ([]PendingRequest, error)
	GetPendingRequest(ctx context.Context, id int64) (*ChangeRequest, error)
	ResolveRequest(ctx context.Context, id int64, status RequestStatus, resolver string, at time.Time) error

	// Audit trail (append-only; reads are for operator review only).
	AuditTrail(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

// AuditFilter narrows an audit-trail query. Nil fields match everything.
type AuditFilter struct {
	WorkerID *int64
	Cycle    *Cycle
}

// TxStore wraps Store with transaction support. The approve step of the
// workflow runs the worker update and the status transition inside a
// single WithTx call.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
