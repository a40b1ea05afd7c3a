package payroll

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// CHANGE-REQUEST WORKFLOW - PENDING -> APPROVED | REJECTED, exactly once
// =============================================================================

// Workflow governs personal-data change requests from submission to
// resolution. It needs a TxStore because approval applies the worker
// update and the status transition as one atomic step.
type Workflow struct {
	Store TxStore
}

// NewWorkflow creates a workflow over the given transactional store.
func NewWorkflow(store TxStore) *Workflow {
	return &Workflow{Store: store}
}

// Submit creates a PENDING request for one editable field. The raw value
// is kept as submitted; coercion happens at approval.
func (wf *Workflow) Submit(ctx context.Context, workerID int64, field string, newValue string) (*ChangeRequest, error) {
	f, err := ParseField(field)
	if err != nil {
		return nil, err
	}
	if _, err := wf.Store.GetWorker(ctx, workerID); err != nil {
		return nil, err
	}

	req := &ChangeRequest{
		WorkerID:    workerID,
		Field:       f,
		NewValue:    newValue,
		SubmittedAt: time.Now().UTC(),
		Status:      StatusPending,
	}
	if err := wf.Store.InsertChangeRequest(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// Approve resolves a PENDING request by applying the proposed value to
// the worker record and marking the request APPROVED.
//
// This is TRANSACTIONAL: the field update and the status transition
// either both commit or neither does. A coercion failure surfaces
// before any write and leaves the request PENDING. A second approval
// (or rejection) of the same id fails with ErrRequestNotFound.
func (wf *Workflow) Approve(ctx context.Context, requestID int64, actor string) error {
	return wf.Store.WithTx(ctx, func(tx Store) error {
		req, err := tx.GetPendingRequest(ctx, requestID)
		if err != nil {
			return err
		}

		change, err := ParseFieldChange(req.Field, req.NewValue)
		if err != nil {
			return fmt.Errorf("request %d: %w", requestID, err)
		}

		if err := tx.UpdateWorkerField(ctx, req.WorkerID, change); err != nil {
			return fmt.Errorf("apply %s: %w", req.Field, err)
		}
		return tx.ResolveRequest(ctx, requestID, StatusApproved, actor, time.Now().UTC())
	})
}

// Reject resolves a PENDING request without touching the worker record.
func (wf *Workflow) Reject(ctx context.Context, requestID int64, actor string) error {
	return wf.Store.ResolveRequest(ctx, requestID, StatusRejected, actor, time.Now().UTC())
}

// ListPending returns pending requests oldest first, joined with the
// owning worker's display identity.
func (wf *Workflow) ListPending(ctx context.Context) ([]PendingRequest, error) {
	return wf.Store.ListPendingRequests(ctx)
}
