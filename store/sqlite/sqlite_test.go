package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/period"
	"github.com/warp/payroll-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func worker(badge, name string) *payroll.Worker {
	return &payroll.Worker{
		BadgeNumber: badge,
		FullName:    name,
		Position:    "clerk",
		Salary:      decimal.RequireFromString("20000"),
		SecretHash:  "hash",
	}
}

var april = payroll.Cycle{Year: 2024, Month: 4}

// =============================================================================
// WORKERS
// =============================================================================

func TestInsertWorker_DuplicateBadge(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertWorker(ctx, worker("B-1", "Ana Beck")))

	err := store.InsertWorker(ctx, worker("B-1", "Ben Cole"))
	assert.ErrorIs(t, err, payroll.ErrDuplicateBadge)
}

func TestInsertWorker_NegativeSalary(t *testing.T) {
	store := newStore(t)
	w := worker("B-2", "Cam Dorn")
	w.Salary = decimal.RequireFromString("-1")

	err := store.InsertWorker(context.Background(), w)
	assert.ErrorIs(t, err, payroll.ErrNegativeAmount)
}

func TestListWorkers_OrderedByFullName(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertWorker(ctx, worker("B-3", "Cleo Voss")))
	require.NoError(t, store.InsertWorker(ctx, worker("B-4", "Abe North")))
	require.NoError(t, store.InsertWorker(ctx, worker("B-5", "Bea Moss")))

	workers, err := store.ListWorkers(ctx)
	require.NoError(t, err)
	require.Len(t, workers, 3)
	assert.Equal(t, "Abe North", workers[0].FullName)
	assert.Equal(t, "Bea Moss", workers[1].FullName)
	assert.Equal(t, "Cleo Voss", workers[2].FullName)
}

func TestGetWorker_RoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	w := worker("B-6", "Dee Pratt")
	w.MaritalStatus = "married"
	w.ChildrenCount = 2
	require.NoError(t, store.InsertWorker(ctx, w))

	got, err := store.GetWorker(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, "B-6", got.BadgeNumber)
	assert.Equal(t, "married", got.MaritalStatus)
	assert.Equal(t, 2, got.ChildrenCount)
	assert.True(t, got.Salary.Equal(decimal.RequireFromString("20000")))

	byBadge, err := store.GetWorkerByBadge(ctx, "B-6")
	require.NoError(t, err)
	assert.Equal(t, got.ID, byBadge.ID)

	_, err = store.GetWorker(ctx, 404)
	assert.ErrorIs(t, err, payroll.ErrWorkerNotFound)
}

func TestUpdateWorkerField_TypedVariants(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	w := worker("B-7", "Eli Quinn")
	require.NoError(t, store.InsertWorker(ctx, w))

	require.NoError(t, store.UpdateWorkerField(ctx, w.ID, payroll.PositionChange("manager")))
	require.NoError(t, store.UpdateWorkerField(ctx, w.ID, payroll.ChildrenCountChange(4)))

	got, err := store.GetWorker(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, "manager", got.Position)
	assert.Equal(t, 4, got.ChildrenCount)

	err = store.UpdateWorkerField(ctx, 404, payroll.PositionChange("ghost"))
	assert.ErrorIs(t, err, payroll.ErrWorkerNotFound)

	err = store.UpdateWorkerField(ctx, w.ID, payroll.ChildrenCountChange(-1))
	assert.ErrorIs(t, err, payroll.ErrNegativeAmount)
}

// =============================================================================
// FINANCIAL ENTRIES + AUDIT PAIRING
// =============================================================================

func TestInsertSickLeave_WritesAuditInSameUnit(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	w := worker("B-8", "Fay Roth")
	require.NoError(t, store.InsertWorker(ctx, w))

	entry := &payroll.SickLeave{
		WorkerID: w.ID,
		Range: period.DateRange{
			Start: period.NewDate(2024, time.April, 10),
			End:   period.NewDate(2024, time.April, 14),
		},
		Cycle:     april,
		CreatedBy: "admin",
	}
	require.NoError(t, store.InsertSickLeave(ctx, entry))
	assert.NotZero(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())

	leaves, err := store.SickLeavesFor(ctx, w.ID, april)
	require.NoError(t, err)
	require.Len(t, leaves, 1)
	assert.Equal(t, "2024-04-10..2024-04-14", leaves[0].Range.String())

	audit, err := store.AuditTrail(ctx, payroll.AuditFilter{WorkerID: &w.ID})
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, payroll.AuditAddSickLeave, audit[0].Action)
	assert.Equal(t, entry.ID, audit[0].EntityID)
	assert.Equal(t, april, audit[0].Cycle)
}

func TestInsertSickLeave_InvalidRange_NothingWritten(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	w := worker("B-9", "Gil Soto")
	require.NoError(t, store.InsertWorker(ctx, w))

	entry := &payroll.SickLeave{
		WorkerID: w.ID,
		Range: period.DateRange{
			Start: period.NewDate(2024, time.April, 14),
			End:   period.NewDate(2024, time.April, 10),
		},
		Cycle:     april,
		CreatedBy: "admin",
	}
	err := store.InsertSickLeave(ctx, entry)
	assert.ErrorIs(t, err, payroll.ErrInvalidRange)

	leaves, err := store.SickLeavesFor(ctx, w.ID, april)
	require.NoError(t, err)
	assert.Empty(t, leaves)

	audit, err := store.AuditTrail(ctx, payroll.AuditFilter{})
	require.NoError(t, err)
	assert.Empty(t, audit)
}

func TestAllowanceSum_ScopedToWorkerAndCycle(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	w1 := worker("B-10", "Hal Timm")
	w2 := worker("B-11", "Ida Ulm")
	require.NoError(t, store.InsertWorker(ctx, w1))
	require.NoError(t, store.InsertWorker(ctx, w2))

	add := func(workerID int64, amount string, c payroll.Cycle) {
		t.Helper()
		require.NoError(t, store.InsertAllowance(ctx, &payroll.Allowance{
			WorkerID:  workerID,
			Type:      "bonus",
			Amount:    decimal.RequireFromString(amount),
			Cycle:     c,
			CreatedBy: "admin",
		}))
	}
	add(w1.ID, "100.10", april)
	add(w1.ID, "200.25", april)
	add(w1.ID, "999", payroll.Cycle{Year: 2024, Month: 5}) // other cycle
	add(w2.ID, "50", april)                                // other worker

	sum, err := store.AllowanceSum(ctx, w1.ID, april)
	require.NoError(t, err)
	assert.Equal(t, "300.35", sum.StringFixed(2))

	none, err := store.AllowanceSum(ctx, w2.ID, payroll.Cycle{Year: 2023, Month: 1})
	require.NoError(t, err)
	assert.True(t, none.IsZero())
}

// =============================================================================
// CHANGE REQUESTS - At-most-once resolution
// =============================================================================

func TestResolveRequest_AtMostOnce(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	w := worker("B-12", "Joy Marsh")
	require.NoError(t, store.InsertWorker(ctx, w))

	req := &payroll.ChangeRequest{
		WorkerID:    w.ID,
		Field:       payroll.FieldPosition,
		NewValue:    "foreman",
		SubmittedAt: time.Now().UTC(),
		Status:      payroll.StatusPending,
	}
	require.NoError(t, store.InsertChangeRequest(ctx, req))

	require.NoError(t, store.ResolveRequest(ctx, req.ID, payroll.StatusApproved, "admin", time.Now()))

	err := store.ResolveRequest(ctx, req.ID, payroll.StatusRejected, "admin", time.Now())
	assert.ErrorIs(t, err, payroll.ErrRequestNotFound)

	_, err = store.GetPendingRequest(ctx, req.ID)
	assert.ErrorIs(t, err, payroll.ErrRequestNotFound)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTx_RollbackOnError(t *testing.T) {
	// A failing function must leave no trace of the writes made inside it.

	store := newStore(t)
	ctx := context.Background()
	w := worker("B-13", "Kim Lowe")
	require.NoError(t, store.InsertWorker(ctx, w))

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(tx payroll.Store) error {
		if err := tx.UpdateWorkerField(ctx, w.ID, payroll.PositionChange("director")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.GetWorker(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, "clerk", got.Position)
}

func TestWithTx_CommitOnSuccess(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	w := worker("B-14", "Lou Nash")
	require.NoError(t, store.InsertWorker(ctx, w))

	err := store.WithTx(ctx, func(tx payroll.Store) error {
		return tx.UpdateWorkerField(ctx, w.ID, payroll.PositionChange("director"))
	})
	require.NoError(t, err)

	got, err := store.GetWorker(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, "director", got.Position)
}
