/*
engine.go - Monthly salary computation and report generation

PURPOSE:
  Combines the period calendar with the ledger to produce per-worker
  salary breakdowns and the cycle-wide payroll report. Also the entry
  point for recording financial entries (sick leaves, allowances),
  which validates against the configured policy before delegating to
  the store's audit-paired insert.

PAY FORMULA (fixed policy):
  sick    = clamp(sum of overlap days of sick entries with the cycle, 0, daysInMonth)
  worked  = daysInMonth - sick
  base    = salary * (worked + 0.5 * sick) / daysInMonth   -- sick days at half rate
  gross   = base + allowance sum
  tax     = gross * taxRate
  net     = gross - tax

ROUNDING:
  Banker's rounding (decimal.RoundBank) to 2 places. base and the
  allowance sum are rounded first; gross is their exact 2dp sum; tax is
  rounded from gross; net = gross - tax exactly. The identities
  gross = base + add and net = gross - tax therefore hold on the wire.

SEE ALSO:
  - period/period.go: MonthBounds, OverlapDays
  - store.go:         Store interface the engine reads through
*/
package payroll

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/period"
)

// =============================================================================
// POLICY - Static configuration the engine computes under
// =============================================================================

// Policy holds the static payroll configuration: the flat tax rate and
// the closed allowance taxonomy.
type Policy struct {
	TaxRate        decimal.Decimal
	AllowanceTypes []string
}

// Allows reports whether the allowance category is in the taxonomy.
func (p Policy) Allows(allowanceType string) bool {
	for _, t := range p.AllowanceTypes {
		if t == allowanceType {
			return true
		}
	}
	return false
}

var half = decimal.New(5, -1) // 0.5, exact

func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(2)
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine computes salaries from the ledger under a Policy.
type Engine struct {
	Store  Store
	Policy Policy
}

// NewEngine creates an engine over the given store handle.
func NewEngine(store Store, policy Policy) *Engine {
	return &Engine{Store: store, Policy: policy}
}

// ComputeSalary computes the breakdown for one worker and cycle.
func (e *Engine) ComputeSalary(ctx context.Context, workerID int64, c Cycle) (Breakdown, error) {
	w, err := e.Store.GetWorker(ctx, workerID)
	if err != nil {
		return Breakdown{}, err
	}
	return e.compute(ctx, *w, c)
}

func (e *Engine) compute(ctx context.Context, w Worker, c Cycle) (Breakdown, error) {
	bounds, days, err := c.Bounds()
	if err != nil {
		return Breakdown{}, err
	}

	leaves, err := e.Store.SickLeavesFor(ctx, w.ID, c)
	if err != nil {
		return Breakdown{}, fmt.Errorf("load sick leaves: %w", err)
	}
	sick := 0
	for _, l := range leaves {
		sick += period.OverlapDays(l.Range, bounds)
	}
	// Overlapping entries can oversubscribe the month; the compensated
	// sick-day count never exceeds the month itself.
	if sick < 0 {
		sick = 0
	}
	if sick > days {
		sick = days
	}
	worked := days - sick

	add, err := e.Store.AllowanceSum(ctx, w.ID, c)
	if err != nil {
		return Breakdown{}, fmt.Errorf("sum allowances: %w", err)
	}

	paidDays := decimal.NewFromInt(int64(worked)).Add(half.Mul(decimal.NewFromInt(int64(sick))))
	base := roundMoney(w.Salary.Mul(paidDays).Div(decimal.NewFromInt(int64(days))))
	add = roundMoney(add)
	gross := base.Add(add)
	tax := roundMoney(gross.Mul(e.Policy.TaxRate))
	net := gross.Sub(tax)

	return Breakdown{
		WorkerID:     w.ID,
		BadgeNumber:  w.BadgeNumber,
		FullName:     w.FullName,
		Position:     w.Position,
		SickDays:     sick,
		Base:         base,
		AllowanceSum: add,
		Gross:        gross,
		Tax:          tax,
		Net:          net,
	}, nil
}

// GenerateReport computes breakdowns for every worker in the cycle and
// accumulates gross/tax/net totals. Rows follow the worker list order
// (full name ascending). Pure reduction, no writes.
func (e *Engine) GenerateReport(ctx context.Context, c Cycle) (*Report, error) {
	if _, _, err := c.Bounds(); err != nil {
		return nil, err
	}
	workers, err := e.Store.ListWorkers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}

	report := &Report{
		Cycle:      c,
		Rows:       make([]Breakdown, 0, len(workers)),
		TotalGross: decimal.Zero,
		TotalTax:   decimal.Zero,
		TotalNet:   decimal.Zero,
	}
	for _, w := range workers {
		row, err := e.compute(ctx, w, c)
		if err != nil {
			return nil, fmt.Errorf("worker %d: %w", w.ID, err)
		}
		report.Rows = append(report.Rows, row)
		report.TotalGross = report.TotalGross.Add(row.Gross)
		report.TotalTax = report.TotalTax.Add(row.Tax)
		report.TotalNet = report.TotalNet.Add(row.Net)
	}
	return report, nil
}

// =============================================================================
// FINANCIAL ENTRY RECORDING
// =============================================================================

// RecordSickLeave validates and persists a sick-leave entry together
// with its audit row.
func (e *Engine) RecordSickLeave(ctx context.Context, workerID int64, rng period.DateRange, c Cycle, actor string) (*SickLeave, error) {
	if _, _, err := c.Bounds(); err != nil {
		return nil, err
	}
	if !rng.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRange, rng)
	}
	if _, err := e.Store.GetWorker(ctx, workerID); err != nil {
		return nil, err
	}

	entry := &SickLeave{
		WorkerID:  workerID,
		Range:     rng,
		Cycle:     c,
		CreatedBy: actor,
	}
	if err := e.Store.InsertSickLeave(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// RecordAllowance validates an allowance against the policy taxonomy
// and persists it together with its audit row. Nothing is written when
// validation fails.
func (e *Engine) RecordAllowance(ctx context.Context, workerID int64, allowanceType string, amount decimal.Decimal, c Cycle, actor string) (*Allowance, error) {
	if _, _, err := c.Bounds(); err != nil {
		return nil, err
	}
	if !e.Policy.Allows(allowanceType) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAllowanceType, allowanceType)
	}
	if amount.IsNegative() {
		return nil, fmt.Errorf("%w: %s", ErrNegativeAmount, amount)
	}
	if _, err := e.Store.GetWorker(ctx, workerID); err != nil {
		return nil, err
	}

	entry := &Allowance{
		WorkerID:  workerID,
		Type:      allowanceType,
		Amount:    amount,
		Cycle:     c,
		CreatedBy: actor,
	}
	if err := e.Store.InsertAllowance(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}
