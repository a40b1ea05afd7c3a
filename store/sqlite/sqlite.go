/*
Package sqlite provides the SQLite-backed implementation of payroll.Store.

PURPOSE:
  Implements the persistence interface over the six-table relational
  schema: accountants, workers, sick_leaves, allowances,
  personal_change_requests, financial_audit. Periods are stored as
  separate (period_year, period_month) integer columns so reporting
  queries filter by plain equality.

AUDIT PAIRING:
  Every financial insert (sick leave, allowance) appends its
  financial_audit row inside the same database transaction. If the
  audit append fails, the financial row is rolled back with it.

IMMUTABILITY:
  sick_leaves, allowances, and financial_audit have no UPDATE or DELETE
  statements anywhere in this package. personal_change_requests rows are
  updated exactly once, guarded by "status = 'PENDING'" in the WHERE
  clause, which is what makes resolution at-most-once.

ERROR MAPPING:
  The unique index on workers.badge_number surfaces as
  payroll.ErrDuplicateBadge; a raw sqlite error never crosses the
  package boundary for constraint violations the domain has a name for.

WAL MODE:
  The database is opened with WAL and foreign keys on. A mutex
  serializes writers; readers are not blocked.

BOOTSTRAP:
  On first migration an "admin" accountant is seeded (bcrypt-hashed
  default secret) when the accountants table is empty. A convenience
  for fresh installs, not a production credential.

SEE ALSO:
  - payroll/store.go: Interface definitions and contracts
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/period"
)

const timeLayout = time.RFC3339

// dbtx is the subset of *sql.DB and *sql.Tx the store uses.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements payroll.TxStore using SQLite.
type Store struct {
	db   *sql.DB
	q    dbtx
	inTx bool
	mu   *sync.Mutex
}

// New opens (and migrates) a SQLite store at the given path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive across calls
	// and sidesteps SQLITE_BUSY between writers.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, q: db, mu: &sync.Mutex{}}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accountants (
		login TEXT PRIMARY KEY,
		full_name TEXT NOT NULL DEFAULT '',
		secret_hash TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS workers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		badge_number TEXT UNIQUE NOT NULL,
		full_name TEXT NOT NULL,
		position TEXT NOT NULL,
		salary TEXT NOT NULL,
		marital_status TEXT,
		children_count INTEGER NOT NULL DEFAULT 0 CHECK (children_count >= 0),
		secret_hash TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sick_leaves (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		worker_id INTEGER NOT NULL,
		date_start TEXT NOT NULL,
		date_end TEXT NOT NULL,
		period_year INTEGER NOT NULL,
		period_month INTEGER NOT NULL,
		created_by TEXT NOT NULL,
		created_at TEXT NOT NULL,
		FOREIGN KEY (worker_id) REFERENCES workers(id),
		FOREIGN KEY (created_by) REFERENCES accountants(login)
	);

	CREATE INDEX IF NOT EXISTS idx_sick_leaves_worker_period
		ON sick_leaves(worker_id, period_year, period_month);

	CREATE TABLE IF NOT EXISTS allowances (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		worker_id INTEGER NOT NULL,
		allowance_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		period_year INTEGER NOT NULL,
		period_month INTEGER NOT NULL,
		created_by TEXT NOT NULL,
		created_at TEXT NOT NULL,
		FOREIGN KEY (worker_id) REFERENCES workers(id),
		FOREIGN KEY (created_by) REFERENCES accountants(login)
	);

	CREATE INDEX IF NOT EXISTS idx_allowances_worker_period
		ON allowances(worker_id, period_year, period_month);

	CREATE TABLE IF NOT EXISTS personal_change_requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		worker_id INTEGER NOT NULL,
		field_name TEXT NOT NULL,
		new_value TEXT NOT NULL,
		submitted_at TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		resolved_by TEXT,
		resolved_at TEXT,
		FOREIGN KEY (worker_id) REFERENCES workers(id),
		FOREIGN KEY (resolved_by) REFERENCES accountants(login)
	);

	CREATE INDEX IF NOT EXISTS idx_change_requests_status
		ON personal_change_requests(status, submitted_at);

	CREATE TABLE IF NOT EXISTS financial_audit (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		action_type TEXT NOT NULL,
		entity_id INTEGER NOT NULL,
		worker_id INTEGER NOT NULL,
		period_year INTEGER NOT NULL,
		period_month INTEGER NOT NULL,
		accountant_login TEXT NOT NULL,
		action_time TEXT NOT NULL,
		details TEXT,
		FOREIGN KEY (accountant_login) REFERENCES accountants(login)
	);

	CREATE INDEX IF NOT EXISTS idx_audit_worker_period
		ON financial_audit(worker_id, period_year, period_month);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return s.seedAdmin()
}

// seedAdmin inserts the initial administrative accountant when the table
// is empty. Default test credential, replace on any real deployment.
func (s *Store) seedAdmin() error {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM accountants`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	hash, err := payroll.HashSecret("admin")
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO accountants(login, full_name, secret_hash) VALUES (?, ?, ?)`,
		"admin", "Administrator", hash,
	)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a database transaction. Calling WithTx on a
// store that is already inside a transaction runs fn directly; SQLite
// has no nested transactions and the outer one already owns atomicity.
func (s *Store) WithTx(ctx context.Context, fn func(payroll.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	txStore := &Store{db: s.db, q: sqlTx, inTx: true, mu: s.mu}
	if err := fn(txStore); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// =============================================================================
// ACCOUNTANTS
// =============================================================================

func (s *Store) GetAccountant(ctx context.Context, login string) (*payroll.Accountant, error) {
	var a payroll.Accountant
	err := s.q.QueryRowContext(ctx,
		`SELECT login, full_name, secret_hash FROM accountants WHERE login = ?`,
		login,
	).Scan(&a.Login, &a.FullName, &a.SecretHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get accountant: %w", err)
	}
	return &a, nil
}

func (s *Store) InsertAccountant(ctx context.Context, a *payroll.Accountant) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO accountants(login, full_name, secret_hash) VALUES (?, ?, ?)`,
		a.Login, a.FullName, a.SecretHash,
	)
	if err != nil {
		return fmt.Errorf("failed to insert accountant: %w", err)
	}
	return nil
}

// =============================================================================
// WORKERS
// =============================================================================

func (s *Store) InsertWorker(ctx context.Context, w *payroll.Worker) error {
	if w.Salary.IsNegative() {
		return fmt.Errorf("%w: salary %s", payroll.ErrNegativeAmount, w.Salary)
	}
	if w.ChildrenCount < 0 {
		return fmt.Errorf("%w: children count %d", payroll.ErrNegativeAmount, w.ChildrenCount)
	}

	res, err := s.q.ExecContext(ctx,
		`INSERT INTO workers(badge_number, full_name, position, salary, marital_status, children_count, secret_hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		w.BadgeNumber, w.FullName, w.Position, w.Salary.String(),
		nullString(w.MaritalStatus), w.ChildrenCount, w.SecretHash,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: %s", payroll.ErrDuplicateBadge, w.BadgeNumber)
		}
		return fmt.Errorf("failed to insert worker: %w", err)
	}
	w.ID, err = res.LastInsertId()
	return err
}

const workerColumns = `id, badge_number, full_name, position, salary,
	COALESCE(marital_status, ''), children_count, secret_hash`

func scanWorkerRow(scan func(dest ...any) error) (*payroll.Worker, error) {
	var w payroll.Worker
	var salary string
	err := scan(&w.ID, &w.BadgeNumber, &w.FullName, &w.Position,
		&salary, &w.MaritalStatus, &w.ChildrenCount, &w.SecretHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, payroll.ErrWorkerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan worker: %w", err)
	}
	w.Salary, err = decimal.NewFromString(salary)
	if err != nil {
		return nil, fmt.Errorf("corrupt salary for worker %d: %w", w.ID, err)
	}
	return &w, nil
}

func (s *Store) GetWorker(ctx context.Context, id int64) (*payroll.Worker, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+workerColumns+` FROM workers WHERE id = ?`, id)
	return scanWorkerRow(row.Scan)
}

func (s *Store) GetWorkerByBadge(ctx context.Context, badge string) (*payroll.Worker, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+workerColumns+` FROM workers WHERE badge_number = ?`, badge)
	return scanWorkerRow(row.Scan)
}

func (s *Store) ListWorkers(ctx context.Context) ([]payroll.Worker, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+workerColumns+` FROM workers ORDER BY full_name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list workers: %w", err)
	}
	defer rows.Close()

	var workers []payroll.Worker
	for rows.Next() {
		w, err := scanWorkerRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		workers = append(workers, *w)
	}
	return workers, rows.Err()
}

// UpdateWorkerField applies one typed field change. The closed set of
// FieldChange variants is the whole allow-list; there is no dynamic
// column name to validate.
func (s *Store) UpdateWorkerField(ctx context.Context, workerID int64, change payroll.FieldChange) error {
	var column string
	var value any
	switch c := change.(type) {
	case payroll.FullNameChange:
		column, value = "full_name", string(c)
	case payroll.PositionChange:
		column, value = "position", string(c)
	case payroll.MaritalStatusChange:
		column, value = "marital_status", string(c)
	case payroll.ChildrenCountChange:
		if c < 0 {
			return fmt.Errorf("%w: children count %d", payroll.ErrNegativeAmount, int(c))
		}
		column, value = "children_count", int(c)
	default:
		return fmt.Errorf("%w: %T", payroll.ErrInvalidField, change)
	}

	res, err := s.q.ExecContext(ctx,
		`UPDATE workers SET `+column+` = ? WHERE id = ?`, value, workerID)
	if err != nil {
		return fmt.Errorf("failed to update worker: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return payroll.ErrWorkerNotFound
	}
	return nil
}

// =============================================================================
// SICK LEAVES
// =============================================================================

// InsertSickLeave persists the entry and its audit row atomically.
func (s *Store) InsertSickLeave(ctx context.Context, entry *payroll.SickLeave) error {
	if !entry.Range.Valid() {
		return fmt.Errorf("%w: %s", payroll.ErrInvalidRange, entry.Range)
	}
	return s.WithTx(ctx, func(store payroll.Store) error {
		tx := store.(*Store)
		now := time.Now().UTC()

		res, err := tx.q.ExecContext(ctx,
			`INSERT INTO sick_leaves(worker_id, date_start, date_end, period_year, period_month, created_by, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			entry.WorkerID, entry.Range.Start.String(), entry.Range.End.String(),
			entry.Cycle.Year, entry.Cycle.Month, entry.CreatedBy, now.Format(timeLayout),
		)
		if err != nil {
			return fmt.Errorf("failed to insert sick leave: %w", err)
		}
		if entry.ID, err = res.LastInsertId(); err != nil {
			return err
		}
		entry.CreatedAt = now

		return tx.appendAudit(ctx, payroll.AuditEntry{
			Action:   payroll.AuditAddSickLeave,
			EntityID: entry.ID,
			WorkerID: entry.WorkerID,
			Cycle:    entry.Cycle,
			Actor:    entry.CreatedBy,
			At:       now,
			Details:  entry.Range.String(),
		})
	})
}

func (s *Store) SickLeavesFor(ctx context.Context, workerID int64, c payroll.Cycle) ([]payroll.SickLeave, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, worker_id, date_start, date_end, period_year, period_month, created_by, created_at
		 FROM sick_leaves
		 WHERE worker_id = ? AND period_year = ? AND period_month = ?`,
		workerID, c.Year, c.Month,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sick leaves: %w", err)
	}
	defer rows.Close()

	var entries []payroll.SickLeave
	for rows.Next() {
		var e payroll.SickLeave
		var start, end, createdAt string
		if err := rows.Scan(&e.ID, &e.WorkerID, &start, &end,
			&e.Cycle.Year, &e.Cycle.Month, &e.CreatedBy, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan sick leave: %w", err)
		}
		if e.Range.Start, err = period.ParseDate(start); err != nil {
			return nil, err
		}
		if e.Range.End, err = period.ParseDate(end); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// ALLOWANCES
// =============================================================================

// InsertAllowance persists the entry and its audit row atomically.
// Taxonomy membership is the engine's concern; structural checks live here.
func (s *Store) InsertAllowance(ctx context.Context, entry *payroll.Allowance) error {
	if entry.Amount.IsNegative() {
		return fmt.Errorf("%w: %s", payroll.ErrNegativeAmount, entry.Amount)
	}
	return s.WithTx(ctx, func(store payroll.Store) error {
		tx := store.(*Store)
		now := time.Now().UTC()

		res, err := tx.q.ExecContext(ctx,
			`INSERT INTO allowances(worker_id, allowance_type, amount, period_year, period_month, created_by, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			entry.WorkerID, entry.Type, entry.Amount.String(),
			entry.Cycle.Year, entry.Cycle.Month, entry.CreatedBy, now.Format(timeLayout),
		)
		if err != nil {
			return fmt.Errorf("failed to insert allowance: %w", err)
		}
		if entry.ID, err = res.LastInsertId(); err != nil {
			return err
		}
		entry.CreatedAt = now

		return tx.appendAudit(ctx, payroll.AuditEntry{
			Action:   payroll.AuditAddAllowance,
			EntityID: entry.ID,
			WorkerID: entry.WorkerID,
			Cycle:    entry.Cycle,
			Actor:    entry.CreatedBy,
			At:       now,
			Details:  fmt.Sprintf("%s: %s", entry.Type, entry.Amount),
		})
	})
}

func (s *Store) AllowanceSum(ctx context.Context, workerID int64, c payroll.Cycle) (decimal.Decimal, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT amount FROM allowances
		 WHERE worker_id = ? AND period_year = ? AND period_month = ?`,
		workerID, c.Year, c.Month,
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query allowances: %w", err)
	}
	defer rows.Close()

	// Amounts are stored as decimal strings; summing in Go keeps the
	// arithmetic exact instead of trusting SQLite's float SUM().
	sum := decimal.Zero
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return decimal.Zero, err
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("corrupt allowance amount %q: %w", raw, err)
		}
		sum = sum.Add(amount)
	}
	return sum, rows.Err()
}

// =============================================================================
// CHANGE REQUESTS
// =============================================================================

func (s *Store) InsertChangeRequest(ctx context.Context, r *payroll.ChangeRequest) error {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO personal_change_requests(worker_id, field_name, new_value, submitted_at, status)
		 VALUES (?, ?, ?, ?, ?)`,
		r.WorkerID, string(r.Field), r.NewValue, r.SubmittedAt.Format(timeLayout), string(r.Status),
	)
	if err != nil {
		return fmt.Errorf("failed to insert change request: %w", err)
	}
	r.ID, err = res.LastInsertId()
	return err
}

func (s *Store) ListPendingRequests(ctx context.Context) ([]payroll.PendingRequest, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT r.id, w.full_name, w.badge_number, r.field_name, r.new_value, r.submitted_at
		 FROM personal_change_requests r
		 JOIN workers w ON w.id = r.worker_id
		 WHERE r.status = 'PENDING'
		 ORDER BY r.submitted_at ASC, r.id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending requests: %w", err)
	}
	defer rows.Close()

	var pending []payroll.PendingRequest
	for rows.Next() {
		var p payroll.PendingRequest
		var field, submitted string
		if err := rows.Scan(&p.ID, &p.WorkerName, &p.BadgeNumber, &field, &p.NewValue, &submitted); err != nil {
			return nil, fmt.Errorf("failed to scan pending request: %w", err)
		}
		p.Field = payroll.Field(field)
		if p.SubmittedAt, err = time.Parse(timeLayout, submitted); err != nil {
			return nil, err
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

func (s *Store) GetPendingRequest(ctx context.Context, id int64) (*payroll.ChangeRequest, error) {
	var r payroll.ChangeRequest
	var field, submitted string
	err := s.q.QueryRowContext(ctx,
		`SELECT id, worker_id, field_name, new_value, submitted_at
		 FROM personal_change_requests
		 WHERE id = ? AND status = 'PENDING'`,
		id,
	).Scan(&r.ID, &r.WorkerID, &field, &r.NewValue, &submitted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", payroll.ErrRequestNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	r.Field = payroll.Field(field)
	r.Status = payroll.StatusPending
	if r.SubmittedAt, err = time.Parse(timeLayout, submitted); err != nil {
		return nil, err
	}
	return &r, nil
}

// ResolveRequest transitions a PENDING request to a terminal status.
// The status guard in the WHERE clause makes resolution at-most-once:
// a request that is missing or already terminal affects zero rows.
func (s *Store) ResolveRequest(ctx context.Context, id int64, status payroll.RequestStatus, resolver string, at time.Time) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE personal_change_requests
		 SET status = ?, resolved_by = ?, resolved_at = ?
		 WHERE id = ? AND status = 'PENDING'`,
		string(status), resolver, at.UTC().Format(timeLayout), id,
	)
	if err != nil {
		return fmt.Errorf("failed to resolve request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: id %d", payroll.ErrRequestNotFound, id)
	}
	return nil
}

// =============================================================================
// AUDIT TRAIL
// =============================================================================

func (s *Store) appendAudit(ctx context.Context, e payroll.AuditEntry) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO financial_audit(action_type, entity_id, worker_id, period_year, period_month, accountant_login, action_time, details)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(e.Action), e.EntityID, e.WorkerID, e.Cycle.Year, e.Cycle.Month,
		e.Actor, e.At.Format(timeLayout), nullString(e.Details),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (s *Store) AuditTrail(ctx context.Context, filter payroll.AuditFilter) ([]payroll.AuditEntry, error) {
	query := `SELECT id, action_type, entity_id, worker_id, period_year, period_month,
		accountant_login, action_time, COALESCE(details, '')
		FROM financial_audit WHERE 1=1`
	var args []any
	if filter.WorkerID != nil {
		query += ` AND worker_id = ?`
		args = append(args, *filter.WorkerID)
	}
	if filter.Cycle != nil {
		query += ` AND period_year = ? AND period_month = ?`
		args = append(args, filter.Cycle.Year, filter.Cycle.Month)
	}
	query += ` ORDER BY id ASC`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit trail: %w", err)
	}
	defer rows.Close()

	var entries []payroll.AuditEntry
	for rows.Next() {
		var e payroll.AuditEntry
		var action, at string
		if err := rows.Scan(&e.ID, &action, &e.EntityID, &e.WorkerID,
			&e.Cycle.Year, &e.Cycle.Month, &e.Actor, &at, &e.Details); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Action = payroll.AuditAction(action)
		if e.At, err = time.Parse(timeLayout, at); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
