// Package storage persists expenses in SQLite and classifies driver
// errors so the service layer can map them onto the API error taxonomy.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"kharcha/internal/core"
)

// Repository wraps the SQLite handle. All methods are safe for
// concurrent use; the database's unique index on idempotency_key is the
// only synchronization the write path needs.
type Repository struct {
	db *sql.DB
}

// Open runs migrations and returns a ready repository. The DSN enables
// WAL, foreign keys and a busy timeout so concurrent writers queue
// instead of failing immediately with SQLITE_BUSY.
func Open(dbPath string) (*Repository, error) {
	if err := runMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping verifies the database answers a trivial query.
func (r *Repository) Ping(ctx context.Context) error {
	var one int
	return r.db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
}

const expenseColumns = "id, idempotency_key, amount_paise, category, description, date, created_at"

// InsertExpense stores a new expense and fills in its ID and CreatedAt.
// It performs no duplicate pre-check; the caller distinguishes a lost
// insert race via IsUniqueViolation on the returned error.
func (r *Repository) InsertExpense(ctx context.Context, e *core.Expense) error {
	e.CreatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (idempotency_key, amount_paise, category, description, date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.IdempotencyKey,
		e.Amount.Paise,
		e.Category,
		e.Description,
		e.Date.String(),
		e.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	e.ID = id
	return nil
}

// GetByIdempotencyKey returns the expense stored under key, or
// ErrNotFound.
func (r *Repository) GetByIdempotencyKey(ctx context.Context, key string) (*core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE idempotency_key = ?", key)
	return scanExpense(row)
}

// GetExpense returns the expense with the given ID, or ErrNotFound.
func (r *Repository) GetExpense(ctx context.Context, id int64) (*core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE id = ?", id)
	return scanExpense(row)
}

// ListFilter narrows and orders ListExpenses results.
type ListFilter struct {
	// Category, when non-empty, keeps only expenses in that category.
	Category string
	// DateDesc orders by expense date (newest first) instead of the
	// default insertion order.
	DateDesc bool
}

// ListExpenses returns expenses matching the filter. The default order
// is newest-created first; DateDesc sorts by date with created_at as
// the tie-break. Both fall back to id so the order is deterministic.
func (r *Repository) ListExpenses(ctx context.Context, filter ListFilter) ([]core.Expense, error) {
	query := "SELECT " + expenseColumns + " FROM expenses"
	var args []any
	if filter.Category != "" {
		query += " WHERE category = ?"
		args = append(args, filter.Category)
	}
	if filter.DateDesc {
		query += " ORDER BY date DESC, created_at DESC, id DESC"
	} else {
		query += " ORDER BY created_at DESC, id DESC"
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		e, err := scanExpenseRows(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, *e)
	}
	return expenses, rows.Err()
}

// CategoryTotals returns per-category sums ordered by total, largest
// first. A non-empty category narrows the result to that category.
func (r *Repository) CategoryTotals(ctx context.Context, category string) ([]core.CategoryTotal, error) {
	query := "SELECT category, SUM(amount_paise) FROM expenses"
	var args []any
	if category != "" {
		query += " WHERE category = ?"
		args = append(args, category)
	}
	query += " GROUP BY category ORDER BY SUM(amount_paise) DESC, category ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []core.CategoryTotal
	for rows.Next() {
		var ct core.CategoryTotal
		if err := rows.Scan(&ct.Category, &ct.Total.Paise); err != nil {
			return nil, err
		}
		totals = append(totals, ct)
	}
	return totals, rows.Err()
}

// Categories returns the distinct categories in use, alphabetically.
func (r *Repository) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT DISTINCT category FROM expenses ORDER BY category ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// PendingExport returns up to limit expenses that have not been
// exported yet, oldest first. Rows whose last export attempt failed are
// included so the periodic sweep retries them.
func (r *Repository) PendingExport(ctx context.Context, limit int) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+expenseColumns+` FROM expenses
		WHERE export_status != 'exported'
		ORDER BY id ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		e, err := scanExpenseRows(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, *e)
	}
	return expenses, rows.Err()
}

// MarkExported records a successful export of the expense.
func (r *Repository) MarkExported(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE expenses
		SET export_status = 'exported', exported_at = ?
		WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkExportError flags the expense so a later sweep retries it.
func (r *Repository) MarkExportError(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE expenses SET export_status = 'error' WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row *sql.Row) (*core.Expense, error) {
	e, err := scanExpenseRows(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return e, err
}

func scanExpenseRows(s rowScanner) (*core.Expense, error) {
	var (
		e         core.Expense
		dateStr   string
		createdAt string
	)
	if err := s.Scan(&e.ID, &e.IdempotencyKey, &e.Amount.Paise, &e.Category,
		&e.Description, &dateStr, &createdAt); err != nil {
		return nil, err
	}

	d, err := core.NormalizeDate(dateStr)
	if err != nil {
		return nil, fmt.Errorf("stored date %q: %w", dateStr, err)
	}
	e.Date = d

	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("stored created_at %q: %w", createdAt, err)
	}
	e.CreatedAt = t

	return &e, nil
}
