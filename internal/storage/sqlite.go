package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/store"
)

// SQLiteRepository stores expenses in a single SQLite file. Amounts are kept
// as decimal text and summed in Go so totals stay exact.
type SQLiteRepository struct {
	db      *sql.DB
	dialect dialect
	logger  *log.Logger
}

var _ store.ExpenseStore = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Default(log.ComponentStorage)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunSQLiteMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		dialect: sqliteDialect,
		logger:  logger.WithComponent(log.ComponentStorage),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Create(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	query, args, err := r.dialect.insertQuery(e).ToSql()
	if err != nil {
		return core.Expense{}, fmt.Errorf("build insert: %w", err)
	}
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&e.ID); err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}

	r.logger.DebugContext(ctx, "Expense saved to SQLite",
		log.FieldExpenseID, e.ID,
		log.FieldAmount, e.Amount.String(),
		log.FieldDate, e.Date.String(),
		log.FieldCategory, e.Category)
	return e, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id int64) (core.Expense, error) {
	query, args, err := r.dialect.getQuery(id).ToSql()
	if err != nil {
		return core.Expense{}, fmt.Errorf("build select: %w", err)
	}
	e, err := scanExpense(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, err)
	}
	return e, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, p store.Patch) (core.Expense, error) {
	current, err := r.Get(ctx, p.ID)
	if err != nil {
		return core.Expense{}, err
	}
	updated := p.Apply(current)
	if err := updated.Validate(); err != nil {
		return core.Expense{}, err
	}

	query, args, err := r.dialect.updateQuery(updated).ToSql()
	if err != nil {
		return core.Expense{}, fmt.Errorf("build update: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", p.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", p.ID, store.ErrNotFound)
	}
	return updated, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id int64) (core.Expense, error) {
	current, err := r.Get(ctx, id)
	if err != nil {
		return core.Expense{}, err
	}

	query, args, err := r.dialect.deleteQuery(id).ToSql()
	if err != nil {
		return core.Expense{}, fmt.Errorf("build delete: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return core.Expense{}, fmt.Errorf("delete expense %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.Expense{}, fmt.Errorf("delete expense %d: %w", id, store.ErrNotFound)
	}
	return current, nil
}

func (r *SQLiteRepository) List(ctx context.Context, f store.Filter) ([]core.Expense, error) {
	query, args, err := r.dialect.listQuery(f).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	out := make([]core.Expense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) Categories(ctx context.Context) ([]string, error) {
	query, args, err := r.dialect.categoriesQuery().ToSql()
	if err != nil {
		return nil, fmt.Errorf("build categories: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SummaryByCategory(ctx context.Context) ([]core.CategorySummary, error) {
	t, err := r.sumBy(ctx, "category")
	if err != nil {
		return nil, fmt.Errorf("summary by category: %w", err)
	}
	out := make([]core.CategorySummary, 0, len(t.keys))
	for _, k := range t.keys {
		out = append(out, core.CategorySummary{Category: k, TotalSpent: t.sums[k]})
	}
	return out, nil
}

func (r *SQLiteRepository) SummaryByMonth(ctx context.Context) ([]core.MonthSummary, error) {
	t, err := r.sumBy(ctx, "substr(date, 1, 7)")
	if err != nil {
		return nil, fmt.Errorf("summary by month: %w", err)
	}
	out := make([]core.MonthSummary, 0, len(t.keys))
	for _, k := range t.keys {
		out = append(out, core.MonthSummary{Month: k, TotalSpent: t.sums[k]})
	}
	return out, nil
}

// sumBy streams (key, amount) pairs ordered by key and sums them.
func (r *SQLiteRepository) sumBy(ctx context.Context, keyExpr string) (*totals, error) {
	query, args, err := r.dialect.builder().
		Select(keyExpr+" AS bucket", "amount").
		From(expensesTable).
		OrderBy("bucket").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	t := newTotals()
	for rows.Next() {
		var key, amount string
		if err := rows.Scan(&key, &amount); err != nil {
			return nil, err
		}
		if err := t.add(key, amount); err != nil {
			return nil, err
		}
	}
	return t, rows.Err()
}

func (r *SQLiteRepository) Exists(ctx context.Context, e core.Expense) (bool, error) {
	query, args, err := r.dialect.existsQuery(e).ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists: %w", err)
	}
	var one int
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check duplicate: %w", err)
	}
	return true, nil
}
