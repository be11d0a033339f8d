package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/store"
)

// PostgresRepository stores expenses in Postgres. Amounts are NUMERIC and
// travel as text in both directions.
type PostgresRepository struct {
	pool    *pgxpool.Pool
	dialect dialect
	logger  *log.Logger
}

var _ store.ExpenseStore = (*PostgresRepository)(nil)

// NewPostgresRepository migrates the schema and opens a pool.
func NewPostgresRepository(ctx context.Context, databaseURL string, logger *log.Logger) (*PostgresRepository, error) {
	if logger == nil {
		logger = log.Default(log.ComponentStorage)
	}

	if err := RunPostgresMigrations(databaseURL); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger = logger.WithComponent(log.ComponentStorage)
	logger.Info("Database connection established",
		"host", poolConfig.ConnConfig.Host,
		"database", poolConfig.ConnConfig.Database)

	return &PostgresRepository{
		pool:    pool,
		dialect: postgresDialect,
		logger:  logger,
	}, nil
}

func (r *PostgresRepository) Close() error {
	if r.pool != nil {
		r.pool.Close()
	}
	return nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresRepository) Create(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	query, args, err := r.dialect.insertQuery(e).ToSql()
	if err != nil {
		return core.Expense{}, fmt.Errorf("build insert: %w", err)
	}
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&e.ID); err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}

	r.logger.DebugContext(ctx, "Expense saved to Postgres",
		log.FieldExpenseID, e.ID,
		log.FieldAmount, e.Amount.String(),
		log.FieldDate, e.Date.String(),
		log.FieldCategory, e.Category)
	return e, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (core.Expense, error) {
	query, args, err := r.dialect.getQuery(id).ToSql()
	if err != nil {
		return core.Expense{}, fmt.Errorf("build select: %w", err)
	}
	e, err := scanExpense(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, err)
	}
	return e, nil
}

func (r *PostgresRepository) Update(ctx context.Context, p store.Patch) (core.Expense, error) {
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
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", p.ID, store.ErrNotFound)
	}
	return updated, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) (core.Expense, error) {
	current, err := r.Get(ctx, id)
	if err != nil {
		return core.Expense{}, err
	}

	query, args, err := r.dialect.deleteQuery(id).ToSql()
	if err != nil {
		return core.Expense{}, fmt.Errorf("build delete: %w", err)
	}
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return core.Expense{}, fmt.Errorf("delete expense %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return core.Expense{}, fmt.Errorf("delete expense %d: %w", id, store.ErrNotFound)
	}
	return current, nil
}

func (r *PostgresRepository) List(ctx context.Context, f store.Filter) ([]core.Expense, error) {
	query, args, err := r.dialect.listQuery(f).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}
	rows, err := r.pool.Query(ctx, query, args...)
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

func (r *PostgresRepository) Categories(ctx context.Context) ([]string, error) {
	query, args, err := r.dialect.categoriesQuery().ToSql()
	if err != nil {
		return nil, fmt.Errorf("build categories: %w", err)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan categories: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) SummaryByCategory(ctx context.Context) ([]core.CategorySummary, error) {
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

func (r *PostgresRepository) SummaryByMonth(ctx context.Context) ([]core.MonthSummary, error) {
	t, err := r.sumBy(ctx, "to_char(date_trunc('month', date), 'YYYY-MM')")
	if err != nil {
		return nil, fmt.Errorf("summary by month: %w", err)
	}
	out := make([]core.MonthSummary, 0, len(t.keys))
	for _, k := range t.keys {
		out = append(out, core.MonthSummary{Month: k, TotalSpent: t.sums[k]})
	}
	return out, nil
}

// sumBy lets Postgres group and sum, returning totals as text.
func (r *PostgresRepository) sumBy(ctx context.Context, keyExpr string) (*totals, error) {
	query, args, err := r.dialect.builder().
		Select(keyExpr+" AS bucket", "SUM(amount)::text").
		From(expensesTable).
		GroupBy("bucket").
		OrderBy("bucket").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, query, args...)
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

func (r *PostgresRepository) Exists(ctx context.Context, e core.Expense) (bool, error) {
	query, args, err := r.dialect.existsQuery(e).ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists: %w", err)
	}
	var one int
	err = r.pool.QueryRow(ctx, query, args...).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check duplicate: %w", err)
	}
	return true, nil
}
