package storage

import (
	"fmt"

	"github.com/Masterminds/squirrel"

	"expensetracker/internal/core"
	"expensetracker/internal/store"
)

const expensesTable = "expenses"

// dialect holds what differs between the SQLite and Postgres schemas.
// Both return amounts and dates as text so scanning is shared.
type dialect struct {
	placeholder squirrel.PlaceholderFormat
	amountCol   string
	dateCol     string
	amountCast  string
	dateCast    string
}

var (
	sqliteDialect = dialect{
		placeholder: squirrel.Question,
		amountCol:   "amount",
		dateCol:     "date",
	}
	postgresDialect = dialect{
		placeholder: squirrel.Dollar,
		amountCol:   "amount::text",
		dateCol:     "to_char(date, 'YYYY-MM-DD')",
		amountCast:  "::text::numeric",
		dateCast:    "::text::date",
	}
)

func (d dialect) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(d.placeholder)
}

func (d dialect) amount(m core.Money) squirrel.Sqlizer {
	return squirrel.Expr("?"+d.amountCast, m.String())
}

func (d dialect) date(date core.Date) squirrel.Sqlizer {
	return squirrel.Expr("?"+d.dateCast, date.String())
}

func (d dialect) selectExpenses() squirrel.SelectBuilder {
	return d.builder().
		Select("id", d.amountCol, d.dateCol, "note", "category", "created_by").
		From(expensesTable)
}

func (d dialect) getQuery(id int64) squirrel.SelectBuilder {
	return d.selectExpenses().Where(squirrel.Eq{"id": id})
}

func (d dialect) listQuery(f store.Filter) squirrel.SelectBuilder {
	q := d.selectExpenses()
	if f.Category != "" {
		q = q.Where(squirrel.Eq{"category": f.Category})
	}
	if !f.StartDate.IsZero() {
		q = q.Where(squirrel.Expr("date >= ?"+d.dateCast, f.StartDate.String()))
	}
	if !f.EndDate.IsZero() {
		q = q.Where(squirrel.Expr("date <= ?"+d.dateCast, f.EndDate.String()))
	}
	return q.OrderBy("id")
}

func (d dialect) insertQuery(e core.Expense) squirrel.InsertBuilder {
	return d.builder().
		Insert(expensesTable).
		Columns("amount", "date", "note", "category", "created_by").
		Values(d.amount(e.Amount), d.date(e.Date), e.Note, e.Category, e.CreatedBy).
		Suffix("RETURNING id")
}

func (d dialect) updateQuery(e core.Expense) squirrel.UpdateBuilder {
	return d.builder().
		Update(expensesTable).
		Set("amount", d.amount(e.Amount)).
		Set("date", d.date(e.Date)).
		Set("note", e.Note).
		Set("category", e.Category).
		Where(squirrel.Eq{"id": e.ID})
}

func (d dialect) deleteQuery(id int64) squirrel.DeleteBuilder {
	return d.builder().
		Delete(expensesTable).
		Where(squirrel.Eq{"id": id})
}

func (d dialect) existsQuery(e core.Expense) squirrel.SelectBuilder {
	return d.builder().
		Select("1").
		From(expensesTable).
		Where(squirrel.Expr("amount = ?"+d.amountCast, e.Amount.String())).
		Where(squirrel.Expr("date = ?"+d.dateCast, e.Date.String())).
		Where(squirrel.Eq{"note": e.Note}).
		Limit(1)
}

func (d dialect) categoriesQuery() squirrel.SelectBuilder {
	return d.builder().
		Select("DISTINCT category").
		From(expensesTable).
		OrderBy("category")
}

// rowScanner is satisfied by *sql.Row, *sql.Rows, pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (core.Expense, error) {
	var (
		e      core.Expense
		amount string
		date   string
	)
	if err := row.Scan(&e.ID, &amount, &date, &e.Note, &e.Category, &e.CreatedBy); err != nil {
		return core.Expense{}, err
	}
	m, err := core.ParseMoney(amount)
	if err != nil {
		return core.Expense{}, fmt.Errorf("expense %d: %w", e.ID, err)
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Expense{}, fmt.Errorf("expense %d: %w", e.ID, err)
	}
	e.Amount, e.Date = m, d
	return e, nil
}

// totals accumulates decimal sums per key while keeping first-seen order.
type totals struct {
	keys []string
	sums map[string]core.Money
}

func newTotals() *totals {
	return &totals{sums: map[string]core.Money{}}
}

func (t *totals) add(key, amount string) error {
	m, err := core.ParseMoney(amount)
	if err != nil {
		return fmt.Errorf("total for %s: %w", key, err)
	}
	if _, ok := t.sums[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.sums[key] = t.sums[key].Add(m)
	return nil
}
