// Package store defines the storage ports of the Expense Service.
package store

import (
	"context"
	"errors"

	"expensetracker/internal/core"
)

// ErrNotFound is returned when no expense has the requested ID.
var ErrNotFound = errors.New("expense not found")

type (
	// Filter restricts List. Zero fields are ignored; dates are inclusive.
	Filter struct {
		Category  string
		StartDate core.Date
		EndDate   core.Date
	}

	// Patch changes the non-nil fields of an existing expense.
	Patch struct {
		ID       int64
		Amount   *core.Money
		Date     *core.Date
		Note     *string
		Category *string
	}

	// ExpenseStore persists expenses and computes the aggregates served by
	// the API. List returns expenses in ID order, summaries are ordered by
	// category and month respectively.
	ExpenseStore interface {
		Create(ctx context.Context, e core.Expense) (core.Expense, error)
		Get(ctx context.Context, id int64) (core.Expense, error)
		Update(ctx context.Context, p Patch) (core.Expense, error)
		Delete(ctx context.Context, id int64) (core.Expense, error)
		List(ctx context.Context, f Filter) ([]core.Expense, error)
		Categories(ctx context.Context) ([]string, error)
		SummaryByCategory(ctx context.Context) ([]core.CategorySummary, error)
		SummaryByMonth(ctx context.Context) ([]core.MonthSummary, error)
		// Exists reports whether an expense with the same amount, date and
		// note is stored. The seed loader uses it to skip duplicates.
		Exists(ctx context.Context, e core.Expense) (bool, error)
		Ping(ctx context.Context) error
		Close() error
	}
)

// Apply returns e with the patch applied.
func (p Patch) Apply(e core.Expense) core.Expense {
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.Note != nil {
		e.Note = *p.Note
	}
	if p.Category != nil {
		e.Category = *p.Category
	}
	return e
}

// Matches reports whether e passes the filter.
func (f Filter) Matches(e core.Expense) bool {
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if !f.StartDate.IsZero() && e.Date.Before(f.StartDate.Time) {
		return false
	}
	if !f.EndDate.IsZero() && e.Date.After(f.EndDate.Time) {
		return false
	}
	return true
}
