// Package sheets defines the audit mirror the worker writes expense changes to.
package sheets

import (
	"context"
	"strconv"
	"time"

	"expensetracker/internal/core"
)

// AuditRecord is one row of the mirror: a single change to an expense.
type AuditRecord struct {
	EventID   string
	EventType string
	At        time.Time
	Expense   core.Expense
}

// Header is the column layout of the audit sheet.
var Header = []string{"timestamp", "event", "event_id", "expense_id", "date", "amount", "category", "note", "created_by"}

// Row returns the record's cells in Header order.
func (r AuditRecord) Row() []string {
	return []string{
		r.At.UTC().Format(time.RFC3339),
		r.EventType,
		r.EventID,
		strconv.FormatInt(r.Expense.ID, 10),
		r.Expense.Date.String(),
		r.Expense.Amount.String(),
		r.Expense.Category,
		r.Expense.Note,
		r.Expense.CreatedBy,
	}
}

// Ports for outbound adapters.
type (
	AuditWriter interface {
		Append(ctx context.Context, r AuditRecord) (rowRef string, err error)
	}
)
