// Package worker mirrors expense change events into the audit sheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"expensetracker/internal/amqp"
	"expensetracker/internal/cache"
	"expensetracker/internal/log"
	"expensetracker/internal/sheets"
)

const (
	seenSize = 4096
	seenTTL  = 24 * time.Hour
)

// EventSource delivers events to a handler until ctx is done.
// *amqp.Client implements it.
type EventSource interface {
	ConsumeEvents(ctx context.Context, handler func(context.Context, amqp.ExpenseEvent) error) error
}

// MirrorWorker appends one audit row per expense event. Redelivered
// events are recognised by ID and not written twice.
type MirrorWorker struct {
	writer sheets.AuditWriter
	seen   *cache.LRUCache[string]
	logger *log.Logger
}

func NewMirrorWorker(writer sheets.AuditWriter, logger *log.Logger) *MirrorWorker {
	if logger == nil {
		logger = log.Default(log.ComponentWorker)
	}
	return &MirrorWorker{
		writer: writer,
		seen:   cache.NewLRUCache[string](seenSize, seenTTL),
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// Seen exposes the dedupe cache so its expiry can be scheduled.
func (w *MirrorWorker) Seen() cache.Cleaner {
	return w.seen
}

// HandleEvent processes a single expense event from AMQP. A returned error
// makes the consumer requeue the message.
func (w *MirrorWorker) HandleEvent(ctx context.Context, ev amqp.ExpenseEvent) error {
	if ref, ok := w.seen.Get(ev.ID); ok {
		w.logger.DebugContext(ctx, "Event already mirrored",
			log.FieldEventID, ev.ID,
			"sheets_ref", ref)
		return nil
	}

	w.logger.InfoContext(ctx, "Processing expense event",
		log.FieldEventID, ev.ID,
		log.FieldEventType, ev.Type,
		log.FieldExpenseID, ev.Expense.ID)

	ref, err := w.writer.Append(ctx, sheets.AuditRecord{
		EventID:   ev.ID,
		EventType: string(ev.Type),
		At:        ev.Timestamp,
		Expense:   ev.Expense,
	})
	if err != nil {
		return fmt.Errorf("append audit row: %w", err)
	}
	w.seen.Set(ev.ID, ref)

	w.logger.InfoContext(ctx, "Successfully mirrored expense event",
		log.FieldEventID, ev.ID,
		log.FieldExpenseID, ev.Expense.ID,
		log.FieldAmount, ev.Expense.Amount.String(),
		"sheets_ref", ref)
	return nil
}

// Run consumes events until ctx is cancelled.
func (w *MirrorWorker) Run(ctx context.Context, src EventSource) error {
	err := src.ConsumeEvents(ctx, w.HandleEvent)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
