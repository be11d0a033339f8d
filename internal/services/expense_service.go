package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"expensetracker/internal/amqp"
	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/store"
)

// EventPublisher delivers change events. *amqp.Client implements it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev amqp.ExpenseEvent) error
	Close() error
}

// UpdateRequest carries the fields of an update. Nil fields are left
// unchanged; an empty date is treated as absent.
type UpdateRequest struct {
	ID       int64       `json:"id"`
	Amount   *core.Money `json:"amount"`
	Date     *string     `json:"date"`
	Note     *string     `json:"note"`
	Category *string     `json:"category"`
}

// ExpenseService orchestrates expense operations across storage and AMQP
type ExpenseService struct {
	store     store.ExpenseStore
	publisher EventPublisher
	logger    *log.Logger
	changes   *log.StructuredLogger
}

// NewExpenseService wires a store and an optional publisher. Pass a nil
// publisher when AMQP is not configured.
func NewExpenseService(st store.ExpenseStore, publisher EventPublisher, logger *log.Logger) *ExpenseService {
	if logger == nil {
		logger = log.Default(log.ComponentExpense)
	}
	logger = logger.WithComponent(log.ComponentExpense)
	return &ExpenseService{
		store:     st,
		publisher: publisher,
		logger:    logger,
		changes:   log.NewStructuredLogger(logger),
	}
}

// CreateExpense validates the submitted form, saves it and publishes a
// created event.
func (s *ExpenseService) CreateExpense(ctx context.Context, d core.FormDraft) (core.Expense, error) {
	if strings.TrimSpace(d.Amount) == "" || strings.TrimSpace(d.Date) == "" {
		return core.Expense{}, fmt.Errorf("%w: amount and date are required", core.ErrMissingField)
	}
	amount, err := core.ParseMoney(d.Amount)
	if err != nil {
		return core.Expense{}, err
	}
	date, err := core.ParseDate(d.Date)
	if err != nil {
		return core.Expense{}, err
	}

	e := core.Expense{
		Amount:    amount,
		Date:      date,
		Note:      strings.TrimSpace(d.Note),
		Category:  orDefault(d.Category, core.DefaultCategory),
		CreatedBy: orDefault(d.CreatedBy, core.DefaultCreatedBy),
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	// Save first; the event is best effort
	saved, err := s.store.Create(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	s.changes.LogExpenseChanged(ctx, log.OpCreate, saved.ID, saved.Amount.String(), saved.Date.String(), saved.Category)
	s.publish(ctx, amqp.EventCreated, saved)
	return saved, nil
}

// UpdateExpense applies the present fields of r to an existing expense.
func (s *ExpenseService) UpdateExpense(ctx context.Context, r UpdateRequest) (core.Expense, error) {
	if r.ID <= 0 {
		return core.Expense{}, fmt.Errorf("%w: expense ID is required", core.ErrInvalidID)
	}

	p := store.Patch{ID: r.ID, Amount: r.Amount, Note: r.Note, Category: r.Category}
	if r.Date != nil && strings.TrimSpace(*r.Date) != "" {
		date, err := core.ParseDate(*r.Date)
		if err != nil {
			return core.Expense{}, err
		}
		p.Date = &date
	}
	if p.Category != nil && strings.TrimSpace(*p.Category) == "" {
		p.Category = nil
	}

	updated, err := s.store.Update(ctx, p)
	if err != nil {
		return core.Expense{}, err
	}

	s.changes.LogExpenseChanged(ctx, log.OpUpdate, updated.ID, updated.Amount.String(), updated.Date.String(), updated.Category)
	s.publish(ctx, amqp.EventUpdated, updated)
	return updated, nil
}

// DeleteExpense removes an expense and publishes a deleted event carrying
// the removed record.
func (s *ExpenseService) DeleteExpense(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: expense ID is required", core.ErrInvalidID)
	}

	removed, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}

	s.changes.LogExpenseChanged(ctx, log.OpDelete, removed.ID, removed.Amount.String(), removed.Date.String(), removed.Category)
	s.publish(ctx, amqp.EventDeleted, removed)
	return nil
}

func (s *ExpenseService) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	return s.store.List(ctx, store.Filter{})
}

// FilterExpenses lists expenses matching the non-empty criteria. Dates are
// inclusive bounds in YYYY-MM-DD.
func (s *ExpenseService) FilterExpenses(ctx context.Context, c core.FilterCriteria) ([]core.Expense, error) {
	f := store.Filter{Category: strings.TrimSpace(c.Category)}
	var err error
	if v := strings.TrimSpace(c.StartDate); v != "" {
		if f.StartDate, err = core.ParseDate(v); err != nil {
			return nil, fmt.Errorf("start_date: %w", err)
		}
	}
	if v := strings.TrimSpace(c.EndDate); v != "" {
		if f.EndDate, err = core.ParseDate(v); err != nil {
			return nil, fmt.Errorf("end_date: %w", err)
		}
	}
	return s.store.List(ctx, f)
}

func (s *ExpenseService) Categories(ctx context.Context) ([]string, error) {
	return s.store.Categories(ctx)
}

func (s *ExpenseService) SummaryByCategory(ctx context.Context) ([]core.CategorySummary, error) {
	return s.store.SummaryByCategory(ctx)
}

func (s *ExpenseService) SummaryByMonth(ctx context.Context) ([]core.MonthSummary, error) {
	return s.store.SummaryByMonth(ctx)
}

// Ping reports whether the store is reachable.
func (s *ExpenseService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *ExpenseService) publish(ctx context.Context, t amqp.EventType, e core.Expense) {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP client not available, skipping event", log.FieldEventType, t)
		return
	}
	if err := s.publisher.PublishEvent(ctx, amqp.NewExpenseEvent(t, e)); err != nil {
		// The change is already persisted; the request still succeeds
		s.logger.ErrorContext(ctx, "Failed to publish expense event",
			log.FieldEventType, t,
			log.FieldExpenseID, e.ID,
			log.FieldError, err)
	}
}

// Close closes both storage and AMQP connections
func (s *ExpenseService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close expense service: %w", errors.Join(errs...))
	}

	return nil
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
