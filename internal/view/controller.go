package view

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
)

var (
	ErrUnknownSummaryKind = errors.New("unknown summary kind")
	ErrUnknownField       = errors.New("unknown field")
	ErrReadOnlyField      = errors.New("field is read-only")
)

// ExpenseService is the remote Expense Service as seen by the page.
type ExpenseService interface {
	ListExpenses(ctx context.Context) ([]core.Expense, error)
	ListCategories(ctx context.Context) ([]string, error)
	SummaryByCategory(ctx context.Context) ([]core.CategorySummary, error)
	SummaryByMonth(ctx context.Context) ([]core.MonthSummary, error)
	FilterExpenses(ctx context.Context, criteria core.FilterCriteria) ([]core.Expense, error)
	AddExpense(ctx context.Context, draft core.FormDraft) (string, error)
	UpdateExpense(ctx context.Context, update core.ExpenseUpdate) (string, error)
	DeleteExpense(ctx context.Context, id int64) (string, error)
}

// Controller owns the page state. Every field is replaced whole under mu,
// so when mutations overlap the last response to arrive wins.
// Request failures are logged and returned, never stored in the state.
type Controller struct {
	mu     sync.Mutex
	state  State
	svc    ExpenseService
	logger *log.Logger
}

// NewController creates a controller with an empty state and no overlay.
func NewController(svc ExpenseService, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.Default(log.ComponentView)
	}
	return &Controller{
		svc:    svc,
		logger: logger.WithComponent(log.ComponentView),
		state:  State{SummaryKind: SummaryAll},
	}
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

func (c *Controller) update(fn func(s *State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.state)
}

type refresh struct {
	expenses   bool
	summaries  bool
	categories bool
}

var refreshAll = refresh{expenses: true, summaries: true, categories: true}

// LoadAll fetches expenses, both summaries and categories concurrently.
// A failed fetch leaves its slice unchanged; all failures are joined in
// the returned error.
func (c *Controller) LoadAll(ctx context.Context) error {
	return c.reload(ctx, refreshAll)
}

func (c *Controller) reload(ctx context.Context, r refresh) error {
	var (
		mu   sync.Mutex
		errs []error
	)
	record := func(what string, err error) error {
		c.logger.ErrorContext(ctx, "Failed to fetch "+what, log.FieldError, err)
		err = fmt.Errorf("fetch %s: %w", what, err)
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
		return err
	}

	// A zero errgroup.Group has no context, so a failed fetch does not
	// cancel the others. Wait reports the first failure; errs keeps them all.
	var g errgroup.Group
	if r.expenses {
		g.Go(func() error {
			expenses, err := c.svc.ListExpenses(ctx)
			if err != nil {
				return record("expenses", err)
			}
			c.update(func(s *State) { s.Expenses = expenses })
			c.logger.DebugContext(ctx, "Expenses loaded", log.FieldCount, len(expenses))
			return nil
		})
	}
	if r.summaries {
		g.Go(func() error {
			summary, err := c.svc.SummaryByCategory(ctx)
			if err != nil {
				return record("category summary", err)
			}
			c.update(func(s *State) { s.CategorySummary = summary })
			return nil
		})
		g.Go(func() error {
			summary, err := c.svc.SummaryByMonth(ctx)
			if err != nil {
				return record("month summary", err)
			}
			c.update(func(s *State) { s.MonthSummary = summary })
			return nil
		})
	}
	if r.categories {
		g.Go(func() error {
			categories, err := c.svc.ListCategories(ctx)
			if err != nil {
				return record("categories", err)
			}
			c.update(func(s *State) { s.Categories = categories })
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return errors.Join(errs...)
	}
	return nil
}

// OpenAdd shows the add form, replacing any other overlay.
func (c *Controller) OpenAdd() {
	c.update(func(s *State) {
		s.Overlay = OverlayAdd
		s.DropdownOpen = false
	})
}

// SetFormField changes one field of the add form.
func (c *Controller) SetFormField(field, value string) error {
	var err error
	c.update(func(s *State) {
		switch field {
		case FieldAmount:
			s.Form.Amount = value
		case FieldDate:
			s.Form.Date = value
		case FieldNote:
			s.Form.Note = value
		case FieldCategory:
			s.Form.Category = value
		case FieldCreatedBy:
			s.Form.CreatedBy = value
		default:
			err = fmt.Errorf("%w: %q", ErrUnknownField, field)
		}
	})
	return err
}

// AddExpense submits the add form. Amount, date and category must be set,
// otherwise nothing is sent. Once sent, the draft is cleared, the add
// overlay closes and everything is re-fetched regardless of the outcome.
// The returned error is the submission error, if any.
func (c *Controller) AddExpense(ctx context.Context) error {
	draft := c.Snapshot().Form
	if err := draft.Validate(); err != nil {
		return err
	}

	_, err := c.svc.AddExpense(ctx, draft)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to add expense", log.FieldError, err)
	}

	c.update(func(s *State) {
		s.Form = core.FormDraft{}
		if s.Overlay == OverlayAdd {
			s.Overlay = OverlayNone
		}
	})
	_ = c.reload(ctx, refreshAll)
	return err
}

// OpenEdit copies expense into the edit draft and shows the edit form.
func (c *Controller) OpenEdit(expense core.Expense) {
	c.update(func(s *State) {
		s.Edit = expense.Draft()
		s.Overlay = OverlayEdit
		s.DropdownOpen = false
	})
}

// SetEditField changes amount, date or note of the edit draft. Category
// cannot be edited.
func (c *Controller) SetEditField(field, value string) error {
	var err error
	c.update(func(s *State) {
		switch field {
		case FieldAmount:
			s.Edit.Amount = value
		case FieldDate:
			s.Edit.Date = value
		case FieldNote:
			s.Edit.Note = value
		case FieldCategory:
			err = fmt.Errorf("%w: %q", ErrReadOnlyField, field)
		default:
			err = fmt.Errorf("%w: %q", ErrUnknownField, field)
		}
	})
	return err
}

// UpdateExpense submits {id, amount, date, note} of the edit draft, closes
// the edit overlay and re-fetches expenses and both summaries.
func (c *Controller) UpdateExpense(ctx context.Context) error {
	draft := c.Snapshot().Edit
	if err := draft.Validate(); err != nil {
		return err
	}

	_, err := c.svc.UpdateExpense(ctx, draft.Update())
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to update expense", log.FieldExpenseID, draft.ID, log.FieldError, err)
	}

	c.update(func(s *State) {
		s.Edit = core.EditDraft{}
		if s.Overlay == OverlayEdit {
			s.Overlay = OverlayNone
		}
	})
	_ = c.reload(ctx, refresh{expenses: true, summaries: true})
	return err
}

// DeleteExpense deletes id and re-fetches everything.
func (c *Controller) DeleteExpense(ctx context.Context, id int64) error {
	_, err := c.svc.DeleteExpense(ctx, id)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to delete expense", log.FieldExpenseID, id, log.FieldError, err)
	}
	_ = c.reload(ctx, refreshAll)
	return err
}

// SetFilterField changes one filter criterion without applying it.
func (c *Controller) SetFilterField(field, value string) error {
	var err error
	c.update(func(s *State) {
		switch field {
		case FieldCategory:
			s.Filter.Category = value
		case FieldStartDate:
			s.Filter.StartDate = value
		case FieldEndDate:
			s.Filter.EndDate = value
		default:
			err = fmt.Errorf("%w: %q", ErrUnknownField, field)
		}
	})
	return err
}

// ApplyFilter stores criteria and replaces the expense list with the
// filtered result. Empty criteria behave exactly like ClearFilter.
func (c *Controller) ApplyFilter(ctx context.Context, criteria core.FilterCriteria) error {
	if criteria.IsEmpty() {
		return c.ClearFilter(ctx)
	}

	c.update(func(s *State) { s.Filter = criteria })

	expenses, err := c.svc.FilterExpenses(ctx, criteria)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to filter expenses", log.FieldError, err)
		return err
	}
	c.update(func(s *State) { s.Expenses = expenses })
	return nil
}

// ClearFilter resets the criteria and reloads the unfiltered list.
func (c *Controller) ClearFilter(ctx context.Context) error {
	c.update(func(s *State) { s.Filter = core.FilterCriteria{} })
	return c.reload(ctx, refresh{expenses: true})
}

// ToggleDropdown opens or closes the summary dropdown.
func (c *Controller) ToggleDropdown() {
	c.update(func(s *State) { s.DropdownOpen = !s.DropdownOpen })
}

// ShowSummary opens the summary overlay for kind and closes the dropdown.
// It never fetches; the overlay shows the last loaded summaries.
func (c *Controller) ShowSummary(kind SummaryKind) error {
	if _, err := ParseSummaryKind(string(kind)); err != nil {
		return err
	}
	c.update(func(s *State) {
		s.SummaryKind = kind
		s.Overlay = OverlaySummary
		s.DropdownOpen = false
	})
	return nil
}

// CloseOverlay closes the current overlay and discards its draft.
func (c *Controller) CloseOverlay() {
	c.update(func(s *State) {
		switch s.Overlay {
		case OverlayAdd:
			s.Form = core.FormDraft{}
		case OverlayEdit:
			s.Edit = core.EditDraft{}
		}
		s.Overlay = OverlayNone
	})
}
