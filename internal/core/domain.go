package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and storage format of expense dates.
const DateLayout = "2006-01-02"

// MonthLayout is the format of MonthSummary.Month.
const MonthLayout = "2006-01"

const (
	DefaultCategory  = "Other"
	DefaultCreatedBy = "system"
	maxNoteLength    = 200
)

type (
	Date struct {
		time.Time
	}

	// Expense is a single recorded spending transaction. IDs are assigned
	// by the Expense Service.
	Expense struct {
		ID        int64  `json:"id"`
		Amount    Money  `json:"amount"`
		Date      Date   `json:"date"`
		Note      string `json:"note"`
		Category  string `json:"category"`
		CreatedBy string `json:"created_by,omitempty"`
	}

	// CategorySummary is the server-computed total per category.
	CategorySummary struct {
		Category   string `json:"category"`
		TotalSpent Money  `json:"total_spent"`
	}

	// MonthSummary is the server-computed total per calendar month (YYYY-MM).
	MonthSummary struct {
		Month      string `json:"month"`
		TotalSpent Money  `json:"total_spent"`
	}

	// FilterCriteria selects a subset of expenses. Empty fields are ignored.
	FilterCriteria struct {
		Category  string `json:"category"`
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}

	// FormDraft holds the fields of the add form exactly as typed.
	FormDraft struct {
		Amount    string `json:"amount"`
		Date      string `json:"date"`
		Note      string `json:"note"`
		Category  string `json:"category"`
		CreatedBy string `json:"created_by"`
	}

	// EditDraft mirrors an existing expense while the edit form is open.
	// Category is shown but cannot be changed.
	EditDraft struct {
		ID       int64  `json:"id"`
		Amount   string `json:"amount"`
		Date     string `json:"date"`
		Note     string `json:"note"`
		Category string `json:"category"`
	}

	// ExpenseUpdate is the update payload. It has no category on purpose:
	// an update can only change amount, date and note.
	ExpenseUpdate struct {
		ID     int64  `json:"id"`
		Amount string `json:"amount"`
		Date   string `json:"date"`
		Note   string `json:"note"`
	}
)

var (
	ErrMissingField  = errors.New("missing required field")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidID     = errors.New("invalid expense id")
	ErrNoteTooLong   = errors.New("note too long (max 200 characters)")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// MonthKey returns the YYYY-MM bucket the date falls in.
func (d Date) MonthKey() string {
	return d.Format(MonthLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	return nil
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return fmt.Errorf("%w: category", ErrMissingField)
	}
	if len(e.Note) > maxNoteLength {
		return ErrNoteTooLong
	}
	return nil
}

// Draft returns the edit form view of the expense.
func (e Expense) Draft() EditDraft {
	return EditDraft{
		ID:       e.ID,
		Amount:   e.Amount.String(),
		Date:     e.Date.String(),
		Note:     e.Note,
		Category: e.Category,
	}
}

// IsEmpty reports whether no criterion is set.
func (f FilterCriteria) IsEmpty() bool {
	return strings.TrimSpace(f.Category) == "" &&
		strings.TrimSpace(f.StartDate) == "" &&
		strings.TrimSpace(f.EndDate) == ""
}

// Validate checks the client-side required fields: amount, date, category.
// No numeric or date format checks happen here; the service owns those.
func (f FormDraft) Validate() error {
	return requireFields(map[string]string{
		"amount":   f.Amount,
		"date":     f.Date,
		"category": f.Category,
	}, "amount", "date", "category")
}

// Validate checks the required fields of the edit form: amount and date.
func (d EditDraft) Validate() error {
	return requireFields(map[string]string{
		"amount": d.Amount,
		"date":   d.Date,
	}, "amount", "date")
}

// Update builds the update payload. Category is dropped.
func (d EditDraft) Update() ExpenseUpdate {
	return ExpenseUpdate{
		ID:     d.ID,
		Amount: d.Amount,
		Date:   d.Date,
		Note:   d.Note,
	}
}

func requireFields(values map[string]string, order ...string) error {
	var missing []string
	for _, name := range order {
		if strings.TrimSpace(values[name]) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", "))
	}
	return nil
}
