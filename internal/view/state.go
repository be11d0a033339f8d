// Package view holds the client-side state of the expense tracker page and
// the actions that change it. It is independent of any rendering layer.
package view

import (
	"fmt"

	"expensetracker/internal/core"
)

// Overlay is the single overlay currently shown on top of the page.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayAdd
	OverlayEdit
	OverlaySummary
)

func (o Overlay) String() string {
	switch o {
	case OverlayNone:
		return "none"
	case OverlayAdd:
		return "add"
	case OverlayEdit:
		return "edit"
	case OverlaySummary:
		return "summary"
	default:
		return fmt.Sprintf("overlay(%d)", int(o))
	}
}

// SummaryKind selects which sections the summary overlay shows.
type SummaryKind string

const (
	SummaryCategory SummaryKind = "category"
	SummaryMonth    SummaryKind = "month"
	SummaryAll      SummaryKind = "all"
)

// ParseSummaryKind validates a summary kind.
func ParseSummaryKind(s string) (SummaryKind, error) {
	switch k := SummaryKind(s); k {
	case SummaryCategory, SummaryMonth, SummaryAll:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSummaryKind, s)
	}
}

// ShowsCategory reports whether the category section is rendered.
func (k SummaryKind) ShowsCategory() bool {
	return k == SummaryCategory || k == SummaryAll
}

// ShowsMonth reports whether the month section is rendered.
func (k SummaryKind) ShowsMonth() bool {
	return k == SummaryMonth || k == SummaryAll
}

// Field names accepted by SetFormField, SetEditField and SetFilterField.
const (
	FieldAmount    = "amount"
	FieldDate      = "date"
	FieldNote      = "note"
	FieldCategory  = "category"
	FieldCreatedBy = "created_by"
	FieldStartDate = "start_date"
	FieldEndDate   = "end_date"
)

// State is a snapshot of everything the page renders.
type State struct {
	Expenses        []core.Expense
	Categories      []string
	CategorySummary []core.CategorySummary
	MonthSummary    []core.MonthSummary

	Form   core.FormDraft
	Edit   core.EditDraft
	Filter core.FilterCriteria

	Overlay      Overlay
	SummaryKind  SummaryKind
	DropdownOpen bool
}

func (s State) clone() State {
	out := s
	out.Expenses = append([]core.Expense(nil), s.Expenses...)
	out.Categories = append([]string(nil), s.Categories...)
	out.CategorySummary = append([]core.CategorySummary(nil), s.CategorySummary...)
	out.MonthSummary = append([]core.MonthSummary(nil), s.MonthSummary...)
	return out
}
