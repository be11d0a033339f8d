// Package tui renders the expense tracker page in a terminal with Bubble Tea.
// All state lives in view.Controller; the model keeps only a snapshot, the
// table cursor and the text inputs of the open form.
package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/view"
)

type formField struct {
	name  string
	label string
}

var (
	addFields = []formField{
		{view.FieldAmount, "Amount"},
		{view.FieldDate, "Date (YYYY-MM-DD)"},
		{view.FieldNote, "Note"},
		{view.FieldCategory, "Category"},
		{view.FieldCreatedBy, "Created By"},
	}
	editFields = []formField{
		{view.FieldAmount, "Amount"},
		{view.FieldDate, "Date (YYYY-MM-DD)"},
		{view.FieldNote, "Note"},
	}
	filterFields = []formField{
		{view.FieldCategory, "Category"},
		{view.FieldStartDate, "Start date"},
		{view.FieldEndDate, "End date"},
	}
)

// formKind says which set of inputs is open.
type formKind int

const (
	formNone formKind = iota
	formAdd
	formEdit
	formFilter
)

// stateMsg is delivered when a controller call finishes.
type stateMsg struct {
	err error
}

// Model is the Bubble Tea model of the page.
type Model struct {
	ctx    context.Context
	ctrl   *view.Controller
	logger *log.Logger

	state  view.State
	cursor int
	status string

	form   formKind
	fields []formField
	inputs []textinput.Model
	focus  int

	width  int
	height int
}

// New creates the model. Init triggers the initial load.
func New(ctx context.Context, ctrl *view.Controller, logger *log.Logger) *Model {
	if logger == nil {
		logger = log.Default(log.ComponentTUI)
	}
	return &Model{
		ctx:    ctx,
		ctrl:   ctrl,
		logger: logger.WithComponent(log.ComponentTUI),
		state:  ctrl.Snapshot(),
	}
}

func (m *Model) Init() tea.Cmd {
	return m.run(m.ctrl.LoadAll)
}

// run executes a controller call off the UI goroutine.
func (m *Model) run(fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return stateMsg{err: fn(ctx)}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil
	case stateMsg:
		m.onState(msg)
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch {
		case m.state.Overlay == view.OverlayAdd || m.state.Overlay == view.OverlayEdit:
			return m.handleFormKey(msg)
		case m.state.Overlay == view.OverlaySummary:
			return m.handleSummaryKey(msg)
		case m.form == formFilter:
			return m.handleFilterKey(msg)
		case m.state.DropdownOpen:
			return m.handleDropdownKey(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) onState(msg stateMsg) {
	m.sync()
	if msg.err == nil {
		m.status = ""
		return
	}
	if errors.Is(msg.err, core.ErrMissingField) {
		m.status = "Please fill in " + strings.TrimPrefix(msg.err.Error(), core.ErrMissingField.Error()+": ")
	}
}

// sync refreshes the snapshot and drops form inputs whose overlay closed.
func (m *Model) sync() {
	m.state = m.ctrl.Snapshot()
	if m.cursor >= len(m.state.Expenses) {
		m.cursor = max(len(m.state.Expenses)-1, 0)
	}
	switch {
	case m.form == formAdd && m.state.Overlay != view.OverlayAdd,
		m.form == formEdit && m.state.Overlay != view.OverlayEdit:
		m.closeForm()
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.state.Expenses)-1 {
			m.cursor++
		}
	case "a":
		m.ctrl.OpenAdd()
		f := m.ctrl.Snapshot().Form
		m.openForm(formAdd, addFields, f.Amount, f.Date, f.Note, f.Category, f.CreatedBy)
		m.sync()
	case "e":
		if e, ok := m.selected(); ok {
			m.ctrl.OpenEdit(e)
			d := m.ctrl.Snapshot().Edit
			m.openForm(formEdit, editFields, d.Amount, d.Date, d.Note)
			m.sync()
		}
	case "x":
		if e, ok := m.selected(); ok {
			id := e.ID
			return m, m.run(func(ctx context.Context) error { return m.ctrl.DeleteExpense(ctx, id) })
		}
	case "f":
		f := m.state.Filter
		m.openForm(formFilter, filterFields, f.Category, f.StartDate, f.EndDate)
	case "c":
		return m, m.run(m.ctrl.ClearFilter)
	case "v":
		m.ctrl.ToggleDropdown()
		m.sync()
	}
	return m, nil
}

func (m *Model) handleDropdownKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	kinds := map[string]view.SummaryKind{
		"1": view.SummaryCategory,
		"2": view.SummaryMonth,
		"3": view.SummaryAll,
	}
	switch key := msg.String(); key {
	case "1", "2", "3":
		if err := m.ctrl.ShowSummary(kinds[key]); err != nil {
			m.logger.Error("Failed to show summary", log.FieldError, err)
		}
	case "v", "esc":
		m.ctrl.ToggleDropdown()
	case "q":
		return m, tea.Quit
	}
	m.sync()
	return m, nil
}

func (m *Model) handleSummaryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "enter":
		m.ctrl.CloseOverlay()
		m.sync()
	case "q":
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.ctrl.CloseOverlay()
		m.status = ""
		m.sync()
		return m, nil
	case "tab", "down":
		return m, m.moveFocus(1)
	case "shift+tab", "up":
		return m, m.moveFocus(-1)
	case "enter":
		if m.form == formAdd {
			return m, m.run(m.ctrl.AddExpense)
		}
		return m, m.run(m.ctrl.UpdateExpense)
	}

	cmd := m.updateFocused(msg)
	name, value := m.fields[m.focus].name, m.inputs[m.focus].Value()
	var err error
	if m.form == formAdd {
		err = m.ctrl.SetFormField(name, value)
	} else {
		err = m.ctrl.SetEditField(name, value)
	}
	if err != nil {
		m.logger.Error("Failed to set form field", "field", name, log.FieldError, err)
	}
	m.sync()
	return m, cmd
}

func (m *Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closeForm()
		return m, nil
	case "tab", "down":
		return m, m.moveFocus(1)
	case "shift+tab", "up":
		return m, m.moveFocus(-1)
	case "enter":
		criteria := core.FilterCriteria{
			Category:  m.inputs[0].Value(),
			StartDate: m.inputs[1].Value(),
			EndDate:   m.inputs[2].Value(),
		}
		m.closeForm()
		return m, m.run(func(ctx context.Context) error { return m.ctrl.ApplyFilter(ctx, criteria) })
	}

	cmd := m.updateFocused(msg)
	if err := m.ctrl.SetFilterField(m.fields[m.focus].name, m.inputs[m.focus].Value()); err != nil {
		m.logger.Error("Failed to set filter field", log.FieldError, err)
	}
	m.sync()
	return m, cmd
}

func (m *Model) selected() (core.Expense, bool) {
	if m.cursor < 0 || m.cursor >= len(m.state.Expenses) {
		return core.Expense{}, false
	}
	return m.state.Expenses[m.cursor], true
}

func (m *Model) openForm(kind formKind, fields []formField, values ...string) {
	m.form = kind
	m.fields = fields
	m.inputs = make([]textinput.Model, len(fields))
	for i, f := range fields {
		ti := textinput.New()
		ti.Prompt = ""
		ti.Placeholder = f.label
		ti.CharLimit = 200
		ti.Width = 30
		if i < len(values) {
			ti.SetValue(values[i])
		}
		m.inputs[i] = ti
	}
	m.focus = 0
	m.inputs[0].Focus()
	m.status = ""
}

func (m *Model) closeForm() {
	m.form = formNone
	m.fields = nil
	m.inputs = nil
	m.focus = 0
}

func (m *Model) moveFocus(delta int) tea.Cmd {
	if len(m.inputs) == 0 {
		return nil
	}
	m.inputs[m.focus].Blur()
	m.focus = (m.focus + delta + len(m.inputs)) % len(m.inputs)
	return m.inputs[m.focus].Focus()
}

func (m *Model) updateFocused(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return cmd
}
