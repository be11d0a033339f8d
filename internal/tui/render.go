package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"expensetracker/internal/core"
	"expensetracker/internal/view"
)

const loadingCategories = "Loading..."

func (m *Model) View() string {
	header := headerStyle.Render(titleStyle.Render("Expense Tracker") + "  " + m.renderTopBar())

	var body string
	switch m.state.Overlay {
	case view.OverlayAdd:
		body = overlayStyle.Render(m.renderForm("Add Expense", ""))
	case view.OverlayEdit:
		body = overlayStyle.Render(m.renderForm("Edit Expense", m.state.Edit.Category))
	case view.OverlaySummary:
		body = overlayStyle.Render(RenderSummary(m.state.SummaryKind, m.state.CategorySummary, m.state.MonthSummary))
	default:
		body = lipgloss.JoinHorizontal(lipgloss.Top,
			panelStyle.Width(28).Render(m.renderSidebar()),
			panelStyle.Render(RenderTable(m.state.Expenses, m.cursor)),
		)
	}

	parts := []string{header}
	if m.state.DropdownOpen {
		parts = append(parts, panelStyle.Render(renderDropdown()))
	}
	parts = append(parts, body)
	if m.status != "" {
		parts = append(parts, warnStyle.Render(m.status))
	}
	parts = append(parts, footerStyle.Render(m.renderHints()))

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *Model) renderTopBar() string {
	return accentStyle.Render("[a] Add Expense") + "  " + accentStyle.Render("[v] View Summary ▼")
}

func renderDropdown() string {
	return strings.Join([]string{
		"[1] Category Summary",
		"[2] Monthly Summary",
		"[3] Show All",
	}, "\n")
}

func (m *Model) renderHints() string {
	switch {
	case m.state.Overlay == view.OverlayAdd || m.state.Overlay == view.OverlayEdit || m.form == formFilter:
		return "tab next field • shift+tab previous • enter submit • esc cancel"
	case m.state.Overlay == view.OverlaySummary:
		return "esc close"
	case m.state.DropdownOpen:
		return "1 category • 2 month • 3 all • esc close"
	}
	return "↑/↓ select • e edit • x delete • f filter • c clear filter • q quit"
}

func (m *Model) renderSidebar() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Filters"))
	b.WriteString("\n\n")

	if m.form == formFilter {
		for i, f := range m.fields {
			b.WriteString(mutedStyle.Render(f.label))
			b.WriteString("\n")
			b.WriteString(m.inputs[i].View())
			b.WriteString("\n")
		}
		b.WriteString("\n")
	} else {
		f := m.state.Filter
		fmt.Fprintf(&b, "Category:   %s\n", orAll(f.Category))
		fmt.Fprintf(&b, "Start date: %s\n", orAll(f.StartDate))
		fmt.Fprintf(&b, "End date:   %s\n\n", orAll(f.EndDate))
	}

	b.WriteString(mutedStyle.Render("Categories"))
	b.WriteString("\n")
	b.WriteString(RenderCategories(m.state.Categories))
	return b.String()
}

func orAll(s string) string {
	if s == "" {
		return mutedStyle.Render("any")
	}
	return s
}

// RenderCategories lists the category options, or a loading placeholder
// while none have been fetched.
func RenderCategories(categories []string) string {
	if len(categories) == 0 {
		return loadingCategories
	}
	return strings.Join(categories, "\n")
}

// RenderTable renders the expense table with the row at cursor highlighted.
func RenderTable(expenses []core.Expense, cursor int) string {
	header := fmt.Sprintf("%-12s %10s  %-14s %s", "Date", "Amount", "Category", "Note")
	lines := []string{titleStyle.Render(header)}
	if len(expenses) == 0 {
		lines = append(lines, mutedStyle.Render("No expenses"))
	}
	for i, e := range expenses {
		row := fmt.Sprintf("%-12s %10s  %-14s %s", e.Date.String(), formatMoney(e.Amount), e.Category, e.Note)
		if i == cursor {
			row = rowStyle.Render(row)
		}
		lines = append(lines, row)
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderForm(title, category string) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")
	for i, f := range m.fields {
		label := f.label
		if i == m.focus {
			label = accentStyle.Render(label)
		} else {
			label = mutedStyle.Render(label)
		}
		b.WriteString(label)
		b.WriteString("\n")
		b.WriteString(m.inputs[i].View())
		b.WriteString("\n")
	}
	if category != "" {
		b.WriteString(mutedStyle.Render("Category"))
		b.WriteString("\n")
		b.WriteString(category)
		b.WriteString("\n")
	}
	return b.String()
}

// RenderSummary renders the sections selected by kind, one "name: total"
// line per entry.
func RenderSummary(kind view.SummaryKind, byCategory []core.CategorySummary, byMonth []core.MonthSummary) string {
	var sections []string
	if kind.ShowsCategory() {
		lines := []string{titleStyle.Render("Summary by Category")}
		for _, s := range byCategory {
			lines = append(lines, fmt.Sprintf("%s: %s", s.Category, formatMoney(s.TotalSpent)))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}
	if kind.ShowsMonth() {
		lines := []string{titleStyle.Render("Summary by Month")}
		for _, s := range byMonth {
			lines = append(lines, fmt.Sprintf("%s: %s", s.Month, formatMoney(s.TotalSpent)))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}
	return strings.Join(sections, "\n\n")
}

func formatMoney(m core.Money) string {
	return m.StringFixed(2)
}
