// Package memory is an in-process ExpenseStore used for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"expensetracker/internal/core"
	"expensetracker/internal/store"
)

type Store struct {
	mu     sync.Mutex
	nextID int64
	items  []core.Expense
}

var _ store.ExpenseStore = (*Store)(nil)

func New() *Store {
	return &Store{nextID: 1}
}

// Create assigns the next ID and stores the expense.
func (s *Store) Create(_ context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.nextID
	s.nextID++
	s.items = append(s.items, e)
	return e, nil
}

func (s *Store) Get(_ context.Context, id int64) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, store.ErrNotFound)
	}
	return s.items[i], nil
}

func (s *Store) Update(_ context.Context, p store.Patch) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(p.ID)
	if i < 0 {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", p.ID, store.ErrNotFound)
	}
	updated := p.Apply(s.items[i])
	if err := updated.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.items[i] = updated
	return updated, nil
}

func (s *Store) Delete(_ context.Context, id int64) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return core.Expense{}, fmt.Errorf("delete expense %d: %w", id, store.ErrNotFound)
	}
	removed := s.items[i]
	s.items = append(s.items[:i], s.items[i+1:]...)
	return removed, nil
}

func (s *Store) List(_ context.Context, f store.Filter) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Expense, 0, len(s.items))
	for _, e := range s.items {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) Categories(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]struct{}{}
	out := make([]string, 0)
	for _, e := range s.items {
		if _, ok := seen[e.Category]; ok {
			continue
		}
		seen[e.Category] = struct{}{}
		out = append(out, e.Category)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) SummaryByCategory(_ context.Context) ([]core.CategorySummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	totals := map[string]core.Money{}
	for _, e := range s.items {
		totals[e.Category] = totals[e.Category].Add(e.Amount)
	}
	out := make([]core.CategorySummary, 0, len(totals))
	for category, total := range totals {
		out = append(out, core.CategorySummary{Category: category, TotalSpent: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

func (s *Store) SummaryByMonth(_ context.Context) ([]core.MonthSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	totals := map[string]core.Money{}
	for _, e := range s.items {
		month := e.Date.MonthKey()
		totals[month] = totals[month].Add(e.Amount)
	}
	out := make([]core.MonthSummary, 0, len(totals))
	for month, total := range totals {
		out = append(out, core.MonthSummary{Month: month, TotalSpent: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

func (s *Store) Exists(_ context.Context, e core.Expense) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.Amount.Equal(e.Amount.Decimal) && item.Date.Equal(e.Date.Time) && item.Note == e.Note {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) indexOf(id int64) int {
	for i, e := range s.items {
		if e.ID == id {
			return i
		}
	}
	return -1
}
