// Package memory is an in-process audit mirror for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"expensetracker/internal/sheets"
)

type Store struct {
	mu   sync.Mutex
	rows []sheets.AuditRecord
}

var _ sheets.AuditWriter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// Append stores the record and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, r sheets.AuditRecord) (string, error) {
	if r.EventID == "" {
		return "", fmt.Errorf("audit record without event id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, r)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Records returns a copy of the appended records in order.
func (s *Store) Records() []sheets.AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sheets.AuditRecord(nil), s.rows...)
}
