package memory

import (
	"context"
	"testing"
	"time"

	"expensetracker/internal/core"
	"expensetracker/internal/sheets"
)

func TestMemoryStoreAppendAndRecords(t *testing.T) {
	s := New()

	ref, err := s.Append(context.Background(), sheets.AuditRecord{
		EventID:   "evt-1",
		EventType: "expense.created",
		At:        time.Now(),
		Expense:   core.Expense{ID: 1, Amount: core.MustMoney("1.23"), Date: core.NewDate(2024, 1, 1), Category: "Food"},
	})
	if err != nil || ref != "mem:1" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}

	records := s.Records()
	if len(records) != 1 || records[0].EventID != "evt-1" {
		t.Fatalf("unexpected records: %+v", records)
	}

	records[0].EventID = "changed"
	if s.Records()[0].EventID != "evt-1" {
		t.Error("Records should return a copy")
	}
}

func TestMemoryStoreRejectsRecordWithoutEventID(t *testing.T) {
	if _, err := New().Append(context.Background(), sheets.AuditRecord{}); err == nil {
		t.Fatal("expected error for record without event id")
	}
}
