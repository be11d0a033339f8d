package amqp

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"expensetracker/internal/core"
)

// EventType names the change an ExpenseEvent reports.
type EventType string

const (
	EventCreated EventType = "expense.created"
	EventUpdated EventType = "expense.updated"
	EventDeleted EventType = "expense.deleted"
)

// ExpenseEvent is published after every successful mutation. It carries the
// full expense as stored (for deletions, as it was before removal).
type ExpenseEvent struct {
	ID        string       `json:"id"`
	Type      EventType    `json:"type"`
	Expense   core.Expense `json:"expense"`
	Timestamp time.Time    `json:"timestamp"`
}

// NewExpenseEvent creates an event with a fresh message ID.
func NewExpenseEvent(t EventType, e core.Expense) ExpenseEvent {
	return ExpenseEvent{
		ID:        uuid.NewString(),
		Type:      t,
		Expense:   e,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (m ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseEventFromJSON decodes and checks an event.
func ExpenseEventFromJSON(data []byte) (ExpenseEvent, error) {
	var msg ExpenseEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return ExpenseEvent{}, err
	}
	switch msg.Type {
	case EventCreated, EventUpdated, EventDeleted:
	default:
		return ExpenseEvent{}, fmt.Errorf("unknown event type %q", msg.Type)
	}
	if msg.ID == "" {
		return ExpenseEvent{}, fmt.Errorf("event without id")
	}
	return msg, nil
}
