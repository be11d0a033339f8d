// Package backend assembles the Expense Service from configuration: the
// expense store, the optional AMQP publisher and the startup seed.
package backend

import (
	"context"

	"expensetracker/internal/services"
)

// CleanupFunc releases the resources held by a backend.
type CleanupFunc func() error

// Result contains the assembled service and its cleanup function.
type Result struct {
	Service *services.ExpenseService
	// Events reports whether change events are published over AMQP.
	Events  bool
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Postgres specific
	PostgresURL string

	// Expense change events; empty URL disables publishing
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// JSON file loaded into the store at startup; empty disables seeding
	SeedFile string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}
