// Package cache holds the in-process caches of the Expense Service.
package cache

import (
	"time"

	"expensetracker/internal/log"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	// Purge drops every entry. Mutations use it to invalidate derived data.
	Purge()
	Size() int
}

// Cleaner is implemented by caches whose entries expire.
type Cleaner interface {
	CleanExpired() int
}

// Manager runs periodic expiry for registered caches.
type Manager struct {
	caches      []Cleaner
	logger      *log.Logger
	started     bool
	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default(log.ComponentCache)
	}
	return &Manager{
		logger:      logger.WithComponent(log.ComponentCache),
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Register adds a cache to the manager for cleanup. Call before StartCleanup.
func (m *Manager) Register(caches ...Cleaner) {
	m.caches = append(m.caches, caches...)
}

// StartCleanup begins periodic cleanup of all registered caches
func (m *Manager) StartCleanup(interval time.Duration) {
	m.started = true
	go m.cleanup(interval)
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := m.CleanNow(); n > 0 {
				m.logger.Debug("Expired cache entries removed", log.FieldCount, n)
			}
		case <-m.stopCleanup:
			return
		}
	}
}

// CleanNow expires entries in every registered cache and returns the total removed.
func (m *Manager) CleanNow() int {
	total := 0
	for _, c := range m.caches {
		total += c.CleanExpired()
	}
	return total
}

// Stop halts the cleanup goroutine started by StartCleanup.
func (m *Manager) Stop() {
	if !m.started {
		return
	}
	select {
	case <-m.stopCleanup:
		return
	default:
	}
	close(m.stopCleanup)
	<-m.cleanupDone
}
