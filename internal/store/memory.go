package store

import (
	"context"
	"sync"
	"time"
)

// Exchange records one call to the agent endpoint.
type Exchange struct {
	ID         string    `json:"id"`
	Mode       string    `json:"mode"`
	Turns      int       `json:"turns"`
	Prompt     string    `json:"prompt"`
	Reply      string    `json:"reply"`
	Status     int       `json:"status"`
	DurationMs int64     `json:"durationMs"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ExchangeLog is an operator-side record of endpoint traffic.
type ExchangeLog interface {
	Record(ctx context.Context, e Exchange) error
	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]Exchange, error)
}

// MemoryStore keeps the last maxEntries exchanges in process memory.
type MemoryStore struct {
	mu         sync.RWMutex
	entries    []Exchange
	maxEntries int
}

func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{maxEntries: maxEntries}
}

func (m *MemoryStore) Record(_ context.Context, e Exchange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	m.trimLocked()
	return nil
}

func (m *MemoryStore) Recent(_ context.Context, limit int) ([]Exchange, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := len(m.entries)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Exchange, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryStore) trimLocked() {
	if m.maxEntries <= 0 {
		return
	}
	if len(m.entries) > m.maxEntries {
		m.entries = append([]Exchange(nil), m.entries[len(m.entries)-m.maxEntries:]...)
	}
}
