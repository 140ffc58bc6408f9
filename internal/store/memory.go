package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"lumina/fraud-lab/internal/domain"
)

// Memory is an in-process HistoryStore. Each customer has its own lock, so
// reads and writes for different customers never contend and a customer's
// history has a single writer at a time.
type Memory struct {
	opts Options

	mu        sync.RWMutex // guards customers
	customers map[string]*customerHistory
}

type customerHistory struct {
	mu   sync.RWMutex
	txns []domain.Transaction // chronological
	ids  map[string]struct{}
}

// NewMemory creates an empty in-memory history store.
func NewMemory(opts Options) *Memory {
	return &Memory{
		opts:      opts.normalized(),
		customers: make(map[string]*customerHistory),
	}
}

// History implements HistoryStore.
func (m *Memory) History(_ context.Context, customerID string, at time.Time) ([]domain.Transaction, error) {
	m.mu.RLock()
	h, ok := m.customers[customerID]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	end := sort.Search(len(h.txns), func(i int) bool { return h.txns[i].Timestamp.After(at) })
	cutoff := at.Add(-m.opts.Lookback)
	start := sort.Search(end, func(i int) bool { return h.txns[i].Timestamp.After(cutoff) })
	if start > 0 {
		start--
	}
	return slices.Clone(h.txns[start:end]), nil
}

// Append implements HistoryStore. Transactions may arrive out of order; they
// are inserted after any existing row with the same timestamp.
func (m *Memory) Append(_ context.Context, tx domain.Transaction) error {
	h := m.customer(tx.CustomerID)

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.ids[tx.TransactionID]; exists {
		return ErrDuplicateTransaction
	}
	h.ids[tx.TransactionID] = struct{}{}

	pos := sort.Search(len(h.txns), func(i int) bool { return h.txns[i].Timestamp.After(tx.Timestamp) })
	h.txns = slices.Insert(h.txns, pos, tx)
	h.evict(m.opts.Retention)
	return nil
}

// Ping implements HistoryStore.
func (m *Memory) Ping(context.Context) error { return nil }

// Len returns the number of stored transactions for a customer.
func (m *Memory) Len(customerID string) int {
	m.mu.RLock()
	h, ok := m.customers[customerID]
	m.mu.RUnlock()
	if !ok {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.txns)
}

func (m *Memory) customer(id string) *customerHistory {
	m.mu.RLock()
	h, ok := m.customers[id]
	m.mu.RUnlock()
	if ok {
		return h
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok = m.customers[id]; !ok {
		h = &customerHistory{ids: make(map[string]struct{})}
		m.customers[id] = h
	}
	return h
}

// evict drops rows older than the newest row minus retention.
// Must be called with h.mu held.
func (h *customerHistory) evict(retention time.Duration) {
	if retention <= 0 || len(h.txns) == 0 {
		return
	}
	cutoff := h.txns[len(h.txns)-1].Timestamp.Add(-retention)
	n := sort.Search(len(h.txns), func(i int) bool { return h.txns[i].Timestamp.After(cutoff) })
	for _, tx := range h.txns[:n] {
		delete(h.ids, tx.TransactionID)
	}
	h.txns = slices.Delete(h.txns, 0, n)
}
