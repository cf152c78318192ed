package subscriber

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// nowFunc is replaced in tests.
var nowFunc = time.Now

// ErrNotFound indicates the store holds no subscriber with that key.
var ErrNotFound = errors.New("subscriber not found")

// Store is the billing/subscriber collaborator. The engine reads
// subscriber and plan snapshots from it and writes back only the device
// sync fields (DeviceState, LastSyncedAt), never billing status.
type Store interface {
	// GetSubscriber returns the subscriber with the given id.
	GetSubscriber(ctx context.Context, id string) (Subscriber, error)

	// GetPlan returns the named plan.
	GetPlan(ctx context.Context, name string) (Plan, error)

	// ListAll returns every known subscriber.
	ListAll(ctx context.Context) ([]Subscriber, error)

	// ListOverdue returns subscribers with a positive overdue-day count.
	ListOverdue(ctx context.Context) ([]Subscriber, error)

	// RecordSync stores the device state observed or applied for the
	// subscriber, with the sync timestamp.
	RecordSync(ctx context.Context, id string, state DeviceState) error
}

// MemoryStore is an in-memory Store for tests and the interactive
// console. Safe for concurrent use.
type MemoryStore struct {
	mu          sync.RWMutex
	subscribers map[string]Subscriber
	plans       map[string]Plan
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subscribers: make(map[string]Subscriber),
		plans:       make(map[string]Plan),
	}
}

// PutSubscriber inserts or replaces a subscriber.
func (m *MemoryStore) PutSubscriber(s Subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers[s.ID] = s
}

// PutPlan inserts or replaces a plan.
func (m *MemoryStore) PutPlan(p Plan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[p.Name] = p
}

// SetBilling updates a subscriber's billing status, as the upstream
// billing pipeline would.
func (m *MemoryStore) SetBilling(id string, status BillingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subscribers[id]
	if !ok {
		return ErrNotFound
	}
	s.BillingStatus = status
	m.subscribers[id] = s
	return nil
}

// GetSubscriber implements Store.
func (m *MemoryStore) GetSubscriber(ctx context.Context, id string) (Subscriber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.subscribers[id]
	if !ok {
		return Subscriber{}, ErrNotFound
	}
	return s, nil
}

// GetPlan implements Store.
func (m *MemoryStore) GetPlan(ctx context.Context, name string) (Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.plans[name]
	if !ok {
		return Plan{}, ErrNotFound
	}
	return p, nil
}

// ListAll implements Store. Results are ordered by id for deterministic
// sweeps.
func (m *MemoryStore) ListAll(ctx context.Context) ([]Subscriber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Subscriber, 0, len(m.subscribers))
	for _, s := range m.subscribers {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListOverdue implements Store.
func (m *MemoryStore) ListOverdue(ctx context.Context) ([]Subscriber, error) {
	all, err := m.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, s := range all {
		if !s.BillingStatus.Current() {
			out = append(out, s)
		}
	}
	return out, nil
}

// RecordSync implements Store.
func (m *MemoryStore) RecordSync(ctx context.Context, id string, state DeviceState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subscribers[id]
	if !ok {
		return ErrNotFound
	}
	s.DeviceState = state
	s.LastSyncedAt = nowFunc()
	m.subscribers[id] = s
	return nil
}

// Compile-time interface satisfaction check.
var _ Store = (*MemoryStore)(nil)
