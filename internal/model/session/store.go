package session

import (
	"context"
	"sort"
	"sync"
)

// Store persists booked sessions.
type Store interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, id string) (Session, error)
	// ListFor returns the sessions userID takes part in, earliest date first.
	ListFor(ctx context.Context, userID string) ([]Session, error)
	Update(ctx context.Context, s Session) error
}

// MemoryStore implements Store in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]Session)}
}

func (m *MemoryStore) Create(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[s.ID] = s
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.items[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) ListFor(_ context.Context, userID string) ([]Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Session, 0)
	for _, s := range m.items {
		if s.Involves(userID) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID < out[j].ID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

func (m *MemoryStore) Update(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[s.ID]; !ok {
		return ErrNotFound
	}
	m.items[s.ID] = s
	return nil
}
