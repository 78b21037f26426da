package request

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Store persists connection requests.
type Store interface {
	// Create fails with ErrExists when the pair already has a request.
	Create(ctx context.Context, r Request) error
	Get(ctx context.Context, id string) (Request, error)
	// FindPair returns the request between a and b in either direction.
	FindPair(ctx context.Context, a, b string) (Request, error)
	// ListFor returns requests sent or received by userID, newest first.
	ListFor(ctx context.Context, userID string) ([]Request, error)
	UpdateStatus(ctx context.Context, id string, status Status, at time.Time) (Request, error)
}

// MemoryStore implements Store in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	items  map[string]Request
	byPair map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:  make(map[string]Request),
		byPair: make(map[string]string),
	}
}

func (s *MemoryStore) Create(_ context.Context, r Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := PairKey(r.Sender, r.Receiver)
	if _, ok := s.byPair[key]; ok {
		return ErrExists
	}
	s.items[r.ID] = r
	s.byPair[key] = r.ID
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.items[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	return r, nil
}

func (s *MemoryStore) FindPair(_ context.Context, a, b string) (Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byPair[PairKey(a, b)]
	if !ok {
		return Request{}, ErrNotFound
	}
	return s.items[id], nil
}

func (s *MemoryStore) ListFor(_ context.Context, userID string) ([]Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Request, 0)
	for _, r := range s.items {
		if r.Involves(userID) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id string, status Status, at time.Time) (Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.items[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	r.Status = status
	r.UpdatedAt = at
	s.items[id] = r
	return r, nil
}
