package user

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already registered")
)

// Store exposes user persistence to the service layer.
type Store interface {
	Create(ctx context.Context, u User) error
	FindByID(ctx context.Context, id string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	ListByRole(ctx context.Context, role Role) ([]User, error)
	Update(ctx context.Context, u User) error
}

// MemoryStore implements Store with in-process maps.
type MemoryStore struct {
	mu      sync.RWMutex
	items   map[string]User
	byEmail map[string]string
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied users.
func NewMemoryStore(items []User) *MemoryStore {
	s := &MemoryStore{
		items:   make(map[string]User, len(items)),
		byEmail: make(map[string]string, len(items)),
	}
	for _, item := range items {
		s.items[item.ID] = item
		s.byEmail[NormalizeEmail(item.Email)] = item.ID
	}
	return s
}

func (s *MemoryStore) Create(_ context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := NormalizeEmail(u.Email)
	if _, ok := s.byEmail[email]; ok {
		return ErrEmailTaken
	}
	s.items[u.ID] = u
	s.byEmail[email] = u.ID
	return nil
}

// FindByID looks up a user by identifier.
func (s *MemoryStore) FindByID(_ context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.items[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *MemoryStore) FindByEmail(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return User{}, ErrNotFound
	}
	return s.items[id], nil
}

// ListByRole returns users of the given role ordered by creation time.
func (s *MemoryStore) ListByRole(_ context.Context, role Role) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]User, 0)
	for _, u := range s.items {
		if u.Role == role {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Update(_ context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[u.ID]; !ok {
		return ErrNotFound
	}
	s.items[u.ID] = u
	return nil
}
