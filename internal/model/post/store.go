package post

import (
	"context"
	"sort"
	"sync"
)

// Store persists forum posts with their comments.
type Store interface {
	Create(ctx context.Context, p Post) error
	Get(ctx context.Context, id string) (Post, error)
	// List returns every post, newest first.
	List(ctx context.Context) ([]Post, error)
	// AddComment prepends c and returns the comments, newest first.
	AddComment(ctx context.Context, postID string, c Comment) ([]Comment, error)
	// UpdateLikes applies fn to the stored likes atomically.
	UpdateLikes(ctx context.Context, postID string, fn func([]string) []string) ([]string, error)
}

// MemoryStore implements Store in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]Post
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]Post)}
}

func (s *MemoryStore) Create(_ context.Context, p Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[p.ID] = p.Clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.items[id]
	if !ok {
		return Post{}, ErrNotFound
	}
	return p.Clone(), nil
}

func (s *MemoryStore) List(_ context.Context) ([]Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Post, 0, len(s.items))
	for _, p := range s.items {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) AddComment(_ context.Context, postID string, c Comment) ([]Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.items[postID]
	if !ok {
		return nil, ErrNotFound
	}
	p.Comments = append([]Comment{c}, p.Comments...)
	s.items[postID] = p
	return append([]Comment{}, p.Comments...), nil
}

func (s *MemoryStore) UpdateLikes(_ context.Context, postID string, fn func([]string) []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.items[postID]
	if !ok {
		return nil, ErrNotFound
	}
	p.Likes = fn(append([]string{}, p.Likes...))
	s.items[postID] = p
	return append([]string{}, p.Likes...), nil
}
