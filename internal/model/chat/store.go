package chat

import (
	"context"
	"sort"
	"sync"
)

// Store persists direct messages. Implementations return ErrMessageNotFound
// for unknown ids.
type Store interface {
	Create(ctx context.Context, msg Message) error
	Get(ctx context.Context, id string) (Message, error)
	// Conversation returns every message exchanged between a and b, oldest first.
	Conversation(ctx context.Context, a, b string) ([]Message, error)
	// UpdateReactions applies fn to the stored reactions atomically.
	UpdateReactions(ctx context.Context, id string, fn func([]Reaction) []Reaction) ([]Reaction, error)
	Delete(ctx context.Context, id string) error
	// MarkRead flags unread messages from sender to receiver and returns how many changed.
	MarkRead(ctx context.Context, sender, receiver string) (int64, error)
	// Peers lists the users that share at least one message with userID.
	Peers(ctx context.Context, userID string) ([]string, error)
}

// MemoryStore implements Store in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	messages map[string]Message
	order    []string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{messages: make(map[string]Message)}
}

func (s *MemoryStore) Create(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg = msg.Clone()
	msg.ReplyTo = nil
	s.messages[msg.ID] = msg
	s.order = append(s.order, msg.ID)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[id]
	if !ok {
		return Message{}, ErrMessageNotFound
	}
	return msg.Clone(), nil
}

func (s *MemoryStore) Conversation(_ context.Context, a, b string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Message, 0, 16)
	for _, id := range s.order {
		msg := s.messages[id]
		if (msg.Sender == a && msg.Receiver == b) || (msg.Sender == b && msg.Receiver == a) {
			out = append(out, msg.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) UpdateReactions(_ context.Context, id string, fn func([]Reaction) []Reaction) ([]Reaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return nil, ErrMessageNotFound
	}
	current := append([]Reaction(nil), msg.Reactions...)
	msg.Reactions = fn(current)
	s.messages[id] = msg
	return append(make([]Reaction, 0, len(msg.Reactions)), msg.Reactions...), nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[id]; !ok {
		return ErrMessageNotFound
	}
	delete(s.messages, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) MarkRead(_ context.Context, sender, receiver string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var updated int64
	for id, msg := range s.messages {
		if msg.Sender == sender && msg.Receiver == receiver && !msg.Read {
			msg.Read = true
			s.messages[id] = msg
			updated++
		}
	}
	return updated, nil
}

func (s *MemoryStore) Peers(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	peers := make([]string, 0)
	for _, id := range s.order {
		msg := s.messages[id]
		if !msg.Involves(userID) {
			continue
		}
		peer := msg.Peer(userID)
		if _, ok := seen[peer]; ok {
			continue
		}
		seen[peer] = struct{}{}
		peers = append(peers, peer)
	}
	return peers, nil
}
