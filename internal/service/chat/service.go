package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/mentormatch/backend/internal/logger"
	"github.com/mentormatch/backend/internal/metrics"
	"github.com/mentormatch/backend/internal/model/chat"
)

const (
	maxEmojiRunes       = 16
	removedMessagesKept = 4096
)

// UserDirectory answers whether a user id is registered.
type UserDirectory interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// ConnectionChecker reports whether two users have an accepted connection.
type ConnectionChecker interface {
	Connected(ctx context.Context, a, b string) (bool, error)
}

// Option customises a Service.
type Option func(*Service)

// WithUserDirectory makes Send reject unknown senders and receivers.
func WithUserDirectory(users UserDirectory) Option {
	return func(s *Service) { s.users = users }
}

// WithConnectionPolicy makes Send require an accepted connection request
// between sender and receiver.
func WithConnectionPolicy(connections ConnectionChecker) Option {
	return func(s *Service) { s.connections = connections }
}

// WithMaxFileBytes bounds the encoded attachment size.
func WithMaxFileBytes(n int) Option {
	return func(s *Service) { s.maxFileBytes = n }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the service logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Service) { s.log = log }
}

// Service encapsulates direct message persistence.
type Service struct {
	store        chat.Store
	users        UserDirectory
	connections  ConnectionChecker
	maxFileBytes int
	senders      *keyedMutex
	removed      *lru.Cache[string, chat.Message]
	now          func() time.Time
	log          *zap.Logger
}

// NewService wires the message service over a store.
func NewService(store chat.Store, opts ...Option) *Service {
	// lru.New only fails for a non-positive size.
	removed, _ := lru.New[string, chat.Message](removedMessagesKept)
	s := &Service{
		store:   store,
		senders: newKeyedMutex(),
		removed: removed,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.OrNop(s.log)
	return s
}

// Send validates and persists a draft. Sends from the same sender are
// persisted one at a time, in the order they acquire the sender's lock.
func (s *Service) Send(ctx context.Context, draft chat.Draft) (chat.Message, error) {
	return s.SendThen(ctx, draft, nil)
}

// SendThen is Send with a hook that runs on the stored message before the
// sender's lock is released. Fan-out placed in then is ordered the same way
// as persistence across all of the sender's connections.
func (s *Service) SendThen(ctx context.Context, draft chat.Draft, then func(chat.Message)) (chat.Message, error) {
	draft.Normalize()
	if err := draft.Validate(s.maxFileBytes); err != nil {
		return chat.Message{}, err
	}

	unlock := s.senders.Lock(draft.Sender)
	defer unlock()

	if err := s.ensureUsers(ctx, draft.Sender, draft.Receiver); err != nil {
		return chat.Message{}, err
	}
	if err := s.ensureConnected(ctx, draft.Sender, draft.Receiver); err != nil {
		return chat.Message{}, err
	}

	msg := chat.Message{
		ID:        uuid.NewString(),
		Sender:    draft.Sender,
		Receiver:  draft.Receiver,
		Content:   draft.Content,
		Type:      draft.Type,
		FileData:  draft.FileData,
		FileName:  draft.FileName,
		FileMime:  draft.FileMime,
		ReplyToID: draft.ReplyTo,
		Reactions: []chat.Reaction{},
		CreatedAt: s.now().UTC(),
	}

	if draft.ReplyTo != "" {
		target, err := s.store.Get(ctx, draft.ReplyTo)
		if errors.Is(err, chat.ErrMessageNotFound) {
			return chat.Message{}, chat.ErrReplyNotFound
		}
		if err != nil {
			return chat.Message{}, fmt.Errorf("load reply target: %w", err)
		}
		if !target.Involves(msg.Sender) || !target.Involves(msg.Receiver) {
			return chat.Message{}, chat.ErrReplyNotFound
		}
		preview := target.Preview()
		msg.ReplyTo = &preview
	}

	if err := s.store.Create(ctx, msg); err != nil {
		metrics.MessagesPersisted.WithLabelValues("failed").Inc()
		return chat.Message{}, fmt.Errorf("persist message: %w", err)
	}

	metrics.MessagesPersisted.WithLabelValues("ok").Inc()
	s.log.Debug("message_persisted",
		zap.String("message_id", msg.ID),
		zap.String("sender", msg.Sender),
		zap.String("receiver", msg.Receiver),
		zap.String("type", string(msg.Type)),
	)
	if then != nil {
		then(msg)
	}
	return msg, nil
}

// History returns the conversation between userID and peerID, oldest first,
// with reply previews resolved. Replies to deleted messages carry no preview.
func (s *Service) History(ctx context.Context, userID, peerID string) ([]chat.Message, error) {
	messages, err := s.store.Conversation(ctx, userID, peerID)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}

	byID := make(map[string]chat.Message, len(messages))
	for _, msg := range messages {
		byID[msg.ID] = msg
	}
	for i := range messages {
		if messages[i].Reactions == nil {
			messages[i].Reactions = []chat.Reaction{}
		}
		messages[i].ReplyTo = nil
		if target, ok := byID[messages[i].ReplyToID]; ok && messages[i].ReplyToID != "" {
			preview := target.Preview()
			messages[i].ReplyTo = &preview
		}
	}
	return messages, nil
}

// Get returns a single message.
func (s *Service) Get(ctx context.Context, id string) (chat.Message, error) {
	return s.store.Get(ctx, id)
}

// React toggles userID's emoji on the message and returns the stored list.
func (s *Service) React(ctx context.Context, messageID, userID, emoji string) ([]chat.Reaction, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" || utf8.RuneCountInString(emoji) > maxEmojiRunes {
		return nil, chat.ErrInvalidReaction
	}

	msg, err := s.store.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if !msg.Involves(userID) {
		return nil, chat.ErrNotParticipant
	}

	reactions, err := s.store.UpdateReactions(ctx, messageID, func(current []chat.Reaction) []chat.Reaction {
		return chat.ToggleReaction(current, userID, emoji)
	})
	if err != nil {
		return nil, err
	}
	if reactions == nil {
		reactions = []chat.Reaction{}
	}
	return reactions, nil
}

// Delete removes a message on behalf of its sender and returns what was removed.
func (s *Service) Delete(ctx context.Context, messageID, userID string) (chat.Message, error) {
	msg, err := s.store.Get(ctx, messageID)
	if err != nil {
		return chat.Message{}, err
	}
	if msg.Sender != userID {
		return chat.Message{}, chat.ErrNotSender
	}
	if err := s.store.Delete(ctx, messageID); err != nil {
		return chat.Message{}, err
	}
	s.removed.Add(msg.ID, msg.Clone())
	return msg, nil
}

// Deleted returns a message recently removed through Delete. Only the most
// recent removals are remembered; older ids report ErrMessageNotFound.
func (s *Service) Deleted(_ context.Context, messageID string) (chat.Message, error) {
	msg, ok := s.removed.Get(messageID)
	if !ok {
		return chat.Message{}, chat.ErrMessageNotFound
	}
	return msg.Clone(), nil
}

// MarkRead flags every unread message from peerID to readerID as read.
func (s *Service) MarkRead(ctx context.Context, readerID, peerID string) (int64, error) {
	if readerID == "" || peerID == "" {
		return 0, fmt.Errorf("%w: both participants are required", chat.ErrInvalidMessage)
	}
	return s.store.MarkRead(ctx, peerID, readerID)
}

// Peers lists users that share a conversation with userID.
func (s *Service) Peers(ctx context.Context, userID string) ([]string, error) {
	return s.store.Peers(ctx, userID)
}

func (s *Service) ensureConnected(ctx context.Context, sender, receiver string) error {
	if s.connections == nil {
		return nil
	}
	ok, err := s.connections.Connected(ctx, sender, receiver)
	if err != nil {
		return fmt.Errorf("lookup connection: %w", err)
	}
	if !ok {
		return chat.ErrNotConnected
	}
	return nil
}

func (s *Service) ensureUsers(ctx context.Context, ids ...string) error {
	if s.users == nil {
		return nil
	}
	for _, id := range ids {
		ok, err := s.users.Exists(ctx, id)
		if err != nil {
			return fmt.Errorf("lookup user: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: %s", chat.ErrUnknownUser, id)
		}
	}
	return nil
}
