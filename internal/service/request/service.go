package request

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mentormatch/backend/internal/logger"
	"github.com/mentormatch/backend/internal/model/request"
	"github.com/mentormatch/backend/internal/model/user"
)

const maxMessageRunes = 1000

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("not authorized")
)

// Directory resolves the users a request refers to.
type Directory interface {
	Get(ctx context.Context, id string) (user.User, error)
	Summaries(ctx context.Context, ids ...string) (map[string]user.Summary, error)
}

// View is a request with both parties expanded.
type View struct {
	ID        string         `json:"id"`
	Sender    user.Summary   `json:"sender"`
	Receiver  user.Summary   `json:"receiver"`
	Status    request.Status `json:"status"`
	Message   string         `json:"message,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Service 处理导师与学员之间的连接请求。
type Service struct {
	store request.Store
	users Directory
	now   func() time.Time
	log   *zap.Logger
}

func NewService(store request.Store, users Directory, log *zap.Logger) *Service {
	return &Service{
		store: store,
		users: users,
		now:   time.Now,
		log:   logger.OrNop(log),
	}
}

// Send creates a pending request from sender to receiver.
func (s *Service) Send(ctx context.Context, sender, receiver, message string) (View, error) {
	receiver = strings.TrimSpace(receiver)
	message = strings.TrimSpace(message)
	switch {
	case receiver == "":
		return View{}, fmt.Errorf("%w: receiverId is required", ErrInvalidInput)
	case receiver == sender:
		return View{}, fmt.Errorf("%w: cannot send a request to yourself", ErrInvalidInput)
	case utf8.RuneCountInString(message) > maxMessageRunes:
		return View{}, fmt.Errorf("%w: message is limited to %d characters", ErrInvalidInput, maxMessageRunes)
	}

	if _, err := s.users.Get(ctx, receiver); err != nil {
		return View{}, err
	}

	now := s.now().UTC()
	r := request.Request{
		ID:        uuid.NewString(),
		Sender:    sender,
		Receiver:  receiver,
		Status:    request.StatusPending,
		Message:   message,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, r); err != nil {
		return View{}, err
	}

	s.log.Info("request_sent", zap.String("request_id", r.ID), zap.String("sender", sender), zap.String("receiver", receiver))
	views, err := s.expand(ctx, r)
	if err != nil {
		return View{}, err
	}
	return views[0], nil
}

// List returns the requests userID sent or received, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]View, error) {
	items, err := s.store.ListFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.expand(ctx, items...)
}

// Respond lets the receiver accept or reject a request.
func (s *Service) Respond(ctx context.Context, id, userID string, status request.Status) (View, error) {
	if !status.Answer() {
		return View{}, fmt.Errorf("%w: status must be accepted or rejected", ErrInvalidInput)
	}

	r, err := s.store.Get(ctx, id)
	if err != nil {
		return View{}, err
	}
	if r.Receiver != userID {
		return View{}, ErrForbidden
	}

	r, err = s.store.UpdateStatus(ctx, id, status, s.now().UTC())
	if err != nil {
		return View{}, err
	}

	s.log.Info("request_answered", zap.String("request_id", id), zap.String("status", string(status)))
	views, err := s.expand(ctx, r)
	if err != nil {
		return View{}, err
	}
	return views[0], nil
}

// Connected reports whether a and b share an accepted request.
func (s *Service) Connected(ctx context.Context, a, b string) (bool, error) {
	r, err := s.store.FindPair(ctx, a, b)
	if errors.Is(err, request.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return r.Status == request.StatusAccepted, nil
}

func (s *Service) expand(ctx context.Context, items ...request.Request) ([]View, error) {
	ids := make([]string, 0, 2*len(items))
	for _, r := range items {
		ids = append(ids, r.Sender, r.Receiver)
	}
	people, err := s.users.Summaries(ctx, ids...)
	if err != nil {
		return nil, err
	}

	views := make([]View, 0, len(items))
	for _, r := range items {
		views = append(views, View{
			ID:        r.ID,
			Sender:    people[r.Sender],
			Receiver:  people[r.Receiver],
			Status:    r.Status,
			Message:   r.Message,
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		})
	}
	return views, nil
}
