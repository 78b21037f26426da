package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mentormatch/backend/internal/logger"
	"github.com/mentormatch/backend/internal/model/session"
	"github.com/mentormatch/backend/internal/model/user"
)

const maxDuration = 8 * time.Hour

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("not authorized")
)

// Directory resolves the users a session refers to.
type Directory interface {
	Get(ctx context.Context, id string) (user.User, error)
	Summaries(ctx context.Context, ids ...string) (map[string]user.Summary, error)
}

// Booking is the input for a new session. Duration is in minutes.
type Booking struct {
	MentorID string    `json:"mentorId"`
	MenteeID string    `json:"menteeId"`
	Date     time.Time `json:"date"`
	Duration int       `json:"duration"`
	Topic    string    `json:"topic"`
	Notes    string    `json:"notes"`
}

// Changes carries the fields a participant may edit; nil keeps the value.
type Changes struct {
	Status      *session.Status `json:"status"`
	MeetingLink *string         `json:"meetingLink"`
}

// View is a session with both participants expanded.
type View struct {
	ID          string         `json:"id"`
	Mentor      user.Summary   `json:"mentor"`
	Mentee      user.Summary   `json:"mentee"`
	Date        time.Time      `json:"date"`
	Duration    int            `json:"duration"`
	Status      session.Status `json:"status"`
	MeetingLink string         `json:"meetingLink,omitempty"`
	Topic       string         `json:"topic,omitempty"`
	Notes       string         `json:"notes,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// Service 负责预约辅导时段。
type Service struct {
	store session.Store
	users Directory
	now   func() time.Time
	log   *zap.Logger
}

func NewService(store session.Store, users Directory, log *zap.Logger) *Service {
	return &Service{
		store: store,
		users: users,
		now:   time.Now,
		log:   logger.OrNop(log),
	}
}

// Book schedules a session. The caller must be the mentor or the mentee.
func (s *Service) Book(ctx context.Context, caller string, b Booking) (View, error) {
	b.MentorID = strings.TrimSpace(b.MentorID)
	b.MenteeID = strings.TrimSpace(b.MenteeID)
	duration := time.Duration(b.Duration) * time.Minute
	if b.Duration == 0 {
		duration = session.DefaultDuration
	}
	switch {
	case b.MentorID == "" || b.MenteeID == "":
		return View{}, fmt.Errorf("%w: mentorId and menteeId are required", ErrInvalidInput)
	case b.MentorID == b.MenteeID:
		return View{}, fmt.Errorf("%w: mentor and mentee must differ", ErrInvalidInput)
	case b.Date.IsZero():
		return View{}, fmt.Errorf("%w: date is required", ErrInvalidInput)
	case duration <= 0 || duration > maxDuration:
		return View{}, fmt.Errorf("%w: duration must be between 1 and %d minutes", ErrInvalidInput, int(maxDuration/time.Minute))
	}
	if caller != b.MentorID && caller != b.MenteeID {
		return View{}, ErrForbidden
	}

	mentor, err := s.users.Get(ctx, b.MentorID)
	if err != nil {
		return View{}, err
	}
	mentee, err := s.users.Get(ctx, b.MenteeID)
	if err != nil {
		return View{}, err
	}
	if mentor.Role != user.RoleMentor || mentee.Role != user.RoleMentee {
		return View{}, fmt.Errorf("%w: mentorId must be a mentor and menteeId a mentee", ErrInvalidInput)
	}

	now := s.now().UTC()
	item := session.Session{
		ID:        uuid.NewString(),
		Mentor:    b.MentorID,
		Mentee:    b.MenteeID,
		Date:      b.Date.UTC(),
		Duration:  duration,
		Status:    session.StatusScheduled,
		Topic:     strings.TrimSpace(b.Topic),
		Notes:     strings.TrimSpace(b.Notes),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, item); err != nil {
		return View{}, err
	}

	s.log.Info("session_booked",
		zap.String("session_id", item.ID),
		zap.String("mentor", item.Mentor),
		zap.String("mentee", item.Mentee),
		zap.Time("date", item.Date),
	)
	views, err := s.expand(ctx, item)
	if err != nil {
		return View{}, err
	}
	return views[0], nil
}

// List returns the sessions userID takes part in, earliest first.
func (s *Service) List(ctx context.Context, userID string) ([]View, error) {
	items, err := s.store.ListFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.expand(ctx, items...)
}

// Update changes status or meeting link. Only participants may do so.
func (s *Service) Update(ctx context.Context, id, userID string, c Changes) (View, error) {
	item, err := s.store.Get(ctx, id)
	if err != nil {
		return View{}, err
	}
	if !item.Involves(userID) {
		return View{}, ErrForbidden
	}

	if c.Status != nil {
		if !c.Status.Valid() {
			return View{}, fmt.Errorf("%w: status must be scheduled, completed or cancelled", ErrInvalidInput)
		}
		item.Status = *c.Status
	}
	if c.MeetingLink != nil {
		link := strings.TrimSpace(*c.MeetingLink)
		if link != "" && !validLink(link) {
			return View{}, fmt.Errorf("%w: meetingLink must be an http(s) URL", ErrInvalidInput)
		}
		item.MeetingLink = link
	}
	item.UpdatedAt = s.now().UTC()

	if err := s.store.Update(ctx, item); err != nil {
		return View{}, err
	}
	views, err := s.expand(ctx, item)
	if err != nil {
		return View{}, err
	}
	return views[0], nil
}

func (s *Service) expand(ctx context.Context, items ...session.Session) ([]View, error) {
	ids := make([]string, 0, 2*len(items))
	for _, item := range items {
		ids = append(ids, item.Mentor, item.Mentee)
	}
	people, err := s.users.Summaries(ctx, ids...)
	if err != nil {
		return nil, err
	}

	views := make([]View, 0, len(items))
	for _, item := range items {
		views = append(views, View{
			ID:          item.ID,
			Mentor:      people[item.Mentor],
			Mentee:      people[item.Mentee],
			Date:        item.Date,
			Duration:    int(item.Duration / time.Minute),
			Status:      item.Status,
			MeetingLink: item.MeetingLink,
			Topic:       item.Topic,
			Notes:       item.Notes,
			CreatedAt:   item.CreatedAt,
			UpdatedAt:   item.UpdatedAt,
		})
	}
	return views, nil
}

func validLink(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
