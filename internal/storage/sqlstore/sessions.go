package sqlstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/mentormatch/backend/internal/model/session"
)

type sessionRecord struct {
	ID              string    `gorm:"primaryKey;size:36"`
	Mentor          string    `gorm:"size:64;not null;index"`
	Mentee          string    `gorm:"size:64;not null;index"`
	Date            time.Time `gorm:"column:scheduled_at;not null;index"`
	DurationMinutes int       `gorm:"not null"`
	Status          string    `gorm:"size:16;not null"`
	MeetingLink     string    `gorm:"size:512"`
	Topic           string    `gorm:"size:255"`
	Notes           string    `gorm:"type:text"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (sessionRecord) TableName() string { return "mentor_sessions" }

func newSessionRecord(s session.Session) sessionRecord {
	return sessionRecord{
		ID:              s.ID,
		Mentor:          s.Mentor,
		Mentee:          s.Mentee,
		Date:            s.Date.UTC(),
		DurationMinutes: int(s.Duration / time.Minute),
		Status:          string(s.Status),
		MeetingLink:     s.MeetingLink,
		Topic:           s.Topic,
		Notes:           s.Notes,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

func (r sessionRecord) toSession() session.Session {
	return session.Session{
		ID:          r.ID,
		Mentor:      r.Mentor,
		Mentee:      r.Mentee,
		Date:        r.Date.UTC(),
		Duration:    time.Duration(r.DurationMinutes) * time.Minute,
		Status:      session.Status(r.Status),
		MeetingLink: r.MeetingLink,
		Topic:       r.Topic,
		Notes:       r.Notes,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

// SessionStore implements session.Store on top of gorm.
type SessionStore struct {
	db *gorm.DB
}

func NewSessionStore(db *gorm.DB) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) Create(ctx context.Context, item session.Session) error {
	record := newSessionRecord(item)
	return s.db.WithContext(ctx).Create(&record).Error
}

func (s *SessionStore) Get(ctx context.Context, id string) (session.Session, error) {
	var record sessionRecord
	err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return session.Session{}, session.ErrNotFound
	}
	if err != nil {
		return session.Session{}, err
	}
	return record.toSession(), nil
}

func (s *SessionStore) ListFor(ctx context.Context, userID string) ([]session.Session, error) {
	var records []sessionRecord
	err := s.db.WithContext(ctx).
		Where("mentor = ? OR mentee = ?", userID, userID).
		Order("scheduled_at ASC, id ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	out := make([]session.Session, 0, len(records))
	for _, record := range records {
		out = append(out, record.toSession())
	}
	return out, nil
}

func (s *SessionStore) Update(ctx context.Context, item session.Session) error {
	record := newSessionRecord(item)
	result := s.db.WithContext(ctx).Model(&sessionRecord{}).Where("id = ?", item.ID).
		Select("Status", "MeetingLink", "UpdatedAt").
		Updates(&record)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return session.ErrNotFound
	}
	return nil
}
