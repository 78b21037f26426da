package session

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("session not found")

// DefaultDuration is used when a booking leaves the length unset.
const DefaultDuration = 60 * time.Minute

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Session is a booked meeting between a mentor and a mentee.
type Session struct {
	ID          string
	Mentor      string
	Mentee      string
	Date        time.Time
	Duration    time.Duration
	Status      Status
	MeetingLink string
	Topic       string
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Involves reports whether userID is the mentor or the mentee.
func (s Session) Involves(userID string) bool {
	return s.Mentor == userID || s.Mentee == userID
}
