package request

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("connection request not found")
	ErrExists   = errors.New("connection request already exists")
)

// Status is the lifecycle of a connection request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// Answer reports whether s is a valid reply from the receiver.
func (s Status) Answer() bool {
	return s == StatusAccepted || s == StatusRejected
}

// Request asks Receiver to connect with Sender. At most one request exists
// per pair of users, whichever side sent it.
type Request struct {
	ID        string
	Sender    string
	Receiver  string
	Status    Status
	Message   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Involves reports whether userID is one of the two parties.
func (r Request) Involves(userID string) bool {
	return r.Sender == userID || r.Receiver == userID
}

// PairKey identifies the unordered pair {a, b}.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}
