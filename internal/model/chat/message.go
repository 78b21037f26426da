package chat

import (
	"fmt"
	"strings"
	"time"
)

// MessageType enumerates the kinds of content a message can carry.
type MessageType string

const (
	TypeText     MessageType = "text"
	TypeImage    MessageType = "image"
	TypeDocument MessageType = "document"
	TypeAudio    MessageType = "audio"
	TypeVoice    MessageType = "voice"
	TypeSticker  MessageType = "sticker"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case TypeText, TypeImage, TypeDocument, TypeAudio, TypeVoice, TypeSticker:
		return true
	}
	return false
}

// CarriesFile reports whether messages of type t transport an attachment.
func (t MessageType) CarriesFile() bool {
	switch t {
	case TypeImage, TypeDocument, TypeAudio, TypeVoice:
		return true
	}
	return false
}

// Reaction is one user's emoji on a message.
type Reaction struct {
	User  string `json:"user"`
	Emoji string `json:"emoji"`
}

// ReplyPreview is the thin projection of a quoted message.
type ReplyPreview struct {
	ID       string      `json:"id"`
	Content  string      `json:"content"`
	Type     MessageType `json:"type"`
	Sender   string      `json:"sender"`
	FileName string      `json:"fileName,omitempty"`
}

// Message is a persisted direct message between two users.
type Message struct {
	ID        string        `json:"id"`
	Sender    string        `json:"sender"`
	Receiver  string        `json:"receiver"`
	Content   string        `json:"content"`
	Type      MessageType   `json:"type"`
	FileData  string        `json:"fileData,omitempty"`
	FileName  string        `json:"fileName,omitempty"`
	FileMime  string        `json:"fileMime,omitempty"`
	ReplyToID string        `json:"replyToId,omitempty"`
	ReplyTo   *ReplyPreview `json:"replyTo,omitempty"`
	Reactions []Reaction    `json:"reactions"`
	Read      bool          `json:"read"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Involves reports whether userID is the sender or the receiver.
func (m Message) Involves(userID string) bool {
	return userID != "" && (m.Sender == userID || m.Receiver == userID)
}

// Peer returns the other participant from userID's point of view.
func (m Message) Peer(userID string) string {
	if m.Sender == userID {
		return m.Receiver
	}
	return m.Sender
}

// Preview projects the message for use as a reply reference.
func (m Message) Preview() ReplyPreview {
	return ReplyPreview{
		ID:       m.ID,
		Content:  m.Content,
		Type:     m.Type,
		Sender:   m.Sender,
		FileName: m.FileName,
	}
}

// Clone returns a copy that shares no slices or pointers with m.
func (m Message) Clone() Message {
	m.Reactions = append(make([]Reaction, 0, len(m.Reactions)), m.Reactions...)
	if m.ReplyTo != nil {
		preview := *m.ReplyTo
		m.ReplyTo = &preview
	}
	return m
}

// Draft is an unsaved message as submitted by a client.
type Draft struct {
	Sender   string
	Receiver string
	Content  string
	Type     MessageType
	FileData string
	FileName string
	FileMime string
	ReplyTo  string
}

// Normalize trims identifiers and fills in defaults.
func (d *Draft) Normalize() {
	d.Sender = strings.TrimSpace(d.Sender)
	d.Receiver = strings.TrimSpace(d.Receiver)
	d.ReplyTo = strings.TrimSpace(d.ReplyTo)
	if d.Type == "" {
		d.Type = TypeText
	}
	if d.Type.CarriesFile() && strings.TrimSpace(d.Content) == "" {
		d.Content = d.FileName
	}
}

// Validate checks the draft against the message invariants. maxFileBytes
// bounds the encoded attachment; zero disables the check.
func (d Draft) Validate(maxFileBytes int) error {
	switch {
	case d.Sender == "":
		return fmt.Errorf("%w: sender is required", ErrInvalidMessage)
	case d.Receiver == "":
		return fmt.Errorf("%w: receiver is required", ErrInvalidMessage)
	case d.Sender == d.Receiver:
		return fmt.Errorf("%w: sender and receiver must differ", ErrInvalidMessage)
	case !d.Type.Valid():
		return fmt.Errorf("%w: unknown type %q", ErrInvalidMessage, d.Type)
	}

	if d.Type.CarriesFile() {
		if d.FileData == "" {
			return fmt.Errorf("%w: %s messages require fileData", ErrInvalidMessage, d.Type)
		}
	} else if strings.TrimSpace(d.Content) == "" {
		return fmt.Errorf("%w: content is required", ErrInvalidMessage)
	}

	if maxFileBytes > 0 && len(d.FileData) > maxFileBytes {
		return fmt.Errorf("%w: attachment exceeds %d bytes", ErrInvalidMessage, maxFileBytes)
	}
	return nil
}
