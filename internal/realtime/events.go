package realtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mentormatch/backend/internal/model/chat"
)

// Event names carried in Envelope.Event.
const (
	EventJoinRoom        = "join_room"
	EventJoined          = "joined"
	EventSendMessage     = "send_message"
	EventReceiveMessage  = "receive_message"
	EventMessageAck      = "message_ack"
	EventTyping          = "typing"
	EventStopTyping      = "stop_typing"
	EventUserStatus      = "user_status"
	EventMessageReaction = "message_reaction"
	EventMessageDeleted  = "message_deleted"
	EventError           = "error"
)

var ErrMalformedPayload = errors.New("malformed payload")

// Envelope is an outbound frame.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Inbound is a frame received from a client; Data is decoded per event.
type Inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// JoinRoom accepts either a bare user id string or {userId, token}.
type JoinRoom struct {
	UserID string `json:"userId"`
	Token  string `json:"token,omitempty"`
}

func (j *JoinRoom) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		*j = JoinRoom{}
		return json.Unmarshal(trimmed, &j.UserID)
	}
	type plain JoinRoom
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return err
	}
	*j = JoinRoom(p)
	return nil
}

type Joined struct {
	UserID string `json:"userId"`
}

// SendMessage is the send_message payload.
type SendMessage struct {
	ClientID string           `json:"clientId,omitempty"`
	Sender   string           `json:"sender"`
	Receiver string           `json:"receiver"`
	Content  string           `json:"content"`
	Type     chat.MessageType `json:"type"`
	FileData string           `json:"fileData,omitempty"`
	FileName string           `json:"fileName,omitempty"`
	FileMime string           `json:"fileMime,omitempty"`
	ReplyTo  string           `json:"replyTo,omitempty"`
}

// Draft converts the payload into a message draft.
func (m SendMessage) Draft() chat.Draft {
	return chat.Draft{
		Sender:   m.Sender,
		Receiver: m.Receiver,
		Content:  m.Content,
		Type:     m.Type,
		FileData: m.FileData,
		FileName: m.FileName,
		FileMime: m.FileMime,
		ReplyTo:  m.ReplyTo,
	}
}

type MessageAck struct {
	ClientID  string `json:"clientId,omitempty"`
	OK        bool   `json:"ok"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

type TypingRequest struct {
	To string `json:"to"`
}

type TypingNotice struct {
	From string `json:"from"`
}

type UserStatus struct {
	UserID string `json:"userId"`
	Online bool   `json:"online"`
}

// ReactionNotice is the message_reaction payload in both directions.
type ReactionNotice struct {
	MessageID  string          `json:"messageId"`
	Reactions  []chat.Reaction `json:"reactions"`
	ReceiverID string          `json:"receiverId"`
}

// DeletionNotice is the message_deleted payload in both directions.
type DeletionNotice struct {
	MessageID  string `json:"messageId"`
	ReceiverID string `json:"receiverId"`
}

type ErrorNotice struct {
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
}

func decode(raw json.RawMessage, v any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return fmt.Errorf("%w: data is required", ErrMalformedPayload)
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}
