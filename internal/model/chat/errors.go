package chat

import "errors"

var (
	ErrInvalidMessage  = errors.New("invalid message")
	ErrMessageNotFound = errors.New("message not found")
	ErrUnknownUser     = errors.New("unknown user")
	ErrReplyNotFound   = errors.New("reply target not found in this conversation")
	ErrNotSender       = errors.New("only the sender may delete a message")
	ErrNotParticipant  = errors.New("user is not part of this conversation")
	ErrInvalidReaction = errors.New("invalid reaction")
	ErrNotConnected    = errors.New("users are not connected")
)
