package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mentormatch/backend/internal/logger"
	"github.com/mentormatch/backend/internal/metrics"
	"github.com/mentormatch/backend/internal/model/chat"
)

var ErrSessionClosed = errors.New("session closed")

const (
	PresenceScopeAll   = "all"
	PresenceScopePeers = "peers"
)

// MessageService is the persistence collaborator used by the dispatcher.
// SendThen runs then on the stored message while the sender's later sends
// are held back, so fan-out keeps the order messages were persisted in.
type MessageService interface {
	SendThen(ctx context.Context, draft chat.Draft, then func(chat.Message)) (chat.Message, error)
	Get(ctx context.Context, id string) (chat.Message, error)
	Deleted(ctx context.Context, id string) (chat.Message, error)
	Peers(ctx context.Context, userID string) ([]string, error)
}

// IdentityVerifier resolves a join token to the user id it was issued for.
type IdentityVerifier interface {
	VerifyIdentity(token string) (string, error)
}

// Options tunes the dispatcher.
type Options struct {
	RequireToken  bool
	PresenceScope string
	RateRPS       float64
	RateBurst     int
}

// SessionState is the lifecycle of one connection.
type SessionState int

const (
	StateUnidentified SessionState = iota
	StateIdentified
	StateDisconnected
)

func (s SessionState) String() string {
	switch s {
	case StateUnidentified:
		return "unidentified"
	case StateIdentified:
		return "identified"
	case StateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// Session is the dispatcher's per-connection state. It is owned by the
// connection's read goroutine.
type Session struct {
	connID  string
	state   SessionState
	userID  string
	limiter *rate.Limiter
}

func (s *Session) ConnID() string      { return s.connID }
func (s *Session) UserID() string      { return s.userID }
func (s *Session) State() SessionState { return s.state }

// Dispatcher interprets inbound events, persists through the message
// service and fans out through the Hub.
type Dispatcher struct {
	hub      *Hub
	messages MessageService
	verifier IdentityVerifier
	opts     Options
	log      *zap.Logger
}

func NewDispatcher(hub *Hub, messages MessageService, verifier IdentityVerifier, opts Options, log *zap.Logger) *Dispatcher {
	if opts.PresenceScope == "" {
		opts.PresenceScope = PresenceScopeAll
	}
	return &Dispatcher{
		hub:      hub,
		messages: messages,
		verifier: verifier,
		opts:     opts,
		log:      logger.OrNop(log),
	}
}

// Open registers a new connection and returns its session.
func (d *Dispatcher) Open(sink Sink) *Session {
	s := &Session{connID: sink.ID(), state: StateUnidentified}
	if d.opts.RateRPS > 0 {
		burst := d.opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(d.opts.RateRPS), burst)
	}
	d.hub.Attach(sink)
	return s
}

// Identify announces an already authenticated identity for the session.
func (d *Dispatcher) Identify(ctx context.Context, s *Session, userID string) error {
	if s.state == StateDisconnected {
		return ErrSessionClosed
	}
	first, err := d.hub.Announce(s.connID, userID)
	if err != nil {
		return err
	}
	s.state = StateIdentified
	s.userID = userID

	d.hub.Send(s.connID, Envelope{Event: EventJoined, Data: Joined{UserID: userID}})
	if first {
		d.broadcastPresence(ctx, s, true)
	}
	d.log.Debug("session_identified", zap.String("conn_id", s.connID), zap.String("user_id", userID), zap.Bool("first", first))
	return nil
}

// HandleFrame decodes a raw frame and dispatches it.
func (d *Dispatcher) HandleFrame(ctx context.Context, s *Session, frame []byte) {
	var in Inbound
	if err := json.Unmarshal(frame, &in); err != nil {
		d.reject(s, "", "malformed envelope")
		return
	}
	d.Handle(ctx, s, in)
}

// Handle dispatches one inbound event.
func (d *Dispatcher) Handle(ctx context.Context, s *Session, in Inbound) {
	if s.state == StateDisconnected {
		return
	}
	if s.limiter != nil && !s.limiter.Allow() {
		d.reject(s, in.Event, "rate limited")
		return
	}

	switch in.Event {
	case EventJoinRoom:
		d.handleJoin(ctx, s, in.Data)
	case EventSendMessage:
		d.handleSend(ctx, s, in.Data)
	case EventTyping, EventStopTyping:
		d.handleTyping(s, in.Event, in.Data)
	case EventMessageReaction:
		d.handleReaction(ctx, s, in.Data)
	case EventMessageDeleted:
		d.handleDeletion(ctx, s, in.Data)
	default:
		metrics.Events.WithLabelValues("unknown", "rejected").Inc()
		d.hub.Send(s.connID, Envelope{Event: EventError, Data: ErrorNotice{Event: in.Event, Message: "unsupported event"}})
	}
}

// Close releases the connection and announces the user offline when this
// was their last connection. It is idempotent.
func (d *Dispatcher) Close(ctx context.Context, s *Session) {
	if s.state == StateDisconnected {
		return
	}
	wasIdentified := s.state == StateIdentified
	s.state = StateDisconnected

	userID, last := d.hub.Detach(s.connID)
	if wasIdentified && userID != "" && last {
		d.broadcastPresence(ctx, s, false)
	}
}

func (d *Dispatcher) handleJoin(ctx context.Context, s *Session, raw json.RawMessage) {
	var req JoinRoom
	if err := decode(raw, &req); err != nil {
		d.reject(s, EventJoinRoom, err.Error())
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		d.reject(s, EventJoinRoom, "userId is required")
		return
	}

	if d.opts.RequireToken {
		if d.verifier == nil {
			d.reject(s, EventJoinRoom, "identity verification unavailable")
			return
		}
		if req.Token == "" {
			d.reject(s, EventJoinRoom, "token is required")
			return
		}
		subject, err := d.verifier.VerifyIdentity(req.Token)
		if err != nil {
			d.reject(s, EventJoinRoom, "invalid token")
			return
		}
		if subject != req.UserID {
			d.reject(s, EventJoinRoom, "token does not match userId")
			return
		}
	}

	if err := d.Identify(ctx, s, req.UserID); err != nil {
		d.reject(s, EventJoinRoom, err.Error())
		return
	}
	d.observe(EventJoinRoom, "ok")
}

func (d *Dispatcher) handleSend(ctx context.Context, s *Session, raw json.RawMessage) {
	if s.state != StateIdentified {
		d.reject(s, EventSendMessage, "join_room first")
		return
	}

	var req SendMessage
	if err := decode(raw, &req); err != nil {
		d.reject(s, EventSendMessage, err.Error())
		return
	}
	if req.Sender == "" {
		req.Sender = s.userID
	}
	if req.Sender != s.userID {
		d.ack(s, req.ClientID, "", "sender does not match joined user")
		d.observe(EventSendMessage, "rejected")
		return
	}

	msg, err := d.messages.SendThen(ctx, req.Draft(), func(msg chat.Message) {
		env := Envelope{Event: EventReceiveMessage, Data: msg}
		d.hub.Broadcast(msg.Sender, env)
		d.hub.Broadcast(msg.Receiver, env)
	})
	if err != nil {
		if isClientError(err) {
			d.ack(s, req.ClientID, "", err.Error())
			d.observe(EventSendMessage, "rejected")
			return
		}
		d.log.Error("message_persist_failed",
			zap.String("sender", req.Sender),
			zap.String("receiver", req.Receiver),
			zap.Error(err),
		)
		d.ack(s, req.ClientID, "", "failed to persist message")
		d.observe(EventSendMessage, "failed")
		return
	}

	d.ack(s, req.ClientID, msg.ID, "")
	d.observe(EventSendMessage, "ok")
}

func (d *Dispatcher) handleTyping(s *Session, event string, raw json.RawMessage) {
	if s.state != StateIdentified {
		return
	}

	var req TypingRequest
	if err := decode(raw, &req); err != nil {
		d.reject(s, event, err.Error())
		return
	}
	req.To = strings.TrimSpace(req.To)
	if req.To == "" {
		d.reject(s, event, "to is required")
		return
	}

	d.hub.Broadcast(req.To, Envelope{Event: event, Data: TypingNotice{From: s.userID}})
	d.observe(event, "ok")
}

func (d *Dispatcher) handleReaction(ctx context.Context, s *Session, raw json.RawMessage) {
	if s.state != StateIdentified {
		d.reject(s, EventMessageReaction, "join_room first")
		return
	}

	var req ReactionNotice
	if err := decode(raw, &req); err != nil {
		d.reject(s, EventMessageReaction, err.Error())
		return
	}
	if req.MessageID == "" {
		d.reject(s, EventMessageReaction, "messageId is required")
		return
	}

	msg, err := d.messages.Get(ctx, req.MessageID)
	if errors.Is(err, chat.ErrMessageNotFound) {
		d.reject(s, EventMessageReaction, "message not found")
		return
	}
	if err != nil {
		d.log.Error("reaction_lookup_failed", zap.String("message_id", req.MessageID), zap.Error(err))
		d.reject(s, EventMessageReaction, "failed to load message")
		return
	}
	if !msg.Involves(s.userID) {
		d.reject(s, EventMessageReaction, chat.ErrNotParticipant.Error())
		return
	}

	peer := msg.Peer(s.userID)
	d.hub.Broadcast(peer, Envelope{Event: EventMessageReaction, Data: ReactionNotice{
		MessageID:  msg.ID,
		Reactions:  msg.Reactions,
		ReceiverID: peer,
	}})
	d.observe(EventMessageReaction, "ok")
}

func (d *Dispatcher) handleDeletion(ctx context.Context, s *Session, raw json.RawMessage) {
	if s.state != StateIdentified {
		d.reject(s, EventMessageDeleted, "join_room first")
		return
	}

	var req DeletionNotice
	if err := decode(raw, &req); err != nil {
		d.reject(s, EventMessageDeleted, err.Error())
		return
	}
	if req.MessageID == "" {
		d.reject(s, EventMessageDeleted, "messageId is required")
		return
	}

	// The peer always comes from the stored message. A removed message is
	// looked up among recent deletions; the client's receiverId is ignored.
	msg, err := d.messages.Get(ctx, req.MessageID)
	if errors.Is(err, chat.ErrMessageNotFound) {
		msg, err = d.messages.Deleted(ctx, req.MessageID)
	}
	if errors.Is(err, chat.ErrMessageNotFound) {
		d.reject(s, EventMessageDeleted, "message not found")
		return
	}
	if err != nil {
		d.log.Error("deletion_lookup_failed", zap.String("message_id", req.MessageID), zap.Error(err))
		d.reject(s, EventMessageDeleted, "failed to load message")
		return
	}
	if msg.Sender != s.userID {
		d.reject(s, EventMessageDeleted, chat.ErrNotSender.Error())
		return
	}
	peer := msg.Receiver

	d.hub.Broadcast(peer, Envelope{Event: EventMessageDeleted, Data: DeletionNotice{
		MessageID:  msg.ID,
		ReceiverID: peer,
	}})
	d.observe(EventMessageDeleted, "ok")
}

func (d *Dispatcher) broadcastPresence(ctx context.Context, s *Session, online bool) {
	env := Envelope{Event: EventUserStatus, Data: UserStatus{UserID: s.userID, Online: online}}
	if d.opts.PresenceScope != PresenceScopePeers {
		d.hub.BroadcastAll(env, "")
		return
	}

	peers, err := d.messages.Peers(ctx, s.userID)
	if err != nil {
		d.log.Warn("presence_peers_failed", zap.String("user_id", s.userID), zap.Error(err))
		return
	}
	d.hub.BroadcastRooms(peers, env)
}

func (d *Dispatcher) ack(s *Session, clientID, messageID, errMsg string) {
	d.hub.Send(s.connID, Envelope{Event: EventMessageAck, Data: MessageAck{
		ClientID:  clientID,
		OK:        errMsg == "",
		MessageID: messageID,
		Error:     errMsg,
	}})
}

func (d *Dispatcher) reject(s *Session, event, message string) {
	label := event
	if label == "" {
		label = "unknown"
	}
	d.observe(label, "rejected")
	d.hub.Send(s.connID, Envelope{Event: EventError, Data: ErrorNotice{Event: event, Message: message}})
}

func (d *Dispatcher) observe(event, outcome string) {
	metrics.Events.WithLabelValues(event, outcome).Inc()
}

func isClientError(err error) bool {
	return errors.Is(err, chat.ErrInvalidMessage) ||
		errors.Is(err, chat.ErrUnknownUser) ||
		errors.Is(err, chat.ErrReplyNotFound) ||
		errors.Is(err, chat.ErrNotConnected)
}
