package realtime

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/mentormatch/backend/internal/logger"
	"github.com/mentormatch/backend/internal/metrics"
)

var ErrHubStopped = errors.New("realtime hub stopped")

// Hub serialises every Presence and Relay operation on one goroutine.
// Callers block until their operation has run, so deliveries are complete
// when a Broadcast returns.
type Hub struct {
	presence *Presence
	relay    *Relay
	ops      chan func()
	stopped  chan struct{}
	log      *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		presence: NewPresence(),
		relay:    NewRelay(),
		ops:      make(chan func()),
		stopped:  make(chan struct{}),
		log:      logger.OrNop(log),
	}
}

// Run processes operations until ctx is cancelled. After Run returns every
// Hub method is a no-op that reports failure.
func (h *Hub) Run(ctx context.Context) {
	h.log.Info("hub_started")
	defer func() {
		close(h.stopped)
		h.log.Info("hub_stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case op := <-h.ops:
			op()
		}
	}
}

func (h *Hub) exec(fn func()) bool {
	done := make(chan struct{})
	select {
	case h.ops <- func() { fn(); close(done) }:
	case <-h.stopped:
		return false
	}
	<-done
	return true
}

// Attach registers a new, unidentified connection.
func (h *Hub) Attach(sink Sink) {
	if h.exec(func() { h.relay.Attach(sink) }) {
		metrics.Connections.Inc()
	}
}

// Announce identifies a connection and subscribes it to the user's room.
func (h *Hub) Announce(connID, userID string) (first bool, err error) {
	ok := h.exec(func() {
		first, err = h.presence.Announce(connID, userID)
		if err == nil {
			h.relay.Subscribe(userID, connID)
			metrics.OnlineUsers.Set(float64(len(h.presence.conns)))
		}
	})
	if !ok {
		return false, ErrHubStopped
	}
	return first, err
}

// Detach removes a connection. userID is empty for unidentified connections.
func (h *Hub) Detach(connID string) (userID string, last bool) {
	if h.exec(func() {
		userID, last = h.presence.Release(connID)
		h.relay.Unsubscribe(connID)
		metrics.OnlineUsers.Set(float64(len(h.presence.conns)))
	}) {
		metrics.Connections.Dec()
	}
	return userID, last
}

// Broadcast delivers env to the room of userID.
func (h *Hub) Broadcast(room string, env Envelope) (delivered int) {
	h.exec(func() { delivered = h.relay.Broadcast(room, env) })
	return delivered
}

// BroadcastRooms delivers env once to each distinct room.
func (h *Hub) BroadcastRooms(rooms []string, env Envelope) (delivered int) {
	h.exec(func() {
		seen := make(map[string]struct{}, len(rooms))
		for _, room := range rooms {
			if _, ok := seen[room]; ok {
				continue
			}
			seen[room] = struct{}{}
			delivered += h.relay.Broadcast(room, env)
		}
	})
	return delivered
}

// BroadcastAll delivers env to every connection except the one with id except.
func (h *Hub) BroadcastAll(env Envelope, except string) (delivered int) {
	h.exec(func() { delivered = h.relay.BroadcastAll(env, except) })
	return delivered
}

// Send delivers env to one connection.
func (h *Hub) Send(connID string, env Envelope) (ok bool) {
	h.exec(func() { ok = h.relay.Send(connID, env) })
	return ok
}

func (h *Hub) Online(userID string) (online bool) {
	h.exec(func() { online = h.presence.Online(userID) })
	return online
}

func (h *Hub) OnlineUsers() (users []string) {
	h.exec(func() { users = h.presence.OnlineUsers() })
	if users == nil {
		users = []string{}
	}
	return users
}
