package realtime

import "github.com/mentormatch/backend/internal/metrics"

// Sink receives envelopes for one connection. Deliver must not block and
// reports whether the envelope was queued.
type Sink interface {
	ID() string
	Deliver(Envelope) bool
}

// Relay routes envelopes to the sinks subscribed to a room. Rooms are keyed
// by user id. Not safe for concurrent use; the Hub owns it.
type Relay struct {
	sinks  map[string]Sink
	rooms  map[string]map[string]Sink
	member map[string]string
}

func NewRelay() *Relay {
	return &Relay{
		sinks:  make(map[string]Sink),
		rooms:  make(map[string]map[string]Sink),
		member: make(map[string]string),
	}
}

// Attach registers a sink that is not yet in any room.
func (r *Relay) Attach(sink Sink) {
	r.sinks[sink.ID()] = sink
}

// Subscribe moves an attached connection into room.
func (r *Relay) Subscribe(room, connID string) bool {
	sink, ok := r.sinks[connID]
	if !ok {
		return false
	}
	if current, ok := r.member[connID]; ok {
		if current == room {
			return true
		}
		r.leave(connID)
	}

	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]Sink)
		r.rooms[room] = members
	}
	members[connID] = sink
	r.member[connID] = room
	return true
}

// Unsubscribe removes a connection from its room and from the relay.
func (r *Relay) Unsubscribe(connID string) {
	r.leave(connID)
	delete(r.sinks, connID)
}

// Broadcast delivers env to every sink in room and returns how many
// accepted it. An absent room is a no-op.
func (r *Relay) Broadcast(room string, env Envelope) int {
	delivered := 0
	for _, sink := range r.rooms[room] {
		if deliver(sink, env) {
			delivered++
		}
	}
	return delivered
}

// BroadcastAll delivers env to every attached sink except the one with id except.
func (r *Relay) BroadcastAll(env Envelope, except string) int {
	delivered := 0
	for id, sink := range r.sinks {
		if id == except {
			continue
		}
		if deliver(sink, env) {
			delivered++
		}
	}
	return delivered
}

// Send delivers env to a single connection.
func (r *Relay) Send(connID string, env Envelope) bool {
	sink, ok := r.sinks[connID]
	if !ok {
		return false
	}
	return deliver(sink, env)
}

func (r *Relay) leave(connID string) {
	room, ok := r.member[connID]
	if !ok {
		return
	}
	delete(r.member, connID)
	if members := r.rooms[room]; members != nil {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
}

func deliver(sink Sink, env Envelope) bool {
	if sink.Deliver(env) {
		return true
	}
	metrics.Dropped.Inc()
	return false
}
