package realtime

import (
	"errors"
	"sort"
)

var ErrAlreadyIdentified = errors.New("connection already identified as another user")

// Presence maps users to their live connections. It is not safe for
// concurrent use; the Hub owns it.
type Presence struct {
	conns map[string]map[string]struct{}
	owner map[string]string
}

func NewPresence() *Presence {
	return &Presence{
		conns: make(map[string]map[string]struct{}),
		owner: make(map[string]string),
	}
}

// Announce binds connID to userID. first reports whether this is the user's
// only live connection. Re-announcing the same identity is a no-op.
func (p *Presence) Announce(connID, userID string) (first bool, err error) {
	if current, ok := p.owner[connID]; ok {
		if current != userID {
			return false, ErrAlreadyIdentified
		}
		return false, nil
	}

	set, ok := p.conns[userID]
	if !ok {
		set = make(map[string]struct{})
		p.conns[userID] = set
	}
	set[connID] = struct{}{}
	p.owner[connID] = userID
	return len(set) == 1, nil
}

// Release forgets connID. last reports whether it was the user's final
// connection. Unidentified connections return an empty userID.
func (p *Presence) Release(connID string) (userID string, last bool) {
	userID, ok := p.owner[connID]
	if !ok {
		return "", false
	}
	delete(p.owner, connID)

	set := p.conns[userID]
	delete(set, connID)
	if len(set) == 0 {
		delete(p.conns, userID)
		return userID, true
	}
	return userID, false
}

// Identity returns the user a connection announced, if any.
func (p *Presence) Identity(connID string) (string, bool) {
	userID, ok := p.owner[connID]
	return userID, ok
}

func (p *Presence) Online(userID string) bool {
	return len(p.conns[userID]) > 0
}

// OnlineUsers returns the ids of online users in lexical order.
func (p *Presence) OnlineUsers() []string {
	users := make([]string, 0, len(p.conns))
	for userID := range p.conns {
		users = append(users, userID)
	}
	sort.Strings(users)
	return users
}
