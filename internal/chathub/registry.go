package chathub

import (
	"fmt"
	"sync"

	"chatwire/backend/internal/models"
)

// Registry tracks every live connection and indexes them by identity. The
// per-identity index is the user's personal implicit room: direct delivery
// addresses it instead of a transport-level room feature.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]Client            // connID -> client
	byUser map[string]map[string]Client // userID -> connID -> client
}

// NewRegistry returns an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[string]Client),
		byUser: make(map[string]map[string]Client),
	}
}

// Register binds an authenticated connection. The transport creates each
// connection exactly once, so a duplicate connection id means a caller bug
// and fails with ErrConflict; only the second attempt is rejected.
func (r *Registry) Register(c Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := c.ConnID()
	if _, ok := r.conns[id]; ok {
		return fmt.Errorf("connection %s: %w", id, models.ErrConflict)
	}
	r.conns[id] = c

	uid := c.Identity().ID
	set, ok := r.byUser[uid]
	if !ok {
		set = make(map[string]Client)
		r.byUser[uid] = set
	}
	set[id] = c
	return nil
}

// Unregister removes the connection. It is idempotent: existed reports
// whether the connection was still registered, last whether it was the
// identity's final live connection.
func (r *Registry) Unregister(c Client) (existed, last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := c.ConnID()
	if _, ok := r.conns[id]; !ok {
		return false, false
	}
	delete(r.conns, id)

	uid := c.Identity().ID
	if set, ok := r.byUser[uid]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(r.byUser, uid)
			return true, true
		}
	}
	return true, false
}

// ConnectionsFor returns a snapshot of the identity's live connections.
func (r *Registry) ConnectionsFor(userID string) []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.byUser[userID]
	out := make([]Client, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	return out
}

// All returns a snapshot of every registered connection.
func (r *Registry) All() []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Client, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

// Len reports the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
