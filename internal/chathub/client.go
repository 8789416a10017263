// Package chathub is the real-time core: it tracks live connections and room
// membership, maintains presence and typing state, and fans chat events out
// to the right sockets. All shared state is constructed explicitly and passed
// by reference; the package has no globals.
package chathub

import "chatwire/backend/internal/models"

// Client is the interface for one live, authenticated connection (e.g., a
// WebSocket). It abstracts the transport so the hub can manage connection
// types uniformly and tests can substitute doubles.
type Client interface {
	// ConnID returns the transport-assigned identifier, unique per connection
	// for its lifetime.
	ConnID() string

	// Identity returns the authenticated principal bound to the connection.
	Identity() models.Identity

	// TrySend enqueues an event for delivery without blocking. It reports
	// false when the outbound buffer is full or the connection is closed;
	// callers decide whether the drop is worth logging.
	TrySend(ev models.ServerEvent) bool

	// Run starts the client's read and write pumps.
	Run()

	// Close shuts down the outbound channel; the pumps stop on their own.
	Close()
}
