package chathub

import (
	"log"

	"chatwire/backend/internal/models"
)

// Fanout delivers one event to many connections. Member sets are snapshots
// from the room index and registry, so no index lock is held during delivery,
// and delivery itself is fire-and-forget: an unwritable connection is logged
// and skipped, never aborting the remaining members.
type Fanout struct {
	registry *Registry
	rooms    *RoomIndex
}

// NewFanout wires the fanout layer to the shared registry and room index.
func NewFanout(registry *Registry, rooms *RoomIndex) *Fanout {
	return &Fanout{registry: registry, rooms: rooms}
}

// ToRoom delivers the event to every current member of the room, except
// exclude when non-nil.
func (f *Fanout) ToRoom(roomID string, ev models.ServerEvent, exclude Client) {
	f.deliver(f.rooms.MembersOf(roomID), ev, exclude)
}

// ToIdentity delivers the event to every live connection of the identity,
// its personal implicit room.
func (f *Fanout) ToIdentity(userID string, ev models.ServerEvent) {
	f.deliver(f.registry.ConnectionsFor(userID), ev, nil)
}

// BroadcastAll delivers the event to every registered connection except
// exclude. Used for presence transitions.
func (f *Fanout) BroadcastAll(ev models.ServerEvent, exclude Client) {
	f.deliver(f.registry.All(), ev, exclude)
}

func (f *Fanout) deliver(targets []Client, ev models.ServerEvent, exclude Client) {
	for _, c := range targets {
		if exclude != nil && c.ConnID() == exclude.ConnID() {
			continue
		}
		if !c.TrySend(ev) {
			log.Printf("WARNING: dropping %s for connection %s: not writable", ev.Event, c.ConnID())
		}
	}
}
