package chathub

import "sync"

// RoomIndex tracks which connections are joined to which rooms. Membership is
// per-connection: a user with two devices in the same room holds two
// independent memberships. The index is the source of truth for fanout; the
// transport's own room features are not used.
type RoomIndex struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]Client   // roomID -> connID -> client
	joined map[string]map[string]struct{} // connID -> set of roomIDs
}

// NewRoomIndex returns an empty membership index.
func NewRoomIndex() *RoomIndex {
	return &RoomIndex{
		rooms:  make(map[string]map[string]Client),
		joined: make(map[string]map[string]struct{}),
	}
}

// Join adds the connection to the room's member set. Joining a room the
// connection already belongs to is a no-op. Authorization is the caller's
// job and must complete before Join, outside the index lock.
func (ri *RoomIndex) Join(roomID string, c Client) {
	ri.mu.Lock()
	defer ri.mu.Unlock()

	members, ok := ri.rooms[roomID]
	if !ok {
		members = make(map[string]Client)
		ri.rooms[roomID] = members
	}
	members[c.ConnID()] = c

	rooms, ok := ri.joined[c.ConnID()]
	if !ok {
		rooms = make(map[string]struct{})
		ri.joined[c.ConnID()] = rooms
	}
	rooms[roomID] = struct{}{}
}

// Leave removes the connection from the room unconditionally; no-op if it was
// not a member.
func (ri *RoomIndex) Leave(roomID string, c Client) {
	ri.mu.Lock()
	defer ri.mu.Unlock()
	ri.remove(roomID, c.ConnID())
}

// remove deletes one membership. Callers hold the lock.
func (ri *RoomIndex) remove(roomID, connID string) {
	if members, ok := ri.rooms[roomID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(ri.rooms, roomID)
		}
	}
	if rooms, ok := ri.joined[connID]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(ri.joined, connID)
		}
	}
}

// MembersOf returns a snapshot of the room's current members. Fanout iterates
// the copy, so concurrent joins and leaves never show up mid-iteration and no
// lock is held during delivery.
func (ri *RoomIndex) MembersOf(roomID string) []Client {
	ri.mu.RLock()
	defer ri.mu.RUnlock()

	members := ri.rooms[roomID]
	out := make([]Client, 0, len(members))
	for _, c := range members {
		out = append(out, c)
	}
	return out
}

// Contains reports whether the connection is currently joined to the room.
func (ri *RoomIndex) Contains(roomID string, c Client) bool {
	ri.mu.RLock()
	defer ri.mu.RUnlock()

	members, ok := ri.rooms[roomID]
	if !ok {
		return false
	}
	_, ok = members[c.ConnID()]
	return ok
}

// RemoveAll removes the connection from every room it had joined and returns
// the affected room ids. The hub calls this on disconnect before the
// connection's transport resources are released, so no stale member reference
// outlives the connection.
func (ri *RoomIndex) RemoveAll(c Client) []string {
	ri.mu.Lock()
	defer ri.mu.Unlock()

	connID := c.ConnID()
	rooms := ri.joined[connID]
	out := make([]string, 0, len(rooms))
	for roomID := range rooms {
		out = append(out, roomID)
	}
	for _, roomID := range out {
		ri.remove(roomID, connID)
	}
	return out
}
