package chathub

import "time"

// Typing keys keep the original deployment's layout: typing:<roomID>:<userID>.
func typingKey(roomID, userID string) string {
	return "typing:" + roomID + ":" + userID
}

// TypingTracker maintains short-lived "is typing" markers keyed by room and
// identity. The TTL is authoritative for readers; no synthetic typing:stop
// event is emitted when a marker expires, clients drop stale indicators
// after the same window on their own.
type TypingTracker struct {
	store TTLStore
	ttl   time.Duration
}

// NewTypingTracker returns a tracker whose markers expire after ttl unless
// re-armed.
func NewTypingTracker(store TTLStore, ttl time.Duration) *TypingTracker {
	return &TypingTracker{store: store, ttl: ttl}
}

// Start arms or re-arms the typing marker. Redundant calls re-arm the TTL and
// never error.
func (t *TypingTracker) Start(roomID, userID string) error {
	_, err := t.store.SetEx(typingKey(roomID, userID), t.ttl)
	return err
}

// Stop clears the marker and reports whether one existed. A stop without a
// marker is a no-op and must not produce an event.
func (t *TypingTracker) Stop(roomID, userID string) (existed bool, err error) {
	return t.store.Del(typingKey(roomID, userID))
}

// IsTyping reports whether a non-expired marker exists for the pair.
func (t *TypingTracker) IsTyping(roomID, userID string) (bool, error) {
	return t.store.Exists(typingKey(roomID, userID))
}
