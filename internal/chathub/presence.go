package chathub

import "time"

// Presence keys keep the original deployment's layout so state survives a
// rollout: user:online:<userID>.
const presenceKeyPrefix = "user:online:"

// PresenceTracker maintains TTL-backed online state per identity,
// independent of any particular socket. Transitions are edge-triggered:
// MarkOnline reports true only on offline→online, so a refresh while already
// online never re-broadcasts.
type PresenceTracker struct {
	store TTLStore
	ttl   time.Duration
}

// NewPresenceTracker returns a tracker whose entries expire after ttl unless
// refreshed.
func NewPresenceTracker(store TTLStore, ttl time.Duration) *PresenceTracker {
	return &PresenceTracker{store: store, ttl: ttl}
}

// MarkOnline sets or refreshes the identity's liveness window and reports
// whether the identity just came online.
func (p *PresenceTracker) MarkOnline(userID string) (wentOnline bool, err error) {
	existed, err := p.store.SetEx(presenceKeyPrefix+userID, p.ttl)
	if err != nil {
		return false, err
	}
	return !existed, nil
}

// MarkOffline removes the entry immediately and reports whether the identity
// just went offline.
func (p *PresenceTracker) MarkOffline(userID string) (wentOffline bool, err error) {
	return p.store.Del(presenceKeyPrefix + userID)
}

// IsOnline reports whether a non-expired presence entry exists.
func (p *PresenceTracker) IsOnline(userID string) (bool, error) {
	return p.store.Exists(presenceKeyPrefix + userID)
}
