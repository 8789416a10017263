package chathub

import (
	"sync"
	"time"
)

// TTLStore is the expiring key-value contract behind the presence and typing
// trackers: set with expiry, exists, delete. Redis satisfies it in production
// (see internal/storage); MemoryTTLStore keeps single-node deployments and
// tests off the network. Entries are independent, so implementations need no
// cross-key consistency.
type TTLStore interface {
	// SetEx stores the key with the given TTL, re-arming the window if the
	// key is present, and reports whether a non-expired entry already
	// existed.
	SetEx(key string, ttl time.Duration) (existed bool, err error)

	// Exists reports whether a non-expired entry is present.
	Exists(key string) (bool, error)

	// Del removes the key and reports whether a non-expired entry existed.
	Del(key string) (bool, error)
}

// MemoryTTLStore is an in-process TTLStore: a map of deadlines swept by a
// janitor goroutine. Reads treat an expired entry as absent even before the
// janitor reaches it, so expiry is exact regardless of sweep timing.
type MemoryTTLStore struct {
	mu       sync.Mutex
	deadline map[string]time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryTTLStore starts a store with a once-per-second janitor sweep.
func NewMemoryTTLStore() *MemoryTTLStore {
	s := &MemoryTTLStore{
		deadline: make(map[string]time.Time),
		stop:     make(chan struct{}),
	}
	go s.janitor()
	return s
}

// SetEx implements TTLStore.
func (s *MemoryTTLStore) SetEx(key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dl, ok := s.deadline[key]
	existed := ok && time.Now().Before(dl)
	s.deadline[key] = time.Now().Add(ttl)
	return existed, nil
}

// Exists implements TTLStore.
func (s *MemoryTTLStore) Exists(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dl, ok := s.deadline[key]
	if !ok {
		return false, nil
	}
	if !time.Now().Before(dl) {
		delete(s.deadline, key)
		return false, nil
	}
	return true, nil
}

// Del implements TTLStore.
func (s *MemoryTTLStore) Del(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dl, ok := s.deadline[key]
	delete(s.deadline, key)
	return ok && time.Now().Before(dl), nil
}

// Close stops the janitor. Safe to call more than once.
func (s *MemoryTTLStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *MemoryTTLStore) janitor() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for key, dl := range s.deadline {
				if now.After(dl) {
					delete(s.deadline, key)
				}
			}
			s.mu.Unlock()
		}
	}
}
