package server

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// stateTTL bounds how long an OAuth authorization round-trip may take.
const stateTTL = 10 * time.Minute

type stateEntry struct {
	created time.Time
	// linkedUser is the already-signed-in user the new connection should
	// attach to, empty for a fresh sign-in.
	linkedUser string
}

// stateStore holds pending OAuth states in memory. States are one-shot:
// consuming a state removes it, so a replayed callback fails closed.
type stateStore struct {
	mu      sync.Mutex
	entries map[string]stateEntry
	now     func() time.Time
}

func newStateStore() *stateStore {
	return &stateStore{entries: make(map[string]stateEntry), now: time.Now}
}

// Issue creates a new state token, pruning expired entries while it holds
// the lock.
func (s *stateStore) Issue(linkedUser string) string {
	buf := make([]byte, 24)
	rand.Read(buf)
	state := hex.EncodeToString(buf)

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-stateTTL)
	for k, e := range s.entries {
		if e.created.Before(cutoff) {
			delete(s.entries, k)
		}
	}

	s.entries[state] = stateEntry{created: s.now(), linkedUser: linkedUser}
	return state
}

// Consume validates and removes a state, returning the linked user (if any).
func (s *stateStore) Consume(state string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[state]
	if !ok {
		return "", false
	}
	delete(s.entries, state)
	if s.now().Sub(e.created) > stateTTL {
		return "", false
	}
	return e.linkedUser, true
}
