// Package flow holds the broker's in-memory login-flow state: the outstanding
// anti-forgery state tokens and the per-caller redirect continuations. Both
// stores are process-wide, safe for concurrent use and TTL-bound, and nothing
// survives a restart.
package flow

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

const (
	stateLength  = 20
	stateCharset = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// StateStore tracks the anti-forgery state tokens the broker has issued but
// not yet seen come back on a callback.
type StateStore struct {
	states *ttlcache.Cache[string, struct{}]
}

// NewStateStore creates a state store whose tokens expire after ttl.
func NewStateStore(ttl time.Duration) *StateStore {
	states := ttlcache.New(
		ttlcache.WithTTL[string, struct{}](ttl),
		ttlcache.WithDisableTouchOnHit[string, struct{}](),
	)

	go states.Start()

	return &StateStore{states: states}
}

// Issue generates a fresh state token and records it as outstanding.
func (s *StateStore) Issue() (string, error) {
	b := make([]byte, stateLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state token: %w", err)
	}

	for i := range b {
		b[i] = stateCharset[int(b[i])%len(stateCharset)]
	}

	state := string(b)
	s.states.Set(state, struct{}{}, ttlcache.DefaultTTL)

	return state, nil
}

// Consume reports whether state was outstanding and removes it. Check-and-remove
// is a single atomic step, so a token is accepted at most once even when
// concurrent callbacks present the same value.
func (s *StateStore) Consume(state string) bool {
	_, present := s.states.GetAndDelete(state)
	return present
}

// Outstanding returns the number of state tokens awaiting a callback.
func (s *StateStore) Outstanding() int {
	return s.states.Len()
}

// Close stops the expiry janitor.
func (s *StateStore) Close() {
	s.states.Stop()
}
