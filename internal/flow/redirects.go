package flow

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
)

// ErrRedirectConflict is returned when a caller tries to register a post-login
// target that differs from the one already on file for its client identifier.
var ErrRedirectConflict = errors.New("a different redirect target is already registered for this client")

// MintClientID returns a fresh anonymous caller identifier in URN form. It is
// only ever used as a key into the redirect store, never as a credential.
func MintClientID() string {
	return uuid.New().URN()
}

// RedirectStore remembers, per anonymous caller, where to send the user once
// login completes.
type RedirectStore struct {
	targets *ttlcache.Cache[string, string]
}

// NewRedirectStore creates a redirect store whose entries expire after ttl.
func NewRedirectStore(ttl time.Duration) *RedirectStore {
	targets := ttlcache.New(
		ttlcache.WithTTL[string, string](ttl),
		ttlcache.WithDisableTouchOnHit[string, string](),
	)

	go targets.Start()

	return &RedirectStore{targets: targets}
}

// Record stores target as the post-login destination for clientID. Recording
// the same target again is a no-op; a different target is rejected with
// ErrRedirectConflict and the original is preserved. The record-or-compare is
// atomic, so two racing login requests cannot overwrite each other.
func (s *RedirectStore) Record(clientID, target string) error {
	item, existed := s.targets.GetOrSet(clientID, target)
	if existed && item.Value() != target {
		return ErrRedirectConflict
	}

	return nil
}

// Resolve returns the stored target for clientID. The lookup does not consume
// the entry: repeated callbacks for the same caller resolve to the same target.
func (s *RedirectStore) Resolve(clientID string) (string, bool) {
	item := s.targets.Get(clientID)
	if item == nil {
		return "", false
	}

	return item.Value(), true
}

// Close stops the expiry janitor.
func (s *RedirectStore) Close() {
	s.targets.Stop()
}
