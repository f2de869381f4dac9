// Package broker orchestrates the OAuth2 authorization-code handshake: state
// token issuance, login continuation, the callback state machine and the
// per-request session check against the provider.
package broker

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/kopp/oauth2-api-experiment/internal/flow"
	"github.com/kopp/oauth2-api-experiment/internal/metrics"
	"github.com/kopp/oauth2-api-experiment/internal/provider"
)

// Service owns the broker's flow stores and its provider client. One instance
// is created at process start and injected into the HTTP layer; there is no
// persistence across restarts.
type Service struct {
	provider   *provider.Client
	states     *flow.StateStore
	redirects  *flow.RedirectStore
	welcomeURL string
}

// NewService wires a broker service from its collaborators.
func NewService(p *provider.Client, states *flow.StateStore, redirects *flow.RedirectStore, welcomeURL string) *Service {
	return &Service{
		provider:   p,
		states:     states,
		redirects:  redirects,
		welcomeURL: welcomeURL,
	}
}

// AuthorizeURL issues a fresh anti-forgery state token and returns the
// provider authorize URL embedding it.
func (s *Service) AuthorizeURL() (string, error) {
	state, err := s.states.Issue()
	if err != nil {
		return "", err
	}

	return s.provider.AuthorizeURL(state), nil
}

// BeginLogin registers where to send the caller once login completes and
// returns the authorize redirect. If clientID is empty a fresh identifier is
// minted; the returned identifier is what the HTTP layer must persist in the
// caller's cookie. A conflicting redirect target for a known identifier is
// rejected with flow.ErrRedirectConflict and the original mapping is kept.
func (s *Service) BeginLogin(clientID, redirectURL string) (string, string, error) {
	if clientID == "" {
		clientID = flow.MintClientID()
	}

	if err := s.redirects.Record(clientID, redirectURL); err != nil {
		metrics.RedirectConflictTotal.Inc()
		return "", "", err
	}

	authorizeURL, err := s.AuthorizeURL()
	if err != nil {
		return "", "", err
	}

	metrics.LoginsStartedTotal.Inc()
	log.Debug().Str("client_id", clientID).Str("redirect_url", redirectURL).Msg("login flow started")

	return clientID, authorizeURL, nil
}

// Callback runs the provider-callback state machine. An unknown or replayed
// state does not abort the handshake -- the provider's own code validation is
// the backstop -- but it is logged and counted as a possible forgery attempt.
// An exchange failure is terminal: no token, no target, error out.
func (s *Service) Callback(ctx context.Context, state, code, clientID string) (*provider.Token, string, error) {
	if !s.states.Consume(state) {
		metrics.SuspiciousStateTotal.Inc()
		log.Warn().Str("state", state).Msg("callback state is not one we issued; possible forgery or replayed callback")
	}

	token, err := s.provider.Exchange(ctx, code)
	if err != nil {
		metrics.ExchangeFailureTotal.Inc()
		return nil, "", err
	}
	metrics.ExchangeSuccessTotal.Inc()

	target := s.welcomeURL
	if clientID != "" {
		if stored, ok := s.redirects.Resolve(clientID); ok {
			target = stored
		}
	}

	return token, target, nil
}

// IsAuthenticated reports whether token currently represents a valid session.
// A missing token is false without any network call; otherwise exactly one
// live introspection is made. Validity is never cached locally, the provider
// stays the sole authority on revocation.
func (s *Service) IsAuthenticated(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}

	metrics.IntrospectionsTotal.Inc()

	valid, err := s.provider.Introspect(ctx, token)
	if err != nil {
		log.Error().Err(err).Msg("token introspection failed")
		return false
	}

	return valid
}
