// Package provider implements the broker's side of the conversation with the
// external OAuth2 identity provider: authorize-URL construction, the
// server-to-server code-for-token exchange, and token introspection.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Token is the result of a successful code-for-token exchange.
type Token struct {
	AccessToken string `json:"access_token"`
	Scope       string `json:"scope"`
	TokenType   string `json:"token_type"`
}

// Config describes the broker's registration with the identity provider.
type Config struct {
	ClientID      string
	ClientSecret  string
	Scope         string // space-separated scopes, e.g. "read:user"
	CallbackURL   string
	AuthorizeURL  string
	TokenURL      string
	IntrospectURL string
	Timeout       time.Duration
}

// Client talks to the external OAuth2 identity provider. All outbound calls
// share one bounded-timeout HTTP client and are never retried, since providers
// reject replayed authorization codes.
type Client struct {
	oauth         *oauth2.Config
	clientID      string
	clientSecret  string
	introspectURL string
	httpClient    *http.Client
}

// NewClient creates a provider client from the given registration.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Scopes:       strings.Fields(cfg.Scope),
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthorizeURL,
				TokenURL: cfg.TokenURL,
				// The provider contract wants client id and secret in the
				// request body, not in an Authorization header.
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		clientID:      cfg.ClientID,
		clientSecret:  cfg.ClientSecret,
		introspectURL: cfg.IntrospectURL,
		httpClient:    &http.Client{Timeout: timeout},
	}
}

// AuthorizeURL builds the provider authorize URL carrying the broker client id,
// the callback URL, the requested scope and the given anti-forgery state.
func (c *Client) AuthorizeURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// Exchange trades an authorization code for an access token. Any provider-side
// failure (non-2xx, malformed body, network error) is returned as an error and
// the caller must treat it as terminal for the request.
func (c *Client) Exchange(ctx context.Context, code string) (*Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("provider: code exchange failed: %w", err)
	}

	scope, _ := tok.Extra("scope").(string)

	return &Token{
		AccessToken: tok.AccessToken,
		Scope:       scope,
		TokenType:   tok.TokenType,
	}, nil
}

// Introspect asks the provider whether the given access token is still valid.
// The provider contract is basic auth of client_id:client_secret plus a JSON
// body {"access_token": token}; a success status signals validity.
func (c *Client) Introspect(ctx context.Context, token string) (bool, error) {
	body, err := json.Marshal(map[string]string{"access_token": token})
	if err != nil {
		return false, fmt.Errorf("provider: failed to encode introspection body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.introspectURL, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("provider: failed to build introspection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.clientID, c.clientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("provider: introspection call failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices, nil
}
