// Package oidc wraps the OpenID Connect authorization-code flow against a
// single configured identity provider. The client is built once at startup
// and injected where needed; there is no package-level registration.
package oidc

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/pramothar/farmwith/internal/config"
)

// Outbound calls to the provider are bounded rather than retried; failures
// surface to the caller immediately.
const providerTimeout = 10 * time.Second

var (
	// ErrUnavailable means the provider could not be reached or answered
	// with a transport-level failure.
	ErrUnavailable = errors.New("identity provider unavailable")
	// ErrNoToken means the code exchange completed but yielded no usable token
	ErrNoToken = errors.New("authorization exchange returned no token")
	// ErrNoEmail means the provider's claims carry no email address
	ErrNoEmail = errors.New("email not provided by identity provider")
)

// Identity is the claim set this service needs from the provider. Email is
// required; a missing subject is backfilled with a random value.
type Identity struct {
	Email   string
	Subject string
}

// Client performs the authorization-code exchange and claim retrieval
type Client struct {
	oauth       oauth2.Config
	provider    *gooidc.Provider
	verifier    *gooidc.IDTokenVerifier
	userinfoURL string
}

// NewClient builds the relying-party client from configuration. With a
// discovery URL the provider metadata is fetched once here; otherwise the
// explicit authorize/token/userinfo endpoints are used as given.
func NewClient(ctx context.Context, cfg *config.Config) (*Client, error) {
	c := &Client{
		oauth: oauth2.Config{
			ClientID:     cfg.SSO.ClientID,
			ClientSecret: cfg.SSO.ClientSecret,
			RedirectURL:  cfg.CallbackURL(),
			Scopes:       []string{gooidc.ScopeOpenID, "email", "profile"},
		},
	}

	if cfg.SSO.ConfigurationURL != "" {
		ctx, cancel := context.WithTimeout(ctx, providerTimeout)
		defer cancel()

		issuer := strings.TrimSuffix(cfg.SSO.ConfigurationURL, "/.well-known/openid-configuration")
		provider, err := gooidc.NewProvider(ctx, issuer)
		if err != nil {
			return nil, fmt.Errorf("failed to discover provider: %w", err)
		}
		c.provider = provider
		c.verifier = provider.Verifier(&gooidc.Config{ClientID: cfg.SSO.ClientID})
		c.oauth.Endpoint = provider.Endpoint()
		return c, nil
	}

	c.oauth.Endpoint = oauth2.Endpoint{
		AuthURL:  cfg.SSO.AuthorizeURL,
		TokenURL: cfg.SSO.TokenURL,
	}
	c.userinfoURL = cfg.SSO.UserinfoURL
	return c, nil
}

// AuthCodeURL returns the provider's authorization endpoint URL for the
// given anti-forgery state.
func (c *Client) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// Exchange trades an authorization code for provider tokens
func (c *Client) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, providerTimeout)
	defer cancel()

	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		// The provider answering with an OAuth error is a failed grant,
		// not an outage.
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, fmt.Errorf("%w: %v", ErrNoToken, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if token == nil || token.AccessToken == "" {
		return nil, ErrNoToken
	}
	return token, nil
}

// Identity extracts the authenticated identity from an exchanged token.
// A verified ID token is preferred; the userinfo endpoint is the fallback.
func (c *Client) Identity(ctx context.Context, token *oauth2.Token) (*Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, providerTimeout)
	defer cancel()

	var claims struct {
		Email   string `json:"email"`
		Subject string `json:"sub"`
	}

	rawIDToken, _ := token.Extra("id_token").(string)
	switch {
	case c.verifier != nil && rawIDToken != "":
		idToken, err := c.verifier.Verify(ctx, rawIDToken)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if err := idToken.Claims(&claims); err != nil {
			return nil, fmt.Errorf("failed to decode identity claims: %w", err)
		}

	case c.provider != nil:
		info, err := c.provider.UserInfo(ctx, oauth2.StaticTokenSource(token))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if err := info.Claims(&claims); err != nil {
			return nil, fmt.Errorf("failed to decode identity claims: %w", err)
		}

	default:
		if err := c.fetchUserinfo(ctx, token, &claims); err != nil {
			return nil, err
		}
	}

	if claims.Email == "" {
		return nil, ErrNoEmail
	}
	if claims.Subject == "" {
		claims.Subject = randomSubject()
	}

	return &Identity{Email: claims.Email, Subject: claims.Subject}, nil
}

func (c *Client) fetchUserinfo(ctx context.Context, token *oauth2.Token, claims any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userinfoURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build userinfo request: %w", err)
	}
	token.SetAuthHeader(req)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: userinfo returned %d", ErrUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(claims); err != nil {
		return fmt.Errorf("failed to decode identity claims: %w", err)
	}
	return nil
}

// randomSubject stands in when the provider omits a subject claim
func randomSubject() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return ""
	}
	return hex.EncodeToString(bytes)
}
