// Package gauth builds per-user OAuth HTTP clients for the Google
// capability services and reports token refreshes back to the caller so
// rotated tokens can be persisted.
package gauth

import (
	"context"
	"log"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// TokenUpdateFunc is a callback function that handles token updates
type TokenUpdateFunc func(newToken *oauth2.Token) error

type notifyTokenSource struct {
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback TokenUpdateFunc
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if s.callback != nil && s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := s.callback(t); err != nil {
			log.Printf("Failed to update token: %v", err)
		}
	}
	return t, nil
}

// Credentials identifies the OAuth application.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// NewHTTPClient returns an HTTP client authorized with the user's tokens.
// Refreshed tokens are reported through onTokenRefresh.
func NewHTTPClient(ctx context.Context, creds Credentials, accessToken, refreshToken string, onTokenRefresh TokenUpdateFunc) *http.Client {
	token := &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
	}

	// Only force refresh if we have a refresh token
	if refreshToken != "" {
		token.Expiry = time.Now()
	}

	config := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     google.Endpoint,
	}

	tokenSource := config.TokenSource(ctx, token)

	// Wrap token source to detect refreshes
	wrappedSource := &notifyTokenSource{
		src:      tokenSource,
		current:  token,
		callback: onTokenRefresh,
	}

	return oauth2.NewClient(ctx, wrappedSource)
}
