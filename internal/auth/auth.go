// Package auth validates API keys on the HTTP surface.
package auth

import (
	"context"
	"errors"
	"strings"
)

// Authenticator validates an API key and returns a ClientContext.
type Authenticator interface {
	Authenticate(ctx context.Context, apiKey string) (*ClientContext, error)
}

// ClientContext holds the authenticated caller's identity.
type ClientContext struct {
	ClientID string
	FailOpen bool
}

// ErrUnauthenticated is returned when no valid credentials are found.
var ErrUnauthenticated = errors.New("unauthenticated")

// ParseBearer extracts an ask_ API key from an Authorization header value.
func ParseBearer(header string) (string, error) {
	if header == "" {
		return "", ErrUnauthenticated
	}
	token := header
	token = strings.TrimPrefix(token, "Bearer ")
	token = strings.TrimPrefix(token, "bearer ")
	if !strings.HasPrefix(token, "ask_") {
		return "", ErrUnauthenticated
	}
	return token, nil
}
