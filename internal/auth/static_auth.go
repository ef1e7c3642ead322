package auth

import (
	"context"
)

// StaticAuthenticator validates keys against a fixed set. With an empty
// set it accepts any ask_ key, which is the development default.
type StaticAuthenticator struct {
	keys map[string]bool
}

func NewStaticAuthenticator(keys []string) *StaticAuthenticator {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return &StaticAuthenticator{keys: set}
}

func (a *StaticAuthenticator) Authenticate(ctx context.Context, apiKey string) (*ClientContext, error) {
	if len(a.keys) == 0 {
		return &ClientContext{
			ClientID: "static-" + apiKey[:min(len(apiKey), 8)],
			FailOpen: true,
		}, nil
	}
	if !a.keys[apiKey] {
		return nil, ErrUnauthenticated
	}
	return &ClientContext{ClientID: "static-" + apiKey[:min(len(apiKey), 8)]}, nil
}
