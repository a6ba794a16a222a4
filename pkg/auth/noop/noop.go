// Package noop provides a no-op authenticator that accepts all requests.
// Used for development, registered as the "none" scheme.
package noop

import (
	"context"
	"net/http"

	"github.com/rhuss/keygate/pkg/auth"
)

// SchemeName is the name the no-op scheme registers under.
const SchemeName = "none"

// Authenticator always returns Yes with anonymous credentials.
type Authenticator struct{}

func (a *Authenticator) Authenticate(_ context.Context, _ *http.Request) auth.AuthResult {
	return auth.AuthResult{
		Decision:    auth.Yes,
		Credentials: auth.Credentials{"name": "anonymous"},
	}
}

// Scheme returns the factory for "none" strategies. It takes no options.
func Scheme() auth.SchemeFactory {
	return func(string, func(any) error) (auth.Authenticator, error) {
		return &Authenticator{}, nil
	}
}
