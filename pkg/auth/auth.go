package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// AuthDecision represents the three possible outcomes of authentication.
type AuthDecision int

const (
	// Yes means credentials are valid. The chain stops and the credentials are used.
	Yes AuthDecision = iota

	// No means credentials are present but invalid. The chain stops and the
	// request is rejected.
	No

	// Abstain means this authenticator found no credentials it can handle.
	// The chain continues to the next authenticator.
	Abstain
)

// String returns a lower-case name for the decision, used in logs and metrics.
func (d AuthDecision) String() string {
	switch d {
	case Yes:
		return "yes"
	case No:
		return "no"
	case Abstain:
		return "abstain"
	default:
		return "unknown"
	}
}

// Credentials is the opaque record an authenticator hands back on success.
// Authentication never inspects its contents beyond existence.
type Credentials map[string]any

// Clone returns a shallow copy so callers can modify the top level freely.
func (c Credentials) Clone() Credentials {
	if c == nil {
		return nil
	}
	out := make(Credentials, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// String returns the string value stored under key, or empty string.
func (c Credentials) String(key string) string {
	if c == nil {
		return ""
	}
	s, _ := c[key].(string)
	return s
}

// AuthResult carries the outcome of an authentication attempt.
type AuthResult struct {
	Decision    AuthDecision
	Credentials Credentials // populated only when Decision == Yes
	Strategy    string      // name of the strategy that decided, if any
	Err         error       // populated only when Decision == No
}

// Authenticator examines request credentials and returns a three-outcome vote.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) AuthResult
}

// Sentinel errors.
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrNoCredentials   = fmt.Errorf("%w: no credentials supplied", ErrUnauthenticated)
	ErrSchemeExists    = errors.New("auth scheme already registered")
	ErrUnknownScheme   = errors.New("unknown auth scheme")
)

// AuthChain evaluates authenticators in order using three-outcome voting.
type AuthChain struct {
	// Authenticators are evaluated left to right.
	Authenticators []Authenticator

	// DefaultDecision is used when all authenticators abstain.
	// Use Yes for development or No for production.
	DefaultDecision AuthDecision
}

// Authenticate runs the chain. Stops on the first Yes or No.
// If all abstain, returns the default decision.
func (c *AuthChain) Authenticate(ctx context.Context, r *http.Request) AuthResult {
	for _, authn := range c.Authenticators {
		result := authn.Authenticate(ctx, r)
		if result.Decision != Abstain {
			return result
		}
	}

	if c.DefaultDecision == Yes {
		return AuthResult{
			Decision:    Yes,
			Credentials: Credentials{"name": "anonymous"},
		}
	}

	return AuthResult{
		Decision: No,
		Err:      ErrNoCredentials,
	}
}
