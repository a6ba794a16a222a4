// Package apikey provides an API key authenticator. The token is read from
// a request header or, failing that, a query parameter, and resolved to
// credentials through a static key table, a custom function, or a named
// method from an explicit registry.
package apikey

import (
	"context"
	"net/http"
	"time"

	"github.com/rhuss/keygate/pkg/auth"
	"github.com/rhuss/keygate/pkg/debug"
	"github.com/rhuss/keygate/pkg/observability"
)

// Authenticator validates API keys taken from a header or query parameter.
type Authenticator struct {
	name      string
	headerKey string
	queryKey  string
	resolver  Resolver
}

// New creates an API key authenticator. It fails only when opts.Method
// names a method that is not registered.
func New(opts Options) (*Authenticator, error) {
	opts.applyDefaults()
	if opts.Name == "" {
		opts.Name = SchemeName
	}

	resolver, err := NewResolver(opts)
	if err != nil {
		return nil, err
	}

	return &Authenticator{
		name:      opts.Name,
		headerKey: opts.HeaderKey,
		queryKey:  opts.QueryKey,
		resolver:  resolver,
	}, nil
}

// Token extracts the API key: the header wins, the query parameter is the
// fallback. Returns empty string when neither is set.
func (a *Authenticator) Token(r *http.Request) string {
	if v := r.Header.Get(a.headerKey); v != "" {
		return v
	}
	return r.URL.Query().Get(a.queryKey)
}

// Authenticate resolves the request's API key.
// Returns Abstain if no key was supplied, Yes with credentials if the key
// resolves, and No otherwise.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) auth.AuthResult {
	token := a.Token(r)
	if token == "" {
		return auth.AuthResult{Decision: auth.Abstain, Err: auth.ErrNoCredentials}
	}

	start := time.Now()
	out := a.resolver.Resolve(ctx, token, r)
	observability.AuthResolutionDuration.WithLabelValues(a.name).Observe(time.Since(start).Seconds())

	if !out.IsValid() {
		observability.AuthResolutionsTotal.WithLabelValues(a.name, "invalid").Inc()
		debug.Log("auth", "api key rejected", "strategy", a.name)
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	observability.AuthResolutionsTotal.WithLabelValues(a.name, "valid").Inc()
	return auth.AuthResult{
		Decision:    auth.Yes,
		Credentials: out.Credentials(),
	}
}
