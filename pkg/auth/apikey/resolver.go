package apikey

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"github.com/rhuss/keygate/pkg/auth"
)

// ErrMethodNotFound is returned at setup when a named validate method is
// not present in the Methods registry.
var ErrMethodNotFound = errors.New("methods did not contain a method called")

// Outcome is the result of resolving a token: either valid with
// credentials, or invalid. There is nothing in between.
type Outcome struct {
	valid       bool
	credentials auth.Credentials
}

// Valid returns a successful outcome. Nil credentials yield Invalid.
func Valid(creds auth.Credentials) Outcome {
	if creds == nil {
		return Invalid()
	}
	return Outcome{valid: true, credentials: creds}
}

// Invalid returns a failed outcome.
func Invalid() Outcome {
	return Outcome{}
}

// IsValid reports whether the token resolved to credentials.
func (o Outcome) IsValid() bool { return o.valid }

// Credentials returns the resolved record, nil when invalid.
func (o Outcome) Credentials() auth.Credentials { return o.credentials }

// Validation is what a ValidateFunc reports for a token.
type Validation struct {
	IsValid     bool
	Credentials auth.Credentials
}

// ValidateFunc resolves a token to credentials. It may return immediately
// or block on I/O; in the latter case it should honour ctx. Errors are
// never surfaced to the client.
type ValidateFunc func(ctx context.Context, token string, r *http.Request) (Validation, error)

// Resolver turns a token into an Outcome. Implementations never panic and
// never return errors; every failure is Invalid.
type Resolver interface {
	Resolve(ctx context.Context, token string, r *http.Request) Outcome
}

// StaticResolver resolves tokens against an immutable KeyTable.
type StaticResolver struct {
	table KeyTable
}

// NewStaticResolver creates a resolver over table. A nil table rejects
// every token.
func NewStaticResolver(table KeyTable) *StaticResolver {
	if table == nil {
		table = MapTable{}
	}
	return &StaticResolver{table: table}
}

// Resolve looks the token up in the table.
func (s *StaticResolver) Resolve(_ context.Context, token string, _ *http.Request) Outcome {
	if token == "" {
		return Invalid()
	}
	creds, ok := s.table.Lookup(token)
	if !ok {
		return Invalid()
	}
	return Valid(creds)
}

// FuncResolver delegates resolution to a ValidateFunc.
type FuncResolver struct {
	fn ValidateFunc
}

// NewFuncResolver wraps fn. fn must not be nil.
func NewFuncResolver(fn ValidateFunc) *FuncResolver {
	return &FuncResolver{fn: fn}
}

// Resolve calls the function and normalizes its result. Errors, panics,
// IsValid=false and nil credentials all yield Invalid.
func (f *FuncResolver) Resolve(ctx context.Context, token string, r *http.Request) (out Outcome) {
	if token == "" || f.fn == nil {
		return Invalid()
	}

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("api key validate function panicked", "panic", rec)
			out = Invalid()
		}
	}()

	v, err := f.fn(ctx, token, r)
	if err != nil {
		slog.Debug("api key validate function failed", "error", err)
		return Invalid()
	}
	if !v.IsValid {
		return Invalid()
	}
	return Valid(v.Credentials)
}

// Methods is a registry of named validate functions, passed explicitly at
// configuration time. Names may be dotted (e.g. "keys.postgres").
type Methods map[string]ValidateFunc

// Register adds fn under name, replacing any previous entry.
func (m Methods) Register(name string, fn ValidateFunc) {
	m[name] = fn
}

// Names returns the registered method names in sorted order.
func (m Methods) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolver returns a FuncResolver for the named method, or
// ErrMethodNotFound.
func (m Methods) Resolver(name string) (*FuncResolver, error) {
	fn, ok := m[name]
	if !ok || fn == nil {
		return nil, fmt.Errorf("%w %s", ErrMethodNotFound, name)
	}
	return NewFuncResolver(fn), nil
}

// Options configures the API key scheme.
type Options struct {
	// Name labels metrics and logs. Default: "api-key".
	Name string

	// HeaderKey is the request header checked first. Default: "x-api-key".
	HeaderKey string

	// QueryKey is the query parameter checked when the header is absent.
	// Default: "token".
	QueryKey string

	// APIKeys is the static key table used when neither Validate nor
	// Method is set.
	APIKeys KeyTable

	// Validate is a custom resolution function. It takes precedence over
	// Method and APIKeys.
	Validate ValidateFunc

	// Method names a function in Methods to use as Validate.
	Method string

	// Methods is the registry Method is resolved against.
	Methods Methods
}

// Default header and query parameter names.
const (
	DefaultHeaderKey = "x-api-key"
	DefaultQueryKey  = "token"
)

// applyDefaults fills in zero-value fields with defaults.
func (o *Options) applyDefaults() {
	if o.HeaderKey == "" {
		o.HeaderKey = DefaultHeaderKey
	}
	if o.QueryKey == "" {
		o.QueryKey = DefaultQueryKey
	}
}

// NewResolver selects the resolver variant once: Validate, then Method,
// then the static table. A Method missing from Methods is a setup error.
func NewResolver(opts Options) (Resolver, error) {
	if opts.Validate != nil {
		return NewFuncResolver(opts.Validate), nil
	}
	if opts.Method != "" {
		r, err := opts.Methods.Resolver(opts.Method)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	return NewStaticResolver(opts.APIKeys), nil
}
