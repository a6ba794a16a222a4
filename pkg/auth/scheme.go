package auth

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
)

// SchemeFactory builds an Authenticator for the strategy called name.
// decode fills a scheme-specific options struct from the strategy's
// configuration; it is never nil.
type SchemeFactory func(name string, decode func(v any) error) (Authenticator, error)

// Schemes is a registry of named authentication schemes. A scheme can be
// registered only once.
type Schemes struct {
	mu        sync.RWMutex
	factories map[string]SchemeFactory
}

// NewSchemes creates an empty scheme registry.
func NewSchemes() *Schemes {
	return &Schemes{factories: make(map[string]SchemeFactory)}
}

// Register adds a scheme. Returns ErrSchemeExists if the name is taken.
func (s *Schemes) Register(name string, factory SchemeFactory) error {
	if name == "" {
		return fmt.Errorf("scheme name is required")
	}
	if factory == nil {
		return fmt.Errorf("scheme %q: factory is nil", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.factories[name]; ok {
		return fmt.Errorf("%w: %s", ErrSchemeExists, name)
	}
	s.factories[name] = factory
	return nil
}

// Names returns the registered scheme names in sorted order.
func (s *Schemes) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.factories))
	for name := range s.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Strategy instantiates a named strategy of the given scheme. Results
// produced by the returned Authenticator carry the strategy name.
func (s *Schemes) Strategy(name, scheme string, decode func(v any) error) (Authenticator, error) {
	s.mu.RLock()
	factory, ok := s.factories[scheme]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("strategy %q: %w: %s", name, ErrUnknownScheme, scheme)
	}

	if decode == nil {
		decode = func(any) error { return nil }
	}

	authn, err := factory(name, decode)
	if err != nil {
		return nil, fmt.Errorf("strategy %q: %w", name, err)
	}
	return &namedAuthenticator{name: name, next: authn}, nil
}

// namedAuthenticator stamps the strategy name on every result.
type namedAuthenticator struct {
	name string
	next Authenticator
}

func (n *namedAuthenticator) Authenticate(ctx context.Context, r *http.Request) AuthResult {
	result := n.next.Authenticate(ctx, r)
	if result.Strategy == "" {
		result.Strategy = n.name
	}
	return result
}
