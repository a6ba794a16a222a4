package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/keygate/pkg/auth"
	"github.com/rhuss/keygate/pkg/auth/apikey"
	"github.com/rhuss/keygate/pkg/auth/jwt"
	"github.com/rhuss/keygate/pkg/auth/noop"
	"github.com/rhuss/keygate/pkg/config"
	"github.com/rhuss/keygate/pkg/keystore/cache"
	pgstore "github.com/rhuss/keygate/pkg/keystore/postgres"
	redisstore "github.com/rhuss/keygate/pkg/keystore/redis"
	"github.com/rhuss/keygate/pkg/observability"
	"github.com/rhuss/keygate/pkg/transport"
)

// keyStore is what the server needs from a lookup backend.
type keyStore interface {
	Validate(ctx context.Context, token string, r *http.Request) (apikey.Validation, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

// app holds the wired server: the handler and the backends it owns.
type app struct {
	handler  http.Handler
	stores   []keyStore
	cacheCfg config.CacheConfig
}

// newApp connects the configured key stores, registers them as named
// methods and builds the auth chain and routes.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cacheCfg: cfg.KeyStore.Cache}
	methods := apikey.Methods{}

	if pg := cfg.KeyStore.Postgres; pg.Enabled() {
		store, err := pgstore.New(ctx, pgstore.Config{
			DSN:            pg.DSN,
			MaxConns:       pg.MaxConns,
			QueryTimeout:   pg.QueryTimeout,
			MigrateOnStart: pg.MigrateOnStart,
		})
		if err != nil {
			return nil, fmt.Errorf("postgres key store: %w", err)
		}
		a.addStore(methods, pg.Method, store)
		slog.Info("key store enabled", "backend", pgstore.BackendName, "method", pg.Method)
	}

	if rd := cfg.KeyStore.Redis; rd.Enabled() {
		store, err := redisstore.New(ctx, redisstore.Config{
			Addrs:      rd.Addrs,
			MasterName: rd.MasterName,
			Username:   rd.Username,
			Password:   rd.Password,
			DB:         rd.DB,
			KeyPrefix:  rd.KeyPrefix,
		})
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("redis key store: %w", err)
		}
		a.addStore(methods, rd.Method, store)
		slog.Info("key store enabled", "backend", redisstore.BackendName, "method", rd.Method)
	}

	chain, err := newChain(cfg.Auth, methods)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	mode, err := auth.ParseMode(cfg.Auth.Mode)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.handler = newHandler(cfg, chain, mode, a.ready)
	return a, nil
}

// addStore registers store under name, behind a lookup cache when one is
// configured.
func (a *app) addStore(methods apikey.Methods, name string, store keyStore) {
	validate := apikey.ValidateFunc(store.Validate)
	if a.cacheCfg.Enabled() {
		validate = cache.New(validate, cache.Config{
			MaxSize:     a.cacheCfg.MaxSize,
			TTL:         a.cacheCfg.TTL,
			NegativeTTL: a.cacheCfg.NegativeTTL,
		}).Validate
	}
	methods.Register(name, validate)
	a.stores = append(a.stores, store)
}

// Handler returns the routed handler with metrics and auth applied.
func (a *app) Handler() http.Handler { return a.handler }

// ready checks every key store.
func (a *app) ready(ctx context.Context) error {
	var errs []error
	for _, s := range a.stores {
		if err := s.HealthCheck(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close releases all key stores.
func (a *app) Close() error {
	var errs []error
	for _, s := range a.stores {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

// newSchemes registers the built-in schemes. The api-key scheme resolves
// named validate methods against methods.
func newSchemes(methods apikey.Methods) (*auth.Schemes, error) {
	schemes := auth.NewSchemes()
	err := errors.Join(
		schemes.Register(apikey.SchemeName, apikey.Scheme(methods)),
		schemes.Register(jwt.SchemeName, jwt.Scheme()),
		schemes.Register(noop.SchemeName, noop.Scheme()),
	)
	return schemes, err
}

// newChain builds one authenticator per configured strategy, in order.
func newChain(cfg config.AuthConfig, methods apikey.Methods) (*auth.AuthChain, error) {
	schemes, err := newSchemes(methods)
	if err != nil {
		return nil, err
	}

	chain := &auth.AuthChain{DefaultDecision: auth.No}
	if cfg.DefaultDecision == "yes" {
		chain.DefaultDecision = auth.Yes
	}

	for i := range cfg.Strategies {
		s := &cfg.Strategies[i]
		authn, err := schemes.Strategy(s.Name, s.Scheme, s.Decode)
		if err != nil {
			return nil, fmt.Errorf("auth strategy %q: %w", s.Name, err)
		}
		chain.Authenticators = append(chain.Authenticators, authn)
		slog.Info("auth strategy registered", "name", s.Name, "scheme", s.Scheme)
	}
	return chain, nil
}

// newHandler builds the routes. Health and metrics endpoints bypass auth.
func newHandler(cfg *config.Config, chain *auth.AuthChain, mode auth.Mode, ready func(context.Context) error) http.Handler {
	mux := http.NewServeMux()
	bypass := []string{"/healthz", "/readyz"}

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := ready(r.Context()); err != nil {
			slog.Warn("readiness check failed", "error", err)
			transport.WriteError(w, http.StatusServiceUnavailable, transport.ErrorTypeUnavailable, "key store unavailable")
			return
		}
		_, _ = w.Write([]byte("ok\n"))
	})

	if m := cfg.Observability.Metrics; m.Enabled {
		mux.Handle("GET "+m.Path, promhttp.Handler())
		bypass = append(bypass, m.Path)
	}

	mux.HandleFunc("GET /whoami", whoami)
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		transport.WriteError(w, http.StatusNotFound, transport.ErrorTypeNotFound, "not found")
	})

	return observability.MetricsMiddleware(auth.Middleware(chain, mode, bypass)(mux))
}

// whoami returns the credentials attached to the request. Unauthenticated
// requests admitted by optional or try mode get null.
func whoami(w http.ResponseWriter, r *http.Request) {
	if s := auth.StrategyFromContext(r.Context()); s != "" {
		w.Header().Set("X-Auth-Strategy", s)
	}
	transport.WriteJSON(w, auth.CredentialsFromContext(r.Context()))
}
