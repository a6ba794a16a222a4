// Package postgres provides a read-only PostgreSQL API key lookup. Keys are
// stored as SHA-256 digests next to a JSONB credentials document and are
// looked up through pgx/v5 connection pooling. Provisioning rows is left
// to the operator.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/keygate/pkg/auth"
	"github.com/rhuss/keygate/pkg/auth/apikey"
	"github.com/rhuss/keygate/pkg/debug"
	"github.com/rhuss/keygate/pkg/keystore"
	"github.com/rhuss/keygate/pkg/observability"
)

// BackendName labels metrics and logs.
const BackendName = "postgres"

// Store is a PostgreSQL-backed API key store.
type Store struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// New connects to PostgreSQL and, if configured, applies migrations.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool, timeout: cfg.QueryTimeout}
	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}
	return s, nil
}

// Validate resolves token to the credentials of an active key. Unknown and
// revoked keys are reported as invalid without error; database failures
// are returned as errors so the caller treats them as invalid too.
func (s *Store) Validate(ctx context.Context, token string, _ *http.Request) (apikey.Validation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var raw []byte
	err := s.pool.QueryRow(ctx,
		"SELECT credentials FROM api_keys WHERE key_hash = $1 AND NOT revoked",
		keystore.HashToken(token),
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		debug.Log("keystore", "postgres key not found")
		return apikey.Validation{}, nil
	}
	if err != nil {
		observability.KeyStoreErrorsTotal.WithLabelValues(BackendName).Inc()
		return apikey.Validation{}, fmt.Errorf("querying api key: %w", err)
	}

	var creds auth.Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		observability.KeyStoreErrorsTotal.WithLabelValues(BackendName).Inc()
		return apikey.Validation{}, fmt.Errorf("decoding credentials: %w", err)
	}
	return apikey.Validation{IsValid: creds != nil, Credentials: creds}, nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
