// Package redis provides a read-only Redis API key lookup. Each key is a
// JSON credentials document stored under "<prefix><token>"; expiry is
// whatever TTL the writer set.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rhuss/keygate/pkg/auth"
	"github.com/rhuss/keygate/pkg/auth/apikey"
	"github.com/rhuss/keygate/pkg/debug"
	"github.com/rhuss/keygate/pkg/observability"
)

// BackendName labels metrics and logs.
const BackendName = "redis"

// DefaultKeyPrefix namespaces API keys in a shared Redis.
const DefaultKeyPrefix = "keygate:apikey:"

// Default timeouts for Redis operations.
const (
	DefaultDialTimeout = 5 * time.Second
	DefaultReadTimeout = 2 * time.Second
)

// Config holds Redis connection settings.
type Config struct {
	// Addrs lists the server addresses. With MasterName set these are the
	// Sentinel addresses.
	Addrs []string

	// MasterName enables Sentinel failover.
	MasterName string

	Username string
	Password string
	DB       int

	// KeyPrefix is prepended to every token (default: "keygate:apikey:").
	KeyPrefix string

	DialTimeout time.Duration
	ReadTimeout time.Duration
}

// Store resolves API keys from Redis.
type Store struct {
	client    redis.UniversalClient
	keyPrefix string
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, errors.New("at least one redis address is required")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:       cfg.Addrs,
		MasterName:  cfg.MasterName,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewWithClient(client, cfg.KeyPrefix), nil
}

// NewWithClient creates a Store around an existing client.
func NewWithClient(client redis.UniversalClient, keyPrefix string) *Store {
	return &Store{client: client, keyPrefix: keyPrefix}
}

func (s *Store) key(token string) string {
	return s.keyPrefix + token
}

// Validate looks token up. A missing key is invalid without error.
func (s *Store) Validate(ctx context.Context, token string, _ *http.Request) (apikey.Validation, error) {
	raw, err := s.client.Get(ctx, s.key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		debug.Log("keystore", "redis key not found")
		return apikey.Validation{}, nil
	}
	if err != nil {
		observability.KeyStoreErrorsTotal.WithLabelValues(BackendName).Inc()
		return apikey.Validation{}, fmt.Errorf("reading api key: %w", err)
	}

	var creds auth.Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		observability.KeyStoreErrorsTotal.WithLabelValues(BackendName).Inc()
		return apikey.Validation{}, fmt.Errorf("decoding credentials: %w", err)
	}
	return apikey.Validation{IsValid: creds != nil, Credentials: creds}, nil
}

// HealthCheck pings the server.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
