package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for required fields and valid values.
// All problems are reported together, each with its field path.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	switch c.Auth.Mode {
	case "required", "optional", "try":
	default:
		errs = append(errs, fmt.Errorf("auth.mode must be \"required\", \"optional\", or \"try\", got %q", c.Auth.Mode))
	}

	switch c.Auth.DefaultDecision {
	case "no", "yes":
	default:
		errs = append(errs, fmt.Errorf("auth.default_decision must be \"no\" or \"yes\", got %q", c.Auth.DefaultDecision))
	}

	seen := make(map[string]bool, len(c.Auth.Strategies))
	for i, s := range c.Auth.Strategies {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("auth.strategies[%d].name is required", i))
		} else if seen[s.Name] {
			errs = append(errs, fmt.Errorf("auth.strategies[%d].name %q is duplicated", i, s.Name))
		}
		seen[s.Name] = true
		if s.Scheme == "" {
			errs = append(errs, fmt.Errorf("auth.strategies[%d].scheme is required", i))
		}
	}

	if c.KeyStore.Postgres.Enabled() && c.KeyStore.Postgres.Method == "" {
		errs = append(errs, errors.New("keystore.postgres.method must not be empty"))
	}
	if c.KeyStore.Postgres.MaxConns < 0 {
		errs = append(errs, fmt.Errorf("keystore.postgres.max_conns must be >= 0, got %d", c.KeyStore.Postgres.MaxConns))
	}
	if c.KeyStore.Redis.Enabled() && c.KeyStore.Redis.Method == "" {
		errs = append(errs, errors.New("keystore.redis.method must not be empty"))
	}
	if c.KeyStore.Redis.DB < 0 {
		errs = append(errs, fmt.Errorf("keystore.redis.db must be >= 0, got %d", c.KeyStore.Redis.DB))
	}

	if c.KeyStore.Cache.TTL < 0 || c.KeyStore.Cache.NegativeTTL < 0 {
		errs = append(errs, errors.New("keystore.cache ttl values must be >= 0"))
	}
	if c.KeyStore.Cache.MaxSize < 0 {
		errs = append(errs, fmt.Errorf("keystore.cache.max_size must be >= 0, got %d", c.KeyStore.Cache.MaxSize))
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}
