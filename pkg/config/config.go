// Package config provides unified configuration for the keygate server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (KEYGATE_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the keygate server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Auth          AuthConfig          `yaml:"auth"`
	KeyStore      KeyStoreConfig      `yaml:"keystore"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 15s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 10s
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	// Mode is "required", "optional" or "try". Default: "required".
	Mode string `yaml:"mode"`

	// DefaultDecision applies when every strategy abstains: "no" rejects,
	// "yes" admits an anonymous caller. Default: "no".
	DefaultDecision string `yaml:"default_decision"`

	// Strategies are tried in order. Default: a single "api-key" strategy.
	Strategies []StrategyConfig `yaml:"strategies"`
}

// StrategyConfig names a configured instance of an auth scheme.
type StrategyConfig struct {
	Name    string    `yaml:"name"`
	Scheme  string    `yaml:"scheme"`
	Options yaml.Node `yaml:"options"`
}

// Decode decodes the scheme options into v. Missing options leave v
// untouched.
func (s *StrategyConfig) Decode(v any) error {
	if s.Options.Kind == 0 {
		return nil
	}
	return s.Options.Decode(v)
}

// KeyStoreConfig holds the external API key backends. A backend is enabled
// when its connection settings are present.
type KeyStoreConfig struct {
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Cache    CacheConfig    `yaml:"cache"`
}

// CacheConfig controls the lookup cache placed in front of each key store.
// The cache is off unless ttl is set.
type CacheConfig struct {
	TTL         time.Duration `yaml:"ttl"`
	NegativeTTL time.Duration `yaml:"negative_ttl"`
	MaxSize     int           `yaml:"max_size"` // default: 10000
}

// Enabled reports whether lookups are cached.
func (c CacheConfig) Enabled() bool { return c.TTL > 0 }

// PostgresConfig holds PostgreSQL key store settings.
type PostgresConfig struct {
	DSN            string        `yaml:"dsn"`
	DSNFile        string        `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32         `yaml:"max_conns"`        // default: 10
	QueryTimeout   time.Duration `yaml:"query_timeout"`    // default: 2s
	MigrateOnStart bool          `yaml:"migrate_on_start"` // default: false
	Method         string        `yaml:"method"`           // default: "keys.postgres"
}

// Enabled reports whether the postgres backend is configured.
func (c PostgresConfig) Enabled() bool { return c.DSN != "" }

// RedisConfig holds Redis key store settings.
type RedisConfig struct {
	Addrs        []string `yaml:"addrs"`
	MasterName   string   `yaml:"master_name"` // enables Sentinel
	Username     string   `yaml:"username"`
	Password     string   `yaml:"password"`
	PasswordFile string   `yaml:"password_file"` // _file variant for password
	DB           int      `yaml:"db"`
	KeyPrefix    string   `yaml:"key_prefix"` // default: "keygate:apikey:"
	Method       string   `yaml:"method"`     // default: "keys.redis"
}

// Enabled reports whether the redis backend is configured.
func (c RedisConfig) Enabled() bool { return len(c.Addrs) > 0 }

// LoggingConfig holds log output settings. KEYGATE_LOG_LEVEL and
// KEYGATE_DEBUG override these at startup.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // default: "INFO"
	Debug  string `yaml:"debug"`  // comma-separated debug categories
	Format string `yaml:"format"` // "text" or "json", default: "text"
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// DefaultStrategyName is the strategy created when none is configured.
const DefaultStrategyName = "api-key"

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			Mode:            "required",
			DefaultDecision: "no",
		},
		KeyStore: KeyStoreConfig{
			Postgres: PostgresConfig{
				MaxConns:     10,
				QueryTimeout: 2 * time.Second,
				Method:       "keys.postgres",
			},
			Redis: RedisConfig{
				KeyPrefix: "keygate:apikey:",
				Method:    "keys.redis",
			},
			Cache: CacheConfig{
				MaxSize: 10000,
			},
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}
