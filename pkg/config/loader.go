package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// apiKeyScheme is the scheme name env overrides apply to.
const apiKeyScheme = "api-key"

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, KEYGATE_CONFIG env, ./config.yaml, /etc/keygate/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	if filePath := discoverConfigFile(configPath); filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if len(cfg.Auth.Strategies) == 0 {
		cfg.Auth.Strategies = []StrategyConfig{{Name: DefaultStrategyName, Scheme: apiKeyScheme}}
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. KEYGATE_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/keygate/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv("KEYGATE_CONFIG"); envPath != "" {
		return envPath
	}
	for _, path := range []string{"config.yaml", "/etc/keygate/config.yaml"} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps KEYGATE_* environment variables to config fields.
// The API key variables edit the options of the first api-key strategy,
// creating it when absent.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("KEYGATE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("KEYGATE_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("KEYGATE_AUTH_MODE"); v != "" {
		cfg.Auth.Mode = v
	}
	if v := os.Getenv("KEYGATE_POSTGRES_DSN"); v != "" {
		cfg.KeyStore.Postgres.DSN = v
	}
	if v := os.Getenv("KEYGATE_REDIS_ADDRS"); v != "" {
		cfg.KeyStore.Redis.Addrs = strings.Split(v, ",")
	}

	opts := map[string]any{}
	if v := os.Getenv("KEYGATE_HEADER_KEY"); v != "" {
		opts["header_key"] = v
	}
	if v := os.Getenv("KEYGATE_QUERY_KEY"); v != "" {
		opts["query_key"] = v
	}
	if v := os.Getenv("KEYGATE_VALIDATE_METHOD"); v != "" {
		opts["validate"] = v
	}
	if v := os.Getenv("KEYGATE_API_KEYS"); v != "" {
		keys, err := parseAPIKeysJSON(v)
		if err != nil {
			return err
		}
		opts["api_keys"] = keys
	}
	if len(opts) == 0 {
		return nil
	}
	return mergeStrategyOptions(cfg, apiKeyScheme, opts)
}

// parseAPIKeysJSON accepts either key table form: an object keyed by token
// or an array of entries carrying a "key" field.
func parseAPIKeysJSON(s string) (any, error) {
	var keys any
	if err := json.Unmarshal([]byte(s), &keys); err != nil {
		return nil, fmt.Errorf("parsing KEYGATE_API_KEYS: %w", err)
	}
	switch keys.(type) {
	case map[string]any, []any:
		return keys, nil
	default:
		return nil, fmt.Errorf("KEYGATE_API_KEYS must be a JSON object or array")
	}
}

// mergeStrategyOptions overlays opts onto the options of the first strategy
// using scheme.
func mergeStrategyOptions(cfg *Config, scheme string, opts map[string]any) error {
	idx := -1
	for i := range cfg.Auth.Strategies {
		if cfg.Auth.Strategies[i].Scheme == scheme {
			idx = i
			break
		}
	}
	if idx < 0 {
		cfg.Auth.Strategies = append(cfg.Auth.Strategies, StrategyConfig{Name: DefaultStrategyName, Scheme: scheme})
		idx = len(cfg.Auth.Strategies) - 1
	}
	s := &cfg.Auth.Strategies[idx]

	merged := map[string]any{}
	if err := s.Decode(&merged); err != nil {
		return fmt.Errorf("auth.strategies[%d].options: %w", idx, err)
	}
	for k, v := range opts {
		merged[k] = v
	}

	var node yaml.Node
	if err := node.Encode(merged); err != nil {
		return fmt.Errorf("auth.strategies[%d].options: %w", idx, err)
	}
	s.Options = node
	return nil
}

// resolveFileReferences reads _file fields and populates the corresponding
// value fields when those are empty. Whitespace is trimmed.
func resolveFileReferences(cfg *Config) error {
	pg := &cfg.KeyStore.Postgres
	if pg.DSNFile != "" && pg.DSN == "" {
		val, err := readSecretFile(pg.DSNFile)
		if err != nil {
			return fmt.Errorf("keystore.postgres.dsn_file: %w", err)
		}
		pg.DSN = val
	}

	rd := &cfg.KeyStore.Redis
	if rd.PasswordFile != "" && rd.Password == "" {
		val, err := readSecretFile(rd.PasswordFile)
		if err != nil {
			return fmt.Errorf("keystore.redis.password_file: %w", err)
		}
		rd.Password = val
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
