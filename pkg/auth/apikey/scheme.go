package apikey

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/rhuss/keygate/pkg/auth"
)

// SchemeName is the name the API key scheme registers under.
const SchemeName = "api-key"

// schemeOptions is the configuration shape of an api-key strategy.
type schemeOptions struct {
	HeaderKey string    `yaml:"header_key"`
	QueryKey  string    `yaml:"query_key"`
	APIKeys   yaml.Node `yaml:"api_keys"`
	Validate  string    `yaml:"validate"`
}

// Scheme returns the factory for api-key strategies. Named validate methods
// are resolved against methods when a strategy is built, so a missing
// method fails setup rather than a request.
func Scheme(methods Methods) auth.SchemeFactory {
	return func(name string, decode func(v any) error) (auth.Authenticator, error) {
		var raw schemeOptions
		if err := decode(&raw); err != nil {
			return nil, fmt.Errorf("decoding api-key options: %w", err)
		}

		opts := Options{
			Name:      name,
			HeaderKey: raw.HeaderKey,
			QueryKey:  raw.QueryKey,
			Method:    raw.Validate,
			Methods:   methods,
		}

		if raw.Validate == "" {
			table, err := ParseKeyTable(&raw.APIKeys)
			if err != nil {
				return nil, err
			}
			opts.APIKeys = table
		}

		return New(opts)
	}
}
