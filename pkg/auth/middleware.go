package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rhuss/keygate/pkg/debug"
	"github.com/rhuss/keygate/pkg/observability"
)

// Mode controls how the middleware treats a failed authentication.
type Mode string

const (
	// ModeRequired rejects every request that does not authenticate.
	ModeRequired Mode = "required"

	// ModeOptional lets requests without any credentials through
	// unauthenticated, but rejects requests with invalid credentials.
	ModeOptional Mode = "optional"

	// ModeTry lets every request through. Credentials are attached only
	// when authentication succeeds.
	ModeTry Mode = "try"
)

// ParseMode converts a config string into a Mode. Empty means required.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeRequired:
		return ModeRequired, nil
	case ModeOptional, ModeTry:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown auth mode %q", s)
	}
}

// unauthorizedBody is the single failure response. It never says why.
const unauthorizedBody = `{"error":{"type":"unauthorized","message":"Invalid API Key."}}`

// Middleware creates HTTP middleware from an AuthChain.
// It checks the bypass list, runs authentication, applies the mode and
// injects the credentials into the request context.
func Middleware(chain *AuthChain, mode Mode, bypassEndpoints []string) func(http.Handler) http.Handler {
	bypass := make(map[string]bool, len(bypassEndpoints))
	for _, ep := range bypassEndpoints {
		bypass[ep] = true
	}
	if mode == "" {
		mode = ModeRequired
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bypass[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			result := chain.Authenticate(r.Context(), r)

			if result.Decision != Yes || result.Credentials == nil {
				if allowUnauthenticated(mode, result) {
					debug.Log("auth", "continuing unauthenticated",
						"mode", string(mode),
						"path", r.URL.Path,
					)
					next.ServeHTTP(w, r)
					return
				}

				slog.Warn("authentication failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"strategy", result.Strategy,
					"error", result.Err,
				)
				observability.AuthRejectedTotal.WithLabelValues(string(mode)).Inc()
				writeUnauthorized(w)
				return
			}

			debug.Log("auth", "authentication succeeded",
				"strategy", result.Strategy,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)

			ctx := SetCredentials(r.Context(), result.Credentials)
			if result.Strategy != "" {
				ctx = SetStrategy(ctx, result.Strategy)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// allowUnauthenticated reports whether a non-Yes result may proceed.
func allowUnauthenticated(mode Mode, result AuthResult) bool {
	switch mode {
	case ModeTry:
		return true
	case ModeOptional:
		return errors.Is(result.Err, ErrNoCredentials)
	default:
		return false
	}
}

// writeUnauthorized writes the uniform 401 JSON response.
func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "api-key")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(unauthorizedBody + "\n"))
}

// DefaultBypassEndpoints lists endpoints that skip authentication.
var DefaultBypassEndpoints = []string{"/healthz", "/readyz", "/metrics"}
