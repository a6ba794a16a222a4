package auth

import "context"

// credentialsKey is a private type for the credentials context key.
type credentialsKey struct{}

// strategyKey is a private type for the strategy name context key.
type strategyKey struct{}

// SetCredentials stores the authenticated credentials in the context.
func SetCredentials(ctx context.Context, c Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey{}, c)
}

// CredentialsFromContext retrieves the authenticated credentials.
// Returns nil if the request was not authenticated.
func CredentialsFromContext(ctx context.Context) Credentials {
	if v, ok := ctx.Value(credentialsKey{}).(Credentials); ok {
		return v
	}
	return nil
}

// SetStrategy records which strategy authenticated the request.
func SetStrategy(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, strategyKey{}, name)
}

// StrategyFromContext returns the strategy name, or empty string.
func StrategyFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(strategyKey{}).(string); ok {
		return v
	}
	return ""
}
