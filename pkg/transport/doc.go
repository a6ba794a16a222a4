// Package transport provides the HTTP plumbing of the keygate server:
// net/http middleware for request IDs, access logging and panic recovery,
// a JSON error writer, and a Server with graceful shutdown.
//
// # Middleware
//
// Middleware wraps an http.Handler. Chain(a, b, c) produces a(b(c(h))), so
// the first middleware is the outermost wrapper. The server applies
// Recovery, RequestID and Logging before any auth middleware so that
// rejected requests are still logged with their request ID.
package transport
