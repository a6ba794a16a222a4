// Package auth provides pluggable request authentication for keygate.
//
// Authentication uses a chain-of-responsibility pattern with three-outcome
// voting: each authenticator returns Yes (credentials found), No (credentials
// invalid), or Abstain (nothing it can handle). A configurable default voter
// decides when all authenticators abstain.
//
// Schemes are named constructors (the API key scheme registers itself as
// "api-key"); strategies are configured instances of a scheme. Auth is
// implemented as HTTP middleware, and the authenticated credentials are
// injected into the request context for downstream handlers.
package auth
