// Package keystore groups the external lookup backends for API keys. Each
// backend exposes a Validate method with the apikey.ValidateFunc signature
// so it can be registered as a named method.
package keystore

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken returns the hex-encoded SHA-256 digest of token. Backends that
// persist keys store the digest, never the token itself.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
