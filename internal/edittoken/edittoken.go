// Package edittoken implements the per-listing bearer-token lifecycle: mint
// a high-entropy plaintext token, store only its hash, and verify
// presentations against that hash in constant time.
package edittoken

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

const tokenBytes = 32

// Mint generates a fresh edit token: 32 cryptographically random bytes,
// URL-safe base64 encoded. The plaintext is returned to the caller exactly
// once; only its hash is ever persisted.
func Mint() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate edit token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Hash returns the hex-encoded SHA-256 digest of a plaintext token. It is
// deterministic and unsalted: the token itself carries 256 bits of entropy.
func Hash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether presented hashes to storedHash, in constant time.
func Verify(presented, storedHash string) bool {
	got := Hash(presented)
	return subtle.ConstantTimeCompare([]byte(got), []byte(storedHash)) == 1
}
