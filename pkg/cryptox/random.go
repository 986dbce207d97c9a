// Package cryptox holds the small cryptographic helpers of the gateway:
// random tokens for OAuth2 state and PKCE, log safe token fingerprints and
// sealing of persisted credentials.
package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// Entropy sizes in bytes before encoding.
const (
	TokenSize128 = 16
	TokenSize256 = 32
)

// GenerateToken returns size random bytes as unpadded base64url.
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("token size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// S256 returns BASE64URL(SHA256(v)), the PKCE S256 transform.
func S256(v string) string {
	sum := sha256.Sum256([]byte(v))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Fingerprint returns a short stable digest of a secret, safe to log.
func Fingerprint(secret string) string {
	if secret == "" {
		return ""
	}
	return S256(secret)[:12]
}
