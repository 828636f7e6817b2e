package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// ChallengeSecretBytes is the entropy of a magic-link secret (256 bits).
const ChallengeSecretBytes = 32

// NewChallengeSecret returns a random hex-encoded magic-link secret and its digest.
// Only the digest may be persisted; the secret goes out-of-band to the user.
func NewChallengeSecret() (secret, digest string, err error) {
	b := make([]byte, ChallengeSecretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	secret = hex.EncodeToString(b)
	return secret, HashChallenge(secret), nil
}

// HashChallenge returns the SHA-256 digest of a magic-link secret, hex-encoded.
func HashChallenge(secret string) string {
	h := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(h[:])
}

// ChallengeDigestEqual compares two digests in constant time.
func ChallengeDigestEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
