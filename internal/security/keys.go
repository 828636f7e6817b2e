package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidKey is returned when PEM or key type is invalid.
var ErrInvalidKey = errors.New("invalid key")

// ErrWeakKey is returned when an HMAC secret is shorter than MinHMACKeyBytes.
var ErrWeakKey = errors.New("hmac secret too short")

// MinHMACKeyBytes is the minimum HMAC secret length accepted for HS256.
const MinHMACKeyBytes = 32

const filePrefix = "file:"

// SigningKey is the key material for one token kind: an HMAC secret (HS256) or an RSA/ECDSA key pair (RS256/ES256).
type SigningKey struct {
	method jwt.SigningMethod
	sign   any
	verify any
}

// NewHMACKey returns an HS256 SigningKey for secret.
func NewHMACKey(secret []byte) (SigningKey, error) {
	if len(secret) < MinHMACKeyBytes {
		return SigningKey{}, ErrWeakKey
	}
	b := make([]byte, len(secret))
	copy(b, secret)
	return SigningKey{method: jwt.SigningMethodHS256, sign: b, verify: b}, nil
}

// NewKeyPair returns an RS256 or ES256 SigningKey. pub may be nil, in which case priv.Public() is used.
func NewKeyPair(priv crypto.Signer, pub crypto.PublicKey) (SigningKey, error) {
	if priv == nil {
		return SigningKey{}, ErrInvalidKey
	}
	if pub == nil {
		pub = priv.Public()
	}
	var method jwt.SigningMethod
	switch KeyAlg(pub) {
	case "RS256":
		method = jwt.SigningMethodRS256
	case "ES256":
		method = jwt.SigningMethodES256
	default:
		return SigningKey{}, ErrInvalidKey
	}
	if KeyAlg(priv.Public()) != method.Alg() {
		return SigningKey{}, ErrInvalidKey
	}
	return SigningKey{method: method, sign: priv, verify: pub}, nil
}

// LoadSigningKey builds a SigningKey from configuration. secret is inline PEM, "file:<path>" to a PEM file,
// or a raw HMAC secret. publicKey is optional and only used with PEM private keys.
func LoadSigningKey(secret, publicKey string) (SigningKey, error) {
	s := strings.TrimSpace(secret)
	if !isPEMRef(s) {
		return NewHMACKey([]byte(s))
	}
	priv, err := ParsePrivateKey(s)
	if err != nil {
		return SigningKey{}, err
	}
	var pub crypto.PublicKey
	if strings.TrimSpace(publicKey) != "" {
		if pub, err = ParsePublicKey(publicKey); err != nil {
			return SigningKey{}, err
		}
	}
	return NewKeyPair(priv, pub)
}

// Alg returns the JWT alg of the key (HS256, RS256 or ES256).
func (k SigningKey) Alg() string {
	if k.method == nil {
		return ""
	}
	return k.method.Alg()
}

// Equal reports whether k and o hold the same verification material.
func (k SigningKey) Equal(o SigningKey) bool {
	if k.Alg() != o.Alg() {
		return false
	}
	switch v := k.verify.(type) {
	case []byte:
		ov, ok := o.verify.([]byte)
		return ok && hmac.Equal(v, ov)
	case interface{ Equal(crypto.PublicKey) bool }:
		return v.Equal(o.verify)
	default:
		return false
	}
}

func isPEMRef(s string) bool {
	return strings.HasPrefix(s, "-----BEGIN") || strings.HasPrefix(s, filePrefix)
}

// LoadPEM returns inline PEM content, or reads it from the path when s is "file:<path>" or a bare path.
// Literal "\n" sequences (common in env vars) are converted to newlines.
func LoadPEM(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidKey
	}
	if strings.HasPrefix(s, "-----BEGIN") {
		return []byte(strings.ReplaceAll(s, `\n`, "\n")), nil
	}
	return os.ReadFile(strings.TrimPrefix(s, filePrefix))
}

// ParsePrivateKey parses a PEM-encoded private key (RSA or ECDSA). s may be inline PEM or a file path.
func ParsePrivateKey(s string) (crypto.Signer, error) {
	pemBytes, err := LoadPEM(s)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, ErrInvalidKey
	}
	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, ErrInvalidKey
		}
		return signer, nil
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	default:
		return nil, ErrInvalidKey
	}
}

// ParsePublicKey parses a PEM-encoded public key (RSA or ECDSA). s may be inline PEM or a file path.
func ParsePublicKey(s string) (crypto.PublicKey, error) {
	pemBytes, err := LoadPEM(s)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, ErrInvalidKey
	}
	switch block.Type {
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(block.Bytes)
	case "PUBLIC KEY":
		return x509.ParsePKIXPublicKey(block.Bytes)
	default:
		return nil, ErrInvalidKey
	}
}

// KeyAlg returns "RS256" for RSA and "ES256" for ECDSA P-256; empty otherwise.
func KeyAlg(pub crypto.PublicKey) string {
	switch k := pub.(type) {
	case *rsa.PublicKey:
		return "RS256"
	case *ecdsa.PublicKey:
		if k.Curve != nil && k.Curve.Params().Name == "P-256" {
			return "ES256"
		}
		return ""
	default:
		return ""
	}
}
