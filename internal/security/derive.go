package security

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	accessKeyInfo  = "synq access token v1"
	refreshKeyInfo = "synq refresh token v1"
)

// DeriveSigningKeys derives independent HS256 access and refresh keys from a single master secret via HKDF-SHA256.
// salt scopes the derivation (the JWT issuer is a good choice).
func DeriveSigningKeys(master []byte, salt string) (access, refresh SigningKey, err error) {
	if len(master) < MinHMACKeyBytes {
		return SigningKey{}, SigningKey{}, ErrWeakKey
	}
	a, err := deriveKey(master, salt, accessKeyInfo)
	if err != nil {
		return SigningKey{}, SigningKey{}, err
	}
	r, err := deriveKey(master, salt, refreshKeyInfo)
	if err != nil {
		return SigningKey{}, SigningKey{}, err
	}
	if access, err = NewHMACKey(a); err != nil {
		return SigningKey{}, SigningKey{}, err
	}
	if refresh, err = NewHMACKey(r); err != nil {
		return SigningKey{}, SigningKey{}, err
	}
	return access, refresh, nil
}

// GenerateSigningKeys returns two random HS256 keys. Tokens signed with them do not survive a restart;
// used for local development when no key material is configured.
func GenerateSigningKeys() (access, refresh SigningKey, err error) {
	a := make([]byte, MinHMACKeyBytes)
	r := make([]byte, MinHMACKeyBytes)
	if _, err := rand.Read(a); err != nil {
		return SigningKey{}, SigningKey{}, err
	}
	if _, err := rand.Read(r); err != nil {
		return SigningKey{}, SigningKey{}, err
	}
	if access, err = NewHMACKey(a); err != nil {
		return SigningKey{}, SigningKey{}, err
	}
	if refresh, err = NewHMACKey(r); err != nil {
		return SigningKey{}, SigningKey{}, err
	}
	return access, refresh, nil
}

func deriveKey(master []byte, salt, info string) ([]byte, error) {
	out := make([]byte, MinHMACKeyBytes)
	n, err := io.ReadFull(hkdf.New(sha256.New, master, []byte(salt), []byte(info)), out)
	if err != nil {
		return nil, err
	}
	if n != len(out) {
		return nil, errors.New("hkdf: short read")
	}
	return out, nil
}
