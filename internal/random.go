package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

// ID is a 16-byte random identifier for sessions and reset records.
type ID [16]byte

const (
	// SecretSize is the byte length of opaque token secrets.
	SecretSize = 32

	tokenRawSize = len(ID{}) + SecretSize
)

var ErrTokenMalformed = errors.New("malformed opaque token")

// NewID returns a fresh random identifier.
func NewID() (ID, error) {
	var id ID
	_, err := rand.Read(id[:])
	return id, err
}

func (id ID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(id[:])
}

// ParseID decodes the string form produced by [ID.String].
func ParseID(s string) (ID, error) {
	var id ID

	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return id, ErrTokenMalformed
	}
	if len(raw) != len(id) {
		return id, ErrTokenMalformed
	}

	copy(id[:], raw)
	return id, nil
}

// NewSecret returns a fresh random opaque token secret.
func NewSecret() ([SecretSize]byte, error) {
	var secret [SecretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

// HashSecret derives the storable digest of an opaque token secret.
func HashSecret(secret [SecretSize]byte) [32]byte {
	return sha256.Sum256(secret[:])
}

// HashToken derives a fixed-size digest of an arbitrary token string, used as
// index key material so raw tokens never appear in store keys.
func HashToken(token string) [32]byte {
	return sha256.Sum256([]byte(token))
}

// EncodeToken packs a record id and its secret into the opaque wire form.
func EncodeToken(recordID string, secret [SecretSize]byte) (string, error) {
	id, err := ParseID(recordID)
	if err != nil {
		return "", err
	}

	var raw [tokenRawSize]byte
	copy(raw[:len(id)], id[:])
	copy(raw[len(id):], secret[:])

	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// DecodeToken splits an opaque token back into record id and secret.
func DecodeToken(token string) (string, [SecretSize]byte, error) {
	var secret [SecretSize]byte

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", secret, ErrTokenMalformed
	}
	if len(raw) != tokenRawSize {
		return "", secret, ErrTokenMalformed
	}

	var id ID
	copy(id[:], raw[:len(id)])
	copy(secret[:], raw[len(id):])

	return id.String(), secret, nil
}
