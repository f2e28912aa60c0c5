// Package cryptox holds the password and secret hashing primitives.
package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/dmitrijs2005/medkeeper/internal/common"
	"golang.org/x/crypto/argon2"
)

// SaltSize is the length in bytes of freshly generated salts.
const SaltSize = 16

// DeriveKey stretches secret with argon2id using the project-wide parameters.
func DeriveKey(secret []byte, salt []byte) []byte {
	return argon2.IDKey(secret, salt, 1, 64*1024, 4, 32)
}

// HashSecret derives a key for secret with a new random salt and returns
// both hex encoded.
func HashSecret(secret string) (hash string, salt string) {
	s := common.RandomBytes(SaltSize)
	return hex.EncodeToString(DeriveKey([]byte(secret), s)), hex.EncodeToString(s)
}

// VerifySecret reports whether secret matches the stored hash and salt.
// The comparison is constant-time. Malformed stored values never match.
func VerifySecret(secret, hash, salt string) bool {
	s, err := hex.DecodeString(salt)
	if err != nil {
		return false
	}
	want, err := hex.DecodeString(hash)
	if err != nil {
		return false
	}
	got := DeriveKey([]byte(secret), s)
	defer common.WipeByteArray(got)
	return subtle.ConstantTimeCompare(got, want) == 1
}

// NormalizeAnswer folds a security answer so that comparisons ignore
// surrounding whitespace and letter case.
func NormalizeAnswer(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}

// TokenDigest returns the hex SHA-256 of a bearer token. Session tokens are
// stored under their digest so a registry dump does not leak live tokens.
func TokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
