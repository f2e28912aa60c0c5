package common

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// RandomToken returns n bytes from crypto/rand encoded as lowercase hex, so
// the token is 2*n characters long. Session, invite and reset tokens and
// generated passwords are minted with it.
func RandomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// RandomBytes returns n bytes from crypto/rand. It panics if the system
// random source fails, which leaves nothing safe to continue with.
func RandomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

// WipeByteArray zeroes b in place. Passwords read from the terminal are
// wiped once they have been sent.
func WipeByteArray(b []byte) {
	clear(b)
}
