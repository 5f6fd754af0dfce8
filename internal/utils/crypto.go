package utils

import (
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"
)

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// NewActivationCode returns a fresh single-use account activation code.
func NewActivationCode() string {
	return uuid.NewString()
}

// RandomAlphanumeric returns a random string drawn from [A-Za-z0-9].
// Used for placeholder credentials that must be non-empty but are never
// entered by a human. Kept under bcrypt's 72-byte input limit by callers.
func RandomAlphanumeric(n int) string {
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphanumeric))))
		if err != nil {
			// crypto/rand only fails if the OS entropy source is broken
			panic(err)
		}
		b[i] = alphanumeric[idx.Int64()]
	}
	return string(b)
}
