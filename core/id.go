package core

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// newSessionToken returns 32 random bytes hex-encoded.
func newSessionToken() (string, error) {
	return randomHex(32)
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}
