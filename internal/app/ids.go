package app

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

func newID() string {
	return uuid.NewString()
}

// newSecret returns a 64-char hex token. Unlike entity IDs these are bearer
// secrets, so they come from crypto/rand directly rather than a UUID layout.
func newSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return uuid.NewString()
	}
	return hex.EncodeToString(b)
}
