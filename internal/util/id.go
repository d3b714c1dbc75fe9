package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a URL-safe hex token with 96 bits of entropy, used for
// storage-key filenames and request IDs.
func NewID() string {
	b := make([]byte, 12)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
