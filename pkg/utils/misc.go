package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// HashContent returns the hex sha256 of data.
func HashContent(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// HashStrings hashes parts joined by NUL, so ["ab"] and ["a","b"] differ.
func HashStrings(parts ...string) string {
	return HashContent([]byte(strings.Join(parts, "\x00")))
}

// NewID returns a random identifier for journal entries.
func NewID() string {
	return uuid.NewString()
}
