package common

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
)

var contentHashPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// ContentHash returns the hex encoded SHA-256 digest of data.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// IsContentHash reports whether s looks like a value produced by ContentHash.
func IsContentHash(s string) bool {
	return contentHashPattern.MatchString(s)
}
