package auth

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken returns the lowercase hex SHA-256 of a raw token. Only this digest
// is ever persisted.
func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}
