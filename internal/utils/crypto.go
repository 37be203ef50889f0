// internal/utils/crypto.go
package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"
)

// HashString returns the hex SHA-256 of input.
func HashString(input string) string {
	hasher := sha256.New()
	hasher.Write([]byte(input))
	return hex.EncodeToString(hasher.Sum(nil))
}

// HashParts joins parts with '|' and returns the hex SHA-256 of the result.
func HashParts(parts ...string) string {
	return HashString(strings.Join(parts, "|"))
}

// Sha3Hex returns the hex SHA3-256 digest of data.
func Sha3Hex(data []byte) string {
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
