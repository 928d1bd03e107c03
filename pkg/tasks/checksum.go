package tasks

import (
	"crypto/sha512"
	"encoding/hex"
)

// Sha512 returns the lowercase hex SHA-512 digest of the input. All content
// comparisons in the file modules use this digest.
func Sha512(input string) string {
	sum := sha512.Sum512([]byte(input))
	return hex.EncodeToString(sum[:])
}

// Sha512Bytes is Sha512 over raw bytes.
func Sha512Bytes(input []byte) string {
	sum := sha512.Sum512(input)
	return hex.EncodeToString(sum[:])
}
