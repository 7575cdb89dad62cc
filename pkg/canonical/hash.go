package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SHA256Hex computes the SHA-256 of data and returns the 64-character
// lowercase hex digest.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SHA256HexString hashes a string's UTF-8 bytes.
func SHA256HexString(s string) string {
	return SHA256Hex([]byte(s))
}

// Hash computes the SHA-256 hex digest of v's canonical JSON form. This
// is the primary hashing entry point for all protocol primitives.
func Hash(v interface{}) (string, error) {
	b, err := MarshalJSON(v)
	if err != nil {
		return "", err
	}
	return SHA256Hex(b), nil
}

// HashCombine joins hex digests with '|' and hashes the result.
func HashCombine(hashes ...string) string {
	return SHA256HexString(strings.Join(hashes, "|"))
}

// VerifyHash reports whether v's canonical hash equals expected
// (case-insensitive on the expected digest).
func VerifyHash(v interface{}, expected string) (bool, error) {
	actual, err := Hash(v)
	if err != nil {
		return false, err
	}
	return actual == strings.ToLower(expected), nil
}
