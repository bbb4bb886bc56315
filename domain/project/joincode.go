package project

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	// JoinCodeLength is the number of characters in a join code
	JoinCodeLength = 8

	joinCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateJoinCode returns a random 8 character uppercase alphanumeric code.
// Uniqueness is enforced by the store, callers retry on conflict.
func GenerateJoinCode() (string, error) {
	var b strings.Builder
	b.Grow(JoinCodeLength)
	max := big.NewInt(int64(len(joinCodeAlphabet)))
	for i := 0; i < JoinCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate join code: %w", err)
		}
		b.WriteByte(joinCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// NormalizeJoinCode trims and upper-cases user input
func NormalizeJoinCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValidJoinCode checks the 8 uppercase alphanumeric format
func IsValidJoinCode(code string) bool {
	if len(code) != JoinCodeLength {
		return false
	}
	for _, c := range code {
		if !strings.ContainsRune(joinCodeAlphabet, c) {
			return false
		}
	}
	return true
}
