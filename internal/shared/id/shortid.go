package id

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	// Base62 alphabet: 0-9, A-Z, a-z
	alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// DefaultLength is the default length for generated short IDs
	DefaultLength = 12

	// RenewalTokenLength is the length of self-service renewal tokens.
	// Longer than a display ID since the token acts as a bearer credential.
	RenewalTokenLength = 32
)

// Prefixes for different entity types (Stripe-style)
const (
	PrefixSubscription = "sub"
	PrefixClient       = "cli"
	PrefixPlan         = "plan"
)

// Generate creates a random short ID with the specified length using Base62 encoding.
// The generated ID is cryptographically random and URL-safe.
func Generate(length int) (string, error) {
	if length <= 0 {
		length = DefaultLength
	}

	result := make([]byte, length)
	alphabetLen := big.NewInt(int64(len(alphabet)))

	for i := 0; i < length; i++ {
		num, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %w", err)
		}
		result[i] = alphabet[num.Int64()]
	}

	return string(result), nil
}

// MustGenerate creates a random short ID and panics on error.
func MustGenerate(length int) string {
	id, err := Generate(length)
	if err != nil {
		panic(err)
	}
	return id
}

// GenerateWithPrefix creates a prefixed ID in the format "prefix_randomstring".
// This follows the Stripe-style ID pattern for human-readable identifiers.
func GenerateWithPrefix(prefix string, length int) (string, error) {
	id, err := Generate(length)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_%s", prefix, id), nil
}

// MustGenerateWithPrefix creates a prefixed ID and panics on error.
func MustGenerateWithPrefix(prefix string, length int) string {
	id, err := GenerateWithPrefix(prefix, length)
	if err != nil {
		panic(err)
	}
	return id
}

// Prefix extracts the prefix from a prefixed ID. Returns an empty string if
// the ID has no prefix separator.
func Prefix(prefixedID string) string {
	idx := strings.IndexByte(prefixedID, '_')
	if idx <= 0 {
		return ""
	}
	return prefixedID[:idx]
}

// ValidatePrefix checks that a prefixed ID carries the expected prefix and a
// non-empty body.
func ValidatePrefix(prefixedID, prefix string) error {
	if Prefix(prefixedID) != prefix {
		return fmt.Errorf("expected %s_ prefix in %q", prefix, prefixedID)
	}
	if len(prefixedID) <= len(prefix)+1 {
		return fmt.Errorf("id %q has an empty body", prefixedID)
	}
	return nil
}
