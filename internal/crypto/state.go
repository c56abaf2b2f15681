package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
)

const (
	// StateAlphabet is the symbol set OAuth state values are drawn from
	StateAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	// MinStateLength keeps guessing a pending state infeasible while the
	// provider round-trip is in flight
	MinStateLength = 24

	// DefaultStateLength is used when no length is configured
	DefaultStateLength = 30
)

var alphabetSize = big.NewInt(int64(len(StateAlphabet)))

// GenerateState returns length characters drawn uniformly from StateAlphabet,
// or "" when length is not positive. The only failure mode is the system
// entropy source being unavailable.
func GenerateState(length int) (string, error) {
	if length <= 0 {
		return "", nil
	}

	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("failed to read random index: %w", err)
		}
		out[i] = StateAlphabet[n.Int64()]
	}
	return string(out), nil
}

// VerifyState reports whether candidate is exactly expected. An empty
// expected value never verifies: a missing pending request is a mismatch.
func VerifyState(candidate, expected string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(expected)) == 1
}
