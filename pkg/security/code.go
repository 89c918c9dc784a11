package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
)

// CodeDigits is the length of a verification code
const CodeDigits = 6

var codeSpace = big.NewInt(1_000_000)

// GenerateCode returns a uniformly random code in 000000-999999, zero padded
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("failed to generate code, %w", err)
	}

	return fmt.Sprintf("%0*d", CodeDigits, n.Int64()), nil
}

// HashCode returns the hex encoded SHA-256 of a code. Codes are short lived
// and attempt limited so a fast deterministic hash is enough.
func HashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// CompareCode checks a submitted code against a stored hash in constant time
func CompareCode(code, hash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashCode(code)), []byte(hash)) == 1
}
