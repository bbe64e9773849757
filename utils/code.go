package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

// CodeLength is the number of digits in a verification code.
const CodeLength = 6

var codeSpace = big.NewInt(1000000) // 000000-999999

var codeFormatRe = regexp.MustCompile(`^[0-9]{6}$`)

// GenerateCode returns a uniformly random 6-digit numeric code using
// crypto/rand. Leading zeros are preserved.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// GenerateSecureToken สร้าง token แบบ hex (length = bytes)
func GenerateSecureToken(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("invalid token length")
	}
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GenerateSalt returns a random per-attestation salt.
func GenerateSalt() (string, error) {
	return GenerateSecureToken(16)
}

// HashCode computes the stored digest for a code: SHA-256 over salt and code.
func HashCode(code, salt string) string {
	sum := sha256.Sum256([]byte(salt + ":" + code))
	return hex.EncodeToString(sum[:])
}

// VerifyCode recomputes the digest for candidate and compares it against the
// stored one in constant time.
func VerifyCode(candidate, storedDigest, salt string) bool {
	computed := HashCode(candidate, salt)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedDigest)) == 1
}

// NormalizeCode trims whitespace around a submitted code.
func NormalizeCode(code string) string {
	return strings.TrimSpace(code)
}

// IsValidCodeFormat reports whether a submitted code looks like a code at
// all. Format failures are rejected before touching the digest.
func IsValidCodeFormat(code string) bool {
	return codeFormatRe.MatchString(code)
}
