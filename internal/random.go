// Package internal holds small helpers shared by the engine packages.
package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"math/big"
)

// NewOTP returns a zero-padded numeric code with the given number of digits,
// drawn from crypto/rand. Rejection sampling is hidden inside math/big.
func NewOTP(digits int) (string, error) {
	max := big.NewInt(10)
	for i := 1; i < digits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	s := n.String()
	for len(s) < digits {
		s = "0" + s
	}
	return s, nil
}

// NewSessionToken returns an opaque 24-byte token encoded as unpadded
// base64url. The token is a bearer secret; it never embeds user data.
func NewSessionToken() (string, error) {
	var buf [24]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf[:]), nil
}

// HashCode returns the SHA-256 digest of a short secret such as an OTP code.
// Stored challenges keep only the digest so a Redis dump never leaks codes.
func HashCode(code string) [32]byte {
	return sha256.Sum256([]byte(code))
}
