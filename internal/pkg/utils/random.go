package utils

import (
	"crypto/rand"
	"math/big"
)

const upperAlphaNum = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomCode returns n characters drawn uniformly from A-Z and 0-9.
func RandomCode(n int) (string, error) {
	return randomFrom(upperAlphaNum, n)
}

// RandomToken returns n URL-safe alphanumeric characters.
func RandomToken(n int) (string, error) {
	return randomFrom("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789", n)
}

func randomFrom(alphabet string, n int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = alphabet[idx.Int64()]
	}
	return string(buf), nil
}
