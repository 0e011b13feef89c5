package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
)

const joinCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateJoinCode returns an upper-case alphanumeric code of the given length.
func GenerateJoinCode(length int) (string, error) {
	if length <= 0 {
		length = 6
	}
	max := big.NewInt(int64(len(joinCodeAlphabet)))
	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = joinCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}

// GenerateSecureToken returns a random hex token and its sha256 hash.
// Only the hash is meant to be stored.
func GenerateSecureToken(n int) (token string, tokenHash string, err error) {
	if n <= 0 {
		n = 32
	}
	b := make([]byte, n)
	if _, err = rand.Read(b); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(b)
	return token, HashToken(token), nil
}

func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
