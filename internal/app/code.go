package app

import (
	"crypto/rand"
	"math/big"
)

// codeCharset omits characters that are easy to misread when typed (0/O, 1/I).
const codeCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// DefaultCodeLength is the length of generated room codes.
const DefaultCodeLength = 5

// GenerateCode returns a random, human-typeable room code.
func GenerateCode(length int) (string, error) {
	if length <= 0 {
		length = DefaultCodeLength
	}
	code := make([]byte, length)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeCharset))))
		if err != nil {
			return "", err
		}
		code[i] = codeCharset[num.Int64()]
	}
	return string(code), nil
}
