package common

import (
	"crypto/rand"
	"math/big"
)

const (
	tempUppercase = "ABCDEFGHJKMNPQRSTUVWXYZ"
	tempLowercase = "abcdefghjkmnpqrstuvwxyz"
	tempDigits    = "23456789"
	tempSymbols   = "!@#$"
)

// GenerateTempPassword produces a 10-character temporary password with at
// least one uppercase letter, one lowercase letter, one digit and one
// symbol. Ambiguous characters (0/O, 1/l/I) are excluded from the alphabet.
func GenerateTempPassword() (string, error) {
	classes := []string{tempUppercase, tempLowercase, tempDigits, tempSymbols}
	all := tempUppercase + tempLowercase + tempDigits + tempSymbols

	chars := make([]byte, 0, 10)
	for _, class := range classes {
		c, err := randChar(class)
		if err != nil {
			return "", err
		}
		chars = append(chars, c)
	}
	for len(chars) < 10 {
		c, err := randChar(all)
		if err != nil {
			return "", err
		}
		chars = append(chars, c)
	}

	// Fisher-Yates shuffle so the class-guaranteed characters are not
	// always in the leading positions.
	for i := len(chars) - 1; i > 0; i-- {
		j, err := randInt(i + 1)
		if err != nil {
			return "", err
		}
		chars[i], chars[j] = chars[j], chars[i]
	}

	return string(chars), nil
}

func randChar(alphabet string) (byte, error) {
	i, err := randInt(len(alphabet))
	if err != nil {
		return 0, err
	}
	return alphabet[i], nil
}

func randInt(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}
