package capi

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// defaultCountryCode is prefixed to national numbers written with a trunk zero.
const defaultCountryCode = "90"

// HashEmail lowercases and trims the address before hashing.
func HashEmail(email string) string {
	return hash(strings.ToLower(strings.TrimSpace(email)))
}

// HashPhone keeps digits only and rewrites a national number into
// international form before hashing.
func HashPhone(phone string) string {
	return hash(NormalizePhone(phone))
}

func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	switch {
	case strings.HasPrefix(digits, "00"):
		digits = digits[2:]
	case strings.HasPrefix(digits, "0"):
		digits = defaultCountryCode + digits[1:]
	}
	return digits
}

func hash(v string) string {
	if v == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:])
}
