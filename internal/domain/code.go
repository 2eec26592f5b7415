package domain

import (
	"crypto/rand"
	"math/big"
	"regexp"
	"strings"
)

const (
	referralAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	referralCodeLength = 7
)

var referralCodePattern = regexp.MustCompile(`^[A-Z0-9]+-[A-Z0-9]{7}$`)

// GenerateReferralCode returns prefix followed by seven uppercase alphanumerics.
func GenerateReferralCode(prefix string) (string, error) {
	var sb strings.Builder
	sb.WriteString(prefix)
	max := big.NewInt(int64(len(referralAlphabet)))
	for i := 0; i < referralCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(referralAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

// NormalizeCode trims and upper-cases user input.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// LooksLikeReferralCode is a cheap shape check before hitting the store.
func LooksLikeReferralCode(code string) bool {
	return referralCodePattern.MatchString(code)
}
