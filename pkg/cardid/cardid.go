// Package cardid generates and validates health card identifiers and
// the one-time codes that gate record writes.
//
// The wire format all components agree on is HC-NNNN-NNNN: ASCII,
// upper case, 11 characters. A date-seeded HC-YYMM-NNNN variant exists
// for card batches issued per month; it matches the same pattern.
// The generator gives no global uniqueness guarantee; that is the
// storage layer's unique constraint, and callers retry generation on a
// constraint violation.
package cardid

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"
)

const (
	// Prefix is the fixed card ID prefix
	Prefix = "HC"

	// MaxRawLength bounds untrusted input before validation so that
	// unbounded lookup keys never reach storage.
	MaxRawLength = 20

	// OTPLength is the fixed digit width of one-time codes
	OTPLength = 6

	// OTPTTL is how long an issued code stays redeemable. Visit codes
	// and password-reset codes share the same window.
	OTPTTL = 10 * time.Minute
)

var cardIDPattern = regexp.MustCompile(`^HC-\d{4}-\d{4}$`)

// Normalize trims, truncates to MaxRawLength and upper-cases a raw
// identifier. Idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if len(s) > MaxRawLength {
		s = s[:MaxRawLength]
	}
	return strings.ToUpper(strings.TrimSpace(s))
}

// IsValid reports whether the identifier matches HC-NNNN-NNNN after
// normalization. Every boundary crossing validates before any storage
// lookup.
func IsValid(raw string) bool {
	return cardIDPattern.MatchString(Normalize(raw))
}

// Generate produces a random card ID in HC-NNNN-NNNN form from a
// cryptographically strong source.
func Generate() (string, error) {
	a, err := randomDigits(4)
	if err != nil {
		return "", err
	}
	b, err := randomDigits(4)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%s", Prefix, a, b), nil
}

// GenerateDated produces a date-seeded card ID in HC-YYMM-NNNN form.
func GenerateDated(t time.Time) (string, error) {
	suffix, err := randomDigits(4)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%02d%02d-%s", Prefix, t.Year()%100, int(t.Month()), suffix), nil
}

// GenerateOTP produces a uniformly random code of exactly OTPLength
// ASCII digits. Leading zeros are preserved; the code is an opaque
// string, never an integer.
func GenerateOTP() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < OTPLength; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", OTPLength, n), nil
}

// randomDigits returns width uniformly random decimal digits
func randomDigits(width int) (string, error) {
	max := big.NewInt(1)
	for i := 0; i < width; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("failed to generate digits: %w", err)
	}
	return fmt.Sprintf("%0*d", width, n), nil
}
