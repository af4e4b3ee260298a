// Package validate holds the field normalization and validation rules
// shared by every ingress boundary. Inputs are normalized first
// (trimmed, truncated, canonical case) and only then validated, so
// that comparisons never run on raw client data.
package validate

import (
	"regexp"
	"strings"
	"time"
)

const (
	// MaxTextLength is the default sanitize bound for free text
	MaxTextLength = 2000

	// MaxDiagnosisLength bounds a visit diagnosis
	MaxDiagnosisLength = 500

	// MinDiagnosisLength is the minimum trimmed diagnosis length
	MinDiagnosisLength = 2

	// MaxListItems bounds treatments and allergies lists
	MaxListItems = 20

	// MaxListItemLength bounds a single treatment or allergy entry
	MaxListItemLength = 80

	// MinPasswordLength and MaxPasswordLength bound account passwords.
	// The upper bound is bcrypt's 72-byte input limit.
	MinPasswordLength = 6
	MaxPasswordLength = 72
)

var (
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	fullNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z .'-]{1,79}$`)
	otpPattern      = regexp.MustCompile(`^\d{6}$`)
	phonePattern    = regexp.MustCompile(`^\+?[1-9]\d{9,14}$`)
	phoneStrip      = regexp.MustCompile(`[\s()-]`)
)

var bloodGroups = map[string]struct{}{
	"A+": {}, "A-": {}, "B+": {}, "B-": {},
	"AB+": {}, "AB-": {}, "O+": {}, "O-": {},
}

// BloodGroups lists the accepted ABO/Rh values
func BloodGroups() []string {
	return []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}
}

// SanitizeText trims and truncates free text to maxLength runes
func SanitizeText(value string, maxLength int) string {
	s := strings.TrimSpace(value)
	if runes := []rune(s); len(runes) > maxLength {
		s = strings.TrimSpace(string(runes[:maxLength]))
	}
	return s
}

// NormalizeEmail lower-cases and trims an email address
func NormalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// IsValidEmail reports whether the normalized value is a plausible address
func IsValidEmail(value string) bool {
	return emailPattern.MatchString(NormalizeEmail(value))
}

// IsValidPassword reports whether the trimmed password length is acceptable
func IsValidPassword(value string) bool {
	n := len(strings.TrimSpace(value))
	return n >= MinPasswordLength && n <= MaxPasswordLength
}

// NormalizeFullName trims and truncates a display name
func NormalizeFullName(value string) string {
	return SanitizeText(value, 80)
}

// IsValidFullName reports whether the normalized name is acceptable
func IsValidFullName(value string) bool {
	return fullNamePattern.MatchString(NormalizeFullName(value))
}

// IsValidOTP reports whether the value is exactly six ASCII digits
func IsValidOTP(value string) bool {
	return otpPattern.MatchString(strings.TrimSpace(value))
}

// NormalizeBloodGroup upper-cases and trims a blood group value
func NormalizeBloodGroup(value string) string {
	return strings.ToUpper(SanitizeText(value, 5))
}

// IsValidBloodGroup accepts the empty string or one of the 8 ABO/Rh values
func IsValidBloodGroup(value string) bool {
	normalized := NormalizeBloodGroup(value)
	if normalized == "" {
		return true
	}
	_, ok := bloodGroups[normalized]
	return ok
}

// NormalizePhone strips spaces, parentheses and dashes
func NormalizePhone(value string) string {
	return phoneStrip.ReplaceAllString(SanitizeText(value, 20), "")
}

// IsValidPhone accepts the empty string or an E.164-shaped number
func IsValidPhone(value string) bool {
	normalized := NormalizePhone(value)
	if normalized == "" {
		return true
	}
	return phonePattern.MatchString(normalized)
}

// NormalizeList flattens a list, comma-splitting each entry, trimming
// and dropping empties, truncating entries to MaxListItemLength and the
// list to MaxListItems. Used for both treatments and allergies.
func NormalizeList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, raw := range items {
		for _, part := range strings.Split(raw, ",") {
			item := SanitizeText(part, MaxListItemLength)
			if item == "" {
				continue
			}
			out = append(out, item)
			if len(out) == MaxListItems {
				return out
			}
		}
	}
	return out
}

// IsValidDOB accepts a nil date or one within the last 130 years
func IsValidDOB(value *time.Time) bool {
	if value == nil {
		return true
	}
	now := time.Now()
	oldest := now.AddDate(-130, 0, 0)
	return !value.After(now) && !value.Before(oldest)
}

// ParseDOB parses a date-of-birth string, accepting an empty value
func ParseDOB(value string) (*time.Time, bool) {
	s := strings.TrimSpace(value)
	if s == "" {
		return nil, true
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, IsValidDOB(&t)
		}
	}
	return nil, false
}
