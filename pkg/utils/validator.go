package utils

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxFileNameLength caps sanitized file names, counted in characters
const MaxFileNameLength = 120

// ValidateAmount validates a reimbursement amount
func ValidateAmount(amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive: %.2f", amount)
	}
	return nil
}

// SanitizeFileName strips path separators, whitespace and control characters
// and caps the result at MaxFileNameLength characters.
func SanitizeFileName(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	count := 0
	for _, r := range name {
		if r == utf8.RuneError || r == '/' || r == '\\' || unicode.IsSpace(r) || unicode.IsControl(r) {
			continue
		}
		if count == MaxFileNameLength {
			break
		}
		b.WriteRune(r)
		count++
	}

	// a bare ".." would still climb a directory once joined
	out := strings.Trim(b.String(), ".")
	return out
}

// SanitizeString removes control characters
func SanitizeString(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
