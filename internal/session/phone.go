package session

import (
	"fmt"
	"strings"
	"unicode"
)

// Phone normalization strategies accepted by NormalizerByName.
const (
	PhoneStripFormatting = "strip_formatting"
	PhoneDigitsPlus      = "digits_plus"
)

// PhoneNormalizer rewrites a user-entered phone number before submission.
type PhoneNormalizer func(string) string

// StripPhoneFormatting removes whitespace, parentheses and dashes and keeps
// everything else as typed.
func StripPhoneFormatting(phone string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '(' || r == ')' || r == '-' {
			return -1
		}
		return r
	}, phone)
}

// PhoneDigitsAndPlus keeps digits and a single leading plus sign.
func PhoneDigitsAndPlus(phone string) string {
	phone = strings.TrimSpace(phone)
	var b strings.Builder
	b.Grow(len(phone))
	if strings.HasPrefix(phone, "+") {
		b.WriteByte('+')
	}
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizerByName maps a configuration value to a strategy.
func NormalizerByName(name string) (PhoneNormalizer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PhoneDigitsPlus:
		return PhoneDigitsAndPlus, nil
	case PhoneStripFormatting:
		return StripPhoneFormatting, nil
	default:
		return nil, fmt.Errorf("unknown phone normalization %q", name)
	}
}
