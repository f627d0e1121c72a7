// Package isbn validates and normalizes ISBN-10 and ISBN-13
// identifiers. Normalization strips formatting noise (hyphens, spaces,
// the leading "=" spreadsheet-export artifact, surrounding quotes) and
// verifies the checksum, so every downstream layer works with one
// canonical form.
package isbn

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidLength indicates the cleaned input is neither 10 nor 13
	// characters.
	ErrInvalidLength = errors.New("isbn must be 10 or 13 characters")

	// ErrInvalidCharacter indicates a non-digit where a digit is required
	// (X is only valid as the final character of an ISBN-10).
	ErrInvalidCharacter = errors.New("isbn contains an invalid character")

	// ErrInvalidChecksum indicates the check digit does not match.
	ErrInvalidChecksum = errors.New("isbn checksum mismatch")
)

// Normalize cleans formatting noise from raw input and validates the
// result as an ISBN-10 or ISBN-13. The returned string is bare digits
// (with a possible trailing X for ISBN-10), suitable for cache keys and
// provider lookups.
func Normalize(raw string) (string, error) {
	s := clean(raw)

	switch len(s) {
	case 10:
		if err := validate10(s); err != nil {
			return "", err
		}
	case 13:
		if err := validate13(s); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("%w: got %d after cleaning %q", ErrInvalidLength, len(s), raw)
	}

	return s, nil
}

// To13 converts a normalized ISBN-10 to its ISBN-13 form with the 978
// prefix. A normalized ISBN-13 is returned unchanged.
func To13(normalized string) string {
	if len(normalized) != 10 {
		return normalized
	}

	body := "978" + normalized[:9]
	sum := 0
	for i, c := range body {
		digit := int(c - '0')
		if i%2 == 1 {
			digit *= 3
		}
		sum += digit
	}
	check := (10 - sum%10) % 10

	return body + string(rune('0'+check))
}

// clean strips everything that is not a letter or digit: hyphens,
// spaces, the "=" prefix spreadsheet exports add, and quote characters.
// Letters are uppercased so a trailing x check digit becomes X; invalid
// letters survive cleaning and fail validation with a character error
// rather than vanishing silently.
func clean(raw string) string {
	var b strings.Builder
	for _, c := range raw {
		switch {
		case c >= '0' && c <= '9':
			b.WriteRune(c)
		case c >= 'a' && c <= 'z':
			b.WriteRune(c - 'a' + 'A')
		case c >= 'A' && c <= 'Z':
			b.WriteRune(c)
		}
	}
	return b.String()
}

// validate10 checks the mod-11 weighted checksum. Positions 1-9 must be
// digits; the check digit may be X (value 10).
func validate10(s string) error {
	sum := 0
	for i := 0; i < 9; i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return fmt.Errorf("%w: %q at position %d", ErrInvalidCharacter, c, i)
		}
		sum += int(c-'0') * (10 - i)
	}

	check := 0
	switch c := s[9]; {
	case c >= '0' && c <= '9':
		check = int(c - '0')
	case c == 'X':
		check = 10
	default:
		return fmt.Errorf("%w: %q as check digit", ErrInvalidCharacter, c)
	}

	if (sum+check)%11 != 0 {
		return fmt.Errorf("%w: %s", ErrInvalidChecksum, s)
	}
	return nil
}

// validate13 checks the alternating 1/3-weighted mod-10 checksum. All
// thirteen positions must be digits.
func validate13(s string) error {
	sum := 0
	for i := 0; i < 12; i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return fmt.Errorf("%w: %q at position %d", ErrInvalidCharacter, c, i)
		}
		digit := int(c - '0')
		if i%2 == 1 {
			digit *= 3
		}
		sum += digit
	}

	c := s[12]
	if c < '0' || c > '9' {
		return fmt.Errorf("%w: %q as check digit", ErrInvalidCharacter, c)
	}

	if int(c-'0') != (10-sum%10)%10 {
		return fmt.Errorf("%w: %s", ErrInvalidChecksum, s)
	}
	return nil
}
