// Package symbol handles stock ticker symbol normalization and validation.
package symbol

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// symbolRegex matches: {ROOT}[.{CLASS}|-{CLASS}]
// Examples: AAPL, BRK.B, RDS-A, 7203
var symbolRegex = regexp.MustCompile(
	`^[A-Z0-9]{1,10}([.\-][A-Z0-9]{1,4})?$`,
)

var (
	ErrEmpty   = errors.New("symbol: symbol is required")
	ErrInvalid = errors.New("symbol: invalid symbol format")
)

// Parse trims and upper-cases a raw symbol and validates its format.
// Format: {ROOT}[.{CLASS}] where ROOT is 1-10 alphanumerics.
func Parse(raw string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return "", ErrEmpty
	}
	if !symbolRegex.MatchString(s) {
		return "", fmt.Errorf("%w: %q (expected e.g. AAPL or BRK.B)", ErrInvalid, raw)
	}
	return s, nil
}
