// Package phone converts raw phone strings into canonical E.164 form.
// Normalization is pure: no storage, no side effects.
package phone

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// ErrInvalidPhoneFormat means the input could not be parsed into a valid
// number even with the region hint applied.
var ErrInvalidPhoneFormat = errors.New("invalid phone number format")

// Result is the outcome of a successful normalization.
type Result struct {
	// Normalized is the E.164 representation, e.g. "+919876543210".
	Normalized string
	// Region is the ISO 3166-1 alpha-2 region of the number, e.g. "IN".
	Region string
}

// Normalize parses raw with defaultRegion as the hint for numbers lacking a
// country code and returns the E.164 form. Deterministic, and idempotent on
// its own output: an already-normalized number round-trips unchanged under
// any region hint because the leading "+" overrides the hint.
func Normalize(raw string, defaultRegion string) (Result, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Result{}, fmt.Errorf("%w: empty input", ErrInvalidPhoneFormat)
	}

	num, err := phonenumbers.Parse(trimmed, strings.ToUpper(defaultRegion))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %q: %v", ErrInvalidPhoneFormat, raw, err)
	}
	if !phonenumbers.IsValidNumber(num) {
		return Result{}, fmt.Errorf("%w: %q is not a valid number", ErrInvalidPhoneFormat, raw)
	}

	return Result{
		Normalized: phonenumbers.Format(num, phonenumbers.E164),
		Region:     phonenumbers.GetRegionCodeForNumber(num),
	}, nil
}
