package payment

import (
	"regexp"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/hotel-booking/internal/domain"
)

const (
	OperatorOrange = "orange"
	OperatorMTN    = "mtn"

	// PhoneDigits is the national significant number length in Cameroon.
	PhoneDigits = 9
	countryCode = "237"
)

var nonDigit = regexp.MustCompile(`\D`)

var operatorNames = map[string]string{
	OperatorOrange: "Orange",
	OperatorMTN:    "MTN",
}

// OperatorValidator checks a mobile money number against the prefix table of
// the operator the guest picked.
type OperatorValidator struct {
	prefixes map[string][]string
}

func NewOperatorValidator(prefixes map[string][]string) *OperatorValidator {
	cp := make(map[string][]string, len(prefixes))
	for op, p := range prefixes {
		cp[strings.ToLower(op)] = append([]string(nil), p...)
	}
	return &OperatorValidator{prefixes: cp}
}

// Sanitize strips everything but digits and drops a leading country code.
func (v *OperatorValidator) Sanitize(phone string) string {
	digits := nonDigit.ReplaceAllString(phone, "")
	if len(digits) == PhoneDigits+len(countryCode) && strings.HasPrefix(digits, countryCode) {
		digits = digits[len(countryCode):]
	}
	return digits
}

// Validate returns the sanitized number or an error naming the valid prefixes.
func (v *OperatorValidator) Validate(operator, phone string) (string, error) {
	operator = strings.ToLower(operator)
	prefixes, ok := v.prefixes[operator]
	if !ok {
		return "", errors.Wrapf(domain.ErrInvalidPhone, "unsupported operator %q", operator)
	}

	sanitized := v.Sanitize(phone)
	if len(sanitized) == PhoneDigits && hasAnyPrefix(sanitized, prefixes) {
		return sanitized, nil
	}
	return "", &PhoneError{Operator: v.Name(operator), Prefixes: prefixes}
}

func (v *OperatorValidator) Prefixes(operator string) []string {
	return v.prefixes[strings.ToLower(operator)]
}

func (v *OperatorValidator) Operators() []string {
	ops := make([]string, 0, len(v.prefixes))
	for op := range v.prefixes {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// Name is the display name of an operator code.
func (v *OperatorValidator) Name(operator string) string {
	if n, ok := operatorNames[operator]; ok {
		return n
	}
	return strings.ToUpper(operator)
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// PhoneError is shown inline under the phone field.
type PhoneError struct {
	Operator string
	Prefixes []string
}

func (e *PhoneError) Error() string {
	return "invalid " + e.Operator + " number, valid prefixes are: " + strings.Join(e.Prefixes, ", ")
}

func (e *PhoneError) Unwrap() error { return domain.ErrInvalidPhone }
