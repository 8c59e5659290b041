package domain

import "github.com/cockroachdb/errors"

var (
	ErrSerializationFailure = errors.New("serialization failure")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrInvalidInput         = errors.New("invalid input")
	ErrUnknownKind          = errors.New("unknown unit kind")
	ErrInvalidDates         = errors.New("invalid dates")
	ErrCapacityExceeded     = errors.New("capacity exceeded")
	ErrUnitUnavailable      = errors.New("unit unavailable")
	ErrNoReservation        = errors.New("no reservation found")
	ErrInvalidPhone         = errors.New("invalid phone number")
	ErrInvalidTransition    = errors.New("invalid state transition")
	ErrNotConfirmed         = errors.New("reservation not confirmed")
)

// ValidationError is an inline, per-field problem with user input.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	cause   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	if e.cause != nil {
		return e.cause
	}
	return ErrInvalidInput
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

func invalid(field, msg string, cause error) *ValidationError {
	return &ValidationError{Field: field, Message: msg, cause: cause}
}

// ValidationErrors collects every field error found in one pass so they can
// all be shown next to the form at once.
type ValidationErrors []*ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "no validation errors"
	}
	msg := v[0].Error()
	if len(v) > 1 {
		msg += " (and " + itoa(int64(len(v)-1)) + " more)"
	}
	return msg
}

// Is reports a match if any contained error matches target.
func (v ValidationErrors) Is(target error) bool {
	for _, e := range v {
		if errors.Is(e, target) {
			return true
		}
	}
	return false
}

func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}
