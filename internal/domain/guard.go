package domain

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// CheckCapacity rejects occupancy above the unit's capacity.
func CheckCapacity(occupants, capacity int) error {
	if v := capacityError(occupants, capacity); v != nil {
		return v
	}
	return nil
}

func capacityError(occupants, capacity int) *ValidationError {
	if occupants <= capacity {
		return nil
	}
	return invalid("occupants", fmt.Sprintf("this unit can only accommodate %d people", capacity), ErrCapacityExceeded)
}

// ValidateDraft runs the required-field checks for a kind. Pricing and
// capacity are checked separately.
func ValidateDraft(k Kind, d ReservationDraft) ValidationErrors {
	var errs ValidationErrors

	if strings.TrimSpace(d.LastName) == "" {
		errs = append(errs, invalid("last_name", "last name is required", nil))
	}
	if strings.TrimSpace(d.FirstName) == "" {
		errs = append(errs, invalid("first_name", "first name is required", nil))
	}
	if email := strings.TrimSpace(d.Email); email == "" || !strings.Contains(email, "@") {
		errs = append(errs, invalid("email", "a valid email is required", nil))
	}
	if d.Occupants < 1 {
		errs = append(errs, invalid("occupants", "at least one person is required", nil))
	}
	if !d.PaymentMethod.Valid() {
		errs = append(errs, invalid("payment_method", "unknown payment method", nil))
	}
	if k.FlatFee() && !validEventType(d.EventType) {
		errs = append(errs, invalid("event_type", "unknown event type", nil))
	}
	return errs
}

func validEventType(t string) bool {
	for _, et := range EventTypes {
		if t == et {
			return true
		}
	}
	return false
}

// Assess is the full pre-submission check: required fields, pricing, then
// capacity and availability. Nothing here touches the network.
func Assess(unit *BookableUnit, d ReservationDraft) (Quote, error) {
	errs := ValidateDraft(unit.Kind, d)

	quote, err := Price(unit, d)
	if err != nil {
		var perr ValidationErrors
		if !errors.As(err, &perr) {
			return Quote{}, err
		}
		errs = append(errs, perr...)
	}

	if v := capacityError(d.Occupants, unit.Capacity); v != nil {
		errs = append(errs, v)
	}
	if len(errs) > 0 {
		return Quote{}, errs
	}

	if !unit.Available {
		return Quote{}, ErrUnitUnavailable
	}
	return quote, nil
}
