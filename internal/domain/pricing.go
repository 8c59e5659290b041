package domain

import (
	"math"
	"strings"
	"time"
)

const dayMillis = 24 * 60 * 60 * 1000

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// Quote is the priced outcome of a draft against a unit.
type Quote struct {
	Nights    int     `json:"nights,omitempty"`
	UnitPrice float64 `json:"unit_price"`
	Total     float64 `json:"total"`
	FlatFee   bool    `json:"flat_fee,omitempty"`
}

// ParseDate accepts the date forms a browser date input or an API client sends.
// Values without a zone are read as UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrInvalidDates
}

// Nights is ceil((end-start)/1 day) measured in milliseconds.
func Nights(start, end time.Time) int {
	ms := end.Sub(start).Milliseconds()
	return int(math.Ceil(float64(ms) / dayMillis))
}

// StayQuote prices a stay. Both dates must parse and departure must come
// strictly after arrival.
func StayQuote(arrival, departure string, pricePerNight float64) (Quote, error) {
	var errs ValidationErrors

	start, err := ParseDate(arrival)
	if err != nil {
		errs = append(errs, invalid("arrival_date", "invalid arrival date", ErrInvalidDates))
	}
	end, err := ParseDate(departure)
	if err != nil {
		errs = append(errs, invalid("departure_date", "invalid departure date", ErrInvalidDates))
	}
	if len(errs) > 0 {
		return Quote{}, errs
	}

	if !end.After(start) {
		return Quote{}, ValidationErrors{invalid("departure_date", "departure must be after arrival", ErrInvalidDates)}
	}

	nights := Nights(start, end)
	return Quote{
		Nights:    nights,
		UnitPrice: pricePerNight,
		Total:     float64(nights) * pricePerNight,
	}, nil
}

// EventQuote prices an event hall booking: a flat rental fee regardless of
// the window length. An end time earlier than the start runs past midnight.
func EventQuote(date, startTime, endTime string, rentalPrice float64) (Quote, error) {
	var errs ValidationErrors

	if _, err := ParseDate(date); err != nil {
		errs = append(errs, invalid("event_date", "invalid event date", ErrInvalidDates))
	}
	start, errStart := time.Parse("15:04", strings.TrimSpace(startTime))
	if errStart != nil {
		errs = append(errs, invalid("start_time", "invalid start time", ErrInvalidDates))
	}
	end, errEnd := time.Parse("15:04", strings.TrimSpace(endTime))
	if errEnd != nil {
		errs = append(errs, invalid("end_time", "invalid end time", ErrInvalidDates))
	}
	if errStart == nil && errEnd == nil && start.Equal(end) {
		errs = append(errs, invalid("end_time", "end time must differ from start time", ErrInvalidDates))
	}
	if len(errs) > 0 {
		return Quote{}, errs
	}

	return Quote{UnitPrice: rentalPrice, Total: rentalPrice, FlatFee: true}, nil
}

// Price dispatches on the unit's kind.
func Price(unit *BookableUnit, d ReservationDraft) (Quote, error) {
	if unit.Kind.FlatFee() {
		return EventQuote(d.EventDate, d.StartTime, d.EndTime, unit.Price)
	}
	return StayQuote(d.ArrivalDate, d.DepartureDate, unit.Price)
}
