package domain

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	EventReservationCreated   = "reservation.created"
	EventPaymentStarted       = "reservation.payment_started"
	EventPaymentFailed        = "reservation.payment_failed"
	EventReservationConfirmed = "reservation.confirmed"
	EventReservationCancelled = "reservation.cancelled"
	EventStatusChanged        = "reservation.status_changed"
	EventReminderDue          = "reservation.reminder_due"
)

// BookingEvent is published on the event bus for every flow transition.
type BookingEvent struct {
	ID            uuid.UUID   `json:"id"`
	Type          string      `json:"type"`
	Kind          Kind        `json:"kind"`
	ReservationID int64       `json:"reservation_id"`
	UnitID        int64       `json:"unit_id"`
	HotelID       int64       `json:"hotel_id,omitempty"`
	Guest         string      `json:"guest"`
	Email         string      `json:"email"`
	Status        Status      `json:"status"`
	Payment       PaymentStep `json:"payment"`
	Total         float64     `json:"total"`
	StartDate     string      `json:"start_date,omitempty"`
	OccurredAt    time.Time   `json:"occurred_at"`
}

func NewBookingEvent(eventType string, st *FlowState, at time.Time) BookingEvent {
	r := st.Record
	start := r.Draft.ArrivalDate
	if r.Kind.FlatFee() {
		start = r.Draft.EventDate
	}
	return BookingEvent{
		ID:            uuid.New(),
		Type:          eventType,
		Kind:          r.Kind,
		ReservationID: r.ID,
		UnitID:        r.UnitID,
		HotelID:       st.Unit.HotelID,
		Guest:         r.Draft.FullName(),
		Email:         r.Draft.Email,
		Status:        r.Status,
		Payment:       st.Payment,
		Total:         r.Quote.Total,
		StartDate:     start,
		OccurredAt:    at.UTC(),
	}
}

// AggregateID identifies a reservation across kinds, e.g. "room:42".
func (e BookingEvent) AggregateID() string {
	return e.Kind.String() + ":" + strconv.FormatInt(e.ReservationID, 10)
}
