package domain

import "time"

type Status string

const (
	StatusPending   Status = "en attente"
	StatusConfirmed Status = "confirmée"
	StatusCancelled Status = "annulée"
	StatusCompleted Status = "terminée"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PayOrange PaymentMethod = "orange"
	PayMTN    PaymentMethod = "mtn"
	PayCash   PaymentMethod = "espèces"
)

func (m PaymentMethod) Valid() bool {
	return m == PayOrange || m == PayMTN || m == PayCash
}

// MobileMoney reports whether the method goes through the phone checkout.
func (m PaymentMethod) MobileMoney() bool {
	return m == PayOrange || m == PayMTN
}

var EventTypes = []string{
	"mariage",
	"anniversaire",
	"conférence",
	"baptême",
	"séminaire",
	"fête",
	"réunion",
	"autre",
}

// ReservationDraft is the in-progress booking form. Stay units use the
// arrival/departure pair; event halls use the event date and time window.
type ReservationDraft struct {
	LastName      string        `json:"last_name"`
	FirstName     string        `json:"first_name"`
	Email         string        `json:"email"`
	ArrivalDate   string        `json:"arrival_date,omitempty"`
	DepartureDate string        `json:"departure_date,omitempty"`
	EventType     string        `json:"event_type,omitempty"`
	EventDate     string        `json:"event_date,omitempty"`
	StartTime     string        `json:"start_time,omitempty"`
	EndTime       string        `json:"end_time,omitempty"`
	Occupants     int           `json:"occupants"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	Notes         string        `json:"notes,omitempty"`
}

// NewDraft returns an empty form with the same defaults the booking pages start from.
func NewDraft(k Kind) ReservationDraft {
	d := ReservationDraft{Occupants: 1, PaymentMethod: PayOrange}
	if k.FlatFee() {
		d.Occupants = 50
		d.EventType = "mariage"
	}
	return d
}

func (d ReservationDraft) FullName() string {
	if d.FirstName == "" {
		return d.LastName
	}
	return d.FirstName + " " + d.LastName
}

// ReservationRecord is a draft accepted by the backend.
type ReservationRecord struct {
	ID        int64            `json:"id"`
	Kind      Kind             `json:"kind"`
	UnitID    int64            `json:"unit_id"`
	Draft     ReservationDraft `json:"draft"`
	Quote     Quote            `json:"quote"`
	Status    Status           `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
}

// Confirm flips a pending record to confirmed.
func (r *ReservationRecord) Confirm() error {
	if r.Status == StatusConfirmed {
		return nil
	}
	if r.Status != StatusPending {
		return ErrInvalidTransition
	}
	r.Status = StatusConfirmed
	return nil
}
