package domain

import "time"

type PaymentStep string

const (
	PaymentForm             PaymentStep = "form"
	PaymentConfirmationSent PaymentStep = "confirmation_sent"
	PaymentSuccess          PaymentStep = "success"
	PaymentFailed           PaymentStep = "failed"
	// PaymentOffline is cash on arrival: no checkout, an admin confirms later.
	PaymentOffline PaymentStep = "offline"
)

// FlowState is everything the confirmation and receipt views need about one
// booking, captured at submission and updated as the payment progresses.
type FlowState struct {
	Record        ReservationRecord `json:"record"`
	Unit          BookableUnit      `json:"unit"`
	Owner         string            `json:"owner,omitempty"`
	Payment       PaymentStep       `json:"payment"`
	PaymentError  string            `json:"payment_error,omitempty"`
	Operator      string            `json:"operator,omitempty"`
	TransactionID string            `json:"transaction_id,omitempty"`
	UpdatedAt     time.Time         `json:"updated_at"`
}
