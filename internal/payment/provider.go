package payment

import (
	"context"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/hotel-booking/internal/observability"
)

var ErrPaymentDeclined = errors.New("payment declined")

// Request describes one mobile money collection.
type Request struct {
	Reference     string  `json:"reference"`
	Operator      string  `json:"operator"`
	Phone         string  `json:"phone"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	TransactionID string  `json:"transaction_id,omitempty"`
}

type Result struct {
	TransactionID string    `json:"transaction_id"`
	PaidAt        time.Time `json:"paid_at"`
}

// Provider sends the push confirmation to the guest's phone and waits for
// the guest to approve it.
type Provider interface {
	Name() string
	SendConfirmation(ctx context.Context, req Request) (string, error)
	AwaitPayment(ctx context.Context, req Request) (Result, error)
}

// SimulatedProvider never talks to an operator. It waits a fixed delay for
// each step and always succeeds.
type SimulatedProvider struct {
	sendDelay    time.Duration
	confirmDelay time.Duration
	logger       observability.Logger
}

func NewSimulatedProvider(sendDelay, confirmDelay time.Duration, logger observability.Logger) *SimulatedProvider {
	return &SimulatedProvider{sendDelay: sendDelay, confirmDelay: confirmDelay, logger: logger}
}

func (p *SimulatedProvider) Name() string { return "simulated" }

func (p *SimulatedProvider) SendConfirmation(ctx context.Context, req Request) (string, error) {
	if err := sleep(ctx, p.sendDelay); err != nil {
		return "", err
	}
	p.logger.WithFields(map[string]interface{}{
		"phone":    "+" + countryCode + req.Phone,
		"amount":   strconv.FormatFloat(req.Amount, 'f', 0, 64) + " " + req.Currency,
		"operator": req.Operator,
	}).Info("confirmation message sent")
	return "SIM-" + uuid.NewString(), nil
}

func (p *SimulatedProvider) AwaitPayment(ctx context.Context, req Request) (Result, error) {
	if err := sleep(ctx, p.confirmDelay); err != nil {
		return Result{}, err
	}
	return Result{TransactionID: req.TransactionID, PaidAt: time.Now().UTC()}, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
