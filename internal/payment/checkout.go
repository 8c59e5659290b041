package payment

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/hotel-booking/internal/domain"
	"github.com/robertarktes/hotel-booking/internal/observability"
)

type State = domain.PaymentStep

const (
	StateForm             = domain.PaymentForm
	StateConfirmationSent = domain.PaymentConfirmationSent
	StateSuccess          = domain.PaymentSuccess
	StateFailed           = domain.PaymentFailed
)

// Checkout drives one payment from the phone form to success. It is safe for
// concurrent use: the HTTP handler reads State while a worker goroutine
// awaits the provider.
type Checkout struct {
	provider  Provider
	validator *OperatorValidator
	onSuccess func(ctx context.Context, res Result) error
	onChange  func(State, string)

	mu      sync.Mutex
	state   State
	sending bool
	req     Request
	result  Result
	errMsg  string
}

// NewCheckout starts in StateForm. onSuccess runs once, after the provider
// reports the payment; onChange (optional) observes every transition.
func NewCheckout(p Provider, v *OperatorValidator, onSuccess func(context.Context, Result) error, onChange func(State, string)) *Checkout {
	return &Checkout{
		provider:  p,
		validator: v,
		onSuccess: onSuccess,
		onChange:  onChange,
		state:     StateForm,
	}
}

// Begin validates the number and sends the confirmation prompt. An invalid
// number leaves the checkout in StateForm.
func (c *Checkout) Begin(ctx context.Context, req Request) error {
	c.mu.Lock()
	if c.sending || (c.state != StateForm && c.state != StateFailed) {
		c.mu.Unlock()
		return errors.Wrapf(domain.ErrInvalidTransition, "checkout is %s", c.state)
	}
	phone, err := c.validator.Validate(req.Operator, req.Phone)
	if err != nil {
		c.state = StateForm
		c.errMsg = err.Error()
		c.mu.Unlock()
		return err
	}
	req.Phone = phone
	c.sending = true
	c.mu.Unlock()

	txID, err := c.provider.SendConfirmation(ctx, req)

	c.mu.Lock()
	c.sending = false
	c.mu.Unlock()
	if err != nil {
		c.fail(err)
		return err
	}
	req.TransactionID = txID

	c.mu.Lock()
	c.req = req
	c.errMsg = ""
	c.mu.Unlock()
	c.transition(StateConfirmationSent, "")
	return nil
}

// Await blocks until the provider settles the payment. Success runs the
// continuation; a failed continuation is reported but the payment itself
// stays successful.
func (c *Checkout) Await(ctx context.Context) (Result, error) {
	c.mu.Lock()
	if c.state != StateConfirmationSent {
		st := c.state
		c.mu.Unlock()
		return Result{}, errors.Wrapf(domain.ErrInvalidTransition, "checkout is %s", st)
	}
	req := c.req
	c.mu.Unlock()

	res, err := c.provider.AwaitPayment(ctx, req)
	if err != nil {
		c.fail(err)
		observability.PaymentsTotal.WithLabelValues(c.provider.Name(), "failed").Inc()
		return Result{}, err
	}

	c.mu.Lock()
	c.result = res
	c.mu.Unlock()
	c.transition(StateSuccess, "")
	observability.PaymentsTotal.WithLabelValues(c.provider.Name(), "success").Inc()

	if c.onSuccess != nil {
		if err := c.onSuccess(ctx, res); err != nil {
			return res, errors.Wrap(err, "payment continuation")
		}
	}
	return res, nil
}

func (c *Checkout) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Error is the last message to show next to the form, if any.
func (c *Checkout) Error() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}

func (c *Checkout) Request() Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.req
}

func (c *Checkout) fail(err error) {
	c.transition(StateFailed, "payment processing failed: "+err.Error())
}

func (c *Checkout) transition(to State, msg string) {
	c.mu.Lock()
	c.state = to
	if msg != "" {
		c.errMsg = msg
	}
	cb := c.onChange
	c.mu.Unlock()
	if cb != nil {
		cb(to, msg)
	}
}
