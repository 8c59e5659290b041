package booking

import (
	"context"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/hotel-booking/internal/backend"
	"github.com/robertarktes/hotel-booking/internal/domain"
	"github.com/robertarktes/hotel-booking/internal/observability"
	"github.com/robertarktes/hotel-booking/internal/payment"
)

const Currency = "XAF"

type Backend interface {
	GetUnit(ctx context.Context, token string, k domain.Kind, id int64) (*domain.BookableUnit, error)
	CreateReservation(ctx context.Context, token string, k domain.Kind, payload map[string]any) (*backend.Created, error)
	ConfirmReservation(ctx context.Context, token string, k domain.Kind, id int64) error
}

// StateStore holds flow state between requests. Load returns
// domain.ErrNoReservation when nothing is stored.
type StateStore interface {
	Save(ctx context.Context, st *domain.FlowState) error
	Load(ctx context.Context, k domain.Kind, id int64) (*domain.FlowState, error)
}

// Ledger durably records a transition together with its outgoing event.
type Ledger interface {
	Record(ctx context.Context, st *domain.FlowState, eventType string) error
}

// settleTimeout bounds the state writes that follow a payment outcome. They
// run on a context detached from the payment, which may already have expired.
const settleTimeout = 10 * time.Second

type Config struct {
	ConfirmOnServer bool
	PaymentTimeout  time.Duration
}

type Flow struct {
	backend   Backend
	store     StateStore
	ledger    Ledger
	provider  payment.Provider
	validator *payment.OperatorValidator
	cfg       Config
	logger    observability.Logger
	now       func() time.Time

	mu       sync.Mutex
	inflight map[string]*payment.Checkout
	wg       sync.WaitGroup
}

// NewFlow wires the booking workflow. ledger may be nil when no local ledger
// is configured.
func NewFlow(b Backend, store StateStore, ledger Ledger, provider payment.Provider, validator *payment.OperatorValidator, cfg Config, logger observability.Logger) *Flow {
	if cfg.PaymentTimeout <= 0 {
		cfg.PaymentTimeout = 2 * time.Minute
	}
	return &Flow{
		backend:   b,
		store:     store,
		ledger:    ledger,
		provider:  provider,
		validator: validator,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		inflight:  make(map[string]*payment.Checkout),
	}
}

// Lookup returns the carried unit when it is the one asked for, otherwise
// fetches it from the catalog.
func (f *Flow) Lookup(ctx context.Context, token string, k domain.Kind, id int64, carried *domain.BookableUnit) (*domain.BookableUnit, error) {
	if carried != nil && carried.ID == id && carried.Kind == k {
		return carried, nil
	}
	return f.backend.GetUnit(ctx, token, k, id)
}

type QuoteResult struct {
	Unit   *domain.BookableUnit    `json:"unit"`
	Quote  domain.Quote            `json:"quote"`
	Errors domain.ValidationErrors `json:"errors,omitempty"`
}

// Quote prices a partially filled form. Field problems come back in Errors,
// not as an error, so the form can show them while the guest types.
func (f *Flow) Quote(ctx context.Context, token string, k domain.Kind, id int64, d domain.ReservationDraft, carried *domain.BookableUnit) (*QuoteResult, error) {
	unit, err := f.Lookup(ctx, token, k, id, carried)
	if err != nil {
		return nil, err
	}
	res := &QuoteResult{Unit: unit}

	q, err := domain.Price(unit, d)
	if err != nil {
		var verrs domain.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, err
		}
		res.Errors = append(res.Errors, verrs...)
	} else {
		res.Quote = q
	}

	if d.Occupants > 0 {
		var verr *domain.ValidationError
		if err := domain.CheckCapacity(d.Occupants, unit.Capacity); errors.As(err, &verr) {
			res.Errors = append(res.Errors, verr)
		}
	}
	return res, nil
}

type SubmitRequest struct {
	Kind    domain.Kind
	UnitID  int64
	Draft   domain.ReservationDraft
	Carried *domain.BookableUnit
	// Owner is the email of the signed-in user creating the booking.
	Owner string
}

// Caller is who asks for a stored booking. Only its owner and admins see it.
type Caller struct {
	Email string
	Admin bool
}

func (c Caller) owns(st *domain.FlowState) bool {
	return c.Admin || (c.Email != "" && strings.EqualFold(c.Email, st.Owner))
}

// Submit validates locally and, only if everything passes, creates the
// reservation on the backend. There is no retry and no deduplication.
func (f *Flow) Submit(ctx context.Context, token string, req SubmitRequest) (*domain.FlowState, error) {
	kind := req.Kind.String()

	unit, err := f.Lookup(ctx, token, req.Kind, req.UnitID, req.Carried)
	if err != nil {
		observability.SubmissionsTotal.WithLabelValues(kind, "lookup_failed").Inc()
		return nil, err
	}

	quote, err := domain.Assess(unit, req.Draft)
	if err != nil {
		observability.SubmissionsTotal.WithLabelValues(kind, "rejected").Inc()
		return nil, err
	}

	payload := backend.EncodeReservation(req.Kind, unit.ID, req.Draft, quote)
	created, err := f.backend.CreateReservation(ctx, token, req.Kind, payload)
	if err != nil {
		observability.SubmissionsTotal.WithLabelValues(kind, "backend_error").Inc()
		return nil, err
	}

	log := f.logger.WithFields(map[string]interface{}{
		"kind":           kind,
		"reservation_id": created.ID,
	})
	if created.EchoTotal != nil && !sameAmount(*created.EchoTotal, quote.Total) {
		observability.TotalMismatches.WithLabelValues(kind).Inc()
		log.WithFields(map[string]interface{}{
			"computed": quote.Total,
			"echoed":   *created.EchoTotal,
		}).Warn("backend total differs from computed total")
	}

	now := f.now().UTC()
	st := &domain.FlowState{
		Record: domain.ReservationRecord{
			ID:        created.ID,
			Kind:      req.Kind,
			UnitID:    unit.ID,
			Draft:     req.Draft,
			Quote:     quote,
			Status:    domain.StatusPending,
			CreatedAt: now,
		},
		Unit:      *unit,
		Owner:     req.Owner,
		Payment:   domain.PaymentForm,
		UpdatedAt: now,
	}
	if !req.Draft.PaymentMethod.MobileMoney() {
		st.Payment = domain.PaymentOffline
	}

	if err := f.store.Save(ctx, st); err != nil {
		return nil, errors.Wrapf(err, "save flow state for reservation %d", created.ID)
	}
	f.record(ctx, st, domain.EventReservationCreated)

	observability.SubmissionsTotal.WithLabelValues(kind, "created").Inc()
	log.Info("reservation created")
	return st, nil
}

type PaymentRequest struct {
	Operator string `json:"operator"`
	Phone    string `json:"phone"`
}

// StartPayment validates the phone number and sends the confirmation prompt.
// It returns once the flow is in confirmation_sent; the rest runs in the
// background until the provider settles or the payment timeout expires.
func (f *Flow) StartPayment(ctx context.Context, token string, who Caller, k domain.Kind, id int64, req PaymentRequest) (*domain.FlowState, error) {
	st, err := f.load(ctx, who, k, id)
	if err != nil {
		return nil, err
	}
	switch {
	case st.Record.Status == domain.StatusConfirmed:
		return st, nil
	case st.Record.Status != domain.StatusPending:
		return nil, errors.Wrapf(domain.ErrInvalidTransition, "reservation is %s", st.Record.Status)
	case st.Payment == domain.PaymentOffline:
		return nil, errors.Wrap(domain.ErrInvalidTransition, "cash reservations are confirmed by the hotel")
	}

	key := flowKey(k, id)
	operator := req.Operator
	if operator == "" {
		operator = string(st.Record.Draft.PaymentMethod)
	}

	f.mu.Lock()
	_, busy := f.inflight[key]
	if busy || (st.Payment == domain.PaymentConfirmationSent && f.now().Sub(st.UpdatedAt) < f.cfg.PaymentTimeout) {
		f.mu.Unlock()
		return nil, errors.Wrap(domain.ErrConflict, "payment already in progress")
	}
	co := payment.NewCheckout(f.provider, f.validator, func(ctx context.Context, res payment.Result) error {
		return f.confirm(ctx, token, k, id, res)
	}, func(to payment.State, msg string) {
		f.logger.WithFields(map[string]interface{}{"reservation": key, "state": string(to)}).Debug("checkout transition ", msg)
	})
	f.inflight[key] = co
	f.mu.Unlock()

	preq := payment.Request{
		Reference: key,
		Operator:  operator,
		Phone:     req.Phone,
		Amount:    st.Record.Quote.Total,
		Currency:  Currency,
	}
	if err := co.Begin(ctx, preq); err != nil {
		f.release(key)
		if errors.Is(err, domain.ErrInvalidPhone) {
			return nil, err
		}
		f.markFailed(ctx, k, id, co.Error())
		return nil, err
	}

	st.Payment = domain.PaymentConfirmationSent
	st.PaymentError = ""
	st.Operator = operator
	st.TransactionID = co.Request().TransactionID
	st.UpdatedAt = f.now().UTC()
	if err := f.store.Save(ctx, st); err != nil {
		f.logger.WithField("reservation", key).Error("save flow state: ", err)
	}
	f.record(ctx, st, domain.EventPaymentStarted)

	f.wg.Add(1)
	go f.await(k, id, key, co)
	return st, nil
}

func (f *Flow) await(k domain.Kind, id int64, key string, co *payment.Checkout) {
	defer f.wg.Done()
	defer f.release(key)

	ctx, cancel := context.WithTimeout(context.Background(), f.cfg.PaymentTimeout)
	defer cancel()

	if _, err := co.Await(ctx); err != nil {
		f.logger.WithField("reservation", key).Error("payment did not complete: ", err)
		if co.State() == payment.StateFailed {
			f.markFailed(ctx, k, id, co.Error())
		}
	}
}

// confirm is the payment success continuation and the only place a
// reservation becomes confirmée.
func (f *Flow) confirm(ctx context.Context, token string, k domain.Kind, id int64, res payment.Result) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	st, err := f.store.Load(ctx, k, id)
	if err != nil {
		return err
	}
	if err := st.Record.Confirm(); err != nil {
		return err
	}
	st.Payment = domain.PaymentSuccess
	st.PaymentError = ""
	st.TransactionID = res.TransactionID
	st.UpdatedAt = f.now().UTC()
	if err := f.store.Save(ctx, st); err != nil {
		return errors.Wrap(err, "save confirmed state")
	}
	f.record(ctx, st, domain.EventReservationConfirmed)

	if f.cfg.ConfirmOnServer {
		if err := f.backend.ConfirmReservation(ctx, token, k, id); err != nil {
			f.logger.WithField("reservation", flowKey(k, id)).Warn("server-side confirmation failed: ", err)
		}
	}
	return nil
}

func (f *Flow) markFailed(ctx context.Context, k domain.Kind, id int64, msg string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	st, err := f.store.Load(ctx, k, id)
	if err != nil {
		f.logger.WithField("reservation", flowKey(k, id)).Error("load flow state: ", err)
		return
	}
	st.Payment = domain.PaymentFailed
	st.PaymentError = msg
	st.UpdatedAt = f.now().UTC()
	if err := f.store.Save(ctx, st); err != nil {
		f.logger.WithField("reservation", flowKey(k, id)).Error("save flow state: ", err)
		return
	}
	f.record(ctx, st, domain.EventPaymentFailed)
}

// Confirmation returns the stored state for the confirmation view. It never
// goes back to the backend.
func (f *Flow) Confirmation(ctx context.Context, who Caller, k domain.Kind, id int64) (*domain.FlowState, error) {
	return f.load(ctx, who, k, id)
}

// Receipt returns the state for a receipt, which exists only once confirmed.
func (f *Flow) Receipt(ctx context.Context, who Caller, k domain.Kind, id int64) (*domain.FlowState, error) {
	st, err := f.load(ctx, who, k, id)
	if err != nil {
		return nil, err
	}
	if st.Record.Status != domain.StatusConfirmed {
		return nil, domain.ErrNotConfirmed
	}
	return st, nil
}

// load hides bookings from anyone but their owner, answering as if nothing
// were stored.
func (f *Flow) load(ctx context.Context, who Caller, k domain.Kind, id int64) (*domain.FlowState, error) {
	st, err := f.store.Load(ctx, k, id)
	if err != nil {
		return nil, err
	}
	if !who.owns(st) {
		return nil, domain.ErrNoReservation
	}
	return st, nil
}

// Wait blocks until background payments have finished.
func (f *Flow) Wait() {
	f.wg.Wait()
}

func (f *Flow) release(key string) {
	f.mu.Lock()
	delete(f.inflight, key)
	f.mu.Unlock()
}

func (f *Flow) record(ctx context.Context, st *domain.FlowState, eventType string) {
	if f.ledger == nil {
		return
	}
	if err := f.ledger.Record(ctx, st, eventType); err != nil {
		f.logger.WithFields(map[string]interface{}{
			"reservation": flowKey(st.Record.Kind, st.Record.ID),
			"event":       eventType,
		}).Error("ledger write failed: ", err)
	}
}

func flowKey(k domain.Kind, id int64) string {
	return k.String() + "-" + strconv.FormatInt(id, 10)
}

func sameAmount(a, b float64) bool {
	return math.Abs(a-b) < 0.005
}
