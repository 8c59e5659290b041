package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/robertarktes/hotel-booking/internal/booking"
	"github.com/robertarktes/hotel-booking/internal/domain"
	"github.com/robertarktes/hotel-booking/internal/observability"
	"github.com/robertarktes/hotel-booking/internal/payment"
	"github.com/robertarktes/hotel-booking/internal/receipt"
	"github.com/robertarktes/hotel-booking/internal/session"
)

// BookingService is the guest-facing workflow, implemented by booking.Flow.
type BookingService interface {
	Lookup(ctx context.Context, token string, k domain.Kind, id int64, carried *domain.BookableUnit) (*domain.BookableUnit, error)
	Quote(ctx context.Context, token string, k domain.Kind, id int64, d domain.ReservationDraft, carried *domain.BookableUnit) (*booking.QuoteResult, error)
	Submit(ctx context.Context, token string, req booking.SubmitRequest) (*domain.FlowState, error)
	StartPayment(ctx context.Context, token string, who booking.Caller, k domain.Kind, id int64, req booking.PaymentRequest) (*domain.FlowState, error)
	Confirmation(ctx context.Context, who booking.Caller, k domain.Kind, id int64) (*domain.FlowState, error)
	Receipt(ctx context.Context, who booking.Caller, k domain.Kind, id int64) (*domain.FlowState, error)
}

// Checker reports whether a dependency is usable.
type Checker func(ctx context.Context) error

type Handlers struct {
	bookings  BookingService
	admin     AdminService
	operators *payment.OperatorValidator
	checks    map[string]Checker
	logger    observability.Logger
	now       func() time.Time
}

func NewHandlers(bookings BookingService, admin AdminService, operators *payment.OperatorValidator, checks map[string]Checker, logger observability.Logger) *Handlers {
	return &Handlers{
		bookings:  bookings,
		admin:     admin,
		operators: operators,
		checks:    checks,
		logger:    logger,
		now:       time.Now,
	}
}

func kindParam(r *http.Request) (domain.Kind, error) {
	return domain.ParseKind(chi.URLParam(r, "kind"))
}

func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, &domain.ValidationError{Field: "id", Message: "invalid id"}
	}
	return id, nil
}

func unitRef(r *http.Request) (domain.Kind, int64, error) {
	k, err := kindParam(r)
	if err != nil {
		return domain.Kind{}, 0, err
	}
	id, err := idParam(r)
	if err != nil {
		return domain.Kind{}, 0, err
	}
	return k, id, nil
}

func token(r *http.Request) string {
	if s, ok := session.FromContext(r.Context()); ok {
		return s.Token
	}
	return ""
}

func caller(r *http.Request) booking.Caller {
	s, ok := session.FromContext(r.Context())
	if !ok {
		return booking.Caller{}
	}
	return booking.Caller{Email: s.User.Email, Admin: s.IsAdmin()}
}

// draftRequest is the booking form. Unit is the unit the client already
// carries from the catalog page, if any.
type draftRequest struct {
	UnitID int64                `json:"unit_id"`
	Unit   *domain.BookableUnit `json:"unit,omitempty"`
	domain.ReservationDraft
}

func decodeDraft(r *http.Request, k domain.Kind) (*draftRequest, error) {
	req := &draftRequest{ReservationDraft: domain.NewDraft(k)}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		return nil, &domain.ValidationError{Field: "body", Message: "malformed JSON body"}
	}
	if req.UnitID <= 0 {
		return nil, &domain.ValidationError{Field: "unit_id", Message: "unit_id is required"}
	}
	return req, nil
}

func (h *Handlers) GetUnit(w http.ResponseWriter, r *http.Request) {
	k, id, err := unitRef(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	unit, err := h.bookings.Lookup(r.Context(), token(r), k, id, nil)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, unit)
}

// Quote always answers 200; field problems are listed in "errors".
func (h *Handlers) Quote(w http.ResponseWriter, r *http.Request) {
	k, err := kindParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := decodeDraft(r, k)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.bookings.Quote(r.Context(), token(r), k, req.UnitID, req.ReservationDraft, req.Unit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	k, err := kindParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := decodeDraft(r, k)
	if err != nil {
		writeError(w, r, err)
		return
	}
	st, err := h.bookings.Submit(r.Context(), token(r), booking.SubmitRequest{
		Kind:    k,
		UnitID:  req.UnitID,
		Draft:   req.ReservationDraft,
		Carried: req.Unit,
		Owner:   caller(r).Email,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", bookingPath(st))
	writeJSON(w, http.StatusCreated, newConfirmationView(st))
}

func (h *Handlers) StartPayment(w http.ResponseWriter, r *http.Request) {
	k, id, err := unitRef(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req booking.PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, &domain.ValidationError{Field: "body", Message: "malformed JSON body"})
		return
	}
	st, err := h.bookings.StartPayment(r.Context(), token(r), caller(r), k, id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusAccepted
	if st.Record.Status == domain.StatusConfirmed {
		status = http.StatusOK
	}
	writeJSON(w, status, newConfirmationView(st))
}

func (h *Handlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	k, id, err := unitRef(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	st, err := h.bookings.Confirmation(r.Context(), caller(r), k, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newConfirmationView(st))
}

func (h *Handlers) ReceiptHTML(w http.ResponseWriter, r *http.Request) {
	h.serveReceipt(w, r, "html", "text/html; charset=utf-8", receipt.RenderHTML)
}

func (h *Handlers) ReceiptPDF(w http.ResponseWriter, r *http.Request) {
	h.serveReceipt(w, r, "pdf", "application/pdf", receipt.RenderPDF)
}

func (h *Handlers) serveReceipt(w http.ResponseWriter, r *http.Request, ext, contentType string, render func(w io.Writer, rc receipt.Receipt) error) {
	k, id, err := unitRef(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	st, err := h.bookings.Receipt(r.Context(), caller(r), k, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := render(&buf, receipt.FromState(st, h.now())); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+receipt.Filename(st.Record.ID, ext)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

type operatorView struct {
	Code     string   `json:"code"`
	Name     string   `json:"name"`
	Prefixes []string `json:"prefixes"`
}

func (h *Handlers) PaymentOperators(w http.ResponseWriter, r *http.Request) {
	out := make([]operatorView, 0)
	for _, op := range h.operators.Operators() {
		out = append(out, operatorView{Code: op, Name: h.operators.Name(op), Prefixes: h.operators.Prefixes(op)})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"operators":    out,
		"phone_digits": payment.PhoneDigits,
		"event_types":  domain.EventTypes,
	})
}

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	s, _ := session.FromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"user":     s.User,
		"is_admin": s.IsAdmin(),
		"hotel":    s.Hotel,
	})
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failed := map[string]string{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failed": failed})
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
