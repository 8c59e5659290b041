package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	redisadapter "github.com/robertarktes/hotel-booking/internal/adapters/redis"
	"github.com/robertarktes/hotel-booking/internal/backend"
	"github.com/robertarktes/hotel-booking/internal/booking"
	"github.com/robertarktes/hotel-booking/internal/config"
	"github.com/robertarktes/hotel-booking/internal/domain"
	"github.com/robertarktes/hotel-booking/internal/idempotency"
	"github.com/robertarktes/hotel-booking/internal/observability"
	"github.com/robertarktes/hotel-booking/internal/payment"
	"github.com/robertarktes/hotel-booking/internal/rateLimit"
	"github.com/robertarktes/hotel-booking/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

var aliceCaller = booking.Caller{Email: "alice@example.com"}

type mockBookings struct {
	mock.Mock
}

func (m *mockBookings) Lookup(ctx context.Context, token string, k domain.Kind, id int64, carried *domain.BookableUnit) (*domain.BookableUnit, error) {
	args := m.Called(ctx, token, k, id, carried)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BookableUnit), args.Error(1)
}

func (m *mockBookings) Quote(ctx context.Context, token string, k domain.Kind, id int64, d domain.ReservationDraft, carried *domain.BookableUnit) (*booking.QuoteResult, error) {
	args := m.Called(ctx, token, k, id, d, carried)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.QuoteResult), args.Error(1)
}

func (m *mockBookings) Submit(ctx context.Context, token string, req booking.SubmitRequest) (*domain.FlowState, error) {
	args := m.Called(ctx, token, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FlowState), args.Error(1)
}

func (m *mockBookings) StartPayment(ctx context.Context, token string, who booking.Caller, k domain.Kind, id int64, req booking.PaymentRequest) (*domain.FlowState, error) {
	args := m.Called(ctx, token, who, k, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FlowState), args.Error(1)
}

func (m *mockBookings) Confirmation(ctx context.Context, who booking.Caller, k domain.Kind, id int64) (*domain.FlowState, error) {
	args := m.Called(ctx, who, k, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FlowState), args.Error(1)
}

func (m *mockBookings) Receipt(ctx context.Context, who booking.Caller, k domain.Kind, id int64) (*domain.FlowState, error) {
	args := m.Called(ctx, who, k, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FlowState), args.Error(1)
}

type mockAdmin struct {
	mock.Mock
}

func (m *mockAdmin) List(ctx context.Context, token string, k domain.Kind, f domain.ReservationFilter) ([]domain.ReservationSummary, error) {
	args := m.Called(ctx, token, k, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ReservationSummary), args.Error(1)
}

func (m *mockAdmin) ListAll(ctx context.Context, token string, f domain.ReservationFilter) ([]domain.ReservationSummary, error) {
	args := m.Called(ctx, token, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ReservationSummary), args.Error(1)
}

func (m *mockAdmin) Get(ctx context.Context, token string, k domain.Kind, id int64) (*domain.ReservationSummary, error) {
	args := m.Called(ctx, token, k, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReservationSummary), args.Error(1)
}

func (m *mockAdmin) Update(ctx context.Context, token string, k domain.Kind, id int64, u booking.Update) error {
	return m.Called(ctx, token, k, id, u).Error(0)
}

func (m *mockAdmin) Cancel(ctx context.Context, token string, k domain.Kind, id int64) error {
	return m.Called(ctx, token, k, id).Error(0)
}

type staticHotels struct {
	hotels []domain.Hotel
}

func (s staticHotels) MyHotels(ctx context.Context, token, cacheKey string) ([]domain.Hotel, error) {
	return s.hotels, nil
}

type testEnv struct {
	bookings *mockBookings
	admin    *mockAdmin
	parser   *session.TokenParser
	router   http.Handler
}

func newEnv(t *testing.T, mutate func(*Deps)) *testEnv {
	t.Helper()
	logger := observability.NewNopLogger()
	env := &testEnv{
		bookings: &mockBookings{},
		admin:    &mockAdmin{},
		parser:   session.NewTokenParser(testSecret),
	}
	h := NewHandlers(env.bookings, env.admin,
		payment.NewOperatorValidator(config.DefaultOperators()),
		map[string]Checker{"redis": func(context.Context) error { return nil }},
		logger)
	h.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }

	deps := Deps{
		Sessions: session.NewBuilder(env.parser, staticHotels{hotels: []domain.Hotel{{ID: 3, Name: "Venise"}}}, logger),
	}
	if mutate != nil {
		mutate(&deps)
	}
	env.router = SetupRouter(h, logger, deps)
	return env
}

func (e *testEnv) token(t *testing.T, email, role string) string {
	tok, err := e.parser.Sign(email, role, time.Hour)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, tok, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func pendingRoom() *domain.FlowState {
	d := domain.NewDraft(domain.Room)
	d.LastName, d.FirstName, d.Email = "Ngo", "Alice", "alice@example.com"
	d.ArrivalDate, d.DepartureDate = "2026-03-02", "2026-03-05"
	d.Occupants = 2
	return &domain.FlowState{
		Record: domain.ReservationRecord{
			ID: 42, Kind: domain.Room, UnitID: 7, Draft: d,
			Quote:  domain.Quote{Nights: 3, UnitPrice: 25000, Total: 75000},
			Status: domain.StatusPending,
		},
		Unit:    domain.BookableUnit{ID: 7, Kind: domain.Room, Name: "Suite", Capacity: 2, Price: 25000, Available: true},
		Payment: domain.PaymentForm,
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthAndReadiness(t *testing.T) {
	env := newEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/v1/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/readyz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	env := newEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/v1/units/room/7", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/units/room/7", "not-a-jwt", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetUnit(t *testing.T) {
	env := newEnv(t, nil)
	tok := env.token(t, "alice@example.com", "client")
	unit := &domain.BookableUnit{ID: 7, Kind: domain.Room, Name: "Suite", Capacity: 2, Price: 25000, Available: true}
	env.bookings.On("Lookup", mock.Anything, tok, domain.Room, int64(7), (*domain.BookableUnit)(nil)).Return(unit, nil)

	rec := env.do(t, http.MethodGet, "/v1/units/room/7", tok, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Suite", decode(t, rec)["name"])

	rec = env.do(t, http.MethodGet, "/v1/units/castle/7", tok, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/units/room/abc", tok, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestQuote_InlineErrors(t *testing.T) {
	env := newEnv(t, nil)
	tok := env.token(t, "alice@example.com", "client")
	res := &booking.QuoteResult{
		Unit:   &domain.BookableUnit{ID: 7, Kind: domain.Room},
		Errors: domain.ValidationErrors{{Field: "departure_date", Message: "departure must be after arrival"}},
	}
	env.bookings.On("Quote", mock.Anything, tok, domain.Room, int64(7), mock.MatchedBy(func(d domain.ReservationDraft) bool {
		return d.ArrivalDate == "2026-03-05" && d.PaymentMethod == domain.PayOrange
	}), (*domain.BookableUnit)(nil)).Return(res, nil)

	rec := env.do(t, http.MethodPost, "/v1/quotes/room", tok, `{"unit_id":7,"arrival_date":"2026-03-05","departure_date":"2026-03-02"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	errs := decode(t, rec)["errors"].([]any)
	require.Len(t, errs, 1)
	assert.Equal(t, "departure_date", errs[0].(map[string]any)["field"])
}

func TestCreateBooking(t *testing.T) {
	env := newEnv(t, nil)
	tok := env.token(t, "alice@example.com", "client")
	env.bookings.On("Submit", mock.Anything, tok, mock.MatchedBy(func(r booking.SubmitRequest) bool {
		return r.Kind == domain.Room && r.UnitID == 7 && r.Draft.LastName == "Ngo" && r.Carried != nil && r.Carried.Capacity == 2 &&
			r.Owner == "alice@example.com"
	})).Return(pendingRoom(), nil)

	body := `{"unit_id":7,"unit":{"id":7,"kind":"room","capacity":2,"price":25000,"is_available":true},
		"last_name":"Ngo","first_name":"Alice","email":"alice@example.com",
		"arrival_date":"2026-03-02","departure_date":"2026-03-05","occupants":2,"payment_method":"orange"}`
	rec := env.do(t, http.MethodPost, "/v1/bookings/room", tok, body)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "/v1/bookings/room/42", rec.Header().Get("Location"))
	out := decode(t, rec)
	assert.Equal(t, "form", out["payment"].(map[string]any)["state"])
	assert.Equal(t, "en attente", out["reservation"].(map[string]any)["status"])
	assert.Nil(t, out["receipts"])
}

func TestCreateBooking_Errors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    int
		message string
	}{
		{"capacity", domain.ValidationErrors{{Field: "occupants", Message: "this unit can only accommodate 2 people"}}, http.StatusUnprocessableEntity, "occupants: this unit can only accommodate 2 people"},
		{"unavailable", domain.ErrUnitUnavailable, http.StatusConflict, "unit unavailable"},
		{"backend message", &backend.APIError{Status: 400, Message: "Chambre non disponible pour ces dates"}, http.StatusBadRequest, "Chambre non disponible pour ces dates"},
		{"backend down", &backend.APIError{Status: 503, Message: "backend request failed with status 503"}, http.StatusBadGateway, "backend request failed with status 503"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv(t, nil)
			tok := env.token(t, "alice@example.com", "client")
			env.bookings.On("Submit", mock.Anything, tok, mock.Anything).Return(nil, tt.err)

			rec := env.do(t, http.MethodPost, "/v1/bookings/room", tok, `{"unit_id":7}`)
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.message, decode(t, rec)["error"])
		})
	}
}

func TestCreateBooking_MissingUnit(t *testing.T) {
	env := newEnv(t, nil)
	tok := env.token(t, "alice@example.com", "client")

	rec := env.do(t, http.MethodPost, "/v1/bookings/room", tok, `{"last_name":"Ngo"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	env.bookings.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything)
}

func TestStartPayment(t *testing.T) {
	env := newEnv(t, nil)
	tok := env.token(t, "alice@example.com", "client")

	sent := pendingRoom()
	sent.Payment = domain.PaymentConfirmationSent
	sent.Operator = "orange"
	env.bookings.On("StartPayment", mock.Anything, tok, aliceCaller, domain.Room, int64(42),
		booking.PaymentRequest{Operator: "orange", Phone: "690000000"}).Return(sent, nil)
	env.bookings.On("StartPayment", mock.Anything, tok, aliceCaller, domain.Room, int64(42),
		booking.PaymentRequest{Operator: "orange", Phone: "680000000"}).
		Return(nil, &payment.PhoneError{Operator: "Orange", Prefixes: []string{"69", "65", "66", "67"}})

	rec := env.do(t, http.MethodPost, "/v1/bookings/room/42/payment", tok, `{"operator":"orange","phone":"690000000"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "confirmation_sent", decode(t, rec)["payment"].(map[string]any)["state"])

	rec = env.do(t, http.MethodPost, "/v1/bookings/room/42/payment", tok, `{"operator":"orange","phone":"680000000"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, "invalid Orange number, valid prefixes are: 69, 65, 66, 67", out["error"])
	assert.Equal(t, "phone", out["fields"].([]any)[0].(map[string]any)["field"])
}

func TestGetBooking_NoReservation(t *testing.T) {
	env := newEnv(t, nil)
	tok := env.token(t, "alice@example.com", "client")
	env.bookings.On("Confirmation", mock.Anything, aliceCaller, domain.Apartment, int64(5)).Return(nil, domain.ErrNoReservation)

	rec := env.do(t, http.MethodGet, "/v1/bookings/apartment/5", tok, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"no reservation found","back":"/v1/units/apartment"}`, rec.Body.String())
}

func TestReceipts(t *testing.T) {
	env := newEnv(t, nil)
	tok := env.token(t, "alice@example.com", "client")

	confirmed := pendingRoom()
	confirmed.Record.Status = domain.StatusConfirmed
	confirmed.Payment = domain.PaymentSuccess
	env.bookings.On("Receipt", mock.Anything, aliceCaller, domain.Room, int64(42)).Return(confirmed, nil)
	env.bookings.On("Receipt", mock.Anything, aliceCaller, domain.Room, int64(43)).Return(nil, domain.ErrNotConfirmed)
	env.bookings.On("Confirmation", mock.Anything, aliceCaller, domain.Room, int64(42)).Return(confirmed, nil)

	rec := env.do(t, http.MethodGet, "/v1/bookings/room/42/receipt.pdf", tok, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Facture_Reservation_42.pdf")

	rec = env.do(t, http.MethodGet, "/v1/bookings/room/42/receipt.html", tok, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "75 000 XAF")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Facture_Reservation_42.html")

	rec = env.do(t, http.MethodGet, "/v1/bookings/room/43/receipt.html", tok, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/bookings/room/42", tok, "")
	require.Equal(t, http.StatusOK, rec.Code)
	receipts := decode(t, rec)["receipts"].(map[string]any)
	assert.Equal(t, "/v1/bookings/room/42/receipt.pdf", receipts["pdf"])
}

func TestAdmin_Forbidden(t *testing.T) {
	env := newEnv(t, nil)
	tok := env.token(t, "alice@example.com", "client")

	rec := env.do(t, http.MethodGet, "/v1/admin/reservations", tok, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdmin_ListUsesSessionHotel(t *testing.T) {
	env := newEnv(t, nil)
	tok := env.token(t, "boss@example.com", session.RoleAdmin)
	list := []domain.ReservationSummary{{ID: 1, Kind: domain.Room, Status: domain.StatusPending}}

	env.admin.On("ListAll", mock.Anything, tok, domain.ReservationFilter{HotelID: 3, Status: domain.StatusPending}).Return(list, nil)
	env.admin.On("List", mock.Anything, tok, domain.EventHall, domain.ReservationFilter{HotelID: 9, UnitID: 4}).Return(nil, nil)

	rec := env.do(t, http.MethodGet, "/v1/admin/reservations?status=en+attente", tok, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["count"])

	rec = env.do(t, http.MethodGet, "/v1/admin/reservations/event-hall?hotel_id=9&unit_id=4", tok, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, decode(t, rec)["reservations"])

	rec = env.do(t, http.MethodGet, "/v1/admin/reservations?status=lost", tok, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAdmin_ExportUpdateCancel(t *testing.T) {
	env := newEnv(t, nil)
	tok := env.token(t, "boss@example.com", session.RoleAdmin)

	env.admin.On("List", mock.Anything, tok, domain.Room, mock.Anything).
		Return([]domain.ReservationSummary{{ID: 1, Kind: domain.Room, Total: 5000}}, nil)
	confirmed := domain.StatusConfirmed
	env.admin.On("Update", mock.Anything, tok, domain.Room, int64(1), booking.Update{Status: &confirmed}).Return(nil)
	env.admin.On("Cancel", mock.Anything, tok, domain.Room, int64(2)).Return(&backend.APIError{Status: 404, Message: "Réservation non trouvée"})

	rec := env.do(t, http.MethodGet, "/v1/admin/reservations/room/export.xlsx", tok, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "reservations_room.xlsx")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "PK"))

	rec = env.do(t, http.MethodPut, "/v1/admin/reservations/room/1", tok, `{"status":"confirmée"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodDelete, "/v1/admin/reservations/room/2", tok, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Réservation non trouvée", decode(t, rec)["error"])
}

func TestIdempotentSubmit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	env := newEnv(t, func(d *Deps) {
		d.Idempotency = idempotency.NewIdempotency(redisadapter.NewIdempotency(client), time.Hour)
	})
	tok := env.token(t, "alice@example.com", "client")
	env.bookings.On("Submit", mock.Anything, tok, mock.Anything).Return(pendingRoom(), nil).Once()

	key := "booking-0123456789abcdef"
	first := env.do(t, http.MethodPost, "/v1/bookings/room", tok, `{"unit_id":7}`, "Idempotency-Key", key)
	require.Equal(t, http.StatusCreated, first.Code)

	second := env.do(t, http.MethodPost, "/v1/bookings/room", tok, `{"unit_id":7}`, "Idempotency-Key", key)
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	env.bookings.AssertNumberOfCalls(t, "Submit", 1)

	short := env.do(t, http.MethodPost, "/v1/bookings/room", tok, `{"unit_id":7}`, "Idempotency-Key", "short")
	assert.Equal(t, http.StatusBadRequest, short.Code)
}

func TestRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	env := newEnv(t, func(d *Deps) {
		d.RateLimiter = rateLimit.NewRateLimiter(redisadapter.NewCache(client), observability.NewNopLogger())
		d.Limits = RateLimits{PerUser: 1, PerIP: 100, Period: time.Minute}
	})
	tok := env.token(t, "alice@example.com", "client")

	rec := env.do(t, http.MethodGet, "/v1/payment/operators", tok, "")
	require.Equal(t, http.StatusOK, rec.Code)
	ops := decode(t, rec)["operators"].([]any)
	assert.Len(t, ops, 2)

	rec = env.do(t, http.MethodGet, "/v1/payment/operators", tok, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestMe(t *testing.T) {
	env := newEnv(t, nil)
	tok := env.token(t, "boss@example.com", session.RoleAdmin)

	rec := env.do(t, http.MethodGet, "/v1/me", tok, "")
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, true, out["is_admin"])
	assert.Equal(t, "boss@example.com", out["user"].(map[string]any)["email"])
	assert.EqualValues(t, 3, out["hotel"].(map[string]any)["id"])
}
