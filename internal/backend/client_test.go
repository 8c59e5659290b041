package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	redisadapter "github.com/robertarktes/hotel-booking/internal/adapters/redis"
	"github.com/robertarktes/hotel-booking/internal/domain"
	"github.com/robertarktes/hotel-booking/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second, observability.NewNopLogger())
}

func TestGetUnit_SendsTokenAndMemoizes(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/api/rooms/1", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write([]byte(`{"id":1,"type":"Suite","price_per_night":15000,"capacity":2,"is_available":true}`))
	})

	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()
	rc := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer rc.Close()
	c.UseCache(redisadapter.NewCache(rc), time.Minute)

	ctx := context.Background()
	u, err := c.GetUnit(ctx, "tok", domain.Room, 1)
	require.NoError(t, err)
	assert.Equal(t, "Suite", u.Name)
	assert.Equal(t, 15000.0, u.Price)

	u2, err := c.GetUnit(ctx, "other-token", domain.Room, 1)
	require.NoError(t, err)
	assert.Equal(t, u, u2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	for _, k := range s.Keys() {
		assert.NotContains(t, k, "tok")
	}
}

func TestGetUnit_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"Chambre non trouvée"}`))
	})

	_, err := c.GetUnit(context.Background(), "tok", domain.Room, 9)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Chambre non trouvée", apiErr.Message)
}

func TestCreateReservation_NestedID(t *testing.T) {
	bodies := make(chan map[string]any, 1)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/reservations/rooms", r.URL.Path)
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies <- body
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"message":"ok","reservation":{"id":42,"prix_total":45000,"statut":"en attente"}}`))
	})

	d := domain.ReservationDraft{
		LastName: "Mbarga", FirstName: "Alice", Email: "alice@example.com",
		ArrivalDate: "2025-06-01", DepartureDate: "2025-06-04",
		Occupants: 2, PaymentMethod: domain.PayOrange, Notes: "late arrival",
	}
	payload := EncodeReservation(domain.Room, 1, d, domain.Quote{Nights: 3, Total: 45000})

	created, err := c.CreateReservation(context.Background(), "tok", domain.Room, payload)
	require.NoError(t, err)
	assert.Equal(t, int64(42), created.ID)
	require.NotNil(t, created.EchoTotal)
	assert.Equal(t, 45000.0, *created.EchoTotal)
	assert.Equal(t, domain.StatusPending, created.Status)

	got := <-bodies
	assert.Equal(t, 1.0, got["room_id"])
	assert.Equal(t, 45000.0, got["total_price"])
	assert.Equal(t, 2.0, got["nombre_personnes"])
	assert.Equal(t, "late arrival", got["notes"])
	assert.Equal(t, "2025-06-01", got["date_arrivee"])
	assert.Equal(t, "orange", got["methode_paiement"])
}

func TestCreateReservation_TopLevelID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":7}`))
	})
	created, err := c.CreateReservation(context.Background(), "tok", domain.Apartment, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, int64(7), created.ID)
	assert.Nil(t, created.EchoTotal)
}

func TestCreateReservation_ErrorMessages(t *testing.T) {
	for name, tc := range map[string]struct {
		body string
		want string
	}{
		"message wins": {`{"message":"Chambre déjà réservée","error":"x"}`, "Chambre déjà réservée"},
		"error field":  {`{"error":"Champs obligatoires manquants"}`, "Champs obligatoires manquants"},
		"fallback":     {`not json`, "backend request failed with status 400"},
	} {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(tc.body))
			})
			_, err := c.CreateReservation(context.Background(), "tok", domain.EventHall, map[string]any{})
			assert.EqualError(t, err, tc.want)
		})
	}
}

func TestEncodeReservation_EventHall(t *testing.T) {
	d := domain.ReservationDraft{
		LastName: "Ngo", FirstName: "Paul", Email: "p@example.com",
		EventType: "mariage", EventDate: "2025-07-12", StartTime: "14:00", EndTime: "23:00",
		Occupants: 150, PaymentMethod: domain.PayMTN,
	}
	p := EncodeReservation(domain.EventHall, 3, d, domain.Quote{Total: 250000, FlatFee: true})

	assert.Equal(t, int64(3), p["event_room_id"])
	assert.Equal(t, 250000.0, p["prix_total"])
	assert.Equal(t, 150, p["nombre_invites"])
	assert.Equal(t, "mariage", p["type_evenement"])
	assert.Equal(t, "14:00", p["heure_debut"])
	assert.NotContains(t, p, "date_arrivee")

	a := EncodeReservation(domain.Apartment, 2, domain.ReservationDraft{Notes: "vue mer"}, domain.Quote{})
	assert.Equal(t, "vue mer", a["preferences"])
	assert.Contains(t, a, "apartment_id")
}

func TestListReservations_Filters(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/api/reservations/apartments", r.URL.Path)
		assert.Equal(t, "3", q.Get("hotel_id"))
		assert.Equal(t, "5", q.Get("apartment_id"))
		assert.Equal(t, "confirmée", q.Get("status"))
		w.Write([]byte(`[{"id":1,"nom":"Mbarga","prenom":"Alice","apartment_id":5,"dates":"2025-06-01 au 2025-06-04","statut":"confirmée","prix_total":120000}]`))
	})

	list, err := c.ListReservations(context.Background(), "tok", domain.Apartment, domain.ReservationFilter{
		HotelID: 3, UnitID: 5, Status: domain.StatusConfirmed,
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(5), list[0].UnitID)
	assert.Equal(t, 120000.0, list[0].Total)
	assert.Equal(t, domain.StatusConfirmed, list[0].Status)
	assert.Equal(t, domain.Apartment, list[0].Kind)
}

func TestConfirmAndCancel(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.Method+" "+r.URL.Path)
		mu.Unlock()
		w.Write([]byte(`{"status":"success"}`))
	})
	ctx := context.Background()

	require.NoError(t, c.ConfirmReservation(ctx, "tok", domain.EventHall, 9))
	require.NoError(t, c.CancelReservation(ctx, "tok", domain.Room, 4))
	require.NoError(t, c.UpdateReservation(ctx, "tok", domain.Apartment, 2, map[string]any{"statut": "terminée"}))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"GET /api/reservations/confirm/salle-evenement/9",
		"DELETE /api/reservations/rooms/4",
		"PUT /api/reservations/apartments/2",
	}, paths)
}

func TestMyHotels(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/hotel/my-hotels", r.URL.Path)
		w.Write([]byte(`[{"id":3,"name":"Venise","city":"Douala","stars":4}]`))
	})
	hotels, err := c.MyHotels(context.Background(), "tok", "admin@venise.cm")
	require.NoError(t, err)
	require.Len(t, hotels, 1)
	assert.Equal(t, "Venise", hotels[0].Name)
}
