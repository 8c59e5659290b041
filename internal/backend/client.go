package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/hotel-booking/internal/domain"
	"github.com/robertarktes/hotel-booking/internal/observability"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Memo is the GET response cache. The Redis adapter implements it.
type Memo interface {
	GetJSON(ctx context.Context, key string, out any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
}

// Client talks to the hotel REST backend. Every call forwards the caller's
// bearer token; nothing here retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     observability.Logger

	memo     Memo
	cacheTTL time.Duration
}

func NewClient(baseURL string, timeout time.Duration, logger observability.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/api",
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

// UseCache enables memoization of catalog GETs.
func (c *Client) UseCache(m Memo, ttl time.Duration) {
	c.memo = m
	c.cacheTTL = ttl
}

// GetUnit fetches one room, apartment or event hall.
func (c *Client) GetUnit(ctx context.Context, token string, k domain.Kind, id int64) (*domain.BookableUnit, error) {
	cacheKey := "unit:" + k.String() + ":" + strconv.FormatInt(id, 10)
	var cached domain.BookableUnit
	if c.readCache(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	var raw json.RawMessage
	if err := c.doGet(ctx, token, k.UnitPath(id), k.String(), &raw); err != nil {
		return nil, err
	}
	unit, err := domain.DecodeUnit(k, raw)
	if err != nil {
		return nil, err
	}
	if unit.ID == 0 {
		unit.ID = id
	}
	c.writeCache(ctx, cacheKey, unit)
	return unit, nil
}

// Created is what the backend hands back after accepting a reservation.
type Created struct {
	ID        int64
	Message   string
	EchoTotal *float64
	Status    domain.Status
}

type createResponse struct {
	ID          *int64          `json:"id"`
	Message     string          `json:"message"`
	PrixTotal   *float64        `json:"prix_total"`
	TotalPrice  *float64        `json:"total_price"`
	Statut      domain.Status   `json:"statut"`
	Reservation *createResponse `json:"reservation"`
}

// CreateReservation posts a reservation payload. The id is read from the top
// level or from the nested reservation object.
func (c *Client) CreateReservation(ctx context.Context, token string, k domain.Kind, payload map[string]any) (*Created, error) {
	var resp createResponse
	if err := c.doPost(ctx, token, k.ReservationsPath(), k.String(), payload, &resp); err != nil {
		return nil, err
	}

	out := &Created{Message: resp.Message, Status: resp.Statut}
	out.ID, out.EchoTotal = resp.idAndTotal()
	if resp.Reservation != nil {
		id, total := resp.Reservation.idAndTotal()
		if out.ID == 0 {
			out.ID = id
		}
		if out.EchoTotal == nil {
			out.EchoTotal = total
		}
		if out.Status == "" {
			out.Status = resp.Reservation.Statut
		}
	}
	if out.ID == 0 {
		return nil, errors.New("backend response carried no reservation id")
	}
	return out, nil
}

func (r *createResponse) idAndTotal() (int64, *float64) {
	var id int64
	if r.ID != nil {
		id = *r.ID
	}
	if r.PrixTotal != nil {
		return id, r.PrixTotal
	}
	return id, r.TotalPrice
}

func (c *Client) ListReservations(ctx context.Context, token string, k domain.Kind, f domain.ReservationFilter) ([]domain.ReservationSummary, error) {
	q := url.Values{}
	if f.HotelID != 0 {
		q.Set("hotel_id", strconv.FormatInt(f.HotelID, 10))
	}
	if f.UnitID != 0 {
		q.Set(k.UnitIDField(), strconv.FormatInt(f.UnitID, 10))
	}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.Email != "" {
		q.Set("email", f.Email)
	}
	if f.FromDate != "" {
		q.Set("from_date", f.FromDate)
	}
	if f.ToDate != "" {
		q.Set("to_date", f.ToDate)
	}
	path := k.ReservationsPath()
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var raw []wireReservation
	if err := c.doGet(ctx, token, path, k.String(), &raw); err != nil {
		return nil, err
	}
	out := make([]domain.ReservationSummary, 0, len(raw))
	for _, r := range raw {
		out = append(out, r.summary(k))
	}
	return out, nil
}

func (c *Client) GetReservation(ctx context.Context, token string, k domain.Kind, id int64) (*domain.ReservationSummary, error) {
	var raw wireReservation
	if err := c.doGet(ctx, token, k.ReservationPath(id), k.String(), &raw); err != nil {
		return nil, err
	}
	s := raw.summary(k)
	return &s, nil
}

// UpdateReservation sends a partial update using backend field names.
func (c *Client) UpdateReservation(ctx context.Context, token string, k domain.Kind, id int64, fields map[string]any) error {
	return c.send(ctx, http.MethodPut, token, k.ReservationPath(id), k.String(), fields, nil)
}

func (c *Client) CancelReservation(ctx context.Context, token string, k domain.Kind, id int64) error {
	return c.send(ctx, http.MethodDelete, token, k.ReservationPath(id), k.String(), nil, nil)
}

// ConfirmReservation calls the admin-only confirmation endpoint.
func (c *Client) ConfirmReservation(ctx context.Context, token string, k domain.Kind, id int64) error {
	path := "/reservations/confirm/" + k.ConfirmSlug() + "/" + strconv.FormatInt(id, 10)
	return c.doGet(ctx, token, path, k.String(), nil)
}

// MyHotels lists the hotels the caller administers. cacheKey identifies the
// caller and must not be the token itself.
func (c *Client) MyHotels(ctx context.Context, token, cacheKey string) ([]domain.Hotel, error) {
	key := "my-hotels:" + cacheKey
	var hotels []domain.Hotel
	if cacheKey != "" && c.readCache(ctx, key, &hotels) {
		return hotels, nil
	}
	if err := c.doGet(ctx, token, "/hotel/my-hotels", "hotels", &hotels); err != nil {
		return nil, err
	}
	if cacheKey != "" {
		c.writeCache(ctx, key, hotels)
	}
	return hotels, nil
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.memo == nil || c.cacheTTL <= 0 {
		return false
	}
	ok, err := c.memo.GetJSON(ctx, key, out)
	if err != nil {
		c.logger.WithField("key", key).Warn("memo read failed: ", err)
		return false
	}
	if ok {
		observability.BackendCacheHits.Inc()
	}
	return ok
}

func (c *Client) writeCache(ctx context.Context, key string, v any) {
	if c.memo == nil || c.cacheTTL <= 0 {
		return
	}
	if err := c.memo.SetJSON(ctx, key, v, c.cacheTTL); err != nil {
		c.logger.WithField("key", key).Warn("memo write failed: ", err)
	}
}

func (c *Client) doGet(ctx context.Context, token, path, resource string, out any) error {
	return c.send(ctx, http.MethodGet, token, path, resource, nil, out)
}

func (c *Client) doPost(ctx context.Context, token, path, resource string, body, out any) error {
	return c.send(ctx, http.MethodPost, token, path, resource, body, out)
}

func (c *Client) send(ctx context.Context, method, token, path, resource string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	observability.BackendCallDuration.WithLabelValues(method, resource).Observe(time.Since(start).Seconds())
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return newAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decode %s %s", method, path)
	}
	return nil
}
