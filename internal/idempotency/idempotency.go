package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/cockroachdb/errors"
	redisadapter "github.com/robertarktes/hotel-booking/internal/adapters/redis"
)

// MinKeyLength rejects keys too short to be unique per client.
const MinKeyLength = 16

var (
	ErrKeyTooShort = errors.New("idempotency key must be at least 16 characters")
	ErrInFlight    = errors.New("a request with this idempotency key is still in progress")
)

type Store interface {
	Get(ctx context.Context, key string) (*redisadapter.StoredResponse, error)
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
	Set(ctx context.Context, key string, resp redisadapter.StoredResponse, ttl time.Duration) error
}

type Idempotency struct {
	store   Store
	ttl     time.Duration
	lockTTL time.Duration
}

func NewIdempotency(store Store, ttl time.Duration) *Idempotency {
	return &Idempotency{store: store, ttl: ttl, lockTTL: 30 * time.Second}
}

type Response struct {
	Status      int
	ContentType string
	Result      []byte
}

// Key scopes a client key to the caller and route so two users cannot
// collide on the same value.
func Key(scope, clientKey string) (string, error) {
	if len(clientKey) < MinKeyLength {
		return "", ErrKeyTooShort
	}
	sum := sha256.Sum256([]byte(scope + "\x00" + clientKey))
	return hex.EncodeToString(sum[:]), nil
}

// Begin returns the stored response when key was already completed. Otherwise
// it reserves key and the caller must finish with Set or Abort.
func (i *Idempotency) Begin(ctx context.Context, key string) (*Response, error) {
	if resp, err := i.Get(ctx, key); err != nil || resp != nil {
		return resp, err
	}
	ok, err := i.store.Reserve(ctx, key, i.lockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		// completed between the two calls?
		if resp, err := i.Get(ctx, key); err != nil || resp != nil {
			return resp, err
		}
		return nil, ErrInFlight
	}
	return nil, nil
}

func (i *Idempotency) Get(ctx context.Context, key string) (*Response, error) {
	stored, err := i.store.Get(ctx, key)
	if err != nil || stored == nil {
		return nil, err
	}
	return &Response{Status: stored.Status, ContentType: stored.ContentType, Result: stored.Body}, nil
}

// Set stores resp and drops the in-flight marker.
func (i *Idempotency) Set(ctx context.Context, key string, resp Response) error {
	err := i.store.Set(ctx, key, redisadapter.StoredResponse{
		Status:      resp.Status,
		ContentType: resp.ContentType,
		Body:        resp.Result,
	}, i.ttl)
	if err != nil {
		return err
	}
	return i.store.Release(ctx, key)
}

// Abort drops the reservation without storing anything, so a retry runs again.
func (i *Idempotency) Abort(ctx context.Context, key string) error {
	return i.store.Release(ctx, key)
}
