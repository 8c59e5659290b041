package redis

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robertarktes/hotel-booking/internal/domain"
)

// FlowStateStore keeps per-booking flow state, the server-side counterpart
// of what a browser would carry in navigation state.
type FlowStateStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewFlowStateStore(client *redis.Client, ttl time.Duration) *FlowStateStore {
	return &FlowStateStore{client: client, ttl: ttl}
}

func flowKey(k domain.Kind, id int64) string {
	return "hb:flow:" + k.String() + ":" + strconv.FormatInt(id, 10)
}

func (s *FlowStateStore) Save(ctx context.Context, st *domain.FlowState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, flowKey(st.Record.Kind, st.Record.ID), data, s.ttl).Err()
}

func (s *FlowStateStore) Load(ctx context.Context, k domain.Kind, id int64) (*domain.FlowState, error) {
	val, err := s.client.Get(ctx, flowKey(k, id)).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrNoReservation
	}
	if err != nil {
		return nil, err
	}
	var st domain.FlowState
	if err := json.Unmarshal(val, &st); err != nil {
		return nil, err
	}
	return &st, nil
}
