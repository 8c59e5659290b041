package rateLimit

import (
	"context"
	"sync"
	"time"

	"github.com/robertarktes/hotel-booking/internal/observability"
	"golang.org/x/time/rate"
)

// Counter is a shared fixed-window counter, normally redis.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RateLimiter counts in redis so every instance shares the budget. When redis
// is unreachable it falls back to a per-process token bucket instead of
// failing open.
type RateLimiter struct {
	counter Counter
	logger  observability.Logger

	mu    sync.Mutex
	local map[string]*rate.Limiter
}

func NewRateLimiter(counter Counter, logger observability.Logger) *RateLimiter {
	return &RateLimiter{counter: counter, logger: logger, local: make(map[string]*rate.Limiter)}
}

func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, period time.Duration) bool {
	var allowed bool
	if rl.counter != nil {
		n, err := rl.counter.Incr(ctx, "rl:"+key, period)
		if err == nil {
			allowed = n <= int64(limit)
			if !allowed {
				observability.RateLimitExceeded.Inc()
			}
			return allowed
		}
		rl.logger.Warn("rate limit counter unavailable, using local limiter: ", err)
	}

	allowed = rl.localLimiter(key, limit, period).Allow()
	if !allowed {
		observability.RateLimitExceeded.Inc()
	}
	return allowed
}

func (rl *RateLimiter) localLimiter(key string, limit int, period time.Duration) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	l, ok := rl.local[key]
	if !ok {
		l = rate.NewLimiter(rate.Every(period/time.Duration(limit)), limit)
		rl.local[key] = l
	}
	return l
}
