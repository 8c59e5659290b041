package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

type Cache struct {
	client *redis.Client
	prefix string
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client, prefix: "hb:"}
}

func (c *Cache) Client() *redis.Client {
	return c.client
}

// GetJSON decodes the value at key into out. A miss is (false, nil).
func (c *Cache) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, out); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Cache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+key, data, ttl).Err()
}

// AcquireLock takes a short-lived lock held by owner. It returns false when
// somebody else already holds it.
func (c *Cache) AcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	res := c.client.SetNX(ctx, c.prefix+"lock:"+name, owner, ttl)
	return res.Val(), res.Err()
}

// ReleaseLock drops the lock only if owner still holds it.
func (c *Cache) ReleaseLock(ctx context.Context, name, owner string) error {
	return releaseScript.Run(ctx, c.client, []string{c.prefix + "lock:" + name}, owner).Err()
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Incr bumps a fixed-window counter, setting its expiry on first use.
func (c *Cache) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	full := c.prefix + key
	n, err := c.client.Incr(ctx, full).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := c.client.Expire(ctx, full, window).Err(); err != nil {
			return 0, err
		}
	}
	return n, nil
}
