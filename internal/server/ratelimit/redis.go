package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// admitScript increments the key and starts its expiry on the first hit of a
// window. It returns the new count and the remaining TTL in milliseconds.
var admitScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisWindow is a FixedWindow shared by every process using the same Redis.
type RedisWindow struct {
	client redis.Scripter
	prefix string
	now    func() time.Time
}

// NewRedisWindow creates a RedisWindow storing counters under prefix.
func NewRedisWindow(client redis.Scripter, prefix string) *RedisWindow {
	if prefix == "" {
		prefix = "ratelimit:"
	}
	return &RedisWindow{client: client, prefix: prefix, now: time.Now}
}

// ConnectRedis parses url, pings the server and returns a client.
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// Admit implements FixedWindow.
func (r *RedisWindow) Admit(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	res, err := admitScript.Run(ctx, r.client, []string{r.prefix + key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit script failed: %w", err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("rate limit script returned %d values", len(res))
	}

	count := int(res[0])
	resetAt := r.now().Add(time.Duration(res[1]) * time.Millisecond)
	return Decision{
		Allowed:     count <= limit,
		Count:       count,
		Limit:       limit,
		WindowStart: resetAt.Add(-window),
		ResetAt:     resetAt,
	}, nil
}
