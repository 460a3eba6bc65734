package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultRateLimitKeyPrefix = "souq:ratelimit:"

// slidingWindowScript trims the window, counts and conditionally records
// a hit in one round trip so concurrent instances share an exact count.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window_start = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local window_ms = tonumber(ARGV[4])
local member = ARGV[5]

redis.call("zremrangebyscore", key, "-inf", window_start)
local current = redis.call("zcard", key)
if current < limit then
	redis.call("zadd", key, now, member)
	redis.call("pexpire", key, window_ms)
	return 1
end
return 0
`)

// RedisRateLimiter implements RateLimiter with a sorted set per key
type RedisRateLimiter struct {
	client    redis.UniversalClient
	keyPrefix string
	now       func() time.Time
}

// NewRedisRateLimiter connects to Redis and verifies the connection
func NewRedisRateLimiter(cfg RedisConfig) (*RedisRateLimiter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisRateLimiterWithClient(client, ""), nil
}

// NewRedisRateLimiterWithClient creates a limiter over an existing client
func NewRedisRateLimiterWithClient(client redis.UniversalClient, keyPrefix string) *RedisRateLimiter {
	if keyPrefix == "" {
		keyPrefix = defaultRateLimitKeyPrefix
	}
	return &RedisRateLimiter{
		client:    client,
		keyPrefix: keyPrefix,
		now:       time.Now,
	}
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Allow records a hit and reports whether the key is within its limit
func (l *RedisRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}

	now := l.now()
	member := fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString())
	allowed, err := slidingWindowScript.Run(ctx, l.client, []string{l.keyPrefix + key},
		now.UnixMilli(),
		now.Add(-window).UnixMilli(),
		limit,
		window.Milliseconds(),
		member,
	).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit check for %q: %w", key, err)
	}
	return allowed == 1, nil
}

// Close closes the Redis client
func (l *RedisRateLimiter) Close() error {
	return l.client.Close()
}

var _ RateLimiter = (*RedisRateLimiter)(nil)
