package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindowScript prunes, counts and conditionally appends in one step.
// Scores are unix milliseconds. Returns {allowed, count, oldest score}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])

redis.call("ZREMRANGEBYSCORE", key, "-inf", "(" .. (now - window))

local count = redis.call("ZCARD", key)
local allowed = 0
if count < max then
  redis.call("ZADD", key, now, ARGV[4])
  redis.call("PEXPIRE", key, window)
  count = count + 1
  allowed = 1
end

local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
local oldestScore = now
if oldest[2] then
  oldestScore = tonumber(oldest[2])
end
return {allowed, count, oldestScore}
`)

// RedisLimiter keeps one sorted set per client so the window is shared by
// every process using the same redis.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	max    int
	window time.Duration
	now    func() time.Time
}

var _ Limiter = (*RedisLimiter)(nil)

func NewRedisLimiter(client *redis.Client, prefix string, maxRequests int, window time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = "ratelimit:message"
	}
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		max:    maxRequests,
		window: window,
		now:    time.Now,
	}
}

func (l *RedisLimiter) buildKey(key string) string {
	return l.prefix + ":" + key
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.now().UnixMilli()
	windowMs := l.window.Milliseconds()

	res, err := slidingWindowScript.Run(ctx, l.client, []string{l.buildKey(key)},
		now, windowMs, l.max, uuid.NewString()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("redis sliding window: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("redis sliding window: unexpected reply %v", res)
	}

	d := Decision{
		Allowed: res[0] == 1,
		Limit:   l.max,
	}
	if d.Allowed {
		d.Remaining = l.max - int(res[1])
	} else {
		d.RetryAfter = time.Duration(res[2]+windowMs-now) * time.Millisecond
	}
	return d, nil
}
