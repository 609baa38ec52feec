package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript runs the Store algorithm atomically inside Redis.
// Times are unix milliseconds. Returns {allowed, remaining, reset}.
var fixedWindowScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local data = redis.call("HMGET", key, "count", "reset")
local count = tonumber(data[1])
local reset = tonumber(data[2])

if count == nil or reset == nil or now > reset then
    reset = now + window
    redis.call("HSET", key, "count", 1, "reset", reset)
    redis.call("PEXPIRE", key, window + 1000)
    return {1, limit - 1, reset}
end

if count >= limit then
    return {0, 0, reset}
end

count = redis.call("HINCRBY", key, "count", 1)
return {1, limit - count, reset}
`)

// RedisStore shares windows between service instances. Keys expire on
// their own shortly after the window ends, so no sweep is needed.
type RedisStore struct {
	client    redis.Scripter
	keyPrefix string
}

// NewRedisStore creates a store that prefixes every key with keyPrefix.
func NewRedisStore(client redis.Scripter, keyPrefix string) *RedisStore {
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

// Hit implements Store.
func (s *RedisStore) Hit(ctx context.Context, key string, limit int, win time.Duration, now time.Time) (Result, error) {
	values, err := fixedWindowScript.Run(ctx, s.client,
		[]string{s.keyPrefix + key},
		limit,
		win.Milliseconds(),
		now.UnixMilli(),
	).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("running rate limit script: %w", err)
	}
	if len(values) != 3 {
		return Result{}, fmt.Errorf("unexpected rate limit script result length: %d", len(values))
	}

	return Result{
		Allowed:   values[0] == 1,
		Remaining: int(values[1]),
		ResetTime: time.UnixMilli(values[2]),
	}, nil
}
