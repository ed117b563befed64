// Package ratelimit provides a per-task-type token bucket, adapted from
// the teacher's Client.Allow, so a worker can throttle a noisy task type
// without consuming one of its retry attempts.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// tokenBucket refills at rate tokens/sec up to burst capacity, storing
// its state in a Redis hash so multiple worker processes share one
// bucket per key.
var tokenBucket = redis.NewScript(`
	local key = KEYS[1]
	local rate = tonumber(ARGV[1])
	local burst = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])

	local tokens = tonumber(redis.call('HGET', key, 'tokens'))
	local last_refill = tonumber(redis.call('HGET', key, 'last_refill'))

	if not tokens then
		tokens = burst
		last_refill = now
	end

	local delta = math.max(0, now - last_refill)
	local new_tokens = math.min(burst, tokens + (delta * rate))

	if new_tokens >= 1 then
		new_tokens = new_tokens - 1
		redis.call('HSET', key, 'tokens', new_tokens, 'last_refill', now)
		return 1
	end

	redis.call('HSET', key, 'tokens', new_tokens, 'last_refill', now)
	return 0
`)

// Limiter rate-limits by an arbitrary string key (the worker keys it by
// task name).
type Limiter struct {
	rdb *redis.Client
}

// New wraps an existing Redis client for rate-limit bookkeeping.
func New(rdb *redis.Client) *Limiter {
	return &Limiter{rdb: rdb}
}

// Allow reports whether a request for key is allowed under a token
// bucket refilling at rate tokens/sec with the given burst capacity.
func (l *Limiter) Allow(ctx context.Context, key string, rate, burst int) (bool, error) {
	result, err := tokenBucket.Run(ctx, l.rdb,
		[]string{"taskq:ratelimit:" + key},
		rate, burst, float64(time.Now().UnixNano())/1e9,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("ratelimit: allow: %w", err)
	}
	return result == 1, nil
}
