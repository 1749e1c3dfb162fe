package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// rateLimitSignInPrefix is the Redis key prefix for sign-in attempts per IP.
	rateLimitSignInPrefix = "ratelimit:signin:"
	// rateLimitSignInTTL is how long an idle bucket is kept.
	rateLimitSignInTTL = 10 * time.Minute
)

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Remaining int64
	// ResetAt is when the bucket is full again.
	ResetAt time.Time
	// RetryAfter is rounded up to whole seconds for the Retry-After header.
	RetryAfter time.Duration
}

// tokenBucketScript refills and consumes in one atomic step.
// Clocks are unix milliseconds so per-minute rates refill smoothly.
//
//	KEYS[1]  bucket hash {tokens, ts}
//	ARGV[1]  refill rate, tokens per millisecond
//	ARGV[2]  bucket capacity
//	ARGV[3]  caller clock, unix milliseconds
//	ARGV[4]  idle lifetime, milliseconds
//
// Returns {allowed, retry_after_ms, remaining, full_in_ms}.
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local rate = tonumber(ARGV[1])
	local capacity = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])
	local ttl = tonumber(ARGV[4])

	local state = redis.call('HMGET', key, 'tokens', 'ts')
	local tokens = tonumber(state[1]) or capacity
	local ts = tonumber(state[2]) or now

	-- Instances with a clock behind the last writer refill nothing.
	local elapsed = math.max(0, now - ts)
	tokens = math.min(capacity, tokens + elapsed * rate)

	local allowed = 0
	local retry_after = 0
	if tokens >= 1 then
		tokens = tokens - 1
		allowed = 1
	else
		-- Wait for the next whole attempt.
		retry_after = math.ceil((1 - tokens) / rate)
	end

	redis.call('HSET', key, 'tokens', tokens, 'ts', now)
	redis.call('PEXPIRE', key, ttl)

	local full_in = math.ceil((capacity - tokens) / rate)
	return {allowed, retry_after, math.floor(tokens), full_in}
`)

// CheckSignInRateLimit consumes one sign-in attempt for ip.
// ratePerMinute attempts refill per minute up to burst; a non-positive rate
// disables the limit. IP is hashed to avoid storing raw IP addresses.
func (c *Cache) CheckSignInRateLimit(ctx context.Context, ip string, ratePerMinute, burst int) (*RateLimitResult, error) {
	if burst < 1 {
		burst = 1
	}
	now := time.Now()
	if ratePerMinute <= 0 {
		return &RateLimitResult{Allowed: true, Remaining: int64(burst), ResetAt: now}, nil
	}

	perMs := float64(ratePerMinute) / float64(time.Minute.Milliseconds())
	raw, err := tokenBucketScript.Run(ctx, c.client,
		[]string{rateLimitSignInPrefix + hashIP(ip)},
		perMs, burst, now.UnixMilli(), rateLimitSignInTTL.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("sign-in rate limit: %w", err)
	}
	return bucketResult(raw, now)
}

// bucketResult decodes the script reply.
func bucketResult(raw []int64, now time.Time) (*RateLimitResult, error) {
	if len(raw) != 4 {
		return nil, fmt.Errorf("sign-in rate limit: unexpected reply %v", raw)
	}
	retry := time.Duration(raw[1]) * time.Millisecond
	if rem := retry % time.Second; rem != 0 {
		retry += time.Second - rem
	}
	return &RateLimitResult{
		Allowed:    raw[0] == 1,
		Remaining:  raw[2],
		ResetAt:    now.Add(time.Duration(raw[3]) * time.Millisecond),
		RetryAfter: retry,
	}, nil
}

// hashIP creates a truncated SHA256 hash of an IP address.
func hashIP(ip string) string {
	hash := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(hash[:8]) // 16 hex chars
}
