package optimizer

import (
	"math/rand"
	"time"
)

// Retry delays between attempts. The caller is waiting on the response,
// so delays stay short.
var retryDelays = []time.Duration{
	200 * time.Millisecond,
	500 * time.Millisecond,
	1 * time.Second,
}

const (
	// DefaultMaxAttempts is the default number of attempts per call.
	DefaultMaxAttempts = 3

	// JitterFactor is the ±percentage of jitter applied to delays.
	JitterFactor = 0.2 // ±20%
)

// NextRetryDelay calculates the delay before the next attempt.
// attempt is 0-indexed (after the first failed attempt, attempt = 0).
func NextRetryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= len(retryDelays) {
		attempt = len(retryDelays) - 1
	}

	base := retryDelays[attempt]

	jitterRange := float64(base) * JitterFactor
	jitter := (rand.Float64()*2 - 1) * jitterRange

	return time.Duration(float64(base) + jitter)
}

// IsExhausted returns true if max attempts have been reached.
func IsExhausted(attempts, maxAttempts int) bool {
	return attempts >= maxAttempts
}
