package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/liiist/liiist/internal/cache"
	"github.com/liiist/liiist/internal/metrics"
)

// SignInLimiter consumes one sign-in attempt for an IP.
type SignInLimiter interface {
	CheckSignInRateLimit(ctx context.Context, ip string, ratePerMinute, burst int) (*cache.RateLimitResult, error)
}

// RateLimitConfig configures SignInRateLimit.
type RateLimitConfig struct {
	Limiter   SignInLimiter
	Logger    *slog.Logger
	Metrics   metrics.Recorder
	PerMinute int
	Burst     int
}

// MsgTooManyAttempts is returned with 429.
const MsgTooManyAttempts = "Too many sign-in attempts. Please try again later."

// SignInRateLimit throttles credential attempts per client IP.
// Limiter errors fail open.
func SignInRateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoop()
	}

	return func(next http.Handler) http.Handler {
		if cfg.Limiter == nil || cfg.PerMinute <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)

			result, err := cfg.Limiter.CheckSignInRateLimit(r.Context(), ip, cfg.PerMinute, cfg.Burst)
			if err != nil {
				LoggerFor(r.Context(), cfg.Logger).Error("sign-in rate limit check failed",
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}

			if !result.Allowed {
				cfg.Metrics.IncSignInThrottled()
				LoggerFor(r.Context(), cfg.Logger).Warn("sign-in rate limit exceeded",
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.Int64("retry_after_seconds", int64(result.RetryAfter.Seconds())),
				)
				w.Header().Set("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())))
				writeError(w, http.StatusTooManyRequests, MsgTooManyAttempts)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP returns the host part of RemoteAddr. Proxy headers are applied
// to RemoteAddr upstream by chi's RealIP.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
