package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/liiist/liiist/internal/cache"
	"github.com/liiist/liiist/internal/metrics"
)

type stubLimiter struct {
	result *cache.RateLimitResult
	err    error
	gotIP  string
	calls  int
}

func (s *stubLimiter) CheckSignInRateLimit(_ context.Context, ip string, _, _ int) (*cache.RateLimitResult, error) {
	s.calls++
	s.gotIP = ip
	return s.result, s.err
}

func TestSignInRateLimit(t *testing.T) {
	tests := []struct {
		name          string
		limiter       *stubLimiter
		perMinute     int
		wantStatus    int
		wantCalls     int
		wantThrottled uint64
	}{
		{"allowed", &stubLimiter{result: &cache.RateLimitResult{Allowed: true}}, 5, http.StatusOK, 1, 0},
		{"throttled", &stubLimiter{result: &cache.RateLimitResult{RetryAfter: 12 * time.Second}}, 5, http.StatusTooManyRequests, 1, 1},
		{"limiter error fails open", &stubLimiter{err: errors.New("redis down")}, 5, http.StatusOK, 1, 0},
		{"disabled", &stubLimiter{}, 0, http.StatusOK, 0, 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			recorder := metrics.NewInMemory()
			handler := SignInRateLimit(RateLimitConfig{
				Limiter:   tt.limiter,
				Metrics:   recorder,
				PerMinute: tt.perMinute,
				Burst:     3,
			})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, "/sign-in", nil)
			req.RemoteAddr = "203.0.113.9:51234"
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.limiter.calls != tt.wantCalls {
				t.Errorf("limiter calls = %d, want %d", tt.limiter.calls, tt.wantCalls)
			}
			if tt.wantCalls > 0 && tt.limiter.gotIP != "203.0.113.9" {
				t.Errorf("limiter ip = %q, want 203.0.113.9", tt.limiter.gotIP)
			}
			if got := recorder.Snapshot().SignInThrottled; got != tt.wantThrottled {
				t.Errorf("throttled = %d, want %d", got, tt.wantThrottled)
			}

			if tt.wantStatus == http.StatusTooManyRequests {
				if got := rec.Header().Get("Retry-After"); got != "12" {
					t.Errorf("Retry-After = %q, want 12", got)
				}
				var body map[string]string
				if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
					t.Fatalf("decode body: %v", err)
				}
				if body["error"] != MsgTooManyAttempts {
					t.Errorf("error = %q", body["error"])
				}
			}
		})
	}
}
