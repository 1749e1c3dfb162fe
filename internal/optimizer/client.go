// Package optimizer calls the external price-optimization service.
package optimizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/liiist/liiist/internal/metrics"
)

const (
	// ClientTimeout is the total per-attempt timeout.
	ClientTimeout = 30 * time.Second
	// DialTimeout is the connection timeout.
	DialTimeout = 5 * time.Second
	// ResponseHeaderTimeout is time to wait for response headers.
	ResponseHeaderTimeout = 25 * time.Second

	// maxResponseBytes caps the response body read from the optimizer.
	maxResponseBytes = 1 << 20
)

// Header names for optimizer requests.
const (
	HeaderSignature = "X-Liiist-Signature"
	HeaderTimestamp = "X-Liiist-Timestamp"
	HeaderRequestID = "X-Liiist-Request-Id"
)

var (
	// ErrNotConfigured is returned when no optimizer URL is set.
	ErrNotConfigured = errors.New("optimizer not configured")
	// ErrUnavailable is returned once every attempt failed.
	ErrUnavailable = errors.New("optimizer unavailable")
	// ErrInvalidURL is returned for an optimizer URL that is not absolute http(s).
	ErrInvalidURL = errors.New("optimizer URL must be an absolute http or https URL")
)

// StatusError is a non-retryable rejection from the optimizer.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("optimizer rejected request: HTTP %d", e.StatusCode)
}

// Product is one line of a calculation request.
type Product struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Request is the payload sent to the optimizer.
type Request struct {
	ListID   string    `json:"listId"`
	Title    string    `json:"title"`
	Products []Product `json:"products"`
	Budget   float64   `json:"budget"`
	Mode     string    `json:"mode"`
}

// Config configures a Client.
type Config struct {
	URL         string
	Secret      string
	MaxAttempts int
}

// Client posts calculation requests to the optimizer.
type Client struct {
	endpoint    string
	secret      string
	maxAttempts int
	http        *http.Client
	logger      *slog.Logger
	metrics     metrics.Recorder
	sleep       func(ctx context.Context, d time.Duration) error
	now         func() time.Time
}

// NewHTTPClient creates an HTTP client with appropriate timeouts that does
// not follow redirects.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: ClientTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: ResponseHeaderTimeout,
			MaxIdleConns:          20,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// New creates a Client. An empty URL yields a client whose calls fail with
// ErrNotConfigured.
func New(cfg Config, logger *slog.Logger, recorder metrics.Recorder) (*Client, error) {
	if cfg.URL != "" {
		u, err := url.Parse(cfg.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, ErrInvalidURL
		}
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Client{
		endpoint:    cfg.URL,
		secret:      cfg.Secret,
		maxAttempts: cfg.MaxAttempts,
		http:        NewHTTPClient(),
		logger:      logger.With("component", "optimizer"),
		metrics:     recorder,
		sleep:       sleepCtx,
		now:         time.Now,
	}, nil
}

// Calculate sends req on behalf of the caller holding accessToken and
// returns the optimizer's JSON response untouched.
func (c *Client) Calculate(ctx context.Context, req Request, accessToken string) (json.RawMessage, error) {
	if c.endpoint == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	requestID := ulid.Make().String()
	start := c.now()
	defer func() {
		c.metrics.ObserveOptimizerDuration(c.now().Sub(start))
	}()

	var lastErr error
	for attempt := 0; !IsExhausted(attempt, c.maxAttempts); attempt++ {
		if attempt > 0 {
			c.metrics.IncOptimizerRequest("retry")
			if err := c.sleep(ctx, NextRetryDelay(attempt-1)); err != nil {
				return nil, err
			}
		}

		result, retryable, err := c.send(ctx, body, requestID, accessToken)
		if err == nil {
			c.metrics.IncOptimizerRequest("success")
			return result, nil
		}
		if !retryable {
			c.metrics.IncOptimizerRequest("failed")
			return nil, err
		}

		lastErr = err
		c.logger.Warn("optimizer attempt failed",
			slog.String("request_id", requestID),
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()),
		)
	}

	c.metrics.IncOptimizerRequest("failed")
	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

// send performs one attempt and reports whether a failure may be retried.
func (c *Client) send(ctx context.Context, body []byte, requestID, accessToken string) (json.RawMessage, bool, error) {
	timestamp := c.now().Unix()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	httpReq.Header.Set(HeaderTimestamp, strconv.FormatInt(timestamp, 10))
	httpReq.Header.Set(HeaderRequestID, requestID)
	if c.secret != "" {
		httpReq.Header.Set(HeaderSignature, GenerateSignature(c.secret, timestamp, body))
	}
	httpReq.Header.Set("User-Agent", "Liiist-Backend/1.0")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, true, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if !json.Valid(data) {
			return nil, false, fmt.Errorf("optimizer returned invalid JSON")
		}
		return json.RawMessage(data), false, nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(data), 256)}
	default:
		return nil, false, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(data), 256)}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
