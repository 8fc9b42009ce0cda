package httpclient

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// RetryPolicy overrides the client's retry defaults for one request.
type RetryPolicy struct {
	// Attempts counts the first try; 1 disables retries.
	Attempts int

	// Backoff is the initial delay. Zero keeps the client default.
	Backoff time.Duration
}

type retryPolicyKey struct{}

// WithRetryPolicy attaches p to ctx for requests built from it.
func WithRetryPolicy(ctx context.Context, p RetryPolicy) context.Context {
	return context.WithValue(ctx, retryPolicyKey{}, p)
}

func retryPolicyFrom(ctx context.Context) (RetryPolicy, bool) {
	p, ok := ctx.Value(retryPolicyKey{}).(RetryPolicy)
	return p, ok
}

type retryTransport struct {
	base                    http.RoundTripper
	maxAttempts             int
	baseBackoff             time.Duration
	maxBackoff              time.Duration
	allowNonIdempotentRetry bool
}

func newRetryTransport(base http.RoundTripper, cfg Config) *retryTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &retryTransport{
		base:                    base,
		maxAttempts:             cfg.RetryAttempts + 1,
		baseBackoff:             cfg.RetryBackoff,
		maxBackoff:              cfg.MaxBackoff,
		allowNonIdempotentRetry: cfg.AllowNonIdempotentRetry,
	}
}

// RoundTrip implements http.RoundTripper with retry logic.
func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	attempts, backoff := t.maxAttempts, t.baseBackoff
	if p, ok := retryPolicyFrom(ctx); ok {
		attempts = p.Attempts
		if p.Backoff > 0 {
			backoff = p.Backoff
		}
	}

	if attempts <= 1 || !t.retryable(req) {
		return t.base.RoundTrip(req)
	}
	// A body we cannot rewind can only be sent once.
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return t.base.RoundTrip(req)
	}

	var lastErr error
	var lastResp *http.Response

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := t.calculateBackoff(backoff, attempt-1)
			if lastResp != nil {
				if retryAfter := parseRetryAfter(lastResp); retryAfter > 0 && retryAfter < delay {
					delay = retryAfter
				}
				drain(lastResp)
			}

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			}

			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				req = req.Clone(ctx)
				req.Body = body
			}
		}

		resp, err := t.base.RoundTrip(req)
		if err == nil && !shouldRetryStatus(resp.StatusCode) {
			return resp, nil
		}
		if err != nil && !isRetryableError(err) {
			return nil, err
		}

		lastErr, lastResp = err, resp
		if ctx.Err() != nil {
			drain(resp)
			return nil, ctx.Err()
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return lastResp, nil
}

// retryable reports whether the request may be sent more than once. Writes
// qualify when they carry an Idempotency-Key the server can deduplicate on.
func (t *retryTransport) retryable(req *http.Request) bool {
	switch strings.ToUpper(req.Method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return t.allowNonIdempotentRetry || req.Header.Get(HeaderIdempotencyKey) != ""
}

func shouldRetryStatus(statusCode int) bool {
	switch {
	case statusCode >= 500 && statusCode < 600:
		return true
	case statusCode == http.StatusRequestTimeout, statusCode == http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && isRetryableError(urlErr.Err) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, keyword := range []string{
		"connection refused",
		"connection reset",
		"no such host",
		"network unreachable",
		"temporary failure in name resolution",
		"eof",
	} {
		if strings.Contains(msg, keyword) {
			return true
		}
	}
	return false
}

// calculateBackoff returns base * 2^(retry-1), capped, plus up to 20% jitter.
func (t *retryTransport) calculateBackoff(base time.Duration, retry int) time.Duration {
	backoff := float64(base) * math.Pow(2.0, float64(retry-1))
	if t.maxBackoff > 0 && backoff > float64(t.maxBackoff) {
		backoff = float64(t.maxBackoff)
	}
	jitter := rand.Float64() * backoff * 0.2
	return time.Duration(backoff + jitter)
}

// parseRetryAfter reads Retry-After as seconds or an HTTP date. Returns 0
// when absent or invalid.
func parseRetryAfter(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if delay := time.Until(at); delay > 0 {
			return delay
		}
	}
	return 0
}

func drain(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
}
