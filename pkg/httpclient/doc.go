// Package httpclient builds the HTTP client used for downstream service
// calls.
//
// The client composes two round-trippers over a pooled TLS transport:
//   - a retry layer with exponential backoff and jitter
//   - a logging layer that sets User-Agent, propagates the correlation ID
//     and logs sanitized URLs
//
// # Retry Behavior
//
// Defaults come from Config. A caller can override them for one request
// with WithRetryPolicy, which is how a use case's declared retry policy is
// applied:
//
//	ctx = httpclient.WithRetryPolicy(ctx, httpclient.RetryPolicy{Attempts: 3, Backoff: 200 * time.Millisecond})
//	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
//	req.Header.Set(httpclient.HeaderIdempotencyKey, key)
//
// GET, HEAD and OPTIONS are always retryable. Other methods are retried
// only when the request carries an Idempotency-Key header or
// AllowNonIdempotentRetry is set. 5xx, 408 and 429 responses and transient
// network errors are retried; Retry-After shortens the wait when present.
// Request bodies are rewound with GetBody between attempts.
package httpclient
