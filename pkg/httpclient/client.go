package httpclient

import (
	"crypto/tls"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// HeaderIdempotencyKey marks a request as safe to repeat.
const HeaderIdempotencyKey = "Idempotency-Key"

// New creates an HTTP client for cfg. Returns an error if the configuration
// is invalid.
func New(cfg Config) (*http.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Transport: Wrap(base, cfg),
		Timeout:   cfg.Timeout,
	}, nil
}

// Wrap layers logging and retry over base. Tests use it to wrap
// httptest transports.
func Wrap(base http.RoundTripper, cfg Config) http.RoundTripper {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return newRetryTransport(newLoggingTransport(base, cfg.UserAgent, logger), cfg)
}
