package httpclient

import (
	"log/slog"
	"time"

	"github.com/tombee/opspilot/pkg/errors"
)

// Config configures the HTTP client with timeout, retry, and logging settings.
type Config struct {
	// Timeout bounds a whole call, retries included.
	// Default: 30s. Must be > 0.
	Timeout time.Duration

	// RetryAttempts is the default number of retries after the first try.
	// Default: 0. Must be >= 0.
	RetryAttempts int

	// RetryBackoff is the initial delay before the first retry.
	// Default: 100ms. Must be > 0.
	RetryBackoff time.Duration

	// MaxBackoff caps the delay between attempts.
	// Default: 10s. Must be >= RetryBackoff.
	MaxBackoff time.Duration

	// UserAgent is the User-Agent header value. Required.
	UserAgent string

	// AllowNonIdempotentRetry retries POST, PUT, PATCH and DELETE even
	// without an Idempotency-Key header.
	AllowNonIdempotentRetry bool

	// Logger receives request logs. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:      30 * time.Second,
		RetryBackoff: 100 * time.Millisecond,
		MaxBackoff:   10 * time.Second,
		UserAgent:    "opspilot/1.0",
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return &errors.ConfigError{Key: "timeout", Reason: "must be > 0, got " + c.Timeout.String()}
	}
	if c.RetryAttempts < 0 {
		return &errors.ConfigError{Key: "retry_attempts", Reason: "must be >= 0"}
	}
	if c.RetryBackoff <= 0 {
		return &errors.ConfigError{Key: "retry_backoff", Reason: "must be > 0, got " + c.RetryBackoff.String()}
	}
	if c.MaxBackoff < c.RetryBackoff {
		return &errors.ConfigError{
			Key:    "max_backoff",
			Reason: "max_backoff (" + c.MaxBackoff.String() + ") must be >= retry_backoff (" + c.RetryBackoff.String() + ")",
		}
	}
	if c.UserAgent == "" {
		return &errors.ConfigError{Key: "user_agent", Reason: "is required and must be non-empty"}
	}
	return nil
}
