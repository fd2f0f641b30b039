package retry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Default bounds for retried operations.
const (
	DefaultMaxAttempts     = 3
	DefaultInitialInterval = 500 * time.Millisecond
	DefaultMaxInterval     = 5 * time.Second
)

// Config bounds a retried operation: total attempts (first try included) and
// the exponential backoff window between them.
type Config struct {
	MaxAttempts     uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultConfig returns the standard retry bounds.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     DefaultMaxAttempts,
		InitialInterval: DefaultInitialInterval,
		MaxInterval:     DefaultMaxInterval,
	}
}

// Permanent marks an error as non-retryable: Do stops immediately and
// returns it instead of burning the remaining attempts.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op up to cfg.MaxAttempts times with exponential backoff between
// failures. Each failed attempt is logged with the operation name and the
// attempt number. The returned error wraps the last attempt's error; the
// backoff library strips any permanent marker before it reaches us.
func Do(ctx context.Context, cfg Config, name string, op func() error) error {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}

	b := backoff.NewExponentialBackOff()
	if cfg.InitialInterval > 0 {
		b.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		b.MaxInterval = cfg.MaxInterval
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(b, cfg.MaxAttempts-1), ctx)

	attempt := 0
	wrapped := func() error {
		attempt++
		return op()
	}
	notify := func(err error, wait time.Duration) {
		log.Printf("%s: attempt %d/%d failed: %v (retrying in %s)",
			name, attempt, cfg.MaxAttempts, err, wait.Round(time.Millisecond))
	}

	err := backoff.RetryNotify(wrapped, bo, notify)
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s cancelled: %w", name, err)
	}

	return fmt.Errorf("%s failed after %d attempts: %w", name, attempt, err)
}
