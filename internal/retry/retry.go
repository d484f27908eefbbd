// Package retry re-runs idempotent store operations that failed transiently.
package retry

import (
	"context"
	"log/slog"
	"time"

	"reflexion/internal/models"
	"reflexion/internal/observability"

	"github.com/cenkalti/backoff/v5"
)

// Policy bounds the exponential backoff.
type Policy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsed      time.Duration
}

// DefaultPolicy is used by the services.
var DefaultPolicy = Policy{
	InitialInterval: 100 * time.Millisecond,
	MaxInterval:     2 * time.Second,
	MaxElapsed:      5 * time.Second,
}

// Do runs fn until it succeeds, returns a non-retryable error, or the policy
// gives up. Only errors with the UNAVAILABLE code are retried; fn must be
// safe to run more than once.
func Do[T any](ctx context.Context, p Policy, operation string, fn func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval

	return backoff.Retry(ctx, func() (T, error) {
		v, err := fn()
		if err != nil && !models.IsRetryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(p.MaxElapsed),
		backoff.WithNotify(func(err error, wait time.Duration) {
			observability.StoreRetries.WithLabelValues(operation).Inc()
			observability.GlobalLogger.WarnContext(ctx, "retrying store operation",
				slog.String("operation", operation),
				slog.Duration("wait", wait),
				slog.String("error", err.Error()),
			)
		}),
	)
}

// Exec is Do for operations without a result.
func Exec(ctx context.Context, p Policy, operation string, fn func() error) error {
	_, err := Do(ctx, p, operation, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}
