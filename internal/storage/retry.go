package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stellarnodeN/recrusearch/pkg/platform/sentinel"
)

// SleepFunc waits for d or until ctx is done. Injected so the retry policy
// is testable without real delays.
type SleepFunc func(ctx context.Context, d time.Duration) error

// DefaultSleep honours context cancellation while waiting, so abandoning a
// stuck submission also abandons the backoff timer.
func DefaultSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

const defaultBaseDelay = 500 * time.Millisecond

// Retrying wraps a Client with bounded exponential backoff. Only transient
// failures (sentinel.ErrUnavailable) are retried: a not-found answer from a
// reachable network will not change, and retrying it would only hide the
// distinction the error taxonomy exists to preserve.
type Retrying struct {
	inner     Client
	retries   int
	baseDelay time.Duration
	sleep     SleepFunc
	logger    *slog.Logger
	metrics   *Metrics
}

// NewRetrying builds the wrapper. retries is the number of additional
// attempts after the first; base is the first backoff delay, doubling each
// retry. A nil sleep installs DefaultSleep, a nil metrics disables counters.
func NewRetrying(inner Client, retries int, base time.Duration, sleep SleepFunc, logger *slog.Logger, metrics *Metrics) *Retrying {
	if sleep == nil {
		sleep = DefaultSleep
	}
	if base <= 0 {
		base = defaultBaseDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrying{
		inner:     inner,
		retries:   retries,
		baseDelay: base,
		sleep:     sleep,
		logger:    logger,
		metrics:   metrics,
	}
}

func (r *Retrying) Put(ctx context.Context, blob []byte) (ContentID, error) {
	var id ContentID
	err := r.attempt(ctx, "put", func(ctx context.Context) error {
		var err error
		id, err = r.inner.Put(ctx, blob)
		return err
	})
	return id, err
}

func (r *Retrying) Get(ctx context.Context, id ContentID) ([]byte, error) {
	var blob []byte
	err := r.attempt(ctx, "get", func(ctx context.Context) error {
		var err error
		blob, err = r.inner.Get(ctx, id)
		return err
	})
	return blob, err
}

func (r *Retrying) attempt(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	delay := r.baseDelay
	var lastErr error

	for attempt := 0; attempt <= r.retries; attempt++ {
		if attempt > 0 {
			r.metrics.observeRetry(op)
			if err := r.sleep(ctx, delay); err != nil {
				return fmt.Errorf("storage %s abandoned during backoff: %w", op, err)
			}
			delay *= 2
		}

		r.metrics.observeAttempt(op)
		err := fn(ctx)
		if err == nil {
			r.metrics.observeOutcome(op, "ok")
			return nil
		}
		if !errors.Is(err, sentinel.ErrUnavailable) {
			r.metrics.observeOutcome(op, outcomeLabel(err))
			return err
		}

		lastErr = err
		if attempt < r.retries {
			r.logger.WarnContext(ctx, "storage operation failed, will retry",
				"op", op,
				"attempt", attempt+1,
				"max_attempts", r.retries+1,
				"error", err,
			)
		}
	}

	r.metrics.observeOutcome(op, "unavailable")
	return fmt.Errorf("storage %s failed after %d attempts: %w", op, r.retries+1, lastErr)
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return "not_found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
