package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	retry "github.com/avast/retry-go/v4"
)

const (
	// DefaultInterval is the polling interval used by DefaultWaiter
	DefaultInterval = 1 * time.Second

	// DefaultTimeout bounds a single wait in DefaultWaiter
	DefaultTimeout = 10 * time.Minute
)

var (
	// ErrTimeout is returned when the condition did not hold before the deadline
	ErrTimeout = errors.New("timed out")

	errPending = errors.New("condition not met")
)

// Condition reports whether the awaited state was reached. A non-nil error
// aborts the wait immediately.
type Condition func(ctx context.Context) (bool, error)

// Waiter polls a condition at a fixed interval, bounded by both an absolute
// timeout and a maximum number of attempts derived from it
type Waiter struct {
	timeout  time.Duration
	interval time.Duration
	attempts uint
}

// NewWaiter creates a new Waiter with the given timeout and polling interval
func NewWaiter(timeout, interval time.Duration) *Waiter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if timeout < interval {
		timeout = interval
	}
	return &Waiter{
		timeout:  timeout,
		interval: interval,
		attempts: uint(timeout / interval),
	}
}

// DefaultWaiter returns a waiter with a 1s interval and a 10m timeout
func DefaultWaiter() *Waiter {
	return NewWaiter(DefaultTimeout, DefaultInterval)
}

// Interval returns the polling interval
func (w *Waiter) Interval() time.Duration {
	return w.interval
}

// Timeout returns the absolute bound of one wait
func (w *Waiter) Timeout() time.Duration {
	return w.timeout
}

// WaitFor polls condition until it returns true. The first poll happens one
// interval after the call. Returns ErrTimeout when the deadline or the
// attempt budget runs out, the condition's error if it fails, or the
// context error if ctx is cancelled.
func (w *Waiter) WaitFor(ctx context.Context, condition Condition, description string) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	timer := time.NewTimer(w.interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return w.ctxErr(ctx, description)
	case <-timer.C:
	}

	err := retry.Do(
		func() error {
			done, err := condition(ctx)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			if !done {
				return errPending
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(w.attempts),
		retry.Delay(w.interval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, errPending):
		return fmt.Errorf("%w waiting for %s after %d attempts", ErrTimeout, description, w.attempts)
	case ctx.Err() != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)):
		return w.ctxErr(ctx, description)
	default:
		return err
	}
}

func (w *Waiter) ctxErr(ctx context.Context, description string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w waiting for %s (timeout: %v)", ErrTimeout, description, w.timeout)
	}
	return fmt.Errorf("waiting for %s: %w", description, ctx.Err())
}
