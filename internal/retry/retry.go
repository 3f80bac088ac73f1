// Package retry runs an attempt function under a bounded budget.
package retry

import (
	"context"
	"errors"
	"time"
)

// #region constants

const maxRetries = 2 // max 2 retries = 3 total attempts

// DefaultAttempts is the attempt budget used when a Policy leaves it unset.
const DefaultAttempts = maxRetries + 1

// #endregion

// #region policy

// Policy bounds how many times an attempt runs and how long to wait between
// attempts. A nil Sleep sleeps on the real clock and honors ctx.
type Policy struct {
	MaxAttempts int
	Interval    time.Duration
	Sleep       func(context.Context, time.Duration) error
}

// Result reports the outcome of Do. OK is false when the budget ran out or
// the attempt function returned a permanent error.
type Result[T any] struct {
	Value    T
	OK       bool
	Attempts int
	Err      error
}

type permanent struct{ err error }

func (p permanent) Error() string { return p.err.Error() }
func (p permanent) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanent{err: err}
}

// ErrRejected is returned by attempt functions whose call succeeded but whose
// value was not acceptable.
var ErrRejected = errors.New("attempt rejected")

// #endregion

// #region do

// Do calls fn until it succeeds, returns a permanent error, the context ends,
// or the budget is exhausted. fn receives the 1-based attempt number.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) (T, error)) Result[T] {
	max := p.MaxAttempts
	if max <= 0 {
		max = DefaultAttempts
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var res Result[T]
	for attempt := 1; attempt <= max; attempt++ {
		if attempt > 1 && p.Interval > 0 {
			if err := sleep(ctx, p.Interval); err != nil {
				res.Err = err
				return res
			}
		}
		if err := ctx.Err(); err != nil {
			res.Err = err
			return res
		}

		res.Attempts = attempt
		v, err := fn(ctx, attempt)
		if err == nil {
			res.Value = v
			res.OK = true
			res.Err = nil
			return res
		}
		res.Err = err

		var perm permanent
		if errors.As(err, &perm) {
			res.Err = perm.err
			return res
		}
	}
	return res
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// #endregion
