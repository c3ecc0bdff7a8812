package harness

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

// errPollTimeout marks a poll that ran out of its own budget, as opposed to
// the caller's context ending.
var errPollTimeout = errors.New("poll timeout")

// poll evaluates check at most once per interval until it reports done,
// returns an error, or timeout elapses. When less than an interval is left
// the last check is made at the deadline, so a timeout is only reported once
// the full budget has passed. A cancelled parent context is returned as is so
// callers can tell it apart from errPollTimeout.
func poll(ctx context.Context, timeout, interval time.Duration, check func(ctx context.Context) (bool, error)) error {
	deadline := time.Now().Add(timeout)
	limiter := rate.NewLimiter(rate.Every(interval), 1)
	for {
		delay := limiter.Reserve().Delay()
		remaining := time.Until(deadline)
		last := delay >= remaining
		if last {
			delay = remaining
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}

		// A check always gets at least one interval, the one at the deadline
		// included.
		cctx, cancel := context.WithTimeout(ctx, max(time.Until(deadline), interval))
		done, err := check(cctx)
		cancel()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if last {
			if err := ctx.Err(); err != nil {
				return err
			}
			return errPollTimeout
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
