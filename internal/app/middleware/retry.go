package middleware

import (
	"context"
	"errors"
	"time"

	"tripdesk/internal/app/commands"
)

// RetryableCommand marks a command whose handler is safe to run again from
// scratch after a failed attempt. Commands that do not implement it, or
// report false, are dispatched exactly once.
type RetryableCommand interface {
	commands.Command
	Retryable() bool
}

// Retry re-dispatches a retryable command that failed with one of retryable,
// up to attempts times in total. It must sit outside Transaction so every
// attempt gets a fresh unit of work.
func Retry(attempts int, backoff time.Duration, retryable ...error) CommandMiddleware {
	if attempts < 1 {
		attempts = 1
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if rc, ok := cmd.(RetryableCommand); !ok || !rc.Retryable() {
				return next.Dispatch(ctx, cmd)
			}
			var lastErr error
			for attempt := 0; attempt < attempts; attempt++ {
				if attempt > 0 && backoff > 0 {
					timer := time.NewTimer(time.Duration(attempt) * backoff)
					select {
					case <-ctx.Done():
						timer.Stop()
						return nil, errors.Join(lastErr, ctx.Err())
					case <-timer.C:
					}
				}
				res, err := next.Dispatch(ctx, cmd)
				if err == nil {
					return res, nil
				}
				lastErr = err
				if !isAny(err, retryable) || ctx.Err() != nil {
					return nil, err
				}
			}
			return nil, lastErr
		})
	}
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
