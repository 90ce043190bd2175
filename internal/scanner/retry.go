package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker/v2"

	"github.com/nerrad567/blue-hydra/internal/process"
)

// runWithRetry executes one command up to maxTries times with exponential
// backoff (initial delay, doubling). Each attempt goes through the breaker;
// an open breaker or a cancelled ctx stops retrying at once.
func runWithRetry(
	ctx context.Context,
	breaker *gobreaker.CircuitBreaker[process.Result],
	runner process.Runner,
	name string,
	args []string,
	maxTries int,
	initial time.Duration,
	notify func(error, time.Duration),
) (process.Result, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.Multiplier = 2
	b.RandomizationFactor = 0

	op := func() (process.Result, error) {
		res, err := breaker.Execute(func() (process.Result, error) {
			return runner.Execute(ctx, name, args...)
		})
		if err == nil {
			return res, nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return res, backoff.Permanent(fmt.Errorf("%s circuit open: %w", name, err))
		}
		if ctx.Err() != nil {
			return res, backoff.Permanent(err)
		}
		return res, err
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(maxTries)), //nolint:gosec // maxTries is validated positive
	}
	if notify != nil {
		opts = append(opts, backoff.WithNotify(notify))
	}
	return backoff.Retry(ctx, op, opts...)
}
