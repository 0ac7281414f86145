package executor

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/jeeves-cluster-organization/rubric-engine/coreengine/rubric"
)

// RunOptions configures a single Resilient Step Runner invocation (§4.3).
type RunOptions struct {
	Stage   rubric.PipelineStage
	Timeout time.Duration
	Retry   BackoffOptions
	Logger  Logger
	Rng     *rand.Rand // seeded RNG for deterministic tests; nil in production
	OnError func(*rubric.ExecutorError)
	OnRetry func(attempt int, delay time.Duration)
}

// Run wraps a single analyzer invocation with a per-attempt timeout, a
// classify-retry-backoff loop, and cancellation. It never panics: a panic
// inside fn is recovered and classified like any other error.
func Run[T any](ctx context.Context, fn func(context.Context) (T, error), opts RunOptions) (T, error) {
	var zero T

	maxAttempts := opts.Retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr *rubric.ExecutorError

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			a := attempt
			return zero, Classify(err, opts.Stage, &a)
		}

		attemptCtx := ctx
		var cancel context.CancelFunc
		if opts.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		}

		result, err := SafeExecuteWithResult(opts.Logger, string(opts.Stage), func() (T, error) {
			return fn(attemptCtx)
		})

		timedOut := attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil
		if cancel != nil {
			cancel()
		}

		if err == nil && !timedOut {
			return result, nil
		}

		attemptErr := err
		if timedOut {
			attemptErr = context.DeadlineExceeded
		}

		a := attempt
		classified := Classify(attemptErr, opts.Stage, &a)
		lastErr = classified
		if opts.OnError != nil {
			opts.OnError(classified)
		}

		if err := ctx.Err(); err != nil {
			return zero, Classify(err, opts.Stage, &a)
		}

		if !classified.Recoverable || attempt == maxAttempts {
			break
		}

		delay := Delay(attempt, opts.Retry, opts.Rng)
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return zero, Classify(ctx.Err(), opts.Stage, &a)
		}
	}

	if lastErr == nil {
		lastErr = &rubric.ExecutorError{Code: rubric.ErrUnknown, Stage: opts.Stage, Timestamp: time.Now().UTC()}
	}

	if lastErr.Recoverable {
		return zero, &rubric.ExecutorError{
			Code:        rubric.ErrMaxRetriesExceeded,
			Message:     fmt.Sprintf("exhausted %d attempts", maxAttempts),
			Stage:       opts.Stage,
			Recoverable: false,
			Timestamp:   time.Now().UTC(),
			Cause:       lastErr,
		}
	}
	return zero, lastErr
}
