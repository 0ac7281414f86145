package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeeves-cluster-organization/rubric-engine/coreengine/rubric"
)

func fastRetryOpts(maxAttempts int) RunOptions {
	return RunOptions{
		Stage: rubric.StageScreening,
		Retry: BackoffOptions{InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2, MaxAttempts: maxAttempts},
	}
}

func TestRun_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	result, err := Run(context.Background(), func(ctx context.Context) (int, error) {
		calls++
		return 42, nil
	}, fastRetryOpts(3))

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 1, calls)
}

func TestRun_RetriesRecoverableThenSucceeds(t *testing.T) {
	calls := 0
	result, err := Run(context.Background(), func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("503 service unavailable")
		}
		return 7, nil
	}, fastRetryOpts(5))

	require.NoError(t, err)
	assert.Equal(t, 7, result)
	assert.Equal(t, 3, calls)
}

func TestRun_NonRecoverableFailsImmediately(t *testing.T) {
	calls := 0
	_, err := Run(context.Background(), func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("401 unauthorized")
	}, fastRetryOpts(5))

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	var execErr *rubric.ExecutorError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, rubric.ErrAuthentication, execErr.Code)
}

func TestRun_ExhaustsRetriesWrapsMaxRetriesExceeded(t *testing.T) {
	calls := 0
	_, err := Run(context.Background(), func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("503 service unavailable")
	}, fastRetryOpts(3))

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	var execErr *rubric.ExecutorError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, rubric.ErrMaxRetriesExceeded, execErr.Code)
}

func TestRun_PerAttemptTimeoutClassifiedAsTimeout(t *testing.T) {
	opts := fastRetryOpts(1)
	opts.Timeout = 5 * time.Millisecond
	var attemptCode rubric.ErrCode
	opts.OnError = func(e *rubric.ExecutorError) { attemptCode = e.Code }

	_, err := Run(context.Background(), func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}, opts)

	require.Error(t, err)
	assert.Equal(t, rubric.ErrTimeout, attemptCode, "the attempt's failure is classified as TIMEOUT")
	var execErr *rubric.ExecutorError
	require.ErrorAs(t, err, &execErr)
	// TIMEOUT is recoverable, so exhausting the single attempt wraps it.
	assert.Equal(t, rubric.ErrMaxRetriesExceeded, execErr.Code)
	assert.True(t, errors.Is(err, &rubric.ExecutorError{Code: rubric.ErrTimeout}), "the TIMEOUT error stays reachable as the cause")
}

func TestRun_OuterCancellationStopsRetryLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Run(ctx, func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("503 service unavailable")
	}, fastRetryOpts(5))

	require.Error(t, err)
	assert.Equal(t, 0, calls, "an already-cancelled context must short-circuit before the first attempt")
}

func TestRun_PanicIsRecoveredAndClassified(t *testing.T) {
	_, err := Run(context.Background(), func(ctx context.Context) (int, error) {
		panic("boom")
	}, fastRetryOpts(1))

	require.Error(t, err)
	var execErr *rubric.ExecutorError
	require.ErrorAs(t, err, &execErr)
}

func TestRun_OnRetryAndOnErrorHooksFire(t *testing.T) {
	var retries, errs int
	opts := fastRetryOpts(3)
	opts.OnRetry = func(attempt int, delay time.Duration) { retries++ }
	opts.OnError = func(e *rubric.ExecutorError) { errs++ }

	calls := 0
	_, _ = Run(context.Background(), func(ctx context.Context) (int, error) {
		calls++
		if calls < 2 {
			return 0, errors.New("503 service unavailable")
		}
		return 1, nil
	}, opts)

	assert.Equal(t, 1, retries)
	assert.Equal(t, 1, errs)
}
