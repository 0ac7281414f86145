package executor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeeves-cluster-organization/rubric-engine/coreengine/rubric"
)

func TestRunAll_AllSucceed(t *testing.T) {
	fns := make([]func(context.Context) (int, error), 5)
	for i := range fns {
		i := i
		fns[i] = func(ctx context.Context) (int, error) { return i * i, nil }
	}

	results := RunAll(context.Background(), fns, ParallelOptions{Stage: rubric.StageDimensions, ErrorStrategy: rubric.ErrorStrategyContinueWithPartial})

	require.Len(t, results, 5)
	for i, r := range results {
		assert.Equal(t, i, r.Index, "results preserve submission order")
		assert.Equal(t, ItemFulfilled, r.Status)
		assert.Equal(t, i*i, r.Value)
	}
}

func TestRunAll_ContinueWithPartial_IsolatesFailures(t *testing.T) {
	fns := []func(context.Context) (int, error){
		func(ctx context.Context) (int, error) { return 1, nil },
		func(ctx context.Context) (int, error) { return 0, errors.New("boom") },
		func(ctx context.Context) (int, error) { return 3, nil },
	}

	results := RunAll(context.Background(), fns, ParallelOptions{Stage: rubric.StageDimensions, ErrorStrategy: rubric.ErrorStrategyContinueWithPartial})

	require.Len(t, results, 3)
	assert.Equal(t, ItemFulfilled, results[0].Status)
	assert.Equal(t, ItemRejected, results[1].Status)
	assert.Equal(t, ItemFulfilled, results[2].Status)
	assert.Equal(t, 1, results[0].Value)
	assert.Equal(t, 3, results[2].Value)
}

func TestRunAll_FailFast_CancelsSiblings(t *testing.T) {
	var sawCancel int32

	fns := []func(context.Context) (int, error){
		func(ctx context.Context) (int, error) { return 0, errors.New("boom") },
		func(ctx context.Context) (int, error) {
			select {
			case <-ctx.Done():
				atomic.StoreInt32(&sawCancel, 1)
				return 0, ctx.Err()
			case <-time.After(time.Second):
				return 99, nil
			}
		},
	}

	results := RunAll(context.Background(), fns, ParallelOptions{Stage: rubric.StageSecondary, ErrorStrategy: rubric.ErrorStrategyFailFast})

	require.Len(t, results, 2)
	assert.Equal(t, ItemRejected, results[0].Status)
	assert.Equal(t, ItemRejected, results[1].Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&sawCancel), "fail-fast must cancel the shared context for siblings")
}

func TestRunAll_PanicInOneItemDoesNotCrashOthers(t *testing.T) {
	fns := []func(context.Context) (int, error){
		func(ctx context.Context) (int, error) { panic("boom") },
		func(ctx context.Context) (int, error) { return 5, nil },
	}

	results := RunAll(context.Background(), fns, ParallelOptions{Stage: rubric.StageDimensions, ErrorStrategy: rubric.ErrorStrategyContinueWithPartial})

	require.Len(t, results, 2)
	assert.Equal(t, ItemRejected, results[0].Status)
	assert.Equal(t, ItemFulfilled, results[1].Status)
	assert.Equal(t, 5, results[1].Value)
}

func TestRunAll_EmptyInput(t *testing.T) {
	results := RunAll(context.Background(), nil, ParallelOptions{Stage: rubric.StageDimensions})
	assert.Empty(t, results)
}
