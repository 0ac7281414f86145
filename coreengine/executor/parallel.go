package executor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jeeves-cluster-organization/rubric-engine/coreengine/rubric"
)

// ItemStatus is the settlement state of one parallel item.
type ItemStatus string

const (
	ItemFulfilled ItemStatus = "fulfilled"
	ItemRejected  ItemStatus = "rejected"
)

// ItemResult is one slot of a Parallel Step Runner's ordered output.
type ItemResult[T any] struct {
	Index  int
	Status ItemStatus
	Value  T
	Err    *rubric.ExecutorError
}

// ParallelOptions configures the Parallel Step Runner (§4.4).
type ParallelOptions struct {
	Stage         rubric.PipelineStage
	ErrorStrategy rubric.ErrorStrategy
	Logger        Logger
}

// RunAll starts every fn concurrently and returns results in submission
// order. Under fail-fast, the first rejection cancels the shared context
// passed to every sibling; under continue-with-partial, siblings run to
// completion regardless of one another's outcome.
func RunAll[T any](ctx context.Context, fns []func(context.Context) (T, error), opts ParallelOptions) []ItemResult[T] {
	n := len(fns)
	results := make([]ItemResult[T], n)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	var cancelOnce sync.Once

	for i, fn := range fns {
		wg.Add(1)
		i, fn := i, fn
		SafeGo(opts.Logger, "parallel_item", func() {
			// wg.Done is called on each exit path rather than deferred, so a
			// panicking item is only counted done after onPanic has filled
			// its slot.
			value, err := fn(runCtx)
			if err != nil {
				results[i] = ItemResult[T]{Index: i, Status: ItemRejected, Err: toExecutorError(err, opts.Stage, i)}
				if opts.ErrorStrategy == rubric.ErrorStrategyFailFast {
					cancelOnce.Do(cancel)
				}
				wg.Done()
				return
			}
			results[i] = ItemResult[T]{Index: i, Status: ItemFulfilled, Value: value}
			wg.Done()
		}, func(recovered any) {
			results[i] = ItemResult[T]{Index: i, Status: ItemRejected, Err: &rubric.ExecutorError{
				Code:      rubric.ErrUnknown,
				Message:   "panic in parallel item",
				Stage:     opts.Stage,
				Timestamp: time.Now().UTC(),
			}}
			if opts.ErrorStrategy == rubric.ErrorStrategyFailFast {
				cancelOnce.Do(cancel)
			}
			wg.Done()
		})
	}

	wg.Wait()
	return results
}

func toExecutorError(err error, stage rubric.PipelineStage, index int) *rubric.ExecutorError {
	var existing *rubric.ExecutorError
	if errors.As(err, &existing) {
		return existing
	}
	return Classify(err, stage, &index)
}
