// Package eventbus is the single-producer, single-consumer event sink a
// run's orchestrator publishes progress to. Each run owns exactly one Bus;
// the transport layer is its one subscriber.
package eventbus

import (
	"context"
	"sync"
	"time"
)

// Tag identifies an event's kind (§4.5).
type Tag string

const (
	TagPipelineStart    Tag = "pipeline:start"
	TagPipelineStage    Tag = "pipeline:stage"
	TagPipelineResumed  Tag = "pipeline:resumed"
	TagPipelineComplete Tag = "pipeline:complete"
	TagPipelineError    Tag = "pipeline:error"

	TagScreeningStart    Tag = "screening:start"
	TagScreeningComplete Tag = "screening:complete"
	TagScreeningQuestion Tag = "screening:question"
	TagScreeningInsight  Tag = "screening:insight"
	TagScreeningSignal   Tag = "screening:signal"

	TagDimensionStart    Tag = "dimension:start"
	TagDimensionComplete Tag = "dimension:complete"
	TagDimensionQuestion Tag = "dimension:question"

	TagVerdictComputing Tag = "verdict:computing"
	TagVerdictResult    Tag = "verdict:result"

	TagRisksStart           Tag = "risks:start"
	TagRisksComplete        Tag = "risks:complete"
	TagAlternativesStart    Tag = "alternatives:start"
	TagAlternativesComplete Tag = "alternatives:complete"
	TagArchitectureStart    Tag = "architecture:start"
	TagArchitectureComplete Tag = "architecture:complete"
	TagPreBuildComplete     Tag = "preBuild:complete"

	TagReasoningStart    Tag = "reasoning:start"
	TagReasoningComplete Tag = "reasoning:complete"

	TagAnswerReceived Tag = "answer:received"
)

// Event is one immutable, ordered record published to a run's subscriber.
type Event struct {
	Type      Tag
	RunId     string
	Seq       int64
	Timestamp time.Time
	Data      map[string]any
}

// Bus is the per-run event channel. The zero value is not usable; use New.
type Bus struct {
	ch   chan Event
	done chan struct{}
	once sync.Once
	// sendMu is read-held by Emit while it may send on ch and write-held by
	// Unsubscribe while it closes ch.
	sendMu sync.RWMutex

	mu  sync.Mutex
	seq int64
}

// New creates a Bus with an unbuffered channel: emits block until the
// subscriber receives, giving natural backpressure (§4.5).
func New() *Bus {
	return &Bus{
		ch:   make(chan Event),
		done: make(chan struct{}),
	}
}

// Events returns the subscriber's receive channel. Exactly one goroutine
// should range over it; the channel is closed by Unsubscribe, which ends
// the range.
func (b *Bus) Events() <-chan Event {
	return b.ch
}

// Emit publishes e, blocking until the subscriber receives it, the run's
// context is cancelled, or Unsubscribe has already been called (in which
// case the event is silently discarded). Emit stamps Seq and Timestamp.
func (b *Bus) Emit(ctx context.Context, e Event) error {
	b.sendMu.RLock()
	defer b.sendMu.RUnlock()
	select {
	case <-b.done:
		return nil
	default:
	}

	b.mu.Lock()
	b.seq++
	e.Seq = b.seq
	b.mu.Unlock()
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	select {
	case b.ch <- e:
		return nil
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unsubscribe is idempotent and safe to call concurrently with Emit;
// any Emit blocked on send unblocks and its event is discarded, later
// emits are discarded, and the Events channel is closed.
func (b *Bus) Unsubscribe() {
	b.once.Do(func() {
		close(b.done)
		b.sendMu.Lock()
		close(b.ch)
		b.sendMu.Unlock()
	})
}

// NewEvent constructs an Event with Data initialized, for callers that want to
// build payloads incrementally.
func NewEvent(tag Tag, runId string) Event {
	return Event{Type: tag, RunId: runId, Data: make(map[string]any)}
}
