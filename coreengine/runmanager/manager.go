// Package runmanager is the Run Manager (§4.6): it owns the map of active
// runs, starts and resumes their orchestration, answers status queries, and
// sweeps stale entries. Each run's orchestration executes on its own
// goroutine so StartPipeline/ResumePipeline return as soon as the bus is
// ready for a subscriber to drain.
package runmanager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jeeves-cluster-organization/rubric-engine/coreengine/analyzer"
	"github.com/jeeves-cluster-organization/rubric-engine/coreengine/config"
	"github.com/jeeves-cluster-organization/rubric-engine/coreengine/eventbus"
	"github.com/jeeves-cluster-organization/rubric-engine/coreengine/executor"
	"github.com/jeeves-cluster-organization/rubric-engine/coreengine/pipeline"
	"github.com/jeeves-cluster-organization/rubric-engine/coreengine/rubric"
	"github.com/jeeves-cluster-organization/rubric-engine/coreengine/runstate"
	"github.com/jeeves-cluster-organization/rubric-engine/coreengine/snapshot"
)

// ErrUnknownRun is returned for any operation against a runId the Manager
// has no record of, in memory or in its snapshot adapter.
var ErrUnknownRun = errors.New("runmanager: unknown run")

// ErrStatelessResumeUnavailable is returned by Resume when the run was
// evicted from memory and no snapshot adapter is configured to recover it;
// the caller must start a fresh run, supplying prior answers via
// PipelineInput.PreAppliedAnswers (the stateless-restart strategy).
var ErrStatelessResumeUnavailable = errors.New("runmanager: run state lost, restart with PreAppliedAnswers")

type runEntry struct {
	state        *runstate.RunState
	bus          *eventbus.Bus
	cancel       context.CancelFunc
	lastActivity time.Time
}

// Manager is the concurrent-safe registry of active and recently-finished
// runs.
type Manager struct {
	mu   sync.RWMutex
	runs map[string]*runEntry

	cfg          *config.EngineConfig
	orchestrator *pipeline.Orchestrator
	snapshots    snapshot.Adapter // nil: purely in-memory, stateless-restart only
	logger       executor.Logger
}

// New builds a Manager. snapshots may be nil, in which case resumePipeline
// after a process restart always returns ErrStatelessResumeUnavailable.
func New(cfg *config.EngineConfig, analyzers analyzer.Set, snapshots snapshot.Adapter, logger executor.Logger) *Manager {
	return &Manager{
		runs:         make(map[string]*runEntry),
		cfg:          cfg,
		orchestrator: pipeline.New(cfg, analyzers, logger),
		snapshots:    snapshots,
		logger:       logger,
	}
}

// StartPipeline validates input, allocates a new run, and launches its
// orchestration in the background. The returned RunState's RunId is stable
// for the run's lifetime; the returned Bus is the run's sole event stream.
func (m *Manager) StartPipeline(ctx context.Context, input rubric.PipelineInput) (*runstate.RunState, *eventbus.Bus, error) {
	if err := input.Validate(); err != nil {
		return nil, nil, fmt.Errorf("runmanager: invalid input: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	state := runstate.New(input, cancel)
	bus := eventbus.New()

	m.register(state.RunId(), &runEntry{state: state, bus: bus, cancel: cancel, lastActivity: time.Now().UTC()})
	m.launch(runCtx, state, bus, false)

	return state, bus, nil
}

// ResumePipeline applies answers to a suspended run and relaunches its
// orchestration. If the run has been evicted from memory, it is recovered
// from the snapshot adapter when one is configured; otherwise
// ErrStatelessResumeUnavailable is returned.
func (m *Manager) ResumePipeline(ctx context.Context, runId string, answers []rubric.UserAnswer) (*runstate.RunState, *eventbus.Bus, error) {
	m.mu.RLock()
	entry, inMemory := m.runs[runId]
	m.mu.RUnlock()

	var bus *eventbus.Bus
	var state *runstate.RunState
	var runCtx context.Context
	var cancel context.CancelFunc

	if inMemory {
		state = entry.state
		bus = eventbus.New() // a fresh subscriber stream for the resumed leg
		runCtx, cancel = context.WithCancel(context.Background())
		m.mu.Lock()
		entry.bus = bus
		entry.cancel = cancel
		entry.lastActivity = time.Now().UTC()
		m.mu.Unlock()
	} else {
		if m.snapshots == nil {
			return nil, nil, ErrStatelessResumeUnavailable
		}
		snap, err := m.snapshots.Load(ctx, runId)
		if err != nil {
			if errors.Is(err, snapshot.ErrNotFound) {
				return nil, nil, ErrUnknownRun
			}
			return nil, nil, fmt.Errorf("runmanager: load snapshot: %w", err)
		}
		runCtx, cancel = context.WithCancel(context.Background())
		state = runstate.NewResumed(snap, cancel)
		bus = eventbus.New()
		m.register(runId, &runEntry{state: state, bus: bus, cancel: cancel, lastActivity: time.Now().UTC()})
	}

	if state.Status() != rubric.StatusSuspended && state.Status() != rubric.StatusRunning {
		cancel()
		return nil, nil, fmt.Errorf("runmanager: run %s is not resumable (status=%s)", runId, state.Status())
	}

	for _, a := range answers {
		state.AddAnswer(a)
	}
	state.SetStatus(rubric.StatusRunning)

	// The bus is unbuffered and the caller only drains it after this
	// returns, so the answer:received events go out from the resumed leg's
	// goroutine, ahead of the orchestrator's own events.
	go func() {
		for _, a := range answers {
			m.emitAnswer(runCtx, bus, state, a)
		}
		m.launch(runCtx, state, bus, true)
	}()
	return state, bus, nil
}

// GetRunStatus returns a read-only view of a run's current state.
func (m *Manager) GetRunStatus(runId string) (runstate.StatusView, error) {
	m.mu.RLock()
	entry, ok := m.runs[runId]
	m.mu.RUnlock()
	if !ok {
		return runstate.StatusView{}, ErrUnknownRun
	}
	return entry.state.View(), nil
}

// ErrPartialResult is returned alongside a best-effort AnalysisResult for a
// run that ended in failure; the result reflects whatever subset of stages
// completed before the failure (§4.7/§7 ExecutorFailedResult).
var ErrPartialResult = errors.New("runmanager: run failed, result is partial")

// GetResult returns the assembled AnalysisResult for a completed run, or a
// partial result (with ErrPartialResult) for one that failed.
func (m *Manager) GetResult(runId string) (rubric.AnalysisResult, error) {
	m.mu.RLock()
	entry, ok := m.runs[runId]
	m.mu.RUnlock()
	if !ok {
		return rubric.AnalysisResult{}, ErrUnknownRun
	}
	switch entry.state.Status() {
	case rubric.StatusCompleted:
		return pipeline.AssembleResult(entry.state), nil
	case rubric.StatusFailed:
		return pipeline.AssembleResult(entry.state), ErrPartialResult
	default:
		return rubric.AnalysisResult{}, fmt.Errorf("runmanager: run %s is not completed (status=%s)", runId, entry.state.Status())
	}
}

// CancelRun cancels a run's in-flight orchestration and marks it cancelled.
// Per §4.6/§5(d), a run that was still active records a CANCELLED
// ExecutorError and emits a final pipeline:error for it before the bus is
// torn down; a run that had already reached a terminal status is left as
// is (SetStatus's terminal guard would no-op the transition anyway).
func (m *Manager) CancelRun(runId string) error {
	m.mu.RLock()
	entry, ok := m.runs[runId]
	var cancel context.CancelFunc
	var bus *eventbus.Bus
	if ok {
		// The current leg's handles: ResumePipeline replaces both.
		cancel, bus = entry.cancel, entry.bus
	}
	m.mu.RUnlock()
	if !ok {
		return ErrUnknownRun
	}

	if !entry.state.Status().Terminal() {
		execErr := rubric.ExecutorError{
			Code:      rubric.ErrCancelled,
			Message:   "run cancelled",
			Stage:     entry.state.Stage(),
			Timestamp: time.Now().UTC(),
		}
		entry.state.AppendError(execErr)
		// Mark cancelled before signalling, so the orchestrator's failure
		// transition lands on a terminal status and is a no-op.
		entry.state.SetStatus(rubric.StatusCancelled)
		cancel()

		e := eventbus.NewEvent(eventbus.TagPipelineError, runId)
		e.Data["error"] = execErr
		_ = bus.Emit(context.Background(), e)
	}

	bus.Unsubscribe()
	return nil
}

// CleanupStale removes terminal runs whose last activity is older than
// maxAge, returning the number of entries removed. Snapshot rows for
// cleaned-up runs are deleted too, when an adapter is configured.
func (m *Manager) CleanupStale(maxAge time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxAge)

	m.mu.Lock()
	var stale []string
	for id, entry := range m.runs {
		if entry.state.Status().Terminal() && entry.lastActivity.Before(cutoff) {
			stale = append(stale, id)
			delete(m.runs, id)
		}
	}
	m.mu.Unlock()

	if m.snapshots != nil {
		for _, id := range stale {
			_ = m.snapshots.Delete(context.Background(), id)
		}
	}
	return len(stale)
}

// ActiveCount returns the number of runs currently tracked in memory.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.runs)
}

func (m *Manager) register(runId string, entry *runEntry) {
	m.mu.Lock()
	m.runs[runId] = entry
	m.mu.Unlock()
}

func (m *Manager) launch(ctx context.Context, state *runstate.RunState, bus *eventbus.Bus, resumed bool) {
	executor.SafeGo(m.logger, "pipeline_advance", func() {
		if err := m.orchestrator.Advance(ctx, state, bus, resumed); err != nil && m.logger != nil {
			m.logger.Warn("pipeline_advance_failed", "runId", state.RunId(), "error", err.Error())
		}
		m.persist(state)
		bus.Unsubscribe()
	}, func(recovered any) {
		state.SetStatus(rubric.StatusFailed)
		m.persist(state)
		bus.Unsubscribe()
	})
}

func (m *Manager) persist(state *runstate.RunState) {
	if m.snapshots == nil {
		return
	}
	m.mu.Lock()
	if entry, ok := m.runs[state.RunId()]; ok {
		entry.lastActivity = time.Now().UTC()
	}
	m.mu.Unlock()
	_ = m.snapshots.Save(context.Background(), state.ToSnapshot())
}

func (m *Manager) emitAnswer(ctx context.Context, bus *eventbus.Bus, state *runstate.RunState, a rubric.UserAnswer) {
	e := eventbus.NewEvent(eventbus.TagAnswerReceived, state.RunId())
	e.Data["answer"] = a
	_ = bus.Emit(ctx, e)
}
