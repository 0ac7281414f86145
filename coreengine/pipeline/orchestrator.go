// Package pipeline is the Stage Orchestrator (§4.7): it drives a run
// sequentially through screening, dimensions, verdict, secondary and
// synthesis, suspending whenever blocking questions remain unanswered and
// resuming from wherever a RunState's completed-stage set left off.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jeeves-cluster-organization/rubric-engine/coreengine/analyzer"
	"github.com/jeeves-cluster-organization/rubric-engine/coreengine/config"
	"github.com/jeeves-cluster-organization/rubric-engine/coreengine/eventbus"
	"github.com/jeeves-cluster-organization/rubric-engine/coreengine/executor"
	"github.com/jeeves-cluster-organization/rubric-engine/coreengine/observability"
	"github.com/jeeves-cluster-organization/rubric-engine/coreengine/rubric"
	"github.com/jeeves-cluster-organization/rubric-engine/coreengine/runstate"
)

// Orchestrator drives a single run's stages to completion or suspension.
type Orchestrator struct {
	cfg       *config.EngineConfig
	analyzers analyzer.Set
	logger    executor.Logger
}

// New builds an Orchestrator bound to a fixed analyzer Set and config.
func New(cfg *config.EngineConfig, analyzers analyzer.Set, logger executor.Logger) *Orchestrator {
	return &Orchestrator{cfg: cfg, analyzers: analyzers, logger: logger}
}

// Advance runs state forward from its current stage until it either
// completes, suspends on blocking questions, fails, or the pipeline-wide
// timeout elapses. It is the only entry point both startPipeline and
// resumePipeline call into (§4.6); resumed tells it which of
// pipeline:start/pipeline:resumed to emit.
func (o *Orchestrator) Advance(ctx context.Context, state *runstate.RunState, bus *eventbus.Bus, resumed bool) error {
	pipelineCtx, cancel := context.WithTimeout(ctx, o.cfg.PipelineTimeout())
	defer cancel()

	start := time.Now()
	if resumed {
		o.emit(pipelineCtx, bus, eventbus.TagPipelineResumed, state, map[string]any{"stage": string(state.Stage())})
	} else {
		o.emit(pipelineCtx, bus, eventbus.TagPipelineStart, state, nil)
	}

	for _, stage := range rubric.StageOrder {
		if state.StageCompleted(stage) {
			continue
		}
		state.SetStage(stage)
		o.emit(pipelineCtx, bus, eventbus.TagPipelineStage, state, map[string]any{"stage": string(stage)})

		stageStart := time.Now()
		stageCtx, span := observability.Tracer("rubric-engine/pipeline").Start(pipelineCtx, "stage."+string(stage))
		suspend, err := o.runStage(stageCtx, stage, state, bus)
		span.End()
		observability.RecordStage(string(stage), statusLabel(err), time.Since(stageStart).Milliseconds())

		if err != nil {
			return o.fail(pipelineCtx, bus, state, err, start)
		}
		if suspend {
			o.suspend(pipelineCtx, bus, state, stage, start)
			return nil
		}
		state.MarkStageComplete(stage)
	}

	state.SetStatus(rubric.StatusCompleted)
	result := AssembleResult(state)
	o.emit(pipelineCtx, bus, eventbus.TagPipelineComplete, state, map[string]any{"result": result})
	observability.RecordRun(string(rubric.StatusCompleted), time.Since(start).Milliseconds())
	return nil
}

func (o *Orchestrator) runStage(ctx context.Context, stage rubric.PipelineStage, state *runstate.RunState, bus *eventbus.Bus) (suspend bool, err error) {
	switch stage {
	case rubric.StageScreening:
		return o.runScreening(ctx, state, bus)
	case rubric.StageDimensions:
		return o.runDimensions(ctx, state, bus)
	case rubric.StageVerdict:
		return false, o.runVerdict(ctx, state, bus)
	case rubric.StageSecondary:
		return false, o.runSecondary(ctx, state, bus)
	case rubric.StageSynthesis:
		return false, o.runSynthesis(ctx, state, bus)
	default:
		return false, fmt.Errorf("unknown stage %q", stage)
	}
}

func (o *Orchestrator) runScreening(ctx context.Context, state *runstate.RunState, bus *eventbus.Bus) (bool, error) {
	o.emit(ctx, bus, eventbus.TagScreeningStart, state, nil)

	out, err := executor.Run(ctx, func(ctx context.Context) (rubric.ScreeningOutput, error) {
		return o.analyzers.Screening(ctx, state.Input(), mergeAnswers(state))
	}, o.runOpts(rubric.StageScreening, state))
	if err != nil {
		return false, o.recordErr(state, err)
	}

	state.SetScreening(out)
	state.AddPendingQuestions(out.ClarifyingQuestions)
	for _, q := range out.ClarifyingQuestions {
		o.emit(ctx, bus, eventbus.TagScreeningQuestion, state, map[string]any{"question": q})
	}
	for _, ins := range out.PartialInsights {
		o.emit(ctx, bus, eventbus.TagScreeningInsight, state, map[string]any{"insight": ins})
	}
	o.emit(ctx, bus, eventbus.TagScreeningSignal, state, map[string]any{"signal": out.PreliminarySignal})
	o.emit(ctx, bus, eventbus.TagScreeningComplete, state, map[string]any{"screening": out})

	return state.HasBlockingQuestions(), nil
}

func (o *Orchestrator) runDimensions(ctx context.Context, state *runstate.RunState, bus *eventbus.Bus) (bool, error) {
	screening := state.Screening()
	if screening == nil {
		return false, fmt.Errorf("dimensions stage reached without screening output")
	}

	answers := mergeAnswers(state)
	fns := make([]func(context.Context) (rubric.DimensionAnalysis, error), len(rubric.AllDimensions))
	for i, dim := range rubric.AllDimensions {
		dim := dim
		o.emit(ctx, bus, eventbus.TagDimensionStart, state, map[string]any{"dimension": dim})
		fns[i] = func(ctx context.Context) (rubric.DimensionAnalysis, error) {
			return executor.Run(ctx, func(ctx context.Context) (rubric.DimensionAnalysis, error) {
				return o.analyzers.Dimension(ctx, state.Input(), *screening, dim, answers)
			}, o.runOpts(rubric.StageDimensions, state))
		}
	}

	results := executor.RunAll(ctx, fns, executor.ParallelOptions{
		Stage:         rubric.StageDimensions,
		ErrorStrategy: o.cfg.Strategy(),
		Logger:        o.logger,
	})

	for i, r := range results {
		dim := rubric.AllDimensions[i]
		if r.Status == executor.ItemRejected {
			observability.RecordDimension(string(dim), "error")
			if o.cfg.Strategy() == rubric.ErrorStrategyFailFast {
				return false, o.recordErr(state, r.Err)
			}
			state.AppendError(*r.Err)
			o.emit(ctx, bus, eventbus.TagPipelineError, state, map[string]any{"error": r.Err})
			state.SetDimension(rubric.DefaultDimensionAnalysis(dim))
			continue
		}
		observability.RecordDimension(string(dim), "success")
		state.SetDimension(r.Value)
		state.AddPendingQuestions(r.Value.InfoGaps)
		for _, q := range r.Value.InfoGaps {
			o.emit(ctx, bus, eventbus.TagDimensionQuestion, state, map[string]any{"question": q})
		}
		o.emit(ctx, bus, eventbus.TagDimensionComplete, state, map[string]any{"dimension": r.Value})
	}

	return state.HasBlockingQuestions(), nil
}

func (o *Orchestrator) runVerdict(ctx context.Context, state *runstate.RunState, bus *eventbus.Bus) error {
	screening := state.Screening()
	if screening == nil {
		return fmt.Errorf("verdict stage reached without screening output")
	}

	o.emit(ctx, bus, eventbus.TagVerdictComputing, state, nil)
	v, err := executor.Run(ctx, func(ctx context.Context) (rubric.VerdictResult, error) {
		return o.analyzers.Verdict(ctx, state.Input(), *screening, state.Dimensions())
	}, o.runOpts(rubric.StageVerdict, state))
	if err != nil {
		return o.recordErr(state, err)
	}

	state.SetVerdict(v)
	o.emit(ctx, bus, eventbus.TagVerdictResult, state, map[string]any{"verdict": v})
	return nil
}

func (o *Orchestrator) runSecondary(ctx context.Context, state *runstate.RunState, bus *eventbus.Bus) error {
	verdict := state.Verdict()
	if verdict == nil {
		return fmt.Errorf("secondary stage reached without a verdict")
	}
	dims := state.Dimensions()
	input := state.Input()

	o.emit(ctx, bus, eventbus.TagRisksStart, state, nil)
	o.emit(ctx, bus, eventbus.TagAlternativesStart, state, nil)
	o.emit(ctx, bus, eventbus.TagArchitectureStart, state, nil)

	type secondaryResult struct {
		risks        []rubric.RiskFactor
		alternatives []rubric.Alternative
		architecture *rubric.RecommendedArchitecture
		questions    []rubric.PreBuildQuestion
	}

	opts := o.runOpts(rubric.StageSecondary, state)

	risksFn := func(ctx context.Context) (secondaryResult, error) {
		risks, err := o.analyzers.Risks(ctx, input, dims, *verdict)
		return secondaryResult{risks: risks}, err
	}
	alternativesFn := func(ctx context.Context) (secondaryResult, error) {
		alts, err := o.analyzers.Alternatives(ctx, input, dims, *verdict)
		return secondaryResult{alternatives: alts}, err
	}
	architectureFn := func(ctx context.Context) (secondaryResult, error) {
		arch, questions, err := o.analyzers.Architecture(ctx, input, dims, *verdict)
		return secondaryResult{architecture: arch, questions: questions}, err
	}

	results := executor.RunAll(ctx, []func(context.Context) (secondaryResult, error){
		func(ctx context.Context) (secondaryResult, error) {
			return executor.Run(ctx, risksFn, opts)
		},
		func(ctx context.Context) (secondaryResult, error) {
			return executor.Run(ctx, alternativesFn, opts)
		},
		func(ctx context.Context) (secondaryResult, error) {
			return executor.Run(ctx, architectureFn, opts)
		},
	}, executor.ParallelOptions{Stage: rubric.StageSecondary, ErrorStrategy: o.cfg.Strategy(), Logger: o.logger})

	var risks []rubric.RiskFactor
	var alternatives []rubric.Alternative
	var architecture *rubric.RecommendedArchitecture
	var questions []rubric.PreBuildQuestion

	for i, r := range results {
		if r.Status == executor.ItemRejected {
			if o.cfg.Strategy() == rubric.ErrorStrategyFailFast {
				return o.recordErr(state, r.Err)
			}
			state.AppendError(*r.Err)
			o.emit(ctx, bus, eventbus.TagPipelineError, state, map[string]any{"error": r.Err})
			continue
		}
		switch i {
		case 0:
			risks = r.Value.risks
			o.emit(ctx, bus, eventbus.TagRisksComplete, state, map[string]any{"risks": risks})
		case 1:
			alternatives = r.Value.alternatives
			o.emit(ctx, bus, eventbus.TagAlternativesComplete, state, map[string]any{"alternatives": alternatives})
		case 2:
			architecture = r.Value.architecture
			questions = r.Value.questions
			o.emit(ctx, bus, eventbus.TagArchitectureComplete, state, map[string]any{"architecture": architecture})
		}
	}

	state.SetSecondary(risks, alternatives, architecture, questions)
	o.emit(ctx, bus, eventbus.TagPreBuildComplete, state, map[string]any{"questions": questions})
	return nil
}

func (o *Orchestrator) runSynthesis(ctx context.Context, state *runstate.RunState, bus *eventbus.Bus) error {
	verdict := state.Verdict()
	screening := state.Screening()
	if verdict == nil || screening == nil {
		return fmt.Errorf("synthesis stage reached without verdict/screening output")
	}

	o.emit(ctx, bus, eventbus.TagReasoningStart, state, nil)

	in := analyzer.SynthesisInput{
		Input:      state.Input(),
		Screening:  *screening,
		Dimensions: state.Dimensions(),
		Answers:    mergeAnswers(state),
		Verdict:    *verdict,

		Risks:                   state.Risks(),
		Alternatives:            state.Alternatives(),
		Architecture:            state.Architecture(),
		QuestionsBeforeBuilding: state.PendingQuestionsBeforeBuilding(),
	}

	reasoning, err := executor.Run(ctx, func(ctx context.Context) (string, error) {
		return o.analyzers.Synthesize(ctx, in)
	}, o.runOpts(rubric.StageSynthesis, state))
	if err != nil {
		return o.recordErr(state, err)
	}

	state.SetFinalReasoning(reasoning)
	o.emit(ctx, bus, eventbus.TagReasoningComplete, state, map[string]any{"reasoning": reasoning})
	return nil
}

func (o *Orchestrator) runOpts(stage rubric.PipelineStage, state *runstate.RunState) executor.RunOptions {
	return executor.RunOptions{
		Stage:   stage,
		Timeout: o.cfg.PerStageTimeout[stage],
		Retry:   o.cfg.PerStageRetry[stage],
		Logger:  o.logger,
		OnRetry: func(attempt int, delay time.Duration) {
			observability.RecordRetry(string(stage))
		},
	}
}

func (o *Orchestrator) recordErr(state *runstate.RunState, err error) error {
	var execErr *rubric.ExecutorError
	if ee, ok := err.(*rubric.ExecutorError); ok {
		execErr = ee
	} else {
		execErr = &rubric.ExecutorError{Code: rubric.ErrUnknown, Message: err.Error(), Stage: state.Stage(), Timestamp: time.Now().UTC()}
	}
	state.AppendError(*execErr)
	observability.RecordError(string(execErr.Stage), string(execErr.Code))
	return execErr
}

// fail transitions state to failed and assembles whatever partial
// AnalysisResult the stages that did complete support (§4.7/§7
// ExecutorFailedResult), returning it wrapped with the triggering error so
// callers can recover it via errors.As without losing err's own chain.
func (o *Orchestrator) fail(ctx context.Context, bus *eventbus.Bus, state *runstate.RunState, err error, start time.Time) error {
	state.SetStatus(rubric.StatusFailed)
	partial := AssembleResult(state)
	o.emit(ctx, bus, eventbus.TagPipelineError, state, map[string]any{"error": err.Error(), "partial": partial})
	observability.RecordRun(string(rubric.StatusFailed), time.Since(start).Milliseconds())
	return &PipelineFailure{Err: err, Partial: partial}
}

// PipelineFailure wraps a stage's terminal error together with the partial
// AnalysisResult assembled from whichever stages completed before the
// failure. errors.As/errors.Is still reach the wrapped Err through Unwrap.
type PipelineFailure struct {
	Err     error
	Partial rubric.AnalysisResult
}

func (f *PipelineFailure) Error() string { return f.Err.Error() }

func (f *PipelineFailure) Unwrap() error { return f.Err }

func (o *Orchestrator) suspend(ctx context.Context, bus *eventbus.Bus, state *runstate.RunState, stage rubric.PipelineStage, start time.Time) {
	state.SetStatus(rubric.StatusSuspended)
	observability.RecordSuspend(string(stage))
	observability.RecordRun(string(rubric.StatusSuspended), time.Since(start).Milliseconds())
}

func (o *Orchestrator) emit(ctx context.Context, bus *eventbus.Bus, tag eventbus.Tag, state *runstate.RunState, data map[string]any) {
	if bus == nil {
		return
	}
	e := eventbus.NewEvent(tag, state.RunId())
	for k, v := range data {
		e.Data[k] = v
	}
	_ = bus.Emit(ctx, e)
}

func mergeAnswers(state *runstate.RunState) map[string]rubric.UserAnswer {
	out := make(map[string]rubric.UserAnswer)
	for _, a := range state.Input().PreAppliedAnswers {
		out[a.QuestionId] = a
	}
	for _, a := range state.AnsweredQuestions() {
		out[a.QuestionId] = a
	}
	return out
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// AssembleResult builds an AnalysisResult from a RunState, complete or
// partial (§4.7 assembleResult; §7 ExecutorFailedResult reuses this for a
// failed run's partial result). Dimensions are sorted lexicographically by
// id for deterministic output; when the verdict carries no KeyFactors, they
// are derived per dimension via deriveKeyFactors (§3 data model note).
func AssembleResult(state *runstate.RunState) rubric.AnalysisResult {
	screening := rubric.ScreeningOutput{}
	if s := state.Screening(); s != nil {
		screening = *s
	}
	verdict := rubric.VerdictResult{}
	if v := state.Verdict(); v != nil {
		verdict = *v
	}

	dimMap := state.Dimensions()
	dims := make([]rubric.DimensionAnalysis, 0, len(dimMap))
	for _, d := range dimMap {
		dims = append(dims, d)
	}
	sort.Slice(dims, func(i, j int) bool { return dims[i].Id < dims[j].Id })

	if len(verdict.KeyFactors) == 0 {
		verdict.KeyFactors = deriveKeyFactors(dims)
	}

	return rubric.AnalysisResult{
		Version:           "v1",
		RunId:             state.RunId(),
		Screening:         screening,
		Dimensions:        dims,
		Verdict:           verdict,
		Risks:             nonNilRisks(state),
		Alternatives:      nonNilAlternatives(state),
		Architecture:      state.Architecture(),
		PreBuildQuestions: state.PendingQuestionsBeforeBuilding(),
		FinalReasoning:    state.FinalReasoning(),
		AnsweredQuestions: state.AnsweredQuestions(),
		DurationMs:        state.DurationMs(),
	}
}

// deriveKeyFactors maps every dimension to a key factor using the ordered
// rule from §3's data-model note: favorable at weight >= 0.7 is strongly
// positive, favorable below that is positive; unfavorable at weight >= 0.7
// is strongly negative, unfavorable below that is negative; anything else
// (a neutral score) is neutral. Every dimension yields a factor.
func deriveKeyFactors(dims []rubric.DimensionAnalysis) []rubric.KeyFactor {
	factors := make([]rubric.KeyFactor, 0, len(dims))
	for _, d := range dims {
		influence := rubric.InfluenceNeutral
		switch {
		case d.Score == rubric.ScoreFavorable && d.Weight >= 0.7:
			influence = rubric.InfluenceStronglyPositive
		case d.Score == rubric.ScoreFavorable:
			influence = rubric.InfluencePositive
		case d.Score == rubric.ScoreUnfavorable && d.Weight >= 0.7:
			influence = rubric.InfluenceStronglyNegative
		case d.Score == rubric.ScoreUnfavorable:
			influence = rubric.InfluenceNegative
		}
		factors = append(factors, rubric.KeyFactor{DimensionId: d.Id, Influence: influence, Note: d.Reasoning})
	}
	return factors
}

func nonNilRisks(state *runstate.RunState) []rubric.RiskFactor {
	if r := state.Risks(); r != nil {
		return r
	}
	return []rubric.RiskFactor{}
}

func nonNilAlternatives(state *runstate.RunState) []rubric.Alternative {
	if a := state.Alternatives(); a != nil {
		return a
	}
	return []rubric.Alternative{}
}
