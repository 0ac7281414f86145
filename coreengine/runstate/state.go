// Package runstate holds the authoritative in-memory record of a run:
// inputs, accumulated answers, stage outputs, pending questions, errors,
// timing and the stage-completion set (spec §3 RunState).
//
// A RunState is owned by exactly one Run Manager and mutated only by its
// active orchestrator goroutine; reads from other goroutines (status
// queries) go through the locked accessor methods below.
package runstate

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeeves-cluster-organization/rubric-engine/coreengine/rubric"
)

// RunState is the mutable per-run record.
type RunState struct {
	mu sync.RWMutex

	runId string
	input rubric.PipelineInput

	answers     map[string]rubric.UserAnswer
	answerOrder []string

	screening  *rubric.ScreeningOutput
	dimensions map[rubric.DimensionId]rubric.DimensionAnalysis
	pending    []rubric.FollowUpQuestion
	pendingIds map[string]bool

	verdict                 *rubric.VerdictResult
	risks                   []rubric.RiskFactor
	alternatives            []rubric.Alternative
	architecture            *rubric.RecommendedArchitecture
	questionsBeforeBuilding []rubric.PreBuildQuestion
	finalReasoning          string

	status          rubric.RunStatus
	stage           rubric.PipelineStage
	completedStages map[rubric.PipelineStage]bool

	errors []rubric.ExecutorError

	startedAt   time.Time
	completedAt *time.Time

	eventSeq int64

	cancel context.CancelFunc
}

// New allocates a fresh RunState in the "running" status with a new
// UUIDv4 run id, per §4.6 startPipeline.
func New(input rubric.PipelineInput, cancel context.CancelFunc) *RunState {
	return &RunState{
		runId:           uuid.New().String(),
		input:           input,
		answers:         make(map[string]rubric.UserAnswer),
		dimensions:      make(map[rubric.DimensionId]rubric.DimensionAnalysis),
		pendingIds:      make(map[string]bool),
		status:          rubric.StatusRunning,
		stage:           rubric.StageScreening,
		completedStages: make(map[rubric.PipelineStage]bool),
		startedAt:       time.Now().UTC(),
		cancel:          cancel,
	}
}

// NewResumed rebuilds a RunState from a persisted snapshot (§4.8), wiring
// a fresh cancellation handle for the resumed orchestrator task.
func NewResumed(snap Snapshot, cancel context.CancelFunc) *RunState {
	rs := &RunState{
		runId:                   snap.RunId,
		input:                   snap.Input,
		answers:                 make(map[string]rubric.UserAnswer, len(snap.Answers)),
		dimensions:              make(map[rubric.DimensionId]rubric.DimensionAnalysis, len(snap.Dimensions)),
		pendingIds:              make(map[string]bool),
		screening:               snap.Screening,
		verdict:                 snap.Verdict,
		risks:                   snap.Risks,
		alternatives:            snap.Alternatives,
		architecture:            snap.Architecture,
		questionsBeforeBuilding: snap.QuestionsBeforeBuilding,
		finalReasoning:          snap.FinalReasoning,
		status:                  rubric.StatusRunning,
		stage:                   snap.Stage,
		completedStages:         make(map[rubric.PipelineStage]bool, len(snap.CompletedStages)),
		errors:                  append([]rubric.ExecutorError{}, snap.Errors...),
		startedAt:               snap.StartedAt,
		completedAt:             snap.CompletedAt,
		eventSeq:                snap.EventSeq,
		cancel:                  cancel,
	}
	for _, s := range snap.CompletedStages {
		rs.completedStages[s] = true
	}
	for _, d := range snap.Dimensions {
		rs.dimensions[d.Id] = d
	}
	for _, q := range snap.PendingQuestions {
		rs.pending = append(rs.pending, q)
		rs.pendingIds[q.Id] = true
	}
	for _, id := range snap.AnswerOrder {
		if a, ok := snap.Answers[id]; ok {
			rs.answers[id] = a
			rs.answerOrder = append(rs.answerOrder, id)
		}
	}
	return rs
}

// RunId returns the run's identifier.
func (s *RunState) RunId() string {
	return s.runId
}

// Input returns the immutable pipeline input.
func (s *RunState) Input() rubric.PipelineInput {
	return s.input
}

// Cancel invokes the run's cancellation handle, if any.
func (s *RunState) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
}

// SetStage records the current/last-completed stage.
func (s *RunState) SetStage(stage rubric.PipelineStage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stage = stage
}

// Stage returns the current/last-completed stage.
func (s *RunState) Stage() rubric.PipelineStage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stage
}

// MarkStageComplete adds stage to the idempotent completed set.
func (s *RunState) MarkStageComplete(stage rubric.PipelineStage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completedStages[stage] = true
}

// StageCompleted reports whether stage is already in the completed set.
func (s *RunState) StageCompleted(stage rubric.PipelineStage) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.completedStages[stage]
}

// SetStatus transitions the run's lifecycle status. Once a run reaches a
// terminal status it is a sink (invariant 4): further calls are no-ops, so
// a late-arriving failure can never overwrite a status a concurrent
// cancellation already finalized, or vice versa.
func (s *RunState) SetStatus(status rubric.RunStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Terminal() {
		return
	}
	s.status = status
	if status.Terminal() && s.completedAt == nil {
		now := time.Now().UTC()
		s.completedAt = &now
	}
}

// Status returns the run's current lifecycle status.
func (s *RunState) Status() rubric.RunStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// SetScreening records screening's output.
func (s *RunState) SetScreening(out rubric.ScreeningOutput) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.screening = &out
}

// Screening returns screening's output, or nil if not yet set.
func (s *RunState) Screening() *rubric.ScreeningOutput {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.screening
}

// SetDimension records one dimension's completed analysis.
func (s *RunState) SetDimension(d rubric.DimensionAnalysis) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimensions[d.Id] = d
}

// Dimensions returns a snapshot copy of the dimension map.
func (s *RunState) Dimensions() map[rubric.DimensionId]rubric.DimensionAnalysis {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[rubric.DimensionId]rubric.DimensionAnalysis, len(s.dimensions))
	for k, v := range s.dimensions {
		out[k] = v
	}
	return out
}

// AddPendingQuestions appends newly surfaced questions; pendingQuestions
// is append-only and never drops a question once emitted (invariant 3).
func (s *RunState) AddPendingQuestions(qs []rubric.FollowUpQuestion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range qs {
		if s.pendingIds[q.Id] {
			continue
		}
		s.pendingIds[q.Id] = true
		s.pending = append(s.pending, q)
	}
}

// PendingQuestions returns a copy of every question ever surfaced.
func (s *RunState) PendingQuestions() []rubric.FollowUpQuestion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]rubric.FollowUpQuestion, len(s.pending))
	copy(out, s.pending)
	return out
}

// HasBlockingQuestions reports whether any blocking question lacks an
// answer (§4.7 step 6).
func (s *RunState) HasBlockingQuestions() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, q := range s.pending {
		if q.Priority != rubric.PriorityBlocking {
			continue
		}
		if _, answered := s.answers[q.Id]; !answered {
			return true
		}
	}
	return false
}

// UnansweredBlockingIds returns the ids of unanswered blocking questions.
func (s *RunState) UnansweredBlockingIds() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for _, q := range s.pending {
		if q.Priority != rubric.PriorityBlocking {
			continue
		}
		if _, answered := s.answers[q.Id]; !answered {
			ids = append(ids, q.Id)
		}
	}
	return ids
}

// AddAnswer merges a user answer, overwriting any prior answer with the
// same questionId; first-seen order is preserved for answeredQuestions.
func (s *RunState) AddAnswer(a rubric.UserAnswer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.answers[a.QuestionId]; !exists {
		s.answerOrder = append(s.answerOrder, a.QuestionId)
	}
	s.answers[a.QuestionId] = a
}

// Answer looks up a recorded answer by question id.
func (s *RunState) Answer(questionId string) (rubric.UserAnswer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.answers[questionId]
	return a, ok
}

// AnsweredQuestions returns answers in first-seen (insertion) order.
func (s *RunState) AnsweredQuestions() []rubric.UserAnswer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]rubric.UserAnswer, 0, len(s.answerOrder))
	for _, id := range s.answerOrder {
		out = append(out, s.answers[id])
	}
	return out
}

// SetVerdict records the verdict stage output.
func (s *RunState) SetVerdict(v rubric.VerdictResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verdict = &v
}

// Verdict returns the verdict output, or nil if not yet set.
func (s *RunState) Verdict() *rubric.VerdictResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.verdict
}

// SetSecondary records the secondary stage's three analyses at once.
func (s *RunState) SetSecondary(risks []rubric.RiskFactor, alternatives []rubric.Alternative, architecture *rubric.RecommendedArchitecture, questions []rubric.PreBuildQuestion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.risks = risks
	s.alternatives = alternatives
	s.architecture = architecture
	s.questionsBeforeBuilding = questions
}

// SetFinalReasoning records the synthesis stage's narrative output.
func (s *RunState) SetFinalReasoning(reasoning string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalReasoning = reasoning
}

// FinalReasoning returns the synthesis stage's narrative output, if set.
func (s *RunState) FinalReasoning() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.finalReasoning
}

// Risks returns the secondary stage's identified risks, if set.
func (s *RunState) Risks() []rubric.RiskFactor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.risks
}

// Alternatives returns the secondary stage's suggested alternatives, if set.
func (s *RunState) Alternatives() []rubric.Alternative {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.alternatives
}

// Architecture returns the secondary stage's recommended architecture, or
// nil if the problem doesn't warrant one.
func (s *RunState) Architecture() *rubric.RecommendedArchitecture {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.architecture
}

// PendingQuestionsBeforeBuilding returns the questions the user should
// resolve before building, surfaced by the secondary stage.
func (s *RunState) PendingQuestionsBeforeBuilding() []rubric.PreBuildQuestion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.questionsBeforeBuilding
}

// DurationMs returns the run's wall-clock duration so far, or its total
// duration once completed.
func (s *RunState) DurationMs() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	end := time.Now().UTC()
	if s.completedAt != nil {
		end = *s.completedAt
	}
	return end.Sub(s.startedAt).Milliseconds()
}

// AppendError records a classified error; invariant 6 requires every
// appended error is also emitted as an event exactly once, which the
// orchestrator guarantees by emitting immediately after calling this.
func (s *RunState) AppendError(e rubric.ExecutorError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, e)
}

// NextEventSeq returns a monotonically increasing per-run sequence number.
func (s *RunState) NextEventSeq() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventSeq++
	return s.eventSeq
}

// StatusView is a read-only snapshot suitable for getRunStatus (§4.6).
type StatusView struct {
	RunId            string
	Stage            rubric.PipelineStage
	Status           rubric.RunStatus
	PendingQuestions []string
	Errors           []rubric.ExecutorError
	StartedAt        time.Time
	CompletedAt      *time.Time
	Progress         int
}

// View produces a StatusView safe to hand to a concurrent caller.
func (s *RunState) View() StatusView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	progress := 0
	for stage := range s.completedStages {
		progress += rubric.StageWeight(stage)
	}
	if progress > 100 {
		progress = 100
	}

	var pendingIds []string
	for _, q := range s.pending {
		if q.Priority != rubric.PriorityBlocking {
			continue
		}
		if _, answered := s.answers[q.Id]; !answered {
			pendingIds = append(pendingIds, q.Id)
		}
	}

	errs := make([]rubric.ExecutorError, len(s.errors))
	copy(errs, s.errors)

	return StatusView{
		RunId:            s.runId,
		Stage:            s.stage,
		Status:           s.status,
		PendingQuestions: pendingIds,
		Errors:           errs,
		StartedAt:        s.startedAt,
		CompletedAt:      s.completedAt,
		Progress:         progress,
	}
}

// ToSnapshot produces a JSON-shaped copy suitable for a Snapshot Adapter.
func (s *RunState) ToSnapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dims := make([]rubric.DimensionAnalysis, 0, len(s.dimensions))
	for _, d := range s.dimensions {
		dims = append(dims, d)
	}

	stages := make([]rubric.PipelineStage, 0, len(s.completedStages))
	for st := range s.completedStages {
		stages = append(stages, st)
	}

	answers := make(map[string]rubric.UserAnswer, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}

	return Snapshot{
		Version:                 "v1",
		RunId:                   s.runId,
		Input:                   s.input,
		Answers:                 answers,
		AnswerOrder:             append([]string{}, s.answerOrder...),
		Screening:               s.screening,
		Dimensions:              dims,
		PendingQuestions:        append([]rubric.FollowUpQuestion{}, s.pending...),
		Verdict:                 s.verdict,
		Risks:                   s.risks,
		Alternatives:            s.alternatives,
		Architecture:            s.architecture,
		QuestionsBeforeBuilding: s.questionsBeforeBuilding,
		FinalReasoning:          s.finalReasoning,
		Status:                  s.status,
		Stage:                   s.stage,
		CompletedStages:         stages,
		Errors:                  append([]rubric.ExecutorError{}, s.errors...),
		StartedAt:               s.startedAt,
		CompletedAt:             s.completedAt,
		EventSeq:                s.eventSeq,
	}
}
