package runstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeeves-cluster-organization/rubric-engine/coreengine/rubric"
)

func newTestState() *RunState {
	return New(rubric.PipelineInput{Problem: "Should we automate X with an LLM end to end?"}, func() {})
}

func TestNew_AssignsUUIDAndInitialState(t *testing.T) {
	s := newTestState()
	assert.NotEmpty(t, s.RunId())
	assert.Equal(t, rubric.StatusRunning, s.Status())
	assert.Equal(t, rubric.StageScreening, s.Stage())
}

func TestPendingQuestions_NeverDropsOnceSurfaced(t *testing.T) {
	s := newTestState()
	q1 := rubric.FollowUpQuestion{Id: "q1", Priority: rubric.PriorityBlocking}
	q2 := rubric.FollowUpQuestion{Id: "q2", Priority: rubric.PriorityHelpful}

	s.AddPendingQuestions([]rubric.FollowUpQuestion{q1})
	s.AddPendingQuestions([]rubric.FollowUpQuestion{q2, q1}) // q1 surfaces again, must not duplicate

	all := s.PendingQuestions()
	require.Len(t, all, 2)
	assert.Equal(t, "q1", all[0].Id)
	assert.Equal(t, "q2", all[1].Id)
}

func TestHasBlockingQuestions(t *testing.T) {
	s := newTestState()
	s.AddPendingQuestions([]rubric.FollowUpQuestion{
		{Id: "blocking-1", Priority: rubric.PriorityBlocking},
		{Id: "helpful-1", Priority: rubric.PriorityHelpful},
	})

	assert.True(t, s.HasBlockingQuestions())
	assert.Equal(t, []string{"blocking-1"}, s.UnansweredBlockingIds())

	s.AddAnswer(rubric.UserAnswer{QuestionId: "blocking-1", Answer: "yes"})
	assert.False(t, s.HasBlockingQuestions())
}

func TestAnsweredQuestions_PreservesFirstSeenOrder(t *testing.T) {
	s := newTestState()
	s.AddAnswer(rubric.UserAnswer{QuestionId: "a", Answer: "1"})
	s.AddAnswer(rubric.UserAnswer{QuestionId: "b", Answer: "2"})
	s.AddAnswer(rubric.UserAnswer{QuestionId: "a", Answer: "1-updated"})

	answers := s.AnsweredQuestions()
	require.Len(t, answers, 2)
	assert.Equal(t, "a", answers[0].QuestionId)
	assert.Equal(t, "1-updated", answers[0].Answer, "overwriting an answer updates value but not order")
	assert.Equal(t, "b", answers[1].QuestionId)
}

func TestMarkStageComplete_Idempotent(t *testing.T) {
	s := newTestState()
	s.MarkStageComplete(rubric.StageScreening)
	s.MarkStageComplete(rubric.StageScreening)
	assert.True(t, s.StageCompleted(rubric.StageScreening))
	assert.False(t, s.StageCompleted(rubric.StageDimensions))
}

func TestView_ProgressCapsAt100(t *testing.T) {
	s := newTestState()
	for _, stage := range rubric.StageOrder {
		s.MarkStageComplete(stage)
	}
	assert.Equal(t, 100, s.View().Progress)
}

func TestView_OnlyReportsUnansweredBlockingQuestions(t *testing.T) {
	s := newTestState()
	s.AddPendingQuestions([]rubric.FollowUpQuestion{
		{Id: "b1", Priority: rubric.PriorityBlocking},
		{Id: "opt1", Priority: rubric.PriorityOptional},
	})
	s.AddAnswer(rubric.UserAnswer{QuestionId: "b1", Answer: "x"})

	view := s.View()
	assert.Empty(t, view.PendingQuestions)
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := newTestState()
	s.SetScreening(rubric.ScreeningOutput{CanEvaluate: true, PreliminarySignal: rubric.SignalLikelyPositive})
	s.AddPendingQuestions([]rubric.FollowUpQuestion{{Id: "q1", Priority: rubric.PriorityBlocking}})
	s.AddAnswer(rubric.UserAnswer{QuestionId: "q1", Answer: "yes"})
	s.SetDimension(rubric.DimensionAnalysis{Id: rubric.DimensionTaskDeterminism, Score: rubric.ScoreFavorable})
	s.MarkStageComplete(rubric.StageScreening)

	snap := s.ToSnapshot()
	resumed := NewResumed(snap, func() {})

	assert.Equal(t, s.RunId(), resumed.RunId())
	assert.True(t, resumed.StageCompleted(rubric.StageScreening))
	assert.Equal(t, s.Dimensions(), resumed.Dimensions())
	a, ok := resumed.Answer("q1")
	require.True(t, ok)
	assert.Equal(t, "yes", a.Answer)
	assert.Equal(t, []rubric.FollowUpQuestion{{Id: "q1", Priority: rubric.PriorityBlocking}}, resumed.PendingQuestions())
}

func TestCancel_InvokesHandle(t *testing.T) {
	called := false
	s := New(rubric.PipelineInput{Problem: "x-x-x-x-x-x-x-x-x-x"}, func() { called = true })
	s.Cancel()
	assert.True(t, called)
}

func TestSetStatus_TerminalSetsCompletedAtOnce(t *testing.T) {
	s := newTestState()
	s.SetStatus(rubric.StatusCompleted)
	first := s.View().CompletedAt
	require.NotNil(t, first)

	s.SetStatus(rubric.StatusCompleted)
	second := s.View().CompletedAt
	assert.Equal(t, *first, *second)
}
