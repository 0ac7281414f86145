// Package rubric holds the domain value types for the rubric pipeline:
// the fixed set of evaluation dimensions, the records the analyzers
// produce, and the final assembled result.
package rubric

// DimensionId is one of the seven fixed rubric axes.
type DimensionId string

const (
	DimensionTaskDeterminism  DimensionId = "task_determinism"
	DimensionErrorTolerance   DimensionId = "error_tolerance"
	DimensionDataAvailability DimensionId = "data_availability"
	DimensionEvaluationClarity DimensionId = "evaluation_clarity"
	DimensionEdgeCaseRisk     DimensionId = "edge_case_risk"
	DimensionHumanOversight   DimensionId = "human_oversight_cost"
	DimensionRateOfChange     DimensionId = "rate_of_change"
)

// AllDimensions is the fixed, ordered set of dimensions analyzed every run.
var AllDimensions = []DimensionId{
	DimensionTaskDeterminism,
	DimensionErrorTolerance,
	DimensionDataAvailability,
	DimensionEvaluationClarity,
	DimensionEdgeCaseRisk,
	DimensionHumanOversight,
	DimensionRateOfChange,
}

// Valid reports whether d is one of the fixed seven dimensions.
func (d DimensionId) Valid() bool {
	for _, known := range AllDimensions {
		if d == known {
			return true
		}
	}
	return false
}

// Score is a dimension's qualitative rating.
type Score string

const (
	ScoreFavorable   Score = "favorable"
	ScoreNeutral     Score = "neutral"
	ScoreUnfavorable Score = "unfavorable"
)

// DimensionStatus tracks whether a dimension's analysis has completed.
type DimensionStatus string

const (
	DimensionStatusPending  DimensionStatus = "pending"
	DimensionStatusComplete DimensionStatus = "complete"
)

// QuestionPriority controls whether an unanswered question blocks the run.
type QuestionPriority string

const (
	PriorityBlocking QuestionPriority = "blocking"
	PriorityHelpful  QuestionPriority = "helpful"
	PriorityOptional QuestionPriority = "optional"
)

// AnswerSource records which stage a follow-up question came from.
type AnswerSource string

const (
	SourceScreening AnswerSource = "screening"
	SourceDimension AnswerSource = "dimension"
)

// PreliminarySignal is screening's early read on likely fit.
type PreliminarySignal string

const (
	SignalLikelyPositive PreliminarySignal = "likely_positive"
	SignalUncertain      PreliminarySignal = "uncertain"
	SignalLikelyNegative PreliminarySignal = "likely_negative"
)

// DimensionPriority ranks how much a dimension matters for this problem.
type DimensionPriority string

const (
	DimPriorityHigh   DimensionPriority = "high"
	DimPriorityMedium DimensionPriority = "medium"
	DimPriorityLow    DimensionPriority = "low"
)

// Verdict is the synthesized fit recommendation.
type Verdict string

const (
	VerdictStrongFit        Verdict = "STRONG_FIT"
	VerdictConditional      Verdict = "CONDITIONAL"
	VerdictWeakFit          Verdict = "WEAK_FIT"
	VerdictNotRecommended   Verdict = "NOT_RECOMMENDED"
)

// Influence is a key factor's directional weight on the verdict.
type Influence string

const (
	InfluenceStronglyPositive Influence = "strongly_positive"
	InfluencePositive         Influence = "positive"
	InfluenceNeutral          Influence = "neutral"
	InfluenceNegative         Influence = "negative"
	InfluenceStronglyNegative Influence = "strongly_negative"
)

// PipelineStage is one of the five stages a run advances through, in order.
type PipelineStage string

const (
	StageScreening  PipelineStage = "screening"
	StageDimensions PipelineStage = "dimensions"
	StageVerdict    PipelineStage = "verdict"
	StageSecondary  PipelineStage = "secondary"
	StageSynthesis  PipelineStage = "synthesis"
)

// StageOrder is the fixed sequential order stages execute in.
var StageOrder = []PipelineStage{
	StageScreening,
	StageDimensions,
	StageVerdict,
	StageSecondary,
	StageSynthesis,
}

// stageWeight is used to compute run progress (§4.6).
var stageWeight = map[PipelineStage]int{
	StageScreening:  10,
	StageDimensions: 40,
	StageVerdict:    15,
	StageSecondary:  25,
	StageSynthesis:  10,
}

// StageWeight returns the progress-percentage weight of a completed stage.
func StageWeight(s PipelineStage) int {
	return stageWeight[s]
}

// RunStatus is the run's lifecycle state.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusSuspended RunStatus = "suspended"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
	StatusCancelled RunStatus = "cancelled"
)

// Terminal reports whether the status is a sink state.
func (s RunStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// ErrorStrategy controls how the orchestrator handles a failed
// dimension/secondary analyzer call.
type ErrorStrategy string

const (
	ErrorStrategyFailFast            ErrorStrategy = "fail-fast"
	ErrorStrategyContinueWithPartial ErrorStrategy = "continue-with-partial"
)
