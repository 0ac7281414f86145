package rubric

import (
	"errors"
	"fmt"
	"time"
)

// PipelineInput is the immutable input to a run.
type PipelineInput struct {
	Problem           string       `json:"problem"`
	Context           string       `json:"context,omitempty"`
	PreAppliedAnswers []UserAnswer `json:"preAppliedAnswers,omitempty"`
}

// Validate enforces the problem/context length bounds from the data model.
func (p PipelineInput) Validate() error {
	if n := len(p.Problem); n < 10 || n > 5000 {
		return fmt.Errorf("problem must be 10..5000 chars, got %d", n)
	}
	if len(p.Context) > 10000 {
		return fmt.Errorf("context must be <=10000 chars, got %d", len(p.Context))
	}
	return nil
}

// UserAnswer is a client-supplied answer to a FollowUpQuestion.
type UserAnswer struct {
	QuestionId string       `json:"questionId"`
	Answer     string       `json:"answer"`
	Source     AnswerSource `json:"source"`
	Timestamp  int64        `json:"timestamp"`
}

// SuggestedOption is one of a FollowUpQuestion's pre-canned answer choices.
type SuggestedOption struct {
	Label          string  `json:"label"`
	Value          string  `json:"value"`
	ImpactOnScore  *string `json:"impactOnScore,omitempty"`
}

// QuestionSource records where a follow-up question originated.
type QuestionSource struct {
	Stage       PipelineStage `json:"stage"`
	DimensionId *DimensionId  `json:"dimensionId,omitempty"`
}

// FollowUpQuestion is a clarifying question surfaced to the user.
type FollowUpQuestion struct {
	Id                string            `json:"id"`
	Question          string            `json:"question"`
	Rationale         string            `json:"rationale"`
	Priority          QuestionPriority  `json:"priority"`
	Source            QuestionSource    `json:"source"`
	CurrentAssumption string            `json:"currentAssumption,omitempty"`
	SuggestedOptions  []SuggestedOption `json:"suggestedOptions,omitempty"`
}

// PartialInsight is an early observation screening makes about a dimension.
type PartialInsight struct {
	Insight           string      `json:"insight"`
	Confidence        float64     `json:"confidence"`
	RelevantDimension DimensionId `json:"relevantDimension"`
}

// DimensionPriorityHint tells the orchestrator which dimensions matter most.
type DimensionPriorityHint struct {
	DimensionId DimensionId       `json:"dimensionId"`
	Priority    DimensionPriority `json:"priority"`
	Reason      string            `json:"reason"`
}

// ScreeningOutput is the result of the screening stage.
type ScreeningOutput struct {
	CanEvaluate         bool                    `json:"canEvaluate"`
	Reason              string                  `json:"reason,omitempty"`
	ClarifyingQuestions []FollowUpQuestion      `json:"clarifyingQuestions"`
	PartialInsights     []PartialInsight        `json:"partialInsights"`
	PreliminarySignal   PreliminarySignal       `json:"preliminarySignal"`
	DimensionPriorities []DimensionPriorityHint `json:"dimensionPriorities"`
}

// DimensionAnalysis is the per-dimension analyzer output.
type DimensionAnalysis struct {
	Id        DimensionId        `json:"id"`
	Name      string             `json:"name"`
	Score     Score              `json:"score"`
	Confidence float64           `json:"confidence"`
	Weight    float64            `json:"weight"`
	Reasoning string             `json:"reasoning"`
	Evidence  []string           `json:"evidence"`
	InfoGaps  []FollowUpQuestion `json:"infoGaps"`
	Status    DimensionStatus    `json:"status"`
}

// DefaultDimensionAnalysis is the neutral/weight-zero stand-in substituted
// for a dimension that failed under the continue-with-partial strategy.
func DefaultDimensionAnalysis(id DimensionId) DimensionAnalysis {
	return DimensionAnalysis{
		Id:       id,
		Name:     string(id),
		Score:    ScoreNeutral,
		Weight:   0,
		Status:   DimensionStatusPending,
		Evidence: []string{},
		InfoGaps: []FollowUpQuestion{},
	}
}

// KeyFactor is one dimension's contribution to the verdict's reasoning.
type KeyFactor struct {
	DimensionId DimensionId `json:"dimensionId"`
	Influence   Influence   `json:"influence"`
	Note        string      `json:"note"`
}

// VerdictResult is the synthesized fit recommendation.
type VerdictResult struct {
	Verdict    Verdict     `json:"verdict"`
	Confidence float64     `json:"confidence"`
	Summary    string      `json:"summary"`
	Reasoning  string      `json:"reasoning"`
	KeyFactors []KeyFactor `json:"keyFactors"`
}

// RiskFactor is one identified risk of building the proposed system.
type RiskFactor struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Mitigation  string `json:"mitigation,omitempty"`
}

// Alternative is a suggested alternative approach.
type Alternative struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	TradeOffs   string `json:"tradeOffs,omitempty"`
}

// RecommendedArchitecture is the suggested system shape, when applicable.
type RecommendedArchitecture struct {
	Summary    string   `json:"summary"`
	Components []string `json:"components"`
	Notes      string   `json:"notes,omitempty"`
}

// PreBuildQuestion is a question the user should resolve before building.
type PreBuildQuestion struct {
	Question  string `json:"question"`
	Rationale string `json:"rationale,omitempty"`
}

// SecondaryOutputs bundles the three parallel secondary-stage analyses.
type SecondaryOutputs struct {
	Risks                   []RiskFactor             `json:"risks"`
	Alternatives            []Alternative            `json:"alternatives"`
	Architecture            *RecommendedArchitecture `json:"architecture"`
	QuestionsBeforeBuilding []PreBuildQuestion       `json:"questionsBeforeBuilding"`
}

// AnalysisResult is the final assembled output of a completed run.
type AnalysisResult struct {
	Version           string                       `json:"version"`
	RunId             string                       `json:"runId"`
	Screening         ScreeningOutput              `json:"screening"`
	Dimensions        []DimensionAnalysis          `json:"dimensions"`
	Verdict           VerdictResult                `json:"verdict"`
	Risks             []RiskFactor                 `json:"risks"`
	Alternatives      []Alternative                `json:"alternatives"`
	Architecture      *RecommendedArchitecture      `json:"architecture"`
	PreBuildQuestions []PreBuildQuestion           `json:"questionsBeforeBuilding"`
	FinalReasoning    string                       `json:"finalReasoning"`
	AnsweredQuestions []UserAnswer                 `json:"answeredQuestions"`
	DurationMs        int64                        `json:"durationMs"`
}

// ErrCode is a classified analyzer-error kind.
type ErrCode string

const (
	ErrRateLimit          ErrCode = "RATE_LIMIT"
	ErrNetwork            ErrCode = "NETWORK_ERROR"
	ErrServiceUnavailable ErrCode = "SERVICE_UNAVAILABLE"
	ErrTimeout            ErrCode = "TIMEOUT"
	ErrAuthentication     ErrCode = "AUTHENTICATION"
	ErrContentFilter      ErrCode = "CONTENT_FILTER"
	ErrSchemaValidation   ErrCode = "SCHEMA_VALIDATION"
	ErrCancelled          ErrCode = "CANCELLED"
	ErrMaxRetriesExceeded ErrCode = "MAX_RETRIES_EXCEEDED"
	ErrUnknown            ErrCode = "UNKNOWN"
)

// Recoverable reports whether this error kind is eligible for retry.
func (c ErrCode) Recoverable() bool {
	switch c {
	case ErrRateLimit, ErrNetwork, ErrServiceUnavailable, ErrTimeout:
		return true
	default:
		return false
	}
}

// ExecutorError is the typed, kinded error the pipeline ever records.
type ExecutorError struct {
	Code        ErrCode       `json:"code"`
	Message     string        `json:"message"`
	Stage       PipelineStage `json:"stage"`
	Recoverable bool          `json:"recoverable"`
	Timestamp   time.Time     `json:"timestamp"`
	Cause       error         `json:"-"`
	Attempt     *int          `json:"attempt,omitempty"`
}

func (e *ExecutorError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s[%s]: %s: %v", e.Code, e.Stage, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s[%s]: %s", e.Code, e.Stage, e.Message)
}

func (e *ExecutorError) Unwrap() error {
	return e.Cause
}

// Is allows errors.Is(err, &ExecutorError{Code: ...}) matching by code alone.
func (e *ExecutorError) Is(target error) bool {
	var other *ExecutorError
	if errors.As(target, &other) {
		return other.Code == e.Code
	}
	return false
}
