package runstate

import (
	"time"

	"github.com/jeeves-cluster-organization/rubric-engine/coreengine/rubric"
)

// Snapshot is the JSON-shaped, version-tagged copy of a RunState persisted
// by a Snapshot Adapter (§4.8, §6 "Persisted state layout").
type Snapshot struct {
	Version                 string                                     `json:"version"`
	RunId                   string                                     `json:"runId"`
	Input                   rubric.PipelineInput                       `json:"input"`
	Answers                 map[string]rubric.UserAnswer               `json:"answers"`
	AnswerOrder             []string                                   `json:"answerOrder"`
	Screening               *rubric.ScreeningOutput                    `json:"screening,omitempty"`
	Dimensions              []rubric.DimensionAnalysis                 `json:"dimensions,omitempty"`
	PendingQuestions        []rubric.FollowUpQuestion                  `json:"pendingQuestions,omitempty"`
	Verdict                 *rubric.VerdictResult                      `json:"verdict,omitempty"`
	Risks                   []rubric.RiskFactor                        `json:"risks,omitempty"`
	Alternatives            []rubric.Alternative                       `json:"alternatives,omitempty"`
	Architecture            *rubric.RecommendedArchitecture            `json:"architecture,omitempty"`
	QuestionsBeforeBuilding []rubric.PreBuildQuestion                  `json:"questionsBeforeBuilding,omitempty"`
	FinalReasoning          string                                     `json:"finalReasoning,omitempty"`
	Status                  rubric.RunStatus                          `json:"status"`
	Stage                   rubric.PipelineStage                      `json:"stage"`
	CompletedStages         []rubric.PipelineStage                     `json:"completedStages"`
	Errors                  []rubric.ExecutorError                     `json:"errors,omitempty"`
	StartedAt               time.Time                                  `json:"startedAt"`
	CompletedAt             *time.Time                                 `json:"completedAt,omitempty"`
	EventSeq                int64                                      `json:"eventSeq"`
}
