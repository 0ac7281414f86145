package analyzer

import (
	"context"
	"fmt"

	"github.com/jeeves-cluster-organization/rubric-engine/coreengine/rubric"
)

// NewMockSet returns a deterministic Set useful for demos and tests: every
// dimension scores favorable with weight 0.7, no clarifying questions are
// raised, and the verdict is always STRONG_FIT. It never errors.
func NewMockSet() Set {
	return Set{
		Screening:    mockScreening,
		Dimension:    mockDimension,
		Verdict:      mockVerdict,
		Risks:        mockRisks,
		Alternatives: mockAlternatives,
		Architecture: mockArchitecture,
		Synthesize:   mockSynthesize,
	}
}

func mockScreening(ctx context.Context, input rubric.PipelineInput, answers map[string]rubric.UserAnswer) (rubric.ScreeningOutput, error) {
	return rubric.ScreeningOutput{
		CanEvaluate:         true,
		ClarifyingQuestions: nil,
		PartialInsights:     nil,
		PreliminarySignal:   rubric.SignalLikelyPositive,
		DimensionPriorities: nil,
	}, nil
}

func mockDimension(ctx context.Context, input rubric.PipelineInput, screening rubric.ScreeningOutput, dim rubric.DimensionId, answers map[string]rubric.UserAnswer) (rubric.DimensionAnalysis, error) {
	return rubric.DimensionAnalysis{
		Id:         dim,
		Name:       string(dim),
		Score:      rubric.ScoreFavorable,
		Confidence: 0.8,
		Weight:     0.7,
		Reasoning:  fmt.Sprintf("%s looks favorable for this problem.", dim),
		Evidence:   []string{"mock evidence"},
		InfoGaps:   nil,
		Status:     rubric.DimensionStatusComplete,
	}, nil
}

func mockVerdict(ctx context.Context, input rubric.PipelineInput, screening rubric.ScreeningOutput, dimensions map[rubric.DimensionId]rubric.DimensionAnalysis) (rubric.VerdictResult, error) {
	factors := make([]rubric.KeyFactor, 0, len(dimensions))
	for _, d := range dimensions {
		factors = append(factors, rubric.KeyFactor{DimensionId: d.Id, Influence: rubric.InfluencePositive, Note: d.Reasoning})
	}
	return rubric.VerdictResult{
		Verdict:    rubric.VerdictStrongFit,
		Confidence: 0.88,
		Summary:    "Strong fit for LLM-based automation.",
		Reasoning:  "All dimensions scored favorably.",
		KeyFactors: factors,
	}, nil
}

func mockRisks(ctx context.Context, input rubric.PipelineInput, dimensions map[rubric.DimensionId]rubric.DimensionAnalysis, verdict rubric.VerdictResult) ([]rubric.RiskFactor, error) {
	return []rubric.RiskFactor{{Title: "Drift", Description: "Inputs may shift over time.", Severity: "medium"}}, nil
}

func mockAlternatives(ctx context.Context, input rubric.PipelineInput, dimensions map[rubric.DimensionId]rubric.DimensionAnalysis, verdict rubric.VerdictResult) ([]rubric.Alternative, error) {
	return []rubric.Alternative{{Title: "Rules engine", Description: "A deterministic rules engine may suffice for simple cases."}}, nil
}

func mockArchitecture(ctx context.Context, input rubric.PipelineInput, dimensions map[rubric.DimensionId]rubric.DimensionAnalysis, verdict rubric.VerdictResult) (*rubric.RecommendedArchitecture, []rubric.PreBuildQuestion, error) {
	arch := &rubric.RecommendedArchitecture{
		Summary:    "Single LLM call with human-in-the-loop review queue.",
		Components: []string{"classifier", "review queue", "feedback loop"},
	}
	questions := []rubric.PreBuildQuestion{{Question: "Who owns the review queue SLA?"}}
	return arch, questions, nil
}

func mockSynthesize(ctx context.Context, in SynthesisInput) (string, error) {
	return fmt.Sprintf("Based on %d dimensions, this problem is a %s for automation.", len(in.Dimensions), in.Verdict.Verdict), nil
}
