// Package analyzer declares the black-box function contracts the Stage
// Orchestrator invokes (§6 External Interfaces). The LLM-calling bodies
// that implement these contracts are out of scope for this engine; the
// engine only depends on these signatures.
package analyzer

import (
	"context"

	"github.com/jeeves-cluster-organization/rubric-engine/coreengine/rubric"
)

// ScreeningFunc performs the screening stage.
type ScreeningFunc func(ctx context.Context, input rubric.PipelineInput, answers map[string]rubric.UserAnswer) (rubric.ScreeningOutput, error)

// DimensionsFunc analyzes all seven dimensions; an implementation may
// parallelize internally, or the orchestrator may call a per-dimension
// variant through the Parallel Step Runner (see DimensionFunc below).
type DimensionsFunc func(ctx context.Context, input rubric.PipelineInput, screening rubric.ScreeningOutput, answers map[string]rubric.UserAnswer) (map[rubric.DimensionId]rubric.DimensionAnalysis, error)

// DimensionFunc analyzes a single dimension; the orchestrator uses this
// shape when it drives the seven dimensions itself through the Parallel
// Step Runner rather than delegating fan-out to the analyzer.
type DimensionFunc func(ctx context.Context, input rubric.PipelineInput, screening rubric.ScreeningOutput, dim rubric.DimensionId, answers map[string]rubric.UserAnswer) (rubric.DimensionAnalysis, error)

// VerdictFunc synthesizes the verdict from screening and dimension output.
type VerdictFunc func(ctx context.Context, input rubric.PipelineInput, screening rubric.ScreeningOutput, dimensions map[rubric.DimensionId]rubric.DimensionAnalysis) (rubric.VerdictResult, error)

// RisksFunc identifies risks of building the proposed system.
type RisksFunc func(ctx context.Context, input rubric.PipelineInput, dimensions map[rubric.DimensionId]rubric.DimensionAnalysis, verdict rubric.VerdictResult) ([]rubric.RiskFactor, error)

// AlternativesFunc suggests alternative approaches.
type AlternativesFunc func(ctx context.Context, input rubric.PipelineInput, dimensions map[rubric.DimensionId]rubric.DimensionAnalysis, verdict rubric.VerdictResult) ([]rubric.Alternative, error)

// ArchitectureFunc recommends a system architecture and pre-build questions.
type ArchitectureFunc func(ctx context.Context, input rubric.PipelineInput, dimensions map[rubric.DimensionId]rubric.DimensionAnalysis, verdict rubric.VerdictResult) (*rubric.RecommendedArchitecture, []rubric.PreBuildQuestion, error)

// SynthesisInput bundles everything the synthesis stage may draw on.
type SynthesisInput struct {
	Input                   rubric.PipelineInput
	Screening               rubric.ScreeningOutput
	Dimensions              map[rubric.DimensionId]rubric.DimensionAnalysis
	Answers                 map[string]rubric.UserAnswer
	Verdict                 rubric.VerdictResult
	Risks                   []rubric.RiskFactor
	Alternatives            []rubric.Alternative
	Architecture            *rubric.RecommendedArchitecture
	QuestionsBeforeBuilding []rubric.PreBuildQuestion
}

// SynthesizeFunc produces the final narrative reasoning.
type SynthesizeFunc func(ctx context.Context, in SynthesisInput) (string, error)

// Set bundles every analyzer contract the orchestrator depends on. A
// concrete LLM-backed implementation, or the deterministic mock set that
// NewMockSet (mock.go) builds, satisfies this by construction (it's a plain struct of
// function values, not an interface — matching the teacher's MockHandler
// function-type idiom rather than a fat interface).
type Set struct {
	Screening    ScreeningFunc
	Dimension    DimensionFunc
	Verdict      VerdictFunc
	Risks        RisksFunc
	Alternatives AlternativesFunc
	Architecture ArchitectureFunc
	Synthesize   SynthesizeFunc
}
