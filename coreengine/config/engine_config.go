// Package config holds the engine's own orchestration configuration:
// per-stage timeouts and retry policy, the pipeline-wide timeout, the
// default error strategy, and the resume-mode switch. It carries no
// transport or analyzer-provider settings — those belong to the external
// collaborators this engine treats as black boxes.
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jeeves-cluster-organization/rubric-engine/coreengine/executor"
	"github.com/jeeves-cluster-organization/rubric-engine/coreengine/rubric"
	"github.com/jeeves-cluster-organization/rubric-engine/coreengine/typeutil"
)

// ResumeMode selects how a suspended run is continued.
type ResumeMode string

const (
	ResumeModeSnapshot  ResumeMode = "snapshot"
	ResumeModeStateless ResumeMode = "stateless"
)

// EngineConfig is infrastructure-agnostic orchestration configuration; it
// does not hold database URLs or LLM endpoints beyond the one DSN the
// snapshot adapter itself needs.
type EngineConfig struct {
	PerStageTimeout map[rubric.PipelineStage]time.Duration `yaml:"-"`
	PerStageRetry   map[rubric.PipelineStage]executor.BackoffOptions `yaml:"-"`

	PipelineTimeoutSeconds int `yaml:"pipeline_timeout_seconds"`

	ErrorStrategy string `yaml:"error_strategy"`

	ResumeMode  string `yaml:"resume_mode"`
	SnapshotDSN string `yaml:"snapshot_dsn"`
}

// DefaultEngineConfig returns the spec's §4.3 defaults.
func DefaultEngineConfig() *EngineConfig {
	defaultRetry := executor.DefaultRetryOptions()
	dimRetry := defaultRetry
	dimRetry.MaxAttempts = 4

	return &EngineConfig{
		PerStageTimeout: map[rubric.PipelineStage]time.Duration{
			rubric.StageScreening:  30 * time.Second,
			rubric.StageDimensions: 90 * time.Second,
			rubric.StageVerdict:    30 * time.Second,
			rubric.StageSecondary:  60 * time.Second,
			rubric.StageSynthesis:  30 * time.Second,
		},
		PerStageRetry: map[rubric.PipelineStage]executor.BackoffOptions{
			rubric.StageScreening:  defaultRetry,
			rubric.StageDimensions: dimRetry,
			rubric.StageVerdict:    defaultRetry,
			rubric.StageSecondary:  dimRetry,
			rubric.StageSynthesis:  defaultRetry,
		},
		PipelineTimeoutSeconds: 180,
		ErrorStrategy:          string(rubric.ErrorStrategyFailFast),
		ResumeMode:             string(ResumeModeStateless),
	}
}

// PipelineTimeout returns the whole-pipeline timer as a time.Duration.
func (c *EngineConfig) PipelineTimeout() time.Duration {
	return time.Duration(c.PipelineTimeoutSeconds) * time.Second
}

// Strategy returns the configured ErrorStrategy enum value.
func (c *EngineConfig) Strategy() rubric.ErrorStrategy {
	return rubric.ErrorStrategy(c.ErrorStrategy)
}

// FromMap overlays values found in config onto the defaults. Unknown keys
// are ignored, following the teacher's ExecutionConfigFromMap idiom.
func FromMap(config map[string]any) *EngineConfig {
	c := DefaultEngineConfig()

	c.PipelineTimeoutSeconds = typeutil.SafeIntDefault(config["pipeline_timeout_seconds"], c.PipelineTimeoutSeconds)
	c.ErrorStrategy = typeutil.SafeStringDefault(config["error_strategy"], c.ErrorStrategy)
	c.ResumeMode = typeutil.SafeStringDefault(config["resume_mode"], c.ResumeMode)
	c.SnapshotDSN = typeutil.SafeStringDefault(config["snapshot_dsn"], c.SnapshotDSN)
	return c
}

// FromYAML loads an EngineConfig from YAML bytes, overlaying defaults for
// anything unspecified.
func FromYAML(data []byte) (*EngineConfig, error) {
	c := DefaultEngineConfig()
	var overlay struct {
		PipelineTimeoutSeconds int    `yaml:"pipeline_timeout_seconds"`
		ErrorStrategy          string `yaml:"error_strategy"`
		ResumeMode             string `yaml:"resume_mode"`
		SnapshotDSN            string `yaml:"snapshot_dsn"`
	}
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, err
	}
	if overlay.PipelineTimeoutSeconds > 0 {
		c.PipelineTimeoutSeconds = overlay.PipelineTimeoutSeconds
	}
	if overlay.ErrorStrategy != "" {
		c.ErrorStrategy = overlay.ErrorStrategy
	}
	if overlay.ResumeMode != "" {
		c.ResumeMode = overlay.ResumeMode
	}
	if overlay.SnapshotDSN != "" {
		c.SnapshotDSN = overlay.SnapshotDSN
	}
	return c, nil
}

// FromEnv layers a small set of environment-variable overrides onto the
// defaults, following the env-tag layering style used elsewhere in the
// pack's configuration loaders (RUBRIC_ERROR_STRATEGY, RUBRIC_RESUME_MODE,
// RUBRIC_SNAPSHOT_DSN, RUBRIC_PIPELINE_TIMEOUT_SECONDS).
func FromEnv() *EngineConfig {
	c := DefaultEngineConfig()
	if v := os.Getenv("RUBRIC_ERROR_STRATEGY"); v != "" {
		c.ErrorStrategy = v
	}
	if v := os.Getenv("RUBRIC_RESUME_MODE"); v != "" {
		c.ResumeMode = v
	}
	if v := os.Getenv("RUBRIC_SNAPSHOT_DSN"); v != "" {
		c.SnapshotDSN = v
	}
	if v, err := strconv.Atoi(os.Getenv("RUBRIC_PIPELINE_TIMEOUT_SECONDS")); err == nil && v > 0 {
		c.PipelineTimeoutSeconds = v
	}
	return c
}
