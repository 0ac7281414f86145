package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeeves-cluster-organization/rubric-engine/coreengine/rubric"
)

func TestClassify_Table(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want rubric.ErrCode
	}{
		{"cancelled", context.Canceled, rubric.ErrCancelled},
		{"timeout deadline", context.DeadlineExceeded, rubric.ErrTimeout},
		{"timeout message", errors.New("upstream timeout after 30s"), rubric.ErrTimeout},
		{"rate limit", errors.New("429 rate limit exceeded"), rubric.ErrRateLimit},
		{"network", errors.New("dial tcp: ECONNREFUSED"), rubric.ErrNetwork},
		{"service unavailable", errors.New("503 service unavailable"), rubric.ErrServiceUnavailable},
		{"auth", errors.New("401 unauthorized: invalid api key"), rubric.ErrAuthentication},
		{"content filter", errors.New("response blocked by safety policy"), rubric.ErrContentFilter},
		{"schema", errors.New("failed to parse response: schema validation error"), rubric.ErrSchemaValidation},
		{"unknown", errors.New("something weird happened"), rubric.ErrUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempt := 2
			got := Classify(tt.err, rubric.StageScreening, &attempt)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Code)
			assert.Equal(t, rubric.StageScreening, got.Stage)
			assert.Equal(t, tt.want.Recoverable(), got.Recoverable)
			assert.Equal(t, &attempt, got.Attempt)
		})
	}
}

func TestClassify_PreservesExistingExecutorError(t *testing.T) {
	original := &rubric.ExecutorError{Code: rubric.ErrRateLimit, Message: "slow down", Stage: rubric.StageVerdict, Recoverable: true}
	attempt := 3
	got := Classify(original, rubric.StageSynthesis, &attempt)

	assert.Equal(t, rubric.ErrRateLimit, got.Code)
	assert.Equal(t, rubric.StageSynthesis, got.Stage, "stage is rewritten to the caller's current stage")
	assert.Equal(t, &attempt, got.Attempt)
}

func TestClassify_NeverNil(t *testing.T) {
	got := Classify(errors.New("x"), rubric.StageDimensions, nil)
	assert.NotNil(t, got)
}

func TestExecutorError_ErrorsIsMatchesByCode(t *testing.T) {
	err := Classify(errors.New("429 rate limit"), rubric.StageScreening, nil)
	assert.True(t, errors.Is(err, &rubric.ExecutorError{Code: rubric.ErrRateLimit}))
	assert.False(t, errors.Is(err, &rubric.ExecutorError{Code: rubric.ErrNetwork}))
}
