// Package snapshot implements the pluggable Snapshot Adapter (§4.8): if
// configured, the Run Manager persists RunState each time an orchestration
// leg ends (on suspension, completion or failure) and reloads it on
// resumePipeline; it does not persist after each individual stage within a
// leg. If no adapter is wired,
// the Run Manager falls back to the stateless-restart strategy.
package snapshot

import (
	"context"
	"errors"

	"github.com/jeeves-cluster-organization/rubric-engine/coreengine/runstate"
)

// ErrNotFound is returned by Load when runId has no persisted snapshot.
var ErrNotFound = errors.New("snapshot: not found")

// Adapter serializes/deserializes RunState for cross-invocation resume.
type Adapter interface {
	Save(ctx context.Context, snap runstate.Snapshot) error
	Load(ctx context.Context, runId string) (runstate.Snapshot, error)
	Delete(ctx context.Context, runId string) error
}
