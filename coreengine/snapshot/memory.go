package snapshot

import (
	"context"
	"sync"

	"github.com/jeeves-cluster-organization/rubric-engine/coreengine/runstate"
)

// MemoryAdapter is the always-available default: an in-memory map guarded
// by a mutex. It is lost on process restart, which is why the Run Manager
// also supports the stateless-restart resume strategy when no durable
// adapter is configured.
type MemoryAdapter struct {
	mu   sync.RWMutex
	data map[string]runstate.Snapshot
}

var _ Adapter = (*MemoryAdapter)(nil)

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{data: make(map[string]runstate.Snapshot)}
}

func (m *MemoryAdapter) Save(ctx context.Context, snap runstate.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[snap.RunId] = snap
	return nil
}

func (m *MemoryAdapter) Load(ctx context.Context, runId string) (runstate.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.data[runId]
	if !ok {
		return runstate.Snapshot{}, ErrNotFound
	}
	return snap, nil
}

func (m *MemoryAdapter) Delete(ctx context.Context, runId string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, runId)
	return nil
}
