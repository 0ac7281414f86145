package snapshot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeeves-cluster-organization/rubric-engine/coreengine/rubric"
)

func newTestSQLiteAdapter(t *testing.T) *SQLiteAdapter {
	t.Helper()
	a, err := NewSQLiteAdapter("file::memory:?cache=shared")
	require.NoError(t, err)
	require.NoError(t, a.Init(context.Background()))
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestSQLiteAdapter_InitIsIdempotent(t *testing.T) {
	a := newTestSQLiteAdapter(t)
	assert.NoError(t, a.Init(context.Background()))
}

func TestSQLiteAdapter_SaveLoadRoundTrip(t *testing.T) {
	a := newTestSQLiteAdapter(t)
	ctx := context.Background()
	snap := testSnapshot("run-sqlite-1")

	require.NoError(t, a.Save(ctx, snap))

	loaded, err := a.Load(ctx, "run-sqlite-1")
	require.NoError(t, err)
	assert.Equal(t, snap.RunId, loaded.RunId)
	assert.Equal(t, snap.Stage, loaded.Stage)
	assert.Equal(t, snap.Status, loaded.Status)
	assert.True(t, snap.StartedAt.Equal(loaded.StartedAt))
}

func TestSQLiteAdapter_LoadMissingReturnsErrNotFound(t *testing.T) {
	a := newTestSQLiteAdapter(t)
	_, err := a.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteAdapter_SaveUpsertsOnConflict(t *testing.T) {
	a := newTestSQLiteAdapter(t)
	ctx := context.Background()

	snap := testSnapshot("run-sqlite-2")
	require.NoError(t, a.Save(ctx, snap))

	snap.Stage = rubric.StageVerdict
	snap.Status = rubric.StatusCompleted
	require.NoError(t, a.Save(ctx, snap))

	loaded, err := a.Load(ctx, "run-sqlite-2")
	require.NoError(t, err)
	assert.Equal(t, rubric.StageVerdict, loaded.Stage)
	assert.Equal(t, rubric.StatusCompleted, loaded.Status)
}

func TestSQLiteAdapter_Delete(t *testing.T) {
	a := newTestSQLiteAdapter(t)
	ctx := context.Background()
	snap := testSnapshot("run-sqlite-3")
	require.NoError(t, a.Save(ctx, snap))

	require.NoError(t, a.Delete(ctx, "run-sqlite-3"))

	_, err := a.Load(ctx, "run-sqlite-3")
	assert.ErrorIs(t, err, ErrNotFound)
}
