package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/jeeves-cluster-organization/rubric-engine/coreengine/runstate"
)

// Logger is the minimal logging surface the sqlite adapter needs; declared
// locally rather than imported from a shared logging package, matching the
// teacher's per-package Logger interface idiom.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// SQLiteAdapter persists snapshots through the pure-Go modernc.org/sqlite
// driver. All writes are serialized through a single connection, which
// avoids SQLITE_BUSY without any external locking.
type SQLiteAdapter struct {
	db     *sql.DB
	logger Logger
}

var _ Adapter = (*SQLiteAdapter)(nil)

// SQLiteOption configures a SQLiteAdapter at construction time.
type SQLiteOption func(*SQLiteAdapter)

func WithLogger(l Logger) SQLiteOption {
	return func(a *SQLiteAdapter) { a.logger = l }
}

// NewSQLiteAdapter opens dsn (a file path or "file::memory:?cache=shared")
// and returns an adapter. Call Init before first use.
func NewSQLiteAdapter(dsn string, opts ...SQLiteOption) (*SQLiteAdapter, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	a := &SQLiteAdapter{db: db, logger: noopLogger{}}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Init creates the snapshots table if it does not already exist. It is
// idempotent and safe to call on every startup.
func (a *SQLiteAdapter) Init(ctx context.Context) error {
	_, err := a.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS snapshots (
			run_id     TEXT PRIMARY KEY,
			version    TEXT NOT NULL,
			data       TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("snapshot: init schema: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (a *SQLiteAdapter) Close() error {
	return a.db.Close()
}

func (a *SQLiteAdapter) Save(ctx context.Context, snap runstate.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("snapshot: marshal: %w", err)
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("snapshot: begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (run_id, version, data, updated_at)
		VALUES (?, ?, ?, unixepoch())
		ON CONFLICT(run_id) DO UPDATE SET
			version = excluded.version,
			data = excluded.data,
			updated_at = excluded.updated_at
	`, snap.RunId, snap.Version, string(raw))
	if err != nil {
		return fmt.Errorf("snapshot: upsert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("snapshot: commit: %w", err)
	}
	a.logger.Debug("snapshot saved", "runId", snap.RunId, "stage", snap.Stage)
	return nil
}

func (a *SQLiteAdapter) Load(ctx context.Context, runId string) (runstate.Snapshot, error) {
	var raw sql.NullString
	err := a.db.QueryRowContext(ctx, `SELECT data FROM snapshots WHERE run_id = ?`, runId).Scan(&raw)
	if err == sql.ErrNoRows {
		return runstate.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return runstate.Snapshot{}, fmt.Errorf("snapshot: query: %w", err)
	}
	if !raw.Valid {
		return runstate.Snapshot{}, ErrNotFound
	}

	var snap runstate.Snapshot
	if err := json.Unmarshal([]byte(raw.String), &snap); err != nil {
		return runstate.Snapshot{}, fmt.Errorf("snapshot: unmarshal: %w", err)
	}
	return snap, nil
}

func (a *SQLiteAdapter) Delete(ctx context.Context, runId string) error {
	_, err := a.db.ExecContext(ctx, `DELETE FROM snapshots WHERE run_id = ?`, runId)
	if err != nil {
		return fmt.Errorf("snapshot: delete: %w", err)
	}
	return nil
}
