package state

import (
	"io"
	"time"
)

// RunRecorder writes run history. Callers that only record runs depend on
// this rather than the SQLite implementation.
type RunRecorder interface {
	RecordStart(r *Run) error
	RecordFinish(id string, o Outcome, finishedAt time.Time) error
	RecordTask(runID string, t TaskRecord) error
}

// RunReader reads run history.
type RunReader interface {
	GetRun(id string) (*Run, error)
	ListRuns(limit int) ([]Run, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// HistoryStore is the full run history backend.
type HistoryStore interface {
	io.Closer
	Migrator
	RunRecorder
	RunReader
}

// Compile-time verification that DB implements all interfaces.
var (
	_ HistoryStore = (*DB)(nil)
	_ RunRecorder  = (*DB)(nil)
	_ RunReader    = (*DB)(nil)
)
