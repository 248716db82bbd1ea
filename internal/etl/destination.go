package etl

import (
	"context"
	"time"
)

// ── Destination ────────────────────────────────────────────
// The Store owns the persistent relation. The engine only talks to it
// through this interface so extractors and storage stay independent.

// Store persists normalized rows and answers single-column lookups.
type Store interface {
	// Columns is the fixed number of non-key column slots (N).
	Columns() int
	// EnsureSchema creates the relation if absent. Idempotent.
	EnsureSchema(ctx context.Context) error
	// InsertBatch commits all rows or none and returns the committed count.
	InsertBatch(ctx context.Context, rows []Row) (int, error)
	// Search returns rows where column equals value. column must be a schema column.
	Search(ctx context.Context, column, value string) ([]StoredRow, error)
}

// RunRecorder keeps a history of pipeline runs.
type RunRecorder interface {
	EnsureSchema(ctx context.Context) error
	RecordRun(ctx context.Context, run *RunLog) error
}

// Run status values.
const (
	StatusSuccess = "success" // every source and every store call succeeded
	StatusPartial = "partial" // at least one source failed, load and query succeeded
	StatusError   = "error"   // schema, insert or search failed
)

// SourceOutcome is the per-source part of a run report.
type SourceOutcome struct {
	Source  SourceKind `json:"source"`
	Input   string     `json:"input"`
	Records int        `json:"records"`
	Error   string     `json:"error,omitempty"`
}

// RunLog is a historical record of one pipeline run.
type RunLog struct {
	ID          string          `json:"id"`
	StartedAt   time.Time       `json:"startedAt"`
	FinishedAt  time.Time       `json:"finishedAt"`
	Status      string          `json:"status"`
	RowsRead    int             `json:"rowsRead"`
	RowsWritten int             `json:"rowsWritten"`
	Truncated   int             `json:"truncated"`
	Sources     []SourceOutcome `json:"sources"`
	Error       string          `json:"error,omitempty"`
}
