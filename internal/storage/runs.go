package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"aggregator/internal/etl"
)

// DefaultRunsLimit caps ListRuns when no limit is given.
const DefaultRunsLimit = 50

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// RunStore implements persistence for pipeline run history.
type RunStore struct {
	db *sqlx.DB
}

// NewRunStore creates a new RunStore.
func NewRunStore(db *sqlx.DB) *RunStore {
	return &RunStore{db: db}
}

// runRow is the database shape of an etl.RunLog. Times are UTC text in timeLayout.
type runRow struct {
	ID          string `db:"id"`
	StartedAt   string `db:"started_at"`
	FinishedAt  string `db:"finished_at"`
	Status      string `db:"status"`
	RowsRead    int    `db:"rows_read"`
	RowsWritten int    `db:"rows_written"`
	Truncated   int    `db:"truncated"`
	Sources     string `db:"sources_json"`
	Error       string `db:"error"`
}

func (s *RunStore) EnsureSchema(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			status TEXT NOT NULL,
			rows_read INTEGER NOT NULL DEFAULT 0,
			rows_written INTEGER NOT NULL DEFAULT 0,
			truncated INTEGER NOT NULL DEFAULT 0,
			sources_json TEXT NOT NULL DEFAULT '[]',
			error TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,
	}
	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("create runs table: %w", err)
		}
	}
	return nil
}

// ── Run Logs ───────────────────────────────────────────────

func (s *RunStore) RecordRun(ctx context.Context, run *etl.RunLog) error {
	sources, err := json.Marshal(run.Sources)
	if err != nil {
		return fmt.Errorf("encode run sources: %w", err)
	}
	row := runRow{
		ID:          run.ID,
		StartedAt:   run.StartedAt.UTC().Format(timeLayout),
		FinishedAt:  run.FinishedAt.UTC().Format(timeLayout),
		Status:      run.Status,
		RowsRead:    run.RowsRead,
		RowsWritten: run.RowsWritten,
		Truncated:   run.Truncated,
		Sources:     string(sources),
		Error:       run.Error,
	}
	_, err = s.db.NamedExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, status, rows_read, rows_written, truncated, sources_json, error)
		 VALUES (:id, :started_at, :finished_at, :status, :rows_read, :rows_written, :truncated, :sources_json, :error)`,
		row,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]etl.RunLog, error) {
	if limit <= 0 {
		limit = DefaultRunsLimit
	}
	var rows []runRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT id, started_at, finished_at, status, rows_read, rows_written, truncated, sources_json, error
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	logs := make([]etl.RunLog, 0, len(rows))
	for _, r := range rows {
		l := etl.RunLog{
			ID:          r.ID,
			Status:      r.Status,
			RowsRead:    r.RowsRead,
			RowsWritten: r.RowsWritten,
			Truncated:   r.Truncated,
			Error:       r.Error,
		}
		var err error
		if l.StartedAt, err = time.Parse(timeLayout, r.StartedAt); err != nil {
			return nil, fmt.Errorf("run %s: started_at: %w", r.ID, err)
		}
		if l.FinishedAt, err = time.Parse(timeLayout, r.FinishedAt); err != nil {
			return nil, fmt.Errorf("run %s: finished_at: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(r.Sources), &l.Sources); err != nil {
			return nil, fmt.Errorf("run %s: sources: %w", r.ID, err)
		}
		logs = append(logs, l)
	}
	return logs, nil
}
