package etl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"aggregator/internal/logger"
)

// ── Engine ─────────────────────────────────────────────────
// Orchestrates: extract every source → normalize → one batch insert → one search.
// States: INIT (ensure schema) → RUNNING (extract + load) → DONE (query).

// State is the engine's position in a run.
type State string

const (
	StateInit    State = "init"
	StateRunning State = "running"
	StateDone    State = "done"
)

// Query is the single lookup issued at the end of a run.
type Query struct {
	Column string `json:"column"`
	Value  string `json:"value"`
}

// RunResult is the outcome of one pipeline pass.
type RunResult struct {
	RunID       string          `json:"runId"`
	State       State           `json:"state"`
	Status      string          `json:"status"`
	Sources     []SourceOutcome `json:"sources"`
	RowsRead    int             `json:"rowsRead"`
	RowsWritten int             `json:"rowsWritten"`
	Truncated   int             `json:"truncated"`
	Query       Query           `json:"query"`
	Matches     []StoredRow     `json:"matches"`
	Duration    time.Duration   `json:"duration"`
	Error       string          `json:"error,omitempty"`
}

// Engine runs the pipeline against a registry of extractors and a store.
type Engine struct {
	Extractors *Registry
	Inputs     Inputs
	Store      Store
	Runs       RunRecorder // optional run history
	Query      Query
	Log        logger.Logger
}

// Run executes one best-effort pass. The result is never nil. The error is
// non-nil only for schema, storage or search failures; extractor failures are
// reported per source in the result.
func (e *Engine) Run(ctx context.Context) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{
		RunID:   uuid.New().String(),
		State:   StateInit,
		Query:   e.Query,
		Sources: []SourceOutcome{},
		Matches: []StoredRow{},
	}
	log := e.logOrNop().With(logger.String("run_id", result.RunID))

	if e.Store == nil {
		err := fmt.Errorf("%w: no store configured", ErrSchemaViolation)
		return e.finish(ctx, log, result, start, false, err), err
	}

	// 1. INIT: without a schema there is nothing useful to do.
	if err := e.Store.EnsureSchema(ctx); err != nil {
		log.Error("ensure schema failed", logger.Error(err))
		result.State = StateDone
		return e.finish(ctx, log, result, start, false, err), err
	}
	log.Info("schema ready", logger.Int("columns", e.Store.Columns()))

	recordHistory := e.Runs != nil
	if recordHistory {
		if err := e.Runs.EnsureSchema(ctx); err != nil {
			log.Warn("run history unavailable", logger.Error(err))
			recordHistory = false
		}
	}

	// 2. RUNNING: every extractor once, failures isolated per source.
	result.State = StateRunning
	var records []SourceRecord
	for _, ex := range e.registry().Ordered() {
		recs, outcome := e.extract(ctx, log, ex)
		result.Sources = append(result.Sources, outcome)
		records = append(records, recs...)
	}
	result.RowsRead = len(records)

	rows, truncated := NormalizeAll(records, e.Store.Columns(), log)
	result.Truncated = truncated

	var errs []error
	written, err := e.Store.InsertBatch(ctx, rows)
	if err != nil {
		log.Error("insert batch failed", logger.Int("rows", len(rows)), logger.Error(err))
		errs = append(errs, err)
	} else {
		log.Info("batch inserted", logger.Int("rows", written), logger.Int("truncated", truncated))
	}
	result.RowsWritten = written

	// 3. DONE: one illustrative lookup.
	result.State = StateDone
	matches, err := e.Store.Search(ctx, e.Query.Column, e.Query.Value)
	if err != nil {
		log.Error("search failed",
			logger.String("column", e.Query.Column),
			logger.Error(err),
		)
		errs = append(errs, err)
	} else {
		result.Matches = matches
		log.Info("search complete",
			logger.String("column", e.Query.Column),
			logger.String("value", e.Query.Value),
			logger.Int("matches", len(matches)),
		)
	}

	runErr := errors.Join(errs...)
	return e.finish(ctx, log, result, start, recordHistory, runErr), runErr
}

// extract runs one extractor inside a recover boundary and keeps only
// records tagged with the extractor's own kind.
func (e *Engine) extract(ctx context.Context, log logger.Logger, ex Extractor) ([]SourceRecord, SourceOutcome) {
	kind := ex.Spec().Kind
	input := e.Inputs[kind]
	outcome := SourceOutcome{Source: kind, Input: input}

	recs, err := safeExtract(ctx, ex, input)

	kept := make([]SourceRecord, 0, len(recs))
	for _, r := range recs {
		if r.Source != kind {
			log.Warn("dropping record with foreign source tag",
				logger.String("source", string(kind)),
				logger.String("tag", string(r.Source)),
			)
			continue
		}
		kept = append(kept, r)
	}

	outcome.Records = len(kept)
	if err != nil {
		outcome.Error = err.Error()
		log.Warn("source contributed partial or no records",
			logger.String("source", string(kind)),
			logger.Int("records", len(kept)),
		)
	} else {
		log.Info("source extracted",
			logger.String("source", string(kind)),
			logger.Int("records", len(kept)),
		)
	}
	return kept, outcome
}

func safeExtract(ctx context.Context, ex Extractor, input string) (recs []SourceRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			recs = nil
			err = fmt.Errorf("%w: extractor panicked: %v", ErrSourceUnavailable, r)
		}
	}()
	return ex.Extract(ctx, input)
}

func (e *Engine) finish(
	ctx context.Context,
	log logger.Logger,
	result *RunResult,
	start time.Time,
	recordHistory bool,
	runErr error,
) *RunResult {
	result.Duration = time.Since(start)
	result.Status = StatusSuccess
	for _, s := range result.Sources {
		if s.Error != "" {
			result.Status = StatusPartial
			break
		}
	}
	if runErr != nil {
		result.Status = StatusError
		result.Error = runErr.Error()
	}

	if recordHistory {
		run := &RunLog{
			ID:          result.RunID,
			StartedAt:   start,
			FinishedAt:  start.Add(result.Duration),
			Status:      result.Status,
			RowsRead:    result.RowsRead,
			RowsWritten: result.RowsWritten,
			Truncated:   result.Truncated,
			Sources:     result.Sources,
			Error:       result.Error,
		}
		if err := e.Runs.RecordRun(ctx, run); err != nil {
			log.Warn("record run failed", logger.Error(err))
		}
	}

	log.Info("run finished",
		logger.String("status", result.Status),
		logger.Duration("duration", result.Duration),
	)
	return result
}

func (e *Engine) registry() *Registry {
	if e.Extractors == nil {
		return &Registry{}
	}
	return e.Extractors
}

func (e *Engine) logOrNop() logger.Logger {
	if e.Log == nil {
		return logger.NewNop()
	}
	return e.Log
}
