package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"aggregator/internal/etl"
	"aggregator/internal/logger"
)

// ─────────────────────────────────────────────────────────────
// Pipeline Service: one-shot and triggered pipeline runs
// ─────────────────────────────────────────────────────────────

var (
	// ErrRunInProgress is returned when a run is requested while another is active.
	ErrRunInProgress = errors.New("a pipeline run is already in progress")

	// ErrServiceStopped is returned for any run or watch requested after Stop.
	ErrServiceStopped = errors.New("pipeline service stopped")
)

const (
	defaultRunTimeout = 5 * time.Minute
	defaultDebounce   = 500 * time.Millisecond
)

// Runner executes one pipeline pass. *etl.Engine satisfies it.
type Runner interface {
	Run(ctx context.Context) (*etl.RunResult, error)
}

// WatchOptions selects the triggers for Watch. At least one must be set.
type WatchOptions struct {
	Schedule string        // cron expression, standard 5-field form
	Files    []string      // input files whose writes trigger a run
	Debounce time.Duration // quiet period after the last write
}

// PipelineService runs the pipeline on demand, on a schedule or on file change,
// never more than one run at a time.
type PipelineService struct {
	runner     Runner
	emitter    EventEmitter
	log        logger.Logger
	guard      runGuard
	RunTimeout time.Duration

	mu          sync.Mutex
	stopped     bool
	watchCancel context.CancelFunc
	watcher     *fsnotify.Watcher
	cronSched   *cron.Cron
}

// NewPipelineService creates a PipelineService ready for use.
func NewPipelineService(runner Runner, emitter EventEmitter, log logger.Logger) *PipelineService {
	if log == nil {
		log = logger.NewNop()
	}
	if emitter == nil {
		emitter = LogEmitter{Log: log}
	}
	return &PipelineService{
		runner:     runner,
		emitter:    emitter,
		log:        log,
		RunTimeout: defaultRunTimeout,
	}
}

// ── Run ────────────────────────────────────────────────────

// RunOnce executes a single pass synchronously. It returns ErrRunInProgress
// without running when another pass is active, and ErrServiceStopped after Stop.
func (s *PipelineService) RunOnce(ctx context.Context) (*etl.RunResult, error) {
	if err := s.guard.enter(); err != nil {
		return nil, err
	}
	defer s.guard.leave()

	if s.runner == nil {
		return nil, errors.New("pipeline service has no runner")
	}

	runCtx, cancel := context.WithTimeout(ctx, s.RunTimeout)
	defer cancel()

	result, err := s.runner.Run(runCtx)
	if result != nil {
		s.emitter.Emit(ctx, EventRunCompleted, map[string]any{
			"runId":       result.RunID,
			"status":      result.Status,
			"rowsWritten": result.RowsWritten,
			"matches":     len(result.Matches),
		})
	}
	return result, err
}

// trigger runs the pipeline from a watcher or scheduler and only logs the outcome.
func (s *PipelineService) trigger(ctx context.Context, reason string) {
	log := s.log.With(logger.String("trigger", reason))
	log.Info("pipeline triggered")

	_, err := s.RunOnce(ctx)
	switch {
	case errors.Is(err, ErrRunInProgress):
		log.Info("pipeline run skipped, previous run still active")
		s.emitter.Emit(ctx, EventRunSkipped, reason)
	case errors.Is(err, ErrServiceStopped):
		log.Debug("pipeline run refused, service stopped")
	case err != nil:
		log.Error("pipeline run failed", logger.Error(err))
	}
}

// Running reports whether a pass is active.
func (s *PipelineService) Running() bool {
	return s.guard.busy()
}

// ── Watchers (cron + file_watch) ──────────────────────────

// Watch tears down any current watcher/cron and starts new ones from opts.
// It returns once the triggers are armed; runs happen in the background until
// Stop is called or ctx is cancelled.
func (s *PipelineService) Watch(ctx context.Context, opts WatchOptions) error {
	if opts.Schedule == "" && len(opts.Files) == 0 {
		return errors.New("watch: no schedule and no files configured")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrServiceStopped
	}
	s.stopWatchersLocked()

	watchCtx, cancel := context.WithCancel(ctx)

	// ── Cron ──
	if opts.Schedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(opts.Schedule, func() { s.trigger(watchCtx, "schedule") }); err != nil {
			cancel()
			return fmt.Errorf("watch: invalid schedule %q: %w", opts.Schedule, err)
		}
		c.Start()
		s.cronSched = c
		s.log.Info("pipeline schedule armed", logger.String("schedule", opts.Schedule))
	}

	// ── File watcher ──
	if len(opts.Files) > 0 {
		watcher, paths, err := s.newFileWatcher(opts.Files)
		if err != nil {
			cancel()
			if s.cronSched != nil {
				s.cronSched.Stop()
				s.cronSched = nil
			}
			return err
		}
		s.watcher = watcher
		go s.watchLoop(watchCtx, watcher, paths, opts.Debounce)
		s.log.Info("pipeline file watch armed", logger.Int("files", len(paths)))
	}

	s.watchCancel = cancel
	return nil
}

func (s *PipelineService) newFileWatcher(files []string) (*fsnotify.Watcher, map[string]bool, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("watch: create watcher: %w", err)
	}

	paths := make(map[string]bool)
	watchedDirs := make(map[string]bool)
	for _, f := range files {
		absPath, err := filepath.Abs(f)
		if err != nil {
			s.log.Warn("watch: bad path", logger.String("path", f), logger.Error(err))
			continue
		}
		paths[absPath] = true

		// Watch the directory so editors that replace the file are still seen.
		dir := filepath.Dir(absPath)
		if watchedDirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			s.log.Warn("watch: cannot watch directory", logger.String("dir", dir), logger.Error(err))
			continue
		}
		watchedDirs[dir] = true
	}

	if len(watchedDirs) == 0 {
		watcher.Close()
		return nil, nil, errors.New("watch: none of the configured files can be watched")
	}
	return watcher, paths, nil
}

func (s *PipelineService) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, paths map[string]bool, debounce time.Duration) {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			absPath, _ := filepath.Abs(event.Name)
			if !paths[absPath] {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			changed := absPath
			timer = time.AfterFunc(debounce, func() {
				if ctx.Err() != nil {
					return
				}
				s.log.Info("input changed", logger.String("path", changed))
				s.trigger(ctx, "file")
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.log.Warn("watch: watcher error", logger.Error(err))
		}
	}
}

// WaitRunning blocks until the active run finishes or ctx is cancelled.
// Used for graceful shutdown after Stop.
func (s *PipelineService) WaitRunning(ctx context.Context) {
	s.guard.wait(ctx)
}

// Stop tears down all watchers and schedulers and refuses later runs. A run
// already in progress finishes; WaitRunning waits for it. Safe to call repeatedly.
func (s *PipelineService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.guard.close()
	s.stopWatchersLocked()
}

func (s *PipelineService) stopWatchersLocked() {
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
	if s.cronSched != nil {
		s.cronSched.Stop()
		s.cronSched = nil
	}
}
