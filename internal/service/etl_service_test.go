package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aggregator/internal/etl"
	"aggregator/internal/logger"
	"aggregator/internal/service"
)

// ─────────────────────────────────────────────────────────────
// PipelineService unit tests, driven by a fake runner
// ─────────────────────────────────────────────────────────────

type fakeRunner struct {
	calls   atomic.Int32
	release chan struct{} // when non-nil, Run blocks until closed
	started chan struct{}
	err     error
}

func (f *fakeRunner) Run(ctx context.Context) (*etl.RunResult, error) {
	f.calls.Add(1)
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
		}
	}
	status := etl.StatusSuccess
	if f.err != nil {
		status = etl.StatusError
	}
	return &etl.RunResult{RunID: "run-1", State: etl.StateDone, Status: status}, f.err
}

func newService(r service.Runner) (*service.PipelineService, *service.MockEmitter) {
	emitter := &service.MockEmitter{}
	return service.NewPipelineService(r, emitter, logger.NewNop()), emitter
}

func TestPipelineService_RunOnceEmitsCompletion(t *testing.T) {
	runner := &fakeRunner{}
	svc, emitter := newService(runner)

	result, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, etl.StatusSuccess, result.Status)
	assert.EqualValues(t, 1, runner.calls.Load())

	events := emitter.Snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, service.EventRunCompleted, events[0].Event)
}

func TestPipelineService_RunOncePropagatesError(t *testing.T) {
	runner := &fakeRunner{err: etl.ErrStorageFailure}
	svc, emitter := newService(runner)

	result, err := svc.RunOnce(context.Background())
	require.ErrorIs(t, err, etl.ErrStorageFailure)
	require.NotNil(t, result)
	assert.Equal(t, etl.StatusError, result.Status)
	assert.Len(t, emitter.Snapshot(), 1, "a failed run still reports completion")
}

func TestPipelineService_RejectsConcurrentRun(t *testing.T) {
	runner := &fakeRunner{release: make(chan struct{}), started: make(chan struct{}, 1)}
	svc, _ := newService(runner)

	done := make(chan error, 1)
	go func() {
		_, err := svc.RunOnce(context.Background())
		done <- err
	}()

	select {
	case <-runner.started:
	case <-time.After(time.Second):
		t.Fatal("first run never started")
	}
	assert.True(t, svc.Running())

	_, err := svc.RunOnce(context.Background())
	require.ErrorIs(t, err, service.ErrRunInProgress)

	close(runner.release)
	require.NoError(t, <-done)
	assert.EqualValues(t, 1, runner.calls.Load())
	assert.False(t, svc.Running())
}

func TestPipelineService_NilRunner(t *testing.T) {
	svc := service.NewPipelineService(nil, nil, nil)
	_, err := svc.RunOnce(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, service.ErrRunInProgress))
}

func TestPipelineService_WaitRunning_Immediate(t *testing.T) {
	svc, _ := newService(&fakeRunner{})

	done := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		svc.WaitRunning(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("WaitRunning hung with no running pass")
	}
}

func TestPipelineService_Stop_Idempotent(t *testing.T) {
	svc, _ := newService(&fakeRunner{})
	svc.Stop()
	svc.Stop()
}

func TestPipelineService_WatchValidation(t *testing.T) {
	svc, _ := newService(&fakeRunner{})
	ctx := context.Background()

	require.Error(t, svc.Watch(ctx, service.WatchOptions{}))
	require.Error(t, svc.Watch(ctx, service.WatchOptions{Schedule: "not a cron"}))
	require.Error(t, svc.Watch(ctx, service.WatchOptions{
		Files: []string{filepath.Join(t.TempDir(), "missing-dir", "in.csv")},
	}))

	require.NoError(t, svc.Watch(ctx, service.WatchOptions{Schedule: "0 0 1 1 *"}))
	svc.Stop()
}

func TestPipelineService_WatchFileTriggersRun(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "people.csv")
	require.NoError(t, os.WriteFile(input, []byte("a,1\n"), 0o644))

	runner := &fakeRunner{}
	svc, emitter := newService(runner)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, svc.Watch(ctx, service.WatchOptions{
		Files:    []string{input},
		Debounce: 150 * time.Millisecond,
	}))
	defer svc.Stop()

	// Unwatched files in the same directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644))
	time.Sleep(100 * time.Millisecond)
	assert.EqualValues(t, 0, runner.calls.Load())

	// A burst of writes collapses into one run.
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(input, []byte("a,1\nb,2\n"), 0o644))
	}

	require.Eventually(t, func() bool { return runner.calls.Load() >= 1 }, 3*time.Second, 10*time.Millisecond)
	time.Sleep(400 * time.Millisecond)
	assert.EqualValues(t, 1, runner.calls.Load())
	assert.NotEmpty(t, emitter.Snapshot())
}
