package service

import (
	"context"
	"sync"

	"aggregator/internal/logger"
)

// ─────────────────────────────────────────────────────────────
// EventEmitter decouples the service from whoever observes runs
// ─────────────────────────────────────────────────────────────

// Event names emitted by PipelineService.
const (
	EventRunCompleted = "run:completed"
	EventRunSkipped   = "run:skipped"
)

// EventEmitter receives lifecycle events. The CLI logs them; tests record them.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// LogEmitter writes every event as an info log entry.
type LogEmitter struct {
	Log logger.Logger
}

func (e LogEmitter) Emit(_ context.Context, event string, data any) {
	if e.Log == nil {
		return
	}
	e.Log.Info("event", logger.String("event", event), logger.Any("data", data))
}

// MockEmitter is a test-friendly EventEmitter that records all calls.
type MockEmitter struct {
	mu     sync.Mutex
	Events []EmittedEvent
}

// EmittedEvent holds a single recorded emission for test assertions.
type EmittedEvent struct {
	Event string
	Data  any
}

func (m *MockEmitter) Emit(_ context.Context, event string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, EmittedEvent{Event: event, Data: data})
}

// Snapshot returns a copy of the recorded events.
func (m *MockEmitter) Snapshot() []EmittedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EmittedEvent, len(m.Events))
	copy(out, m.Events)
	return out
}
