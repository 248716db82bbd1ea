package logger_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"aggregator/internal/logger"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{in: "", want: zapcore.InfoLevel},
		{in: "debug", want: zapcore.DebugLevel},
		{in: "INFO", want: zapcore.InfoLevel},
		{in: "warning", want: zapcore.WarnLevel},
		{in: "error", want: zapcore.ErrorLevel},
		{in: "verbose", wantErr: true},
	}
	for _, tt := range tests {
		got, err := logger.ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestNew_WritesJSONLinesToFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "aggregation.log")
	l, err := logger.New(logger.Config{Level: "info", OutputPaths: []string{path}})
	require.NoError(t, err)

	l.Info("schema ready", logger.String("table", "records"))
	l.Debug("filtered out")
	l.Error("insert failed", logger.Error(errors.New("disk full")))
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"msg":"schema ready"`)
	assert.Contains(t, lines[0], `"ts":`)
	assert.Contains(t, lines[1], `"level":"error"`)
	assert.Contains(t, lines[1], `"error":"disk full"`)
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	_, err := logger.New(logger.Config{Level: "loud"})
	assert.Error(t, err)
}

func TestFromZap_WithCarriesFields(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	l := logger.FromZap(zap.New(core)).With(logger.String("source", "csv"))

	l.Warn("row skipped", logger.Int("line", 4))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "csv", fields["source"])
	assert.EqualValues(t, 4, fields["line"])
}

func TestNewNop(t *testing.T) {
	t.Parallel()

	l := logger.NewNop()
	l.Info("ignored")
	assert.Same(t, l, l.With(logger.String("k", "v")))
	assert.NoError(t, l.Sync())
}
