package sources_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"aggregator/internal/etl"
	"aggregator/internal/etl/sources"
	"aggregator/internal/logger"
)

func observed() (logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return logger.FromZap(zap.New(core)), logs
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func fieldsOf(recs []etl.SourceRecord) [][]string {
	out := make([][]string, len(recs))
	for i, r := range recs {
		out[i] = r.Fields
	}
	return out
}

func TestNewRegistry_AllKindsInOrder(t *testing.T) {
	reg, err := sources.NewRegistry(sources.Options{}, logger.NewNop())
	require.NoError(t, err)

	var kinds []etl.SourceKind
	for _, spec := range reg.Specs() {
		kinds = append(kinds, spec.Kind)
		assert.NotEmpty(t, spec.Label)
		assert.NotEmpty(t, spec.ConfigFields)
		assert.True(t, spec.ConfigFields[0].Required, "%s: first key is the input", spec.Kind)
	}
	assert.Equal(t, etl.AllKinds, kinds)
}

func TestExtractors_EmptyInput(t *testing.T) {
	reg, err := sources.NewRegistry(sources.Options{}, logger.NewNop())
	require.NoError(t, err)

	for _, ex := range reg.Ordered() {
		t.Run(string(ex.Spec().Kind), func(t *testing.T) {
			var recs []etl.SourceRecord
			require.NotPanics(t, func() {
				recs, err = ex.Extract(context.Background(), "")
			})
			assert.Empty(t, recs)
			assert.ErrorIs(t, err, etl.ErrSourceUnavailable)
		})
	}
}

func TestExtractors_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	for _, ex := range []etl.Extractor{
		sources.NewCSVFile(sources.CSVOptions{}, logger.NewNop()),
		sources.NewXMLFile(sources.XMLOptions{}, logger.NewNop()),
		sources.NewJSONFile(sources.JSONOptions{}, logger.NewNop()),
	} {
		recs, err := ex.Extract(context.Background(), missing)
		assert.Empty(t, recs, ex.Spec().Kind)
		assert.ErrorIs(t, err, etl.ErrSourceUnavailable, ex.Spec().Kind)
	}
}
