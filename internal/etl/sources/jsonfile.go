package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"aggregator/internal/etl"
	"aggregator/internal/logger"
)

// ── JSON File Source ────────────────────────────────────────
// Reads an array of objects from a local JSON file. One record per element,
// fields are the values of a fixed key list in order; a missing key is "".

// DefaultJSONKeys is used when no key list is configured.
var DefaultJSONKeys = []string{"id", "name", "value"}

// JSONOptions configures the JSON extractor.
type JSONOptions struct {
	DataPath string // dot-separated path to the array, empty when the root is the array
	Keys     []string
}

type jsonFileSource struct {
	opts JSONOptions
	log  logger.Logger
}

// NewJSONFile returns the JSON extractor.
func NewJSONFile(opts JSONOptions, log logger.Logger) etl.Extractor {
	if len(opts.Keys) == 0 {
		opts.Keys = DefaultJSONKeys
	}
	return &jsonFileSource{opts: opts, log: log.With(logger.String("source", string(etl.SourceJSON)))}
}

func (s *jsonFileSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Kind:  etl.SourceJSON,
		Label: "JSON File",
		Input: "file",
		ConfigFields: []etl.ConfigField{
			{Key: "sources.json.path", Required: true, Help: "Path to the JSON document"},
			{Key: "sources.json.data_path", Help: "Dot-separated path to the array (e.g. 'data.items'); empty if the root is an array"},
			{Key: "sources.json.keys", Default: strings.Join(DefaultJSONKeys, ","), Help: "Object keys, in column order"},
		},
	}
}

func (s *jsonFileSource) Extract(ctx context.Context, path string) ([]etl.SourceRecord, error) {
	log := s.log.With(logger.String("input", path))
	if path == "" {
		log.Warn("no json input configured")
		return nil, fmt.Errorf("%w: json path is empty", etl.ErrSourceUnavailable)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Error("read json failed", logger.Error(err))
		return nil, fmt.Errorf("%w: read json: %w", etl.ErrSourceUnavailable, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		log.Warn("json document is empty")
		return nil, nil
	}

	items, err := s.items(data)
	if err != nil {
		log.Error("parse json failed", logger.Error(err))
		return nil, err
	}

	records := make([]etl.SourceRecord, 0, len(items))
	skipped := 0
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			skipped++
			log.Warn("skipping non-object json element", logger.Int("index", i))
			continue
		}
		fields := make([]string, len(s.opts.Keys))
		for j, key := range s.opts.Keys {
			fields[j] = stringify(obj[key])
		}
		records = append(records, etl.NewSourceRecord(etl.SourceJSON, fields))
	}

	log.Info("json extracted", logger.Int("records", len(records)), logger.Int("skipped", skipped))
	return records, nil
}

// items decodes data and returns the target array. A lone object counts as
// a one-element array.
func (s *jsonFileSource) items(data []byte) ([]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: parse json: %w", etl.ErrParseMalformed, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: parse json: trailing data after top-level value", etl.ErrParseMalformed)
	}

	if s.opts.DataPath != "" {
		target, err := navigatePath(raw, s.opts.DataPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", etl.ErrParseMalformed, err)
		}
		raw = target
	}

	switch v := raw.(type) {
	case []any:
		return v, nil
	case map[string]any:
		return []any{v}, nil
	default:
		return nil, fmt.Errorf("%w: expected a json array, got %T", etl.ErrParseMalformed, raw)
	}
}
