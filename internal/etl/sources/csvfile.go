package sources

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"aggregator/internal/etl"
	"aggregator/internal/logger"
)

// ── CSV File Source ─────────────────────────────────────────
// Reads records from a local delimited text file. One record per row,
// fields are the row's columns as-is.

// CSVOptions configures the CSV extractor.
type CSVOptions struct {
	Delimiter  string // single rune, default ","
	SkipHeader bool   // drop the first row
}

type csvFileSource struct {
	opts CSVOptions
	log  logger.Logger
}

// NewCSVFile returns the CSV extractor.
func NewCSVFile(opts CSVOptions, log logger.Logger) etl.Extractor {
	return &csvFileSource{opts: opts, log: log.With(logger.String("source", string(etl.SourceCSV)))}
}

func (s *csvFileSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Kind:  etl.SourceCSV,
		Label: "CSV File",
		Input: "file",
		ConfigFields: []etl.ConfigField{
			{Key: "sources.csv.path", Required: true, Help: "Path to the delimited text file"},
			{Key: "sources.csv.delimiter", Default: ",", Help: "Column delimiter (one character)"},
			{Key: "sources.csv.skip_header", Default: "false", Help: "Drop the first row"},
		},
	}
}

func (s *csvFileSource) Extract(ctx context.Context, path string) ([]etl.SourceRecord, error) {
	log := s.log.With(logger.String("input", path))
	if path == "" {
		log.Warn("no csv input configured")
		return nil, fmt.Errorf("%w: csv path is empty", etl.ErrSourceUnavailable)
	}

	f, err := os.Open(path)
	if err != nil {
		log.Error("open csv failed", logger.Error(err))
		return nil, fmt.Errorf("%w: open csv: %w", etl.ErrSourceUnavailable, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	if r, _ := utf8.DecodeRuneInString(s.opts.Delimiter); r != utf8.RuneError {
		reader.Comma = r
	}
	reader.FieldsPerRecord = -1
	// Strict quoting: a stray quote fails its own row instead of swallowing
	// the rows after it. An unterminated quoted field runs to EOF and is
	// skipped as one malformed row.
	reader.LazyQuotes = false

	var records []etl.SourceRecord
	skipped := 0
	first := true
	for {
		if err := ctx.Err(); err != nil {
			log.Error("csv extraction interrupted", logger.Int("records", len(records)), logger.Error(err))
			return records, fmt.Errorf("%w: %w", etl.ErrSourceUnavailable, err)
		}

		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				skipped++
				log.Warn("skipping malformed csv row", logger.Int("line", pe.StartLine), logger.Error(err))
				continue
			}
			log.Error("read csv failed", logger.Int("records", len(records)), logger.Error(err))
			return records, fmt.Errorf("%w: read csv: %w", etl.ErrSourceUnavailable, err)
		}

		if first {
			first = false
			if s.opts.SkipHeader {
				continue
			}
		}
		records = append(records, etl.NewSourceRecord(etl.SourceCSV, row))
	}

	log.Info("csv extracted", logger.Int("records", len(records)), logger.Int("skipped", skipped))
	return records, nil
}
