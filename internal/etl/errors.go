package etl

import "errors"

// Error taxonomy. Components wrap these with fmt.Errorf("%w: ...") and
// callers match with errors.Is.
var (
	// ErrSourceUnavailable means a file is missing or unreadable, or a fetch failed.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrParseMalformed means the input could not be parsed.
	ErrParseMalformed = errors.New("malformed input")
	// ErrSchemaViolation covers unknown columns and schema creation failures.
	ErrSchemaViolation = errors.New("schema violation")
	// ErrStorageFailure means a write or commit failed; nothing was applied.
	ErrStorageFailure = errors.New("storage failure")
)
