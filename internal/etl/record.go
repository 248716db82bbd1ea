package etl

import "fmt"

// ── Record ─────────────────────────────────────────────────
// Common intermediate data format.
// All extractors emit SourceRecords, the normalizer turns them into Rows,
// the store persists Rows and hands back StoredRows.

// SourceKind is the provenance tag of a record. The set is closed: a new
// source needs a new constant here, not a dynamic registration.
type SourceKind string

const (
	SourceCSV  SourceKind = "csv"
	SourceXML  SourceKind = "xml"
	SourceJSON SourceKind = "json"
	SourceHTML SourceKind = "html"
)

// AllKinds lists every source kind in the order the engine runs them.
var AllKinds = []SourceKind{SourceCSV, SourceXML, SourceJSON, SourceHTML}

// Valid reports whether k is one of the known kinds.
func (k SourceKind) Valid() bool {
	switch k {
	case SourceCSV, SourceXML, SourceJSON, SourceHTML:
		return true
	}
	return false
}

// ParseSourceKind converts a tag read back from storage.
func ParseSourceKind(s string) (SourceKind, error) {
	k := SourceKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown source kind %q", s)
	}
	return k, nil
}

// SourceRecord is one unit of raw input: a CSV row, a top-level XML child,
// a JSON array element or a matched HTML element.
type SourceRecord struct {
	Source SourceKind `json:"source"`
	Fields []string   `json:"fields"`
}

// NewSourceRecord copies fields so the record does not alias the caller's buffer.
func NewSourceRecord(kind SourceKind, fields []string) SourceRecord {
	cp := make([]string, len(fields))
	copy(cp, fields)
	return SourceRecord{Source: kind, Fields: cp}
}

// Row is a normalized record: exactly N column values.
type Row struct {
	Source  SourceKind `json:"source"`
	Columns []string   `json:"columns"`
}

// StoredRow is a persisted Row with its surrogate key.
type StoredRow struct {
	ID      int64      `json:"id"`
	Source  SourceKind `json:"source"`
	Columns []string   `json:"columns"`
}
