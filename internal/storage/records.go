package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"aggregator/internal/etl"
)

// RecordsTable holds every normalized row regardless of source.
const RecordsTable = "records"

// RecordStore implements etl.Store on a single SQLite table:
//
//	records(id INTEGER PRIMARY KEY AUTOINCREMENT, source TEXT, column_1 … column_N TEXT)
type RecordStore struct {
	db      *sqlx.DB
	columns int
	names   []string // column_1 … column_N
	allowed map[string]bool
}

// NewRecordStore creates a store with n value columns. n must be at least 1.
func NewRecordStore(db *sqlx.DB, n int) (*RecordStore, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: column count must be at least 1, got %d", etl.ErrSchemaViolation, n)
	}
	names := make([]string, n)
	allowed := map[string]bool{"id": true, "source": true}
	for i := range names {
		names[i] = ColumnName(i + 1)
		allowed[names[i]] = true
	}
	return &RecordStore{db: db, columns: n, names: names, allowed: allowed}, nil
}

// ColumnName returns the name of the k-th value column (1-based).
func ColumnName(k int) string {
	return fmt.Sprintf("column_%d", k)
}

// Columns returns N.
func (s *RecordStore) Columns() int {
	return s.columns
}

// ColumnNames returns every searchable column: id, source, column_1 … column_N.
func (s *RecordStore) ColumnNames() []string {
	return append([]string{"id", "source"}, s.names...)
}

// ── Schema ─────────────────────────────────────────────────

func (s *RecordStore) createTableSQL() string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS " + RecordsTable + " (\n")
	b.WriteString("\t\tid INTEGER PRIMARY KEY AUTOINCREMENT,\n")
	b.WriteString("\t\tsource TEXT NOT NULL")
	for _, name := range s.names {
		b.WriteString(",\n\t\t" + name + " TEXT NOT NULL DEFAULT ''")
	}
	b.WriteString("\n\t)")
	return b.String()
}

// tableColumn is one row of pragma_table_info.
type tableColumn struct {
	Name    string         `db:"name"`
	NotNull bool           `db:"notnull"`
	Default sql.NullString `db:"dflt_value"`
	PK      int            `db:"pk"`
}

// EnsureSchema creates the records table if absent and checks that an
// existing table carries every expected column. Extra columns are tolerated
// only when an insert can leave them out: nullable or with a default.
func (s *RecordStore) EnsureSchema(ctx context.Context) error {
	migrations := []string{
		s.createTableSQL(),
		`CREATE INDEX IF NOT EXISTS idx_records_source ON ` + RecordsTable + `(source)`,
	}
	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("%w: create records table: %w", etl.ErrSchemaViolation, err)
		}
	}

	var existing []tableColumn
	if err := s.db.SelectContext(ctx, &existing,
		`SELECT name, "notnull", dflt_value, pk FROM pragma_table_info('`+RecordsTable+`')`); err != nil {
		return fmt.Errorf("%w: inspect records table: %w", etl.ErrSchemaViolation, err)
	}
	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[c.Name] = true
		if !s.allowed[c.Name] && c.NotNull && !c.Default.Valid && c.PK == 0 {
			return fmt.Errorf("%w: records table column %q is NOT NULL without a default",
				etl.ErrSchemaViolation, c.Name)
		}
	}
	for _, want := range s.ColumnNames() {
		if !have[want] {
			return fmt.Errorf("%w: records table has no column %q", etl.ErrSchemaViolation, want)
		}
	}
	return nil
}

// ── Write ──────────────────────────────────────────────────

func (s *RecordStore) insertSQL() string {
	cols := append([]string{"source"}, s.names...)
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return "INSERT INTO " + RecordsTable + " (" + strings.Join(cols, ", ") + ") VALUES (" + marks + ")"
}

// InsertBatch writes rows in one transaction. Either every row is committed
// and len(rows) is returned, or nothing is and the count is 0.
func (s *RecordStore) InsertBatch(ctx context.Context, rows []etl.Row) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	for i, r := range rows {
		if len(r.Columns) != s.columns {
			return 0, fmt.Errorf("%w: row %d has %d columns, want %d",
				etl.ErrSchemaViolation, i, len(r.Columns), s.columns)
		}
		if !r.Source.Valid() {
			return 0, fmt.Errorf("%w: row %d has unknown source %q", etl.ErrSchemaViolation, i, r.Source)
		}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin: %w", etl.ErrStorageFailure, err)
	}

	query := s.insertSQL()
	args := make([]any, s.columns+1)
	for i, r := range rows {
		args[0] = string(r.Source)
		for k, v := range r.Columns {
			args[k+1] = v
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("%w: insert row %d: %w", etl.ErrStorageFailure, i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit: %w", etl.ErrStorageFailure, err)
	}
	return len(rows), nil
}

// ── Read ───────────────────────────────────────────────────

// Search returns rows whose column equals value, ordered by id. column must be
// one of ColumnNames; anything else is rejected before a query is built.
func (s *RecordStore) Search(ctx context.Context, column, value string) ([]etl.StoredRow, error) {
	if !s.allowed[column] {
		return nil, fmt.Errorf("%w: unknown column %q", etl.ErrSchemaViolation, column)
	}

	query := "SELECT id, source, " + strings.Join(s.names, ", ") +
		" FROM " + RecordsTable + " WHERE " + column + " = ? ORDER BY id"
	rows, err := s.db.QueryxContext(ctx, query, value)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %w", etl.ErrStorageFailure, err)
	}
	defer rows.Close()

	out := []etl.StoredRow{}
	for rows.Next() {
		var (
			id     int64
			source string
			cols   = make([]string, s.columns)
		)
		dest := make([]any, 0, s.columns+2)
		dest = append(dest, &id, &source)
		for i := range cols {
			dest = append(dest, &cols[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("%w: scan: %w", etl.ErrStorageFailure, err)
		}
		out = append(out, etl.StoredRow{ID: id, Source: etl.SourceKind(source), Columns: cols})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: search: %w", etl.ErrStorageFailure, err)
	}
	return out, nil
}

// Count returns the number of stored rows.
func (s *RecordStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+RecordsTable); err != nil {
		return 0, fmt.Errorf("%w: count: %w", etl.ErrStorageFailure, err)
	}
	return n, nil
}

// CountBySource returns the number of stored rows per source tag.
func (s *RecordStore) CountBySource(ctx context.Context) (map[etl.SourceKind]int, error) {
	var counts []struct {
		Source string `db:"source"`
		N      int    `db:"n"`
	}
	if err := s.db.SelectContext(ctx, &counts,
		"SELECT source, COUNT(*) AS n FROM "+RecordsTable+" GROUP BY source ORDER BY source"); err != nil {
		return nil, fmt.Errorf("%w: count by source: %w", etl.ErrStorageFailure, err)
	}
	out := make(map[etl.SourceKind]int, len(counts))
	for _, c := range counts {
		out[etl.SourceKind(c.Source)] = c.N
	}
	return out, nil
}
