package etl

import "aggregator/internal/logger"

// PadValue fills column slots a record did not provide.
const PadValue = ""

// Normalize reshapes rec to exactly n columns: pass-through when the length
// matches, right-pad with PadValue when short, keep the first n and warn when
// long. Every source goes through this one function.
func Normalize(rec SourceRecord, n int, log logger.Logger) Row {
	cols := make([]string, n)
	copied := copy(cols, rec.Fields)
	for i := copied; i < n; i++ {
		cols[i] = PadValue
	}

	if dropped := len(rec.Fields) - n; dropped > 0 {
		log.Warn("record truncated to column count",
			logger.String("source", string(rec.Source)),
			logger.Int("columns", n),
			logger.Int("dropped", dropped),
		)
	}

	return Row{Source: rec.Source, Columns: cols}
}

// NormalizeAll normalizes a batch and reports how many records were truncated.
func NormalizeAll(recs []SourceRecord, n int, log logger.Logger) ([]Row, int) {
	rows := make([]Row, 0, len(recs))
	truncated := 0
	for _, rec := range recs {
		if len(rec.Fields) > n {
			truncated++
		}
		rows = append(rows, Normalize(rec, n, log))
	}
	return rows, truncated
}
