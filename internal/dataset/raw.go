// Package dataset loads survey tables from their container formats and
// normalizes them into typed rows with dense identifiers.
package dataset

import (
	"database/sql"
	"strconv"
	"strings"
	"time"
)

// RawTable is a decoded but untyped table: column names plus one loosely
// typed cell map per row. CSV cells arrive as strings, Parquet cells as
// their physical types; Normalize owns all coercion.
type RawTable struct {
	Columns []string
	Rows    []map[string]any
}

// HasColumn reports whether the table carries the named column.
func (t *RawTable) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// parseFloatCell coerces one cell to a nullable float. A nil cell or empty
// string is null without being a parse failure; non-numeric text is null
// with failed=true so the caller can count it.
func parseFloatCell(v any) (f sql.NullFloat64, failed bool) {
	switch x := v.(type) {
	case nil:
		return sql.NullFloat64{}, false
	case float64:
		if x != x { // NaN stays null
			return sql.NullFloat64{}, false
		}
		return sql.NullFloat64{Float64: x, Valid: true}, false
	case float32:
		return parseFloatCell(float64(x))
	case int64:
		return sql.NullFloat64{Float64: float64(x), Valid: true}, false
	case int32:
		return sql.NullFloat64{Float64: float64(x), Valid: true}, false
	case int:
		return sql.NullFloat64{Float64: float64(x), Valid: true}, false
	case bool:
		return sql.NullFloat64{}, true
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return sql.NullFloat64{}, false
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil || n != n {
			return sql.NullFloat64{}, true
		}
		return sql.NullFloat64{Float64: n, Valid: true}, false
	}
	return sql.NullFloat64{}, true
}

// timeLayouts covers the timestamp spellings survey exports produce. The
// zoneless layouts are interpreted in the dataset's configured location.
var (
	zonedLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999Z07:00",
	}
	nakedLayouts = []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02",
	}
)

// parseTimeCell coerces one cell to a nullable timezone-aware timestamp.
// Unparseable text is null with failed=true; the row survives.
func parseTimeCell(v any, loc *time.Location) (ts sql.NullTime, failed bool) {
	switch x := v.(type) {
	case nil:
		return sql.NullTime{}, false
	case time.Time:
		if x.IsZero() {
			return sql.NullTime{}, false
		}
		return sql.NullTime{Time: x, Valid: true}, false
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return sql.NullTime{}, false
		}
		for _, layout := range zonedLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return sql.NullTime{Time: t, Valid: true}, false
			}
		}
		for _, layout := range nakedLayouts {
			if t, err := time.ParseInLocation(layout, s, loc); err == nil {
				return sql.NullTime{Time: t, Valid: true}, false
			}
		}
		return sql.NullTime{}, true
	}
	return sql.NullTime{}, true
}

// parseStringCell coerces one cell to text. Numbers are rendered so a
// numeric pole identifier column still loads.
func parseStringCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	}
	return ""
}
