package dataset

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/railscan/polemap/internal/models"
)

// MissingColumnsError reports the required columns an uploaded table does
// not carry. The whole load fails; nothing partial is produced.
type MissingColumnsError struct {
	Variant models.Variant
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required columns for %s variant: %s",
		e.Variant, strings.Join(e.Columns, ", "))
}

// CellErrors counts per-column cells that failed coercion. These degrade to
// null rather than failing the load; the counts feed the upload summary and
// metrics.
type CellErrors struct {
	Counts map[string]int
}

func newCellErrors() *CellErrors {
	return &CellErrors{Counts: make(map[string]int)}
}

func (e *CellErrors) add(column string) {
	e.Counts[column]++
}

// Total returns the number of degraded cells across all columns.
func (e *CellErrors) Total() int {
	n := 0
	for _, c := range e.Counts {
		n += c
	}
	return n
}

// Columns returns the affected column names in stable order.
func (e *CellErrors) Columns() []string {
	cols := make([]string, 0, len(e.Counts))
	for c := range e.Counts {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// missingColumns returns the required columns of v absent from the table.
func missingColumns(t *RawTable, v models.Variant) []string {
	var missing []string
	for _, c := range v.RequiredColumns() {
		if !t.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	return missing
}

// DetectVariant picks the schema variant whose required-column set the
// table satisfies. When neither fits, the error names the missing columns
// of the closer variant.
func DetectVariant(t *RawTable) (models.Variant, error) {
	missA := missingColumns(t, models.VariantAggregate)
	if len(missA) == 0 {
		return models.VariantAggregate, nil
	}
	missB := missingColumns(t, models.VariantQC)
	if len(missB) == 0 {
		return models.VariantQC, nil
	}
	if len(missB) < len(missA) {
		return "", &MissingColumnsError{Variant: models.VariantQC, Columns: missB}
	}
	return "", &MissingColumnsError{Variant: models.VariantAggregate, Columns: missA}
}

// Normalize validates the required-column contract once, coerces cells, and
// assigns dense zero-based row identifiers. Unparseable timestamps and
// numeric cells become null and are counted; only missing required columns
// fail the load.
func Normalize(t *RawTable, variant models.Variant, source string, loc *time.Location) (*models.Dataset, *CellErrors, error) {
	if loc == nil {
		loc = time.UTC
	}
	if missing := missingColumns(t, variant); len(missing) > 0 {
		return nil, nil, &MissingColumnsError{Variant: variant, Columns: missing}
	}

	cellErrs := newCellErrors()
	ds := &models.Dataset{
		Source:   source,
		Variant:  variant,
		LoadedAt: time.Now().UTC(),
		Rows:     make([]models.Row, 0, len(t.Rows)),
	}

	for i, raw := range t.Rows {
		row := models.Row{RowID: i}

		lat, latFailed := parseFloatCell(raw[models.ColLat])
		lon, lonFailed := parseFloatCell(raw[models.ColLon])
		if latFailed {
			cellErrs.add(models.ColLat)
		}
		if lonFailed {
			cellErrs.add(models.ColLon)
		}
		row.Lat = lat.Float64
		row.Lon = lon.Float64
		if !lat.Valid || !lon.Valid ||
			lat.Float64 < -90 || lat.Float64 > 90 ||
			lon.Float64 < -180 || lon.Float64 > 180 {
			row.CoordsSuspect = true
		}

		ts, tsFailed := parseTimeCell(raw[models.ColTS], loc)
		if tsFailed {
			cellErrs.add(models.ColTS)
		}
		row.TS = ts
		if ts.Valid {
			row.Hour = sql.NullInt64{Int64: int64(ts.Time.Hour()), Valid: true}
		}

		row.PoleID = parseStringCell(raw[models.ColPoleID])
		if fwd := parseStringCell(raw[models.ColFwdPath]); fwd != "" {
			row.FwdPath = sql.NullString{String: fwd, Valid: true}
		}
		if variant == models.VariantAggregate {
			if seg := parseStringCell(raw[models.ColSegmentID]); seg != "" {
				row.SegmentID = sql.NullString{String: seg, Valid: true}
			}
		}

		for _, col := range variant.NumericColumns() {
			val, failed := parseFloatCell(raw[col])
			if failed {
				cellErrs.add(col)
			}
			setMetric(&row, col, val)
		}

		ds.Rows = append(ds.Rows, row)
	}
	return ds, cellErrs, nil
}

func setMetric(r *models.Row, column string, v sql.NullFloat64) {
	switch column {
	case models.ColRailInclSmoothed:
		r.RailInclSmoothed = v
	case models.ColMisplacementSmoothed:
		r.MisplacementSmoothed = v
	case models.ColPoleInclRight:
		r.PoleInclRight = v
	case models.ColRailInclCorrected:
		r.RailInclCorrected = v
	case models.ColMisplacement:
		r.Misplacement = v
	case models.ColRailTopAMSL:
		r.RailTopAMSL = v
	case models.ColAsphaltAMSL:
		r.AsphaltAMSL = v
	case models.ColShoulderAMSL:
		r.ShoulderAMSL = v
	}
}

// Load decodes and normalizes an uploaded file in one step, detecting the
// schema variant from the decoded columns.
func Load(name string, data []byte, loc *time.Location) (*models.Dataset, *CellErrors, error) {
	table, err := Decode(name, data)
	if err != nil {
		return nil, nil, err
	}
	variant, err := DetectVariant(table)
	if err != nil {
		return nil, nil, err
	}
	return Normalize(table, variant, name, loc)
}
