package models

import (
	"database/sql"
	"time"
)

// Variant identifies which input table schema a dataset was loaded under.
type Variant string

const (
	// VariantAggregate is the smoothed per-pole survey view.
	VariantAggregate Variant = "aggregate"
	// VariantQC is the quality-control review view.
	VariantQC Variant = "qc"
)

// Column names shared by both variants.
const (
	ColLat     = "lat"
	ColLon     = "lon"
	ColTS      = "ts"
	ColFwdPath = "fwd_path"
	ColPoleID  = "pole_id"
)

// Aggregate-variant columns.
const (
	ColSegmentID            = "segment_id"
	ColRailInclSmoothed     = "rail_incl_smoothed"
	ColMisplacementSmoothed = "misplacement_smoothed"
	ColPoleInclRight        = "pole_incl_right"
)

// QC-variant columns.
const (
	ColRailInclCorrected = "rail_incl_corrected"
	ColMisplacement      = "misplacement"
	ColRailTopAMSL       = "rail_top_amsl"
	ColAsphaltAMSL       = "asphalt_amsl"
	ColShoulderAMSL      = "shoulder_amsl"
)

// RequiredColumns returns the columns a table must carry for the variant.
// A missing required column is a hard load failure, never a silent drop.
func (v Variant) RequiredColumns() []string {
	switch v {
	case VariantQC:
		return []string{
			ColLat, ColLon, ColTS, ColFwdPath, ColPoleID,
			ColRailInclCorrected, ColMisplacement,
			ColRailTopAMSL, ColAsphaltAMSL, ColShoulderAMSL,
		}
	default:
		return []string{
			ColLat, ColLon, ColTS, ColFwdPath, ColPoleID, ColSegmentID,
			ColRailInclSmoothed, ColMisplacementSmoothed, ColPoleInclRight,
		}
	}
}

// NumericColumns returns the metric columns coerced to float at load time.
// These are also the only columns the edit ledger accepts corrections for.
func (v Variant) NumericColumns() []string {
	switch v {
	case VariantQC:
		return []string{
			ColRailInclCorrected, ColMisplacement,
			ColRailTopAMSL, ColAsphaltAMSL, ColShoulderAMSL,
		}
	default:
		return []string{
			ColRailInclSmoothed, ColMisplacementSmoothed, ColPoleInclRight,
		}
	}
}

// MetricColumn returns the column driving severity classification.
func (v Variant) MetricColumn() string {
	if v == VariantQC {
		return ColMisplacement
	}
	return ColMisplacementSmoothed
}

// Row is one normalized survey observation. Optional fields use sql.Null*
// so a missing cell stays distinguishable from a zero.
type Row struct {
	RowID     int
	Lat       float64
	Lon       float64
	TS        sql.NullTime
	Hour      sql.NullInt64 // 0-23, derived from TS; null when TS is null
	PoleID    string
	SegmentID sql.NullString
	FwdPath   sql.NullString

	// Aggregate-variant metrics.
	RailInclSmoothed     sql.NullFloat64
	MisplacementSmoothed sql.NullFloat64
	PoleInclRight        sql.NullFloat64

	// QC-variant metrics.
	RailInclCorrected sql.NullFloat64
	Misplacement      sql.NullFloat64
	RailTopAMSL       sql.NullFloat64
	AsphaltAMSL       sql.NullFloat64
	ShoulderAMSL      sql.NullFloat64

	// CoordsSuspect marks lat/lon outside [-90,90]/[-180,180]. The row is
	// kept so the operator can see and correct it.
	CoordsSuspect bool
}

// Metric returns the named numeric column's value from the row.
func (r *Row) Metric(column string) (sql.NullFloat64, bool) {
	switch column {
	case ColRailInclSmoothed:
		return r.RailInclSmoothed, true
	case ColMisplacementSmoothed:
		return r.MisplacementSmoothed, true
	case ColPoleInclRight:
		return r.PoleInclRight, true
	case ColRailInclCorrected:
		return r.RailInclCorrected, true
	case ColMisplacement:
		return r.Misplacement, true
	case ColRailTopAMSL:
		return r.RailTopAMSL, true
	case ColAsphaltAMSL:
		return r.AsphaltAMSL, true
	case ColShoulderAMSL:
		return r.ShoulderAMSL, true
	}
	return sql.NullFloat64{}, false
}

// SeverityMetric returns the value used for severity classification under
// the given variant.
func (r *Row) SeverityMetric(v Variant) sql.NullFloat64 {
	m, _ := r.Metric(v.MetricColumn())
	return m
}

// Dataset is one loaded, normalized table. Row identifiers are dense,
// zero-based, and stable for the lifetime of this in-memory dataset only;
// a reload assigns a fresh identifier space.
type Dataset struct {
	Source   string
	Variant  Variant
	LoadedAt time.Time
	Rows     []Row
}

// Row returns the row with the given identifier. Identifiers are dense so
// the lookup is positional, but the stored RowID is checked in case a
// caller holds a subset.
func (d *Dataset) Row(id int) (*Row, bool) {
	if d == nil || id < 0 {
		return nil, false
	}
	if id < len(d.Rows) && d.Rows[id].RowID == id {
		return &d.Rows[id], true
	}
	for i := range d.Rows {
		if d.Rows[i].RowID == id {
			return &d.Rows[i], true
		}
	}
	return nil, false
}

// EditRecord is one proposed field correction. Records are append-only:
// never mutated after creation, never merged or deduplicated. When several
// records target the same (RowID, Column) pair, the latest appended one is
// authoritative for an external reconciler (last-write-wins); the ledger
// itself keeps every record.
type EditRecord struct {
	RowID     int
	PoleID    string
	SegmentID sql.NullString
	Column    string
	// NewValue invalid means "clear to empty": an explicit request to blank
	// the field, not an unknown.
	NewValue  sql.NullFloat64
	CreatedAt time.Time
}
