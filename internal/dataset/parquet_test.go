package dataset

import (
	"bytes"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/railscan/polemap/internal/models"
)

type parquetPole struct {
	Lat                  float64   `parquet:"lat"`
	Lon                  float64   `parquet:"lon"`
	TS                   time.Time `parquet:"ts,timestamp"`
	FwdPath              string    `parquet:"fwd_path"`
	PoleID               string    `parquet:"pole_id"`
	SegmentID            string    `parquet:"segment_id"`
	RailInclSmoothed     float64   `parquet:"rail_incl_smoothed"`
	MisplacementSmoothed *float64  `parquet:"misplacement_smoothed,optional"`
	PoleInclRight        float64   `parquet:"pole_incl_right"`
}

func TestDecode_ParquetRoundTrip(t *testing.T) {
	mis := 0.16
	rows := []parquetPole{
		{
			Lat: 52.09, Lon: 5.12,
			TS:      time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
			FwdPath: "img/a.jpg", PoleID: "POLE-1", SegmentID: "S1",
			RailInclSmoothed: 1.2, MisplacementSmoothed: &mis, PoleInclRight: 0.3,
		},
		{
			Lat: 52.10, Lon: 5.13,
			TS:     time.Date(2024, 3, 1, 10, 5, 0, 0, time.UTC),
			PoleID: "POLE-2", SegmentID: "S1",
			RailInclSmoothed: 0.9, MisplacementSmoothed: nil, PoleInclRight: 0.1,
		},
	}

	var buf bytes.Buffer
	w := parquet.NewGenericWriter[parquetPole](&buf)
	if _, err := w.Write(rows); err != nil {
		t.Fatalf("write parquet: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close parquet writer: %v", err)
	}

	ds, cellErrs, err := Load("merged.parquet", buf.Bytes(), time.UTC)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ds.Variant != models.VariantAggregate {
		t.Fatalf("variant = %s, want aggregate", ds.Variant)
	}
	if len(ds.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(ds.Rows))
	}
	if cellErrs.Total() != 0 {
		t.Fatalf("cell errors = %v, want none", cellErrs.Counts)
	}

	r0 := ds.Rows[0]
	if r0.RowID != 0 || ds.Rows[1].RowID != 1 {
		t.Error("row ids must be dense and zero-based")
	}
	if !r0.TS.Valid || !r0.TS.Time.Equal(rows[0].TS) {
		t.Errorf("ts = %+v, want %v", r0.TS, rows[0].TS)
	}
	if !r0.Hour.Valid || r0.Hour.Int64 != 9 {
		t.Errorf("hour = %+v, want 9", r0.Hour)
	}
	if !r0.MisplacementSmoothed.Valid || r0.MisplacementSmoothed.Float64 != 0.16 {
		t.Errorf("misplacement = %+v, want 0.16", r0.MisplacementSmoothed)
	}
	if ds.Rows[1].MisplacementSmoothed.Valid {
		t.Error("null parquet cell should stay null")
	}
	if ds.Rows[1].FwdPath.Valid {
		t.Error("empty fwd_path should be null")
	}
	if r0.PoleID != "POLE-1" {
		t.Errorf("pole id = %q", r0.PoleID)
	}
}
