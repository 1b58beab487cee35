// Package ledger keeps operator corrections as an append-only log, separate
// from the dataset they refer to. The dataset is never written back; an
// external reconciliation step applies the ledger offline.
//
// Records for the same (row, column) pair are never merged or deduplicated.
// A reconciler must apply records in ledger order, so the last record for a
// pair wins (last-write-wins); that policy lives with the consumer, not here.
package ledger

import (
	"bytes"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/railscan/polemap/internal/models"
)

// Ledger is a caller-owned append-only correction log. It does not validate
// row identifiers against any dataset; the caller checks existence before
// appending. Safe for concurrent use.
type Ledger struct {
	mu      sync.Mutex
	records []models.EditRecord
	now     func() time.Time
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{now: time.Now}
}

// Append records one correction. An invalid value means "clear to empty".
// The record is immutable from here on.
func (l *Ledger) Append(rowID int, poleID string, segmentID sql.NullString, column string, value sql.NullFloat64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, models.EditRecord{
		RowID:     rowID,
		PoleID:    poleID,
		SegmentID: segmentID,
		Column:    column,
		NewValue:  value,
		CreatedAt: l.now().UTC(),
	})
}

// Records returns a copy of all records in submission order.
func (l *Ledger) Records() []models.EditRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.EditRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of appended records.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Clear empties the ledger. Irreversible from the ledger's perspective;
// callers wanting history must export first.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = nil
}

// ExportCSV serializes the ledger with columns
// row_id,pole_id,segment_id,column,new_value,timestamp_utc. A clear marker
// serializes as an empty field, never as a null token. Output is
// byte-identical across calls when no mutation happens in between.
func (l *Ledger) ExportCSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"row_id", "pole_id", "segment_id", "column", "new_value", "timestamp_utc"}); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, rec := range l.Records() {
		value := ""
		if rec.NewValue.Valid {
			value = strconv.FormatFloat(rec.NewValue.Float64, 'f', -1, 64)
		}
		segment := ""
		if rec.SegmentID.Valid {
			segment = rec.SegmentID.String
		}
		row := []string{
			strconv.Itoa(rec.RowID),
			rec.PoleID,
			segment,
			rec.Column,
			value,
			rec.CreatedAt.Format(time.RFC3339Nano),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

type jsonRecord struct {
	RowID        int      `json:"row_id"`
	PoleID       string   `json:"pole_id"`
	SegmentID    *string  `json:"segment_id"`
	Column       string   `json:"column"`
	NewValue     *float64 `json:"new_value"`
	TimestampUTC string   `json:"timestamp_utc"`
}

// ExportJSONLines serializes one JSON object per record per line. A clear
// marker is an explicit JSON null, never an omitted key.
func (l *Ledger) ExportJSONLines() ([]byte, error) {
	var buf bytes.Buffer
	for _, rec := range l.Records() {
		jr := jsonRecord{
			RowID:        rec.RowID,
			PoleID:       rec.PoleID,
			Column:       rec.Column,
			TimestampUTC: rec.CreatedAt.Format(time.RFC3339Nano),
		}
		if rec.SegmentID.Valid {
			s := rec.SegmentID.String
			jr.SegmentID = &s
		}
		if rec.NewValue.Valid {
			v := rec.NewValue.Float64
			jr.NewValue = &v
		}
		line, err := json.Marshal(jr)
		if err != nil {
			return nil, fmt.Errorf("marshal record: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}
