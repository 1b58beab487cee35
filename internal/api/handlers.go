package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/railscan/polemap/internal/dataset"
	"github.com/railscan/polemap/internal/ledger"
	"github.com/railscan/polemap/internal/links"
	"github.com/railscan/polemap/internal/metrics"
	"github.com/railscan/polemap/internal/models"
	"github.com/railscan/polemap/internal/severity"
)

const maxUploadBytes = 256 << 20

// Point is one classified survey point as served to the map renderer.
type Point struct {
	RowID         int                 `json:"row_id"`
	Lat           float64             `json:"lat"`
	Lon           float64             `json:"lon"`
	PoleID        string              `json:"pole_id"`
	SegmentID     *string             `json:"segment_id,omitempty"`
	Hour          *int64              `json:"hour"`
	Metrics       map[string]*float64 `json:"metrics"`
	Severity      severity.Category   `json:"severity"`
	Color         string              `json:"color"`
	RGB           severity.RGB        `json:"rgb"`
	StreetViewURL string              `json:"street_view_url"`
	ImageURL      string              `json:"image_url,omitempty"`
	CoordsSuspect bool                `json:"coords_suspect,omitempty"`
}

func (s *Server) handleUploadDataset(w http.ResponseWriter, r *http.Request) {
	name, data, err := readUpload(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	summary, err := s.LoadDataset(name, data, "upload")
	if err != nil {
		var missing *dataset.MissingColumnsError
		if errors.As(err, &missing) {
			http.Error(w, missing.Error(), http.StatusUnprocessableEntity)
			return
		}
		if strings.Contains(err.Error(), "unsupported file extension") {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Printf("upload %s: %v", name, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// readUpload accepts either a multipart form with a "file" part or a raw
// body with ?name= carrying the file name for format detection.
func readUpload(r *http.Request) (string, []byte, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxUploadBytes)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", nil, fmt.Errorf("read multipart file: %w", err)
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return "", nil, fmt.Errorf("read upload: %w", err)
		}
		return header.Filename, data, nil
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		return "", nil, errors.New("missing name parameter for raw upload")
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return "", nil, errors.New("empty upload body")
	}
	return name, data, nil
}

func (s *Server) handleDatasetInfo(w http.ResponseWriter, r *http.Request) {
	ds, _ := s.session()
	if ds == nil {
		http.Error(w, "no dataset loaded", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"source":    ds.Source,
		"variant":   ds.Variant,
		"rows":      len(ds.Rows),
		"loaded_at": ds.LoadedAt.Format(time.RFC3339),
		"severity":  severityCounts(ds),
	})
}

func (s *Server) handlePoints(w http.ResponseWriter, r *http.Request) {
	ds, _ := s.session()
	if ds == nil {
		http.Error(w, "no dataset loaded", http.StatusNotFound)
		return
	}

	var hourFilter *int64
	unknownOnly := false
	if h := r.URL.Query().Get("hour"); h != "" {
		if h == "unknown" {
			unknownOnly = true
		} else {
			n, err := strconv.ParseInt(h, 10, 64)
			if err != nil || n < 0 || n > 23 {
				http.Error(w, "hour must be 0-23 or 'unknown'", http.StatusBadRequest)
				return
			}
			hourFilter = &n
		}
	}

	points := make([]Point, 0, len(ds.Rows))
	for i := range ds.Rows {
		row := &ds.Rows[i]
		if unknownOnly && row.Hour.Valid {
			continue
		}
		if hourFilter != nil && (!row.Hour.Valid || row.Hour.Int64 != *hourFilter) {
			continue
		}
		points = append(points, s.pointFromRow(row, ds.Variant))
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) pointFromRow(row *models.Row, variant models.Variant) Point {
	cat := severity.ClassifyNull(row.SeverityMetric(variant))

	metricVals := make(map[string]*float64, len(variant.NumericColumns()))
	for _, col := range variant.NumericColumns() {
		if v, ok := row.Metric(col); ok && v.Valid {
			f := v.Float64
			metricVals[col] = &f
		} else {
			metricVals[col] = nil
		}
	}

	p := Point{
		RowID:         row.RowID,
		Lat:           row.Lat,
		Lon:           row.Lon,
		PoleID:        row.PoleID,
		Metrics:       metricVals,
		Severity:      cat,
		Color:         cat.Color(),
		RGB:           severity.ToRGB(cat.Color()),
		StreetViewURL: links.DefaultStreetViewURL(row.Lat, row.Lon),
		CoordsSuspect: row.CoordsSuspect,
	}
	if row.SegmentID.Valid {
		seg := row.SegmentID.String
		p.SegmentID = &seg
	}
	if row.Hour.Valid {
		h := row.Hour.Int64
		p.Hour = &h
	}
	p.ImageURL = s.imageURLFor(row)
	return p
}

// imageURLFor resolves the forward image link for a row: absolute fwd_path
// values pass through, relative ones resolve against the rig archive. Rows
// without a timestamp or image get no link.
func (s *Server) imageURLFor(row *models.Row) string {
	if !row.FwdPath.Valid {
		return ""
	}
	fwd := row.FwdPath.String
	if strings.Contains(fwd, "://") {
		return fwd
	}
	if s.cfg.ImageBaseURL == "" {
		return ""
	}
	u, err := links.ImageURL(s.cfg.ImageBaseURL, s.cfg.Camera, s.cfg.Rig, row.TS, fwd)
	if err != nil {
		return ""
	}
	return u
}

func (s *Server) handleHours(w http.ResponseWriter, r *http.Request) {
	ds, _ := s.session()
	if ds == nil {
		http.Error(w, "no dataset loaded", http.StatusNotFound)
		return
	}
	counts := make(map[string]int)
	for i := range ds.Rows {
		if ds.Rows[i].Hour.Valid {
			counts[strconv.FormatInt(ds.Rows[i].Hour.Int64, 10)]++
		} else {
			counts["unknown"]++
		}
	}
	writeJSON(w, http.StatusOK, counts)
}

// EditSubmission is one operator form submit: several field changes against
// one row. A change value may be a number, a numeric string, null, or an
// empty string; null and empty mean "clear to empty".
type EditSubmission struct {
	RowID   int                        `json:"row_id"`
	Changes map[string]json.RawMessage `json:"changes"`
}

type DroppedChange struct {
	Column string `json:"column"`
	Reason string `json:"reason"`
}

type EditResult struct {
	Accepted      []string        `json:"accepted"`
	Dropped       []DroppedChange `json:"dropped,omitempty"`
	LedgerRecords int             `json:"ledger_records"`
}

func (s *Server) handleSubmitEdits(w http.ResponseWriter, r *http.Request) {
	ds, edits := s.session()
	if ds == nil {
		http.Error(w, "no dataset loaded", http.StatusConflict)
		return
	}

	var sub EditSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		http.Error(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(sub.Changes) == 0 {
		http.Error(w, "no changes submitted", http.StatusBadRequest)
		return
	}

	row, ok := ds.Row(sub.RowID)
	if !ok {
		http.Error(w, fmt.Sprintf("row %d not in current dataset", sub.RowID), http.StatusNotFound)
		return
	}

	editable := make(map[string]bool)
	for _, col := range ds.Variant.NumericColumns() {
		editable[col] = true
	}

	columns := make([]string, 0, len(sub.Changes))
	for col := range sub.Changes {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	result := EditResult{}
	for _, col := range columns {
		if !editable[col] {
			result.Dropped = append(result.Dropped, DroppedChange{Column: col, Reason: "not an editable column for this dataset variant"})
			metrics.EditsDropped.Inc()
			continue
		}
		value, err := parseEditValue(sub.Changes[col])
		if err != nil {
			log.Printf("edit row %d column %s dropped: %v", sub.RowID, col, err)
			result.Dropped = append(result.Dropped, DroppedChange{Column: col, Reason: err.Error()})
			metrics.EditsDropped.Inc()
			continue
		}
		edits.Append(sub.RowID, row.PoleID, row.SegmentID, col, value)
		metrics.EditsAppended.WithLabelValues(col).Inc()
		result.Accepted = append(result.Accepted, col)
	}
	result.LedgerRecords = edits.Len()
	writeJSON(w, http.StatusOK, result)
}

// parseEditValue turns one submitted change into a nullable float. JSON
// null and the empty string are the explicit clear marker.
func parseEditValue(raw json.RawMessage) (sql.NullFloat64, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return sql.NullFloat64{}, fmt.Errorf("unreadable value")
	}
	switch x := v.(type) {
	case nil:
		return sql.NullFloat64{}, nil
	case float64:
		return sql.NullFloat64{Float64: x, Valid: true}, nil
	case string:
		t := strings.TrimSpace(x)
		if t == "" {
			return sql.NullFloat64{}, nil
		}
		f, err := strconv.ParseFloat(t, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return sql.NullFloat64{}, fmt.Errorf("value %q is not numeric", x)
		}
		return sql.NullFloat64{Float64: f, Valid: true}, nil
	}
	return sql.NullFloat64{}, fmt.Errorf("value must be a number, numeric string, or null")
}

// EditView is one ledger record as served over the API.
type EditView struct {
	RowID        int      `json:"row_id"`
	PoleID       string   `json:"pole_id"`
	SegmentID    *string  `json:"segment_id"`
	Column       string   `json:"column"`
	NewValue     *float64 `json:"new_value"`
	TimestampUTC string   `json:"timestamp_utc"`
}

func (s *Server) handleListEdits(w http.ResponseWriter, r *http.Request) {
	_, edits := s.session()
	records := edits.Records()
	views := make([]EditView, 0, len(records))
	for _, rec := range records {
		v := EditView{
			RowID:        rec.RowID,
			PoleID:       rec.PoleID,
			Column:       rec.Column,
			TimestampUTC: rec.CreatedAt.Format(time.RFC3339Nano),
		}
		if rec.SegmentID.Valid {
			seg := rec.SegmentID.String
			v.SegmentID = &seg
		}
		if rec.NewValue.Valid {
			f := rec.NewValue.Float64
			v.NewValue = &f
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleClearEdits(w http.ResponseWriter, r *http.Request) {
	_, edits := s.session()
	n := edits.Len()
	edits.Clear()
	log.Printf("edit ledger cleared (%d records discarded)", n)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	s.handleExport(w, "csv", "text/csv; charset=utf-8", "edits.csv",
		func(l *ledger.Ledger) ([]byte, error) { return l.ExportCSV() })
}

func (s *Server) handleExportJSONLines(w http.ResponseWriter, r *http.Request) {
	s.handleExport(w, "jsonl", "application/x-ndjson", "edits.jsonl",
		func(l *ledger.Ledger) ([]byte, error) { return l.ExportJSONLines() })
}

func (s *Server) handleExport(w http.ResponseWriter, format, contentType, filename string, export func(*ledger.Ledger) ([]byte, error)) {
	_, edits := s.session()
	payload, err := export(edits)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	uploadID := s.uploadID
	s.mu.Unlock()
	if _, err := s.store.SaveEditSnapshot(uploadID, format, edits.Len(), payload); err != nil {
		// export still succeeds; the archive is best-effort
		log.Printf("archive %s export: %v", format, err)
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Write(payload)
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.store.ListEditSnapshots(50)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	type snapView struct {
		ID          int64  `json:"id"`
		UploadID    *int64 `json:"upload_id"`
		Format      string `json:"format"`
		RecordCount int    `json:"record_count"`
		CreatedAt   string `json:"created_at"`
	}
	views := make([]snapView, 0, len(snaps))
	for _, snap := range snaps {
		v := snapView{
			ID:          snap.ID,
			Format:      snap.Format,
			RecordCount: snap.RecordCount,
			CreatedAt:   snap.CreatedAt.Format(time.RFC3339),
		}
		if snap.UploadID.Valid {
			id := snap.UploadID.Int64
			v.UploadID = &id
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleListUploads(w http.ResponseWriter, r *http.Request) {
	uploads, err := s.store.ListUploads(50)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, uploads)
}

func (s *Server) handleBrief(w http.ResponseWriter, r *http.Request) {
	if s.briefGen == nil {
		http.Error(w, "brief generation disabled (no API key)", http.StatusServiceUnavailable)
		return
	}
	ds, _ := s.session()
	if ds == nil {
		http.Error(w, "no dataset loaded", http.StatusNotFound)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()
	text, err := s.briefGen.Generate(ctx, briefSummary(ds))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"brief": text})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ds, edits := s.session()
	rows := 0
	if ds != nil {
		rows = len(ds.Rows)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"rows":           rows,
		"ledger_records": edits.Len(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
