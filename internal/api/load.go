package api

import (
	"database/sql"
	"log"
	"sort"

	"github.com/railscan/polemap/internal/brief"
	"github.com/railscan/polemap/internal/dataset"
	"github.com/railscan/polemap/internal/metrics"
	"github.com/railscan/polemap/internal/models"
	"github.com/railscan/polemap/internal/severity"
)

// UploadSummary reports one accepted dataset load.
type UploadSummary struct {
	UploadID    int64          `json:"upload_id"`
	Name        string         `json:"name"`
	Variant     models.Variant `json:"variant"`
	Rows        int            `json:"rows"`
	Duplicate   bool           `json:"duplicate"`
	CellErrors  map[string]int `json:"cell_errors,omitempty"`
	Severity    map[string]int `json:"severity"`
	// StaleLedger warns that a non-empty edit ledger now references row
	// identifiers from a previous dataset. The ledger is deliberately not
	// cleared on reload; clearing is an explicit operator action.
	StaleLedger bool `json:"stale_ledger"`
}

// LoadDataset decodes, normalizes, and registers an uploaded file, then
// makes it the session dataset. Used by the upload handler and the FTP
// poller alike; source distinguishes the two in the registry.
func (s *Server) LoadDataset(name string, data []byte, source string) (*UploadSummary, error) {
	format, _, err := dataset.DetectFormat(name)
	if err != nil {
		metrics.DatasetLoadsTotal.WithLabelValues(source, "unknown", "rejected").Inc()
		return nil, err
	}

	ds, cellErrs, err := dataset.Load(name, data, s.cfg.Loc)
	if err != nil {
		metrics.DatasetLoadsTotal.WithLabelValues(source, string(format), "rejected").Inc()
		return nil, err
	}

	uploadID, duplicate, err := s.store.RegisterUpload(
		name, string(format), string(ds.Variant), source,
		len(ds.Rows), cellErrs.Total(), data,
	)
	if err != nil {
		metrics.DatasetLoadsTotal.WithLabelValues(source, string(format), "store_error").Inc()
		return nil, err
	}

	counts := severityCounts(ds)

	s.mu.Lock()
	hadDataset := s.dataset != nil
	s.dataset = ds
	s.uploadID = sql.NullInt64{Int64: uploadID, Valid: true}
	staleLedger := hadDataset && s.edits.Len() > 0
	s.mu.Unlock()

	if staleLedger {
		log.Printf("dataset reloaded with %d ledger records still pending; row identifiers in the ledger may now point at different rows", s.edits.Len())
	}

	metrics.DatasetLoadsTotal.WithLabelValues(source, string(format), "ok").Inc()
	metrics.RowsNormalized.Add(float64(len(ds.Rows)))
	for col, n := range cellErrs.Counts {
		metrics.CellErrorsTotal.WithLabelValues(col).Add(float64(n))
	}
	for _, c := range severity.Categories() {
		metrics.SeverityRows.WithLabelValues(string(c)).Set(float64(counts[string(c)]))
	}

	summary := &UploadSummary{
		UploadID:    uploadID,
		Name:        name,
		Variant:     ds.Variant,
		Rows:        len(ds.Rows),
		Duplicate:   duplicate,
		Severity:    counts,
		StaleLedger: staleLedger,
	}
	if cellErrs.Total() > 0 {
		summary.CellErrors = cellErrs.Counts
	}
	return summary, nil
}

func severityCounts(ds *models.Dataset) map[string]int {
	counts := make(map[string]int)
	for i := range ds.Rows {
		c := severity.ClassifyNull(ds.Rows[i].SeverityMetric(ds.Variant))
		counts[string(c)]++
	}
	return counts
}

// briefSummary projects the session dataset into the shape the brief
// generator wants: the histogram plus the five largest misplacements.
func briefSummary(ds *models.Dataset) brief.Summary {
	counts := make(map[severity.Category]int)
	var worst []brief.WorstPole
	for i := range ds.Rows {
		row := &ds.Rows[i]
		m := row.SeverityMetric(ds.Variant)
		c := severity.ClassifyNull(m)
		counts[c]++
		if m.Valid {
			worst = append(worst, brief.WorstPole{PoleID: row.PoleID, Value: m.Float64, Category: c})
		}
	}
	sort.Slice(worst, func(i, j int) bool {
		return absFloat(worst[i].Value) > absFloat(worst[j].Value)
	})
	if len(worst) > 5 {
		worst = worst[:5]
	}
	return brief.Summary{
		Source:   ds.Source,
		RowCount: len(ds.Rows),
		Counts:   counts,
		Worst:    worst,
	}
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
