// Package api hosts the review session over HTTP: dataset uploads, the
// classified point feed for an external map renderer, the edit ledger, and
// its exports. One server owns one session (one dataset, one ledger).
package api

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/railscan/polemap/internal/brief"
	"github.com/railscan/polemap/internal/ledger"
	"github.com/railscan/polemap/internal/models"
	"github.com/railscan/polemap/internal/store"
)

// Config carries the server's fixed settings.
type Config struct {
	Port string
	// ImageBaseURL is the rig image archive host, e.g. "http://10.10.10.100:8173".
	ImageBaseURL string
	Camera       string
	Rig          string
	// Loc interprets zoneless dataset timestamps.
	Loc *time.Location
}

type Server struct {
	store  *store.Store
	cfg    Config
	client *http.Client

	mu       sync.Mutex
	dataset  *models.Dataset
	uploadID sql.NullInt64
	edits    *ledger.Ledger

	briefGen *brief.Generator
}

func NewServer(st *store.Store, cfg Config) *Server {
	if cfg.Camera == "" {
		cfg.Camera = "FWD"
	}
	if cfg.Rig == "" {
		cfg.Rig = "rig-front-uf"
	}
	if cfg.Loc == nil {
		cfg.Loc = time.UTC
	}

	// Brief generation is optional - may not have an API key
	var briefGen *brief.Generator
	if gen, err := brief.NewGenerator(); err != nil {
		log.Printf("Inspection briefs disabled: %v", err)
	} else {
		briefGen = gen
	}

	return &Server{
		store: st,
		cfg:   cfg,
		// Archive fetches go through fetchImage's retry loop; this
		// timeout bounds a single attempt.
		client:   &http.Client{Timeout: 30 * time.Second},
		edits:    ledger.New(),
		briefGen: briefGen,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/dataset", s.handleUploadDataset)
	mux.HandleFunc("GET /api/dataset", s.handleDatasetInfo)
	mux.HandleFunc("GET /api/points", s.handlePoints)
	mux.HandleFunc("GET /api/hours", s.handleHours)
	mux.HandleFunc("POST /api/edits", s.handleSubmitEdits)
	mux.HandleFunc("GET /api/edits", s.handleListEdits)
	mux.HandleFunc("DELETE /api/edits", s.handleClearEdits)
	mux.HandleFunc("GET /api/edits/export.csv", s.handleExportCSV)
	mux.HandleFunc("GET /api/edits/export.jsonl", s.handleExportJSONLines)
	mux.HandleFunc("GET /api/edits/snapshots", s.handleListSnapshots)
	mux.HandleFunc("GET /api/uploads", s.handleListUploads)
	mux.HandleFunc("GET /api/image", s.handleImage)
	mux.HandleFunc("GET /api/brief", s.handleBrief)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    ":" + s.cfg.Port,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// session returns the current dataset and ledger under the lock.
func (s *Server) session() (*models.Dataset, *ledger.Ledger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dataset, s.edits
}
