package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"time"

	"github.com/railscan/polemap/internal/metrics"
	"github.com/railscan/polemap/internal/store"
)

// LoadFunc consumes one fetched dataset file. The api server provides this
// so a pulled file goes through the same decode/normalize/register path as
// a manual upload.
type LoadFunc func(name string, data []byte) error

// Poller pulls the newest unseen file from the FTP drop on an interval.
// "Unseen" is judged by payload hash against the upload registry, so a
// restart does not re-load files already ingested.
type Poller struct {
	client   *DropClient
	store    *store.Store
	interval time.Duration
	load     LoadFunc
}

func NewPoller(client *DropClient, st *store.Store, interval time.Duration, load LoadFunc) *Poller {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Poller{client: client, store: st, interval: interval, load: load}
}

func (p *Poller) Run(ctx context.Context) {
	p.pollOnce()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollOnce()
		}
	}
}

func (p *Poller) pollOnce() {
	files, err := p.client.List()
	if err != nil {
		log.Printf("ftp poll: list: %v", err)
		metrics.FTPPullsTotal.WithLabelValues("list_error").Inc()
		return
	}
	if len(files) == 0 {
		metrics.FTPPullsTotal.WithLabelValues("empty").Inc()
		return
	}

	newest := files[0]
	data, err := p.client.Fetch(newest.Name)
	if err != nil {
		log.Printf("ftp poll: fetch %s: %v", newest.Name, err)
		metrics.FTPPullsTotal.WithLabelValues("fetch_error").Inc()
		return
	}

	hash := sha256.Sum256(data)
	seen, err := p.store.HasUploadHash(hex.EncodeToString(hash[:]))
	if err != nil {
		log.Printf("ftp poll: hash lookup: %v", err)
		metrics.FTPPullsTotal.WithLabelValues("store_error").Inc()
		return
	}
	if seen {
		metrics.FTPPullsTotal.WithLabelValues("seen").Inc()
		return
	}

	if err := p.load(newest.Name, data); err != nil {
		log.Printf("ftp poll: load %s: %v", newest.Name, err)
		metrics.FTPPullsTotal.WithLabelValues("load_error").Inc()
		return
	}
	log.Printf("ftp poll: loaded %s (%d bytes)", newest.Name, len(data))
	metrics.FTPPullsTotal.WithLabelValues("loaded").Inc()
}
