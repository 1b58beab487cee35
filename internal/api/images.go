package api

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/image/draw"

	"github.com/railscan/polemap/internal/metrics"
)

// maxImageHeight caps proxied rig images; the originals are full-frame
// captures far larger than the popup that displays them.
const maxImageHeight = 500

// handleImage proxies a row's forward rig capture through the server,
// scaled down for display. The archive host usually sits on the survey
// network and is not reachable from the operator's browser directly.
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	ds, _ := s.session()
	if ds == nil {
		http.Error(w, "no dataset loaded", http.StatusNotFound)
		return
	}
	rowID, err := strconv.Atoi(r.URL.Query().Get("row_id"))
	if err != nil {
		http.Error(w, "row_id must be an integer", http.StatusBadRequest)
		return
	}
	row, ok := ds.Row(rowID)
	if !ok {
		http.Error(w, fmt.Sprintf("row %d not in current dataset", rowID), http.StatusNotFound)
		return
	}
	url := s.imageURLFor(row)
	if url == "" {
		http.Error(w, "row has no image", http.StatusNotFound)
		return
	}

	data, err := s.fetchImage(url)
	if err != nil {
		metrics.ImageFetches.WithLabelValues("error").Inc()
		log.Printf("fetch image %s: %v", url, err)
		http.Error(w, "image fetch failed", http.StatusBadGateway)
		return
	}

	scaled, err := scaleImage(data, maxImageHeight)
	if err != nil {
		// Not decodable as an image; pass the payload through untouched.
		metrics.ImageFetches.WithLabelValues("passthrough").Inc()
		w.Header().Set("Content-Type", http.DetectContentType(data))
		w.Write(data)
		return
	}
	metrics.ImageFetches.WithLabelValues("ok").Inc()
	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(scaled)
}

// fetchImage retrieves a rig image with retries. Archive responses in the
// 4xx range are permanent - retrying a missing frame will not conjure it.
func (s *Server) fetchImage(url string) ([]byte, error) {
	var data []byte
	operation := func() error {
		resp, err := s.client.Get(url)
		if err != nil {
			return fmt.Errorf("fetching %s: %w", url, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return backoff.Permanent(fmt.Errorf("fetching %s: status %d", url, resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("fetching %s: status %d", url, resp.StatusCode)
		}

		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading %s: %w", url, err)
		}
		return nil
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(operation, expBackoff); err != nil {
		return nil, err
	}
	return data, nil
}

// scaleImage decodes data and, when taller than maxHeight, downscales it
// preserving aspect ratio. The result is always re-encoded as JPEG.
func scaleImage(data []byte, maxHeight int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	if bounds.Dy() > maxHeight {
		width := bounds.Dx() * maxHeight / bounds.Dy()
		dst := image.NewRGBA(image.Rect(0, 0, width, maxHeight))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
		src = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}
