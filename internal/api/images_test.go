package api

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func TestScaleImage(t *testing.T) {
	data := encodePNG(t, 800, 1000)

	scaled, err := scaleImage(data, 500)
	if err != nil {
		t.Fatalf("scaleImage failed: %v", err)
	}

	img, err := jpeg.Decode(bytes.NewReader(scaled))
	if err != nil {
		t.Fatalf("result is not a jpeg: %v", err)
	}
	if got := img.Bounds().Dy(); got != 500 {
		t.Errorf("height = %d, want 500", got)
	}
	if got := img.Bounds().Dx(); got != 400 {
		t.Errorf("width = %d, want 400", got)
	}
}

func TestScaleImage_SmallImageKeepsSize(t *testing.T) {
	data := encodePNG(t, 100, 80)

	scaled, err := scaleImage(data, 500)
	if err != nil {
		t.Fatalf("scaleImage failed: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(scaled))
	if err != nil {
		t.Fatalf("result is not a jpeg: %v", err)
	}
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 80 {
		t.Errorf("bounds = %v, want 100x80", img.Bounds())
	}
}

func TestScaleImage_NotAnImage(t *testing.T) {
	if _, err := scaleImage([]byte("not an image"), 500); err == nil {
		t.Error("expected an error for non-image data")
	}
}

func TestFetchImage_PermanentOn404(t *testing.T) {
	calls := 0
	archive := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.NotFound(w, r)
	}))
	defer archive.Close()

	s := setupTestServer(t)
	_, err := s.fetchImage(archive.URL + "/FWD/rig-front-uf/2024/03/14/09/missing.jpg")
	if err == nil {
		t.Fatal("expected an error for a missing frame")
	}
	if calls != 1 {
		t.Errorf("archive was called %d times, want 1 (no retries on 4xx)", calls)
	}
	if !strings.Contains(err.Error(), "status 404") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestHandleImage(t *testing.T) {
	archive := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/FWD/rig-front-uf/2024/03/14/09/frames/000123.jpg" {
			http.NotFound(w, r)
			return
		}
		w.Write(encodePNG(t, 200, 1200))
	}))
	defer archive.Close()

	s := setupTestServer(t)
	s.cfg.ImageBaseURL = archive.URL
	h := s.Handler()
	uploadCSV(t, h, "survey.csv", testCSV)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/api/image?row_id=0", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("content type = %q", ct)
	}
	img, err := jpeg.Decode(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("response is not a jpeg: %v", err)
	}
	if img.Bounds().Dy() != 500 {
		t.Errorf("height = %d, want 500", img.Bounds().Dy())
	}

	// Row without an image.
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/api/image?row_id=1", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("row without image: status = %d, want 404", w.Code)
	}
}
