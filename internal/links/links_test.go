package links

import (
	"database/sql"
	"errors"
	"testing"
	"time"
)

func TestStreetViewURL(t *testing.T) {
	got := StreetViewURL(52.09, 5.12, 0, 0, 90)
	want := "https://www.google.com/maps/@?api=1&map_action=pano&viewpoint=52.09,5.12&heading=0&pitch=0&fov=90"
	if got != want {
		t.Errorf("StreetViewURL = %q, want %q", got, want)
	}
}

func TestStreetViewURL_NoValidation(t *testing.T) {
	// out-of-range values pass through verbatim
	got := StreetViewURL(200, -400, 720, -90, 0)
	want := "https://www.google.com/maps/@?api=1&map_action=pano&viewpoint=200,-400&heading=720&pitch=-90&fov=0"
	if got != want {
		t.Errorf("StreetViewURL = %q, want %q", got, want)
	}
}

func TestDefaultStreetViewURL(t *testing.T) {
	if got, want := DefaultStreetViewURL(1.5, 2.25), StreetViewURL(1.5, 2.25, 0, 0, 90); got != want {
		t.Errorf("defaults diverge: %q vs %q", got, want)
	}
}

func TestImageURL(t *testing.T) {
	ts := sql.NullTime{
		Time:  time.Date(2024, 3, 1, 9, 42, 0, 0, time.UTC),
		Valid: true,
	}
	got, err := ImageURL("http://10.10.10.100:8173", "FWD", "rig-front-uf", ts, "frame_000123.jpg")
	if err != nil {
		t.Fatalf("ImageURL: %v", err)
	}
	want := "http://10.10.10.100:8173/FWD/rig-front-uf/2024/03/01/09/frame_000123.jpg"
	if got != want {
		t.Errorf("ImageURL = %q, want %q", got, want)
	}
}

func TestImageURL_TrailingSlashHost(t *testing.T) {
	ts := sql.NullTime{Time: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), Valid: true}
	got, err := ImageURL("http://host:8173//", "FWD", "rig-front-uf", ts, "f.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if got != "http://host:8173/FWD/rig-front-uf/2024/03/01/09/f.jpg" {
		t.Errorf("ImageURL = %q", got)
	}
}

func TestImageURL_MissingTimestamp(t *testing.T) {
	_, err := ImageURL("http://host", "FWD", "rig-front-uf", sql.NullTime{}, "f.jpg")
	if !errors.Is(err, ErrMissingTimestamp) {
		t.Errorf("err = %v, want ErrMissingTimestamp", err)
	}
}

func TestImageURL_EmptyFileName(t *testing.T) {
	ts := sql.NullTime{Time: time.Now(), Valid: true}
	if _, err := ImageURL("http://host", "FWD", "rig", ts, ""); err == nil {
		t.Error("expected error for empty file name")
	}
}
