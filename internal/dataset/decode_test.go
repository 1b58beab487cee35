package dataset

import (
	"bytes"
	"compress/gzip"
	"testing"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name    string
		format  Format
		gzipped bool
		wantErr bool
	}{
		{name: "poles.csv", format: FormatCSV},
		{name: "POLES.CSV", format: FormatCSV},
		{name: "poles.csv.gz", format: FormatCSV, gzipped: true},
		{name: "merged.parquet", format: FormatParquet},
		{name: "merged.parq", format: FormatParquet},
		{name: "merged.pq", format: FormatParquet},
		{name: "merged.parquet.gz", format: FormatParquet, gzipped: true},
		{name: "merged.parquet.gzip", format: FormatParquet, gzipped: true},
		{name: "merged.pq.gz", format: FormatParquet, gzipped: true},
		{name: "export/2024/merged.csv.gz", format: FormatCSV, gzipped: true},
		{name: "notes.txt", wantErr: true},
		{name: "archive.gz", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			format, gzipped, err := DetectFormat(tt.name)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("DetectFormat(%q) accepted unsupported name", tt.name)
				}
				return
			}
			if err != nil {
				t.Fatalf("DetectFormat(%q): %v", tt.name, err)
			}
			if format != tt.format || gzipped != tt.gzipped {
				t.Errorf("DetectFormat(%q) = (%s, %v), want (%s, %v)",
					tt.name, format, gzipped, tt.format, tt.gzipped)
			}
		})
	}
}

func TestDecode_CSV(t *testing.T) {
	data := []byte("pole_id,misplacement\nP1,0.08\nP2,\n")
	table, err := Decode("edits.csv", data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(table.Columns) != 2 || table.Columns[0] != "pole_id" {
		t.Fatalf("columns = %v", table.Columns)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(table.Rows))
	}
	if table.Rows[0]["misplacement"] != "0.08" {
		t.Errorf("cell = %v, want 0.08", table.Rows[0]["misplacement"])
	}
}

func TestDecode_GzippedCSV(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write([]byte("pole_id,misplacement\nP1,0.12\n")); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}

	table, err := Decode("poles.csv.gz", buf.Bytes())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(table.Rows) != 1 || table.Rows[0]["pole_id"] != "P1" {
		t.Fatalf("rows = %+v", table.Rows)
	}
}

func TestDecode_Latin1Fallback(t *testing.T) {
	// "Zürich" in Latin-1: 0xfc is not valid UTF-8 on its own.
	data := []byte{'p', 'o', 'l', 'e', '_', 'i', 'd', '\n', 'Z', 0xfc, 'r', 'i', 'c', 'h', '\n'}
	table, err := Decode("poles.csv", data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got := table.Rows[0]["pole_id"]; got != "Zürich" {
		t.Errorf("cell = %q, want %q", got, "Zürich")
	}
}

func TestDecode_CorruptGzip(t *testing.T) {
	if _, err := Decode("poles.csv.gz", []byte("not gzip at all")); err == nil {
		t.Fatal("expected error for corrupt gzip payload")
	}
}
