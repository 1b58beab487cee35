package dataset

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"path"
	"strings"
)

// Format is the container format of an uploaded table.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// DetectFormat infers the container format and gzip wrapping from a file
// name. Accepted: .csv, .parquet, .parq, .pq, each optionally followed by
// .gz or .gzip.
func DetectFormat(name string) (Format, bool, error) {
	base := strings.ToLower(path.Base(name))
	gzipped := false
	if strings.HasSuffix(base, ".gz") {
		base = strings.TrimSuffix(base, ".gz")
		gzipped = true
	} else if strings.HasSuffix(base, ".gzip") {
		base = strings.TrimSuffix(base, ".gzip")
		gzipped = true
	}
	switch path.Ext(base) {
	case ".csv":
		return FormatCSV, gzipped, nil
	case ".parquet", ".parq", ".pq":
		return FormatParquet, gzipped, nil
	}
	return "", false, fmt.Errorf("unsupported file extension in %q (want csv or parquet, optionally gzipped)", name)
}

// Decode turns an uploaded file into a RawTable. The format is inferred
// from the name; the bytes are decompressed first when the name carries a
// gzip suffix.
func Decode(name string, data []byte) (*RawTable, error) {
	format, gzipped, err := DetectFormat(name)
	if err != nil {
		return nil, err
	}
	if gzipped {
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("open gzip %s: %w", name, err)
		}
		data, err = io.ReadAll(gz)
		if err != nil {
			return nil, fmt.Errorf("decompress %s: %w", name, err)
		}
		if err := gz.Close(); err != nil {
			return nil, fmt.Errorf("close gzip %s: %w", name, err)
		}
	}
	switch format {
	case FormatParquet:
		return decodeParquet(data)
	default:
		return decodeCSV(data)
	}
}
