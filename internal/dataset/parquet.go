package dataset

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"
)

// decodeParquet reads a columnar binary table. Cells come back with their
// physical types; timestamp logical columns are converted to time.Time so
// normalization sees timezone-aware values.
func decodeParquet(data []byte) (*RawTable, error) {
	f, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}

	schema := f.Schema()
	paths := schema.Columns()
	names := make([]string, len(paths))
	nodes := make([]parquet.Node, len(paths))
	for _, p := range paths {
		leaf, ok := schema.Lookup(p...)
		if !ok {
			return nil, fmt.Errorf("parquet schema lookup failed for column %v", p)
		}
		names[leaf.ColumnIndex] = p[len(p)-1]
		nodes[leaf.ColumnIndex] = leaf.Node
	}

	table := &RawTable{Columns: append([]string(nil), names...)}
	buf := make([]parquet.Row, 128)
	for _, rg := range f.RowGroups() {
		rows := rg.Rows()
		for {
			n, err := rows.ReadRows(buf)
			for _, r := range buf[:n] {
				m := make(map[string]any, len(names))
				for _, v := range r {
					idx := v.Column()
					if idx < 0 || idx >= len(names) {
						continue
					}
					m[names[idx]] = parquetCell(v, nodes[idx])
				}
				table.Rows = append(table.Rows, m)
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("read parquet rows: %w", err)
			}
			if n == 0 {
				break
			}
		}
		if err := rows.Close(); err != nil {
			return nil, fmt.Errorf("close parquet row group: %w", err)
		}
	}
	return table, nil
}

func parquetCell(v parquet.Value, node parquet.Node) any {
	if v.IsNull() {
		return nil
	}
	if node != nil {
		if lt := node.Type().LogicalType(); lt != nil && lt.Timestamp != nil {
			n := v.Int64()
			unit := lt.Timestamp.Unit
			switch {
			case unit.Millis != nil:
				return time.UnixMilli(n).UTC()
			case unit.Micros != nil:
				return time.UnixMicro(n).UTC()
			default:
				return time.Unix(0, n).UTC()
			}
		}
	}
	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Int32:
		return v.Int32()
	case parquet.Int64:
		return v.Int64()
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	}
	return nil
}
