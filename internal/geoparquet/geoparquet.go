// Package geoparquet reads Parquet files into plain attribute columns.
//
// Parquet has no native geometry typing, so the result is a bag of columns of
// `any` values; geometry detection and decoding happen downstream in the
// loader. When the file carries GeoParquet "geo" metadata, the declared
// primary geometry column and its CRS are surfaced as hints.
package geoparquet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	pqfile "github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"geoqa/internal/dataset"
)

// Table is the raw columnar content of one Parquet file plus any GeoParquet
// hints found in the file metadata.
type Table struct {
	Columns []dataset.Column

	// GeoColumn is the primary geometry column declared by "geo" metadata,
	// empty when the file has none.
	GeoColumn string

	// CRS is the "AUTHORITY:CODE" label for GeoColumn, empty when the
	// metadata declares no identifiable CRS.
	CRS string
}

// Read parses raw Parquet bytes into row-aligned columns.
func Read(ctx context.Context, raw []byte) (*Table, error) {
	pqReader, err := pqfile.NewParquetReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parquet open: %w", err)
	}
	defer pqReader.Close()

	arrowReader, err := pqarrow.NewFileReader(pqReader, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return nil, fmt.Errorf("parquet open: %w", err)
	}

	tbl, err := arrowReader.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("parquet read: %w", err)
	}
	defer tbl.Release()

	out := &Table{}
	schema := tbl.Schema()
	rows := int(tbl.NumRows())

	for i := 0; i < schema.NumFields(); i++ {
		col := dataset.Column{
			Name:   schema.Field(i).Name,
			Values: make([]any, 0, rows),
		}
		for _, chunk := range tbl.Column(i).Data().Chunks() {
			appendValues(&col, chunk)
		}
		out.Columns = append(out.Columns, col)
	}

	if idx := schema.Metadata().FindKey("geo"); idx >= 0 {
		out.GeoColumn, out.CRS = parseGeoMetadata(schema.Metadata().Values()[idx])
	}

	return out, nil
}

// appendValues converts one arrow chunk into Go cell values. Unhandled array
// types degrade to their string rendering rather than failing the load.
func appendValues(col *dataset.Column, arr arrow.Array) {
	n := arr.Len()
	for i := 0; i < n; i++ {
		if arr.IsNull(i) {
			col.Values = append(col.Values, nil)
			continue
		}
		col.Values = append(col.Values, cellValue(arr, i))
	}
}

func cellValue(arr arrow.Array, i int) any {
	switch a := arr.(type) {
	case *array.Boolean:
		return a.Value(i)
	case *array.Int8:
		return int64(a.Value(i))
	case *array.Int16:
		return int64(a.Value(i))
	case *array.Int32:
		return int64(a.Value(i))
	case *array.Int64:
		return a.Value(i)
	case *array.Uint8:
		return int64(a.Value(i))
	case *array.Uint16:
		return int64(a.Value(i))
	case *array.Uint32:
		return int64(a.Value(i))
	case *array.Uint64:
		return int64(a.Value(i))
	case *array.Float32:
		return float64(a.Value(i))
	case *array.Float64:
		return a.Value(i)
	case *array.String:
		return a.Value(i)
	case *array.LargeString:
		return a.Value(i)
	case *array.Binary:
		return append([]byte(nil), a.Value(i)...)
	case *array.LargeBinary:
		return append([]byte(nil), a.Value(i)...)
	case *array.FixedSizeBinary:
		return append([]byte(nil), a.Value(i)...)
	case *array.Date32:
		return a.Value(i).ToTime()
	case *array.Date64:
		return a.Value(i).ToTime()
	case *array.Timestamp:
		if dt, ok := a.DataType().(*arrow.TimestampType); ok {
			return a.Value(i).ToTime(dt.Unit)
		}
		return a.ValueStr(i)
	default:
		return arr.ValueStr(i)
	}
}

// geoMetadata mirrors the subset of the GeoParquet "geo" file metadata the
// loader cares about: the primary column and its CRS identifier.
type geoMetadata struct {
	PrimaryColumn string `json:"primary_column"`
	Columns       map[string]struct {
		CRS *struct {
			ID *struct {
				Authority string `json:"authority"`
				Code      any    `json:"code"`
			} `json:"id"`
		} `json:"crs"`
	} `json:"columns"`
}

func parseGeoMetadata(raw string) (column, crs string) {
	var meta geoMetadata
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return "", ""
	}
	column = meta.PrimaryColumn
	if c, ok := meta.Columns[column]; ok && c.CRS != nil && c.CRS.ID != nil && c.CRS.ID.Authority != "" {
		crs = fmt.Sprintf("%s:%s", c.CRS.ID.Authority, codeString(c.CRS.ID.Code))
	}
	return column, crs
}

// codeString normalizes the CRS code, which GeoParquet metadata allows as a
// number or a string.
func codeString(code any) string {
	switch c := code.(type) {
	case string:
		return c
	case float64:
		return fmt.Sprintf("%.0f", c)
	default:
		return fmt.Sprint(c)
	}
}
