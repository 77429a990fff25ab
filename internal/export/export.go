// Package export serializes datasets and query results.
//
// The delimited-text path always converts geometry to WKT; the columnar
// binary path (Parquet) is available for query results.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/paulmach/orb/encoding/wkt"

	"geoqa/internal/dataset"
	"geoqa/internal/engine"
)

// CSV writes the dataset as delimited text: attribute columns in order, then
// the geometry column as WKT. Nulls render as empty fields.
func CSV(w io.Writer, d *dataset.Dataset) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(d.ColumnNames()); err != nil {
		return fmt.Errorf("csv export: %w", err)
	}

	rows := d.RowCount()
	record := make([]string, 0, d.ColumnCount())
	for r := 0; r < rows; r++ {
		record = record[:0]
		for _, c := range d.Attrs {
			record = append(record, dataset.FormatValue(c.Values[r]))
		}
		if d.HasGeometry {
			if g := d.Geometry[r]; g != nil {
				record = append(record, wkt.MarshalString(g))
			} else {
				record = append(record, "")
			}
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("csv export: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ResultCSV writes a query result as delimited text.
func ResultCSV(w io.Writer, rs *engine.ResultSet) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(rs.Columns); err != nil {
		return fmt.Errorf("csv export: %w", err)
	}
	record := make([]string, len(rs.Columns))
	for _, row := range rs.Rows {
		for i, v := range row {
			record[i] = dataset.FormatValue(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("csv export: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ResultParquet writes a query result as a Parquet file. Column types are
// inferred from the first non-null value per column; columns with no non-null
// value become string columns.
func ResultParquet(w io.Writer, rs *engine.ResultSet) error {
	fields := make([]arrow.Field, len(rs.Columns))
	for i, name := range rs.Columns {
		fields[i] = arrow.Field{Name: name, Type: columnArrowType(rs.Rows, i), Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	bldr := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer bldr.Release()

	for _, row := range rs.Rows {
		for i := range rs.Columns {
			appendCell(bldr.Field(i), row[i])
		}
	}

	rec := bldr.NewRecord()
	defer rec.Release()

	tbl := array.NewTableFromRecords(schema, []arrow.Record{rec})
	defer tbl.Release()

	chunk := rec.NumRows()
	if chunk == 0 {
		chunk = 1
	}
	if err := pqarrow.WriteTable(tbl, w, chunk, parquet.NewWriterProperties(), pqarrow.DefaultWriterProps()); err != nil {
		return fmt.Errorf("parquet export: %w", err)
	}
	return nil
}

func columnArrowType(rows [][]any, col int) arrow.DataType {
	for _, row := range rows {
		switch row[col].(type) {
		case nil:
			continue
		case int64, int, int32:
			return arrow.PrimitiveTypes.Int64
		case float64, float32:
			return arrow.PrimitiveTypes.Float64
		case bool:
			return arrow.FixedWidthTypes.Boolean
		case []byte:
			return arrow.BinaryTypes.Binary
		case time.Time:
			return arrow.FixedWidthTypes.Timestamp_us
		default:
			return arrow.BinaryTypes.String
		}
	}
	return arrow.BinaryTypes.String
}

// appendCell writes one value into the column builder, degrading to the text
// rendering when the value's type does not match the inferred column type.
func appendCell(b array.Builder, v any) {
	if v == nil {
		b.AppendNull()
		return
	}
	switch bb := b.(type) {
	case *array.Int64Builder:
		if f, ok := dataset.AsFloat(v); ok {
			bb.Append(int64(f))
			return
		}
	case *array.Float64Builder:
		if f, ok := dataset.AsFloat(v); ok {
			bb.Append(f)
			return
		}
	case *array.BooleanBuilder:
		if t, ok := v.(bool); ok {
			bb.Append(t)
			return
		}
	case *array.BinaryBuilder:
		if t, ok := v.([]byte); ok {
			bb.Append(t)
			return
		}
	case *array.TimestampBuilder:
		if t, ok := v.(time.Time); ok {
			bb.Append(arrow.Timestamp(t.UTC().UnixMicro()))
			return
		}
	case *array.StringBuilder:
		bb.Append(dataset.FormatValue(v))
		return
	}
	b.AppendNull()
}
