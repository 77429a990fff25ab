// Package loader turns raw file bytes into a normalized dataset.
//
// GeoPackage files are self-describing and delegated entirely to the gpkg
// reader. Parquet files carry no geometry typing, so the loader runs the
// detector (seeded by GeoParquet metadata when present), tries direct adoption
// of already-typed geometry, and only then falls back to the geometry codec on
// the raw column. Whatever column carried the geometry is renamed to the
// canonical name; attribute columns are untouched.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"

	"geoqa/internal/dataset"
	"geoqa/internal/detect"
	"geoqa/internal/geomcodec"
	"geoqa/internal/geoparquet"
	"geoqa/internal/gpkg"
)

// ErrUnsupportedFormat is a hard load failure: the file extension names a
// format the tool does not read.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Warning classifies the soft geometry conditions a load can end in.
type Warning int

const (
	// WarnNone: geometry established (or the format guaranteed it).
	WarnNone Warning = iota
	// WarnNoGeometryColumn: no candidate geometry column was detected; the
	// dataset is attributes-only by construction of the input.
	WarnNoGeometryColumn
	// WarnGeometryUnparseable: a candidate column existed but every decoding
	// attempt failed; the dataset is returned without geometry.
	WarnGeometryUnparseable
)

func (w Warning) String() string {
	switch w {
	case WarnNoGeometryColumn:
		return "no geometry column"
	case WarnGeometryUnparseable:
		return "geometry column present but unparseable"
	default:
		return "none"
	}
}

// Result is a successful load: the dataset plus the soft geometry condition
// and, when geometry was established from a source column, its original name.
type Result struct {
	Dataset *dataset.Dataset
	Warning Warning

	// SourceGeometryColumn is the original name of the column the geometry
	// came from, before the canonical rename. Empty for attributes-only
	// results.
	SourceGeometryColumn string
}

// Load parses raw file bytes, with the format declared by the file name's
// extension. Loading the same bytes twice yields an equivalent dataset; the
// loader keeps no state between calls.
func Load(ctx context.Context, raw []byte, name string) (*Result, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".gpkg":
		d, err := gpkg.ReadBytes(ctx, raw)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", name, err)
		}
		return &Result{Dataset: d, SourceGeometryColumn: dataset.GeometryColumn}, nil

	case ".parquet", ".geoparquet":
		return loadParquet(ctx, raw, name)

	default:
		return nil, fmt.Errorf("%w %q: supported formats are GeoPackage (.gpkg) and GeoParquet (.parquet)",
			ErrUnsupportedFormat, name)
	}
}

func loadParquet(ctx context.Context, raw []byte, name string) (*Result, error) {
	tbl, err := geoparquet.Read(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}

	geomCol, hint := pickGeometryColumn(tbl)
	if geomCol == "" {
		log.Printf("loader: %s: no geometry column detected, attributes-only", name)
		return &Result{
			Dataset: &dataset.Dataset{Attrs: tbl.Columns},
			Warning: WarnNoGeometryColumn,
		}, nil
	}

	rawValues := columnValues(tbl.Columns, geomCol)

	// Cheapest path first: the column may already hold typed geometry.
	geoms, ok := adoptGeometry(rawValues)
	if !ok {
		geoms, err = geomcodec.Decode(rawValues, geomCol, hint)
		if errors.Is(err, geomcodec.ErrUndecodable) {
			log.Printf("loader: %s: %v", name, err)
			return &Result{
				Dataset:              &dataset.Dataset{Attrs: dropColumn(tbl.Columns, geomCol)},
				Warning:              WarnGeometryUnparseable,
				SourceGeometryColumn: geomCol,
			}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", name, err)
		}
	}

	d := &dataset.Dataset{
		Attrs:       dropColumn(tbl.Columns, geomCol),
		Geometry:    geoms,
		HasGeometry: true,
		CRS:         tbl.CRS,
	}
	return &Result{Dataset: d, SourceGeometryColumn: geomCol}, nil
}

// pickGeometryColumn prefers the GeoParquet-declared primary column (which is
// WKB by specification, hence the hint); otherwise it takes the detector's
// first candidate in column order.
func pickGeometryColumn(tbl *geoparquet.Table) (string, geomcodec.Encoding) {
	if tbl.GeoColumn != "" {
		if _, ok := findColumn(tbl.Columns, tbl.GeoColumn); ok {
			return tbl.GeoColumn, geomcodec.EncodingWKB
		}
	}
	if candidates := detect.Candidates(tbl.Columns); len(candidates) > 0 {
		return candidates[0], geomcodec.EncodingAuto
	}
	return "", geomcodec.EncodingAuto
}

// adoptGeometry accepts the column as already-typed geometry only when that
// interpretation yields at least one non-null geometry; an entirely-null
// result sends the caller to the codec instead.
func adoptGeometry(values []any) ([]orb.Geometry, bool) {
	out := make([]orb.Geometry, len(values))
	nonNull := 0
	for i, v := range values {
		if v == nil {
			continue
		}
		g, ok := v.(orb.Geometry)
		if !ok {
			return nil, false
		}
		out[i] = g
		nonNull++
	}
	if nonNull == 0 {
		return nil, false
	}
	return out, true
}

func findColumn(columns []dataset.Column, name string) (int, bool) {
	for i := range columns {
		if columns[i].Name == name {
			return i, true
		}
	}
	return -1, false
}

func columnValues(columns []dataset.Column, name string) []any {
	if i, ok := findColumn(columns, name); ok {
		return columns[i].Values
	}
	return nil
}

func dropColumn(columns []dataset.Column, name string) []dataset.Column {
	out := make([]dataset.Column, 0, len(columns))
	for _, c := range columns {
		if c.Name != name {
			out = append(out, c)
		}
	}
	return out
}
