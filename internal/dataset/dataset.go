// Package dataset defines the normalized in-memory representation that every
// core component (statistics, comparison, query registration, export) consumes.
//
// A Dataset is an ordered set of attribute columns plus an optional geometry
// column with a dataset-wide CRS label. Cell values are held as `any` with nil
// meaning null; geometry rows are independently nullable. Datasets are
// immutable after construction: operations that change a dataset (CRS
// correction) build a new one.
package dataset

import (
	"github.com/paulmach/orb"
)

// GeometryColumn is the canonical name of the geometry column. Loaders rename
// whatever source column carried the geometry to this name.
const GeometryColumn = "geometry"

// Column is one named attribute column. Values are row-aligned; nil means null.
type Column struct {
	Name   string
	Values []any
}

// Dataset is the normalized attributes+geometry+CRS unit.
//
// Geometry is row-aligned with the attribute columns; a nil entry is a null
// geometry. HasGeometry distinguishes "geometry column exists but all rows are
// null" from "no geometry column at all" for zero-row datasets.
type Dataset struct {
	Attrs       []Column
	Geometry    []orb.Geometry
	HasGeometry bool

	// CRS is the coordinate reference system label for the geometry column
	// as a whole (e.g. "EPSG:4326"). Empty means not defined.
	CRS string
}

// RowCount returns the number of rows. Defined (zero) for empty datasets.
func (d *Dataset) RowCount() int {
	if len(d.Attrs) > 0 {
		return len(d.Attrs[0].Values)
	}
	if d.HasGeometry {
		return len(d.Geometry)
	}
	return 0
}

// ColumnCount counts attribute columns plus the geometry column when present.
func (d *Dataset) ColumnCount() int {
	n := len(d.Attrs)
	if d.HasGeometry {
		n++
	}
	return n
}

// ColumnNames returns attribute names in order, with the canonical geometry
// name appended when a geometry column exists.
func (d *Dataset) ColumnNames() []string {
	out := make([]string, 0, d.ColumnCount())
	for _, c := range d.Attrs {
		out = append(out, c.Name)
	}
	if d.HasGeometry {
		out = append(out, GeometryColumn)
	}
	return out
}

// Column returns the attribute column with the given name, if any.
func (d *Dataset) Column(name string) (*Column, bool) {
	for i := range d.Attrs {
		if d.Attrs[i].Name == name {
			return &d.Attrs[i], true
		}
	}
	return nil, false
}

// NullCount returns the number of nil values in a row-aligned slice.
func NullCount(values []any) int {
	n := 0
	for _, v := range values {
		if v == nil {
			n++
		}
	}
	return n
}

// DistinctCount counts distinct non-null values using canonical keys.
func DistinctCount(values []any) int {
	seen := make(map[string]struct{})
	for _, v := range values {
		if v == nil {
			continue
		}
		seen[CanonicalKey(v)] = struct{}{}
	}
	return len(seen)
}
