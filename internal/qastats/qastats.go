// Package qastats computes the fixed QA summary over one normalized dataset.
//
// All fields are defined even for zero-row or geometry-less datasets: counts
// become zero and the bounding box is absent only when no valid geometry
// exists. A panic anywhere in the computation is caught and converted into the
// Failed sentinel so a broken column can never crash a display cycle.
package qastats

import (
	"log"
	"math"
	"sort"

	"github.com/paulmach/orb"

	"geoqa/internal/dataset"
)

// NullCount is the per-column null tally, reported only for columns with at
// least one null.
type NullCount struct {
	Column string
	Count  int
}

// Stats is a snapshot derived from exactly one dataset. It is recomputed (via
// the session cache) whenever the dataset identity changes.
type Stats struct {
	// Failed is the empty-result sentinel: the computation panicked and the
	// caller should show "could not compute" instead of zeros.
	Failed bool

	Rows        int
	Cols        int
	CRS         string
	MemoryBytes int64

	// NullCounts is sorted by count descending, ties broken by original
	// column order.
	NullCounts []NullCount

	ConstantColumns []string

	GeomTypes    map[string]int
	EmptyGeoms   int
	InvalidGeoms int

	// BBox is the (min-x, min-y, max-x, max-y) envelope over all non-null
	// geometries, nil when no valid geometry exists.
	BBox *[4]float64
}

// Compute derives Stats from d. It never panics; unexpected failures are
// logged and yield the Failed sentinel.
func Compute(d *dataset.Dataset) (st Stats) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("qastats: computation failed: %v", r)
			st = Stats{Failed: true}
		}
	}()

	st.Rows = d.RowCount()
	st.Cols = d.ColumnCount()
	st.CRS = d.CRS
	st.MemoryBytes = d.MemoryEstimate()
	st.NullCounts = nullCounts(d)
	st.ConstantColumns = constantColumns(d)
	st.GeomTypes = map[string]int{}

	if !d.HasGeometry || len(d.Geometry) == 0 {
		return st
	}

	var bound orb.Bound
	haveBound := false
	for _, g := range d.Geometry {
		if g == nil {
			continue
		}
		st.GeomTypes[g.GeoJSONType()]++
		if isEmpty(g) {
			st.EmptyGeoms++
			continue
		}
		if !isStructurallyValid(g) {
			st.InvalidGeoms++
		}
		b := g.Bound()
		if haveBound {
			bound = bound.Union(b)
		} else {
			bound, haveBound = b, true
		}
	}
	if haveBound {
		st.BBox = &[4]float64{bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1]}
	}
	return st
}

func nullCounts(d *dataset.Dataset) []NullCount {
	type entry struct {
		NullCount
		order int
	}
	var entries []entry

	order := 0
	for _, c := range d.Attrs {
		if n := dataset.NullCount(c.Values); n > 0 {
			entries = append(entries, entry{NullCount{c.Name, n}, order})
		}
		order++
	}
	if d.HasGeometry {
		n := 0
		for _, g := range d.Geometry {
			if g == nil {
				n++
			}
		}
		if n > 0 {
			entries = append(entries, entry{NullCount{dataset.GeometryColumn, n}, order})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].order < entries[j].order
	})

	out := make([]NullCount, len(entries))
	for i, e := range entries {
		out[i] = e.NullCount
	}
	return out
}

// constantColumns applies the single-state rule: the states of a column are
// its distinct non-null values plus a null state when any null is present. A
// column is constant iff it has exactly one state, so an all-null column is
// constant and a column mixing one value with nulls is not.
func constantColumns(d *dataset.Dataset) []string {
	var out []string
	for _, c := range d.Attrs {
		if len(c.Values) > 0 && stateCount(c.Values) == 1 {
			out = append(out, c.Name)
		}
	}
	if d.HasGeometry && len(d.Geometry) > 0 {
		values := make([]any, len(d.Geometry))
		for i, g := range d.Geometry {
			if g != nil {
				values[i] = g
			}
		}
		if stateCount(values) == 1 {
			out = append(out, dataset.GeometryColumn)
		}
	}
	return out
}

func stateCount(values []any) int {
	n := dataset.DistinctCount(values)
	if dataset.NullCount(values) > 0 {
		n++
	}
	return n
}

// isEmpty reports topological emptiness: a geometry with no coordinates.
func isEmpty(g orb.Geometry) bool {
	switch t := g.(type) {
	case orb.Point:
		return false
	case orb.MultiPoint:
		return len(t) == 0
	case orb.LineString:
		return len(t) == 0
	case orb.MultiLineString:
		return len(t) == 0
	case orb.Ring:
		return len(t) == 0
	case orb.Polygon:
		return len(t) == 0
	case orb.MultiPolygon:
		return len(t) == 0
	case orb.Collection:
		return len(t) == 0
	}
	return false
}

// isStructurallyValid checks the structural subset of OGC validity: finite
// coordinates, minimum point counts, and closed rings. Self-intersections are
// not detected.
func isStructurallyValid(g orb.Geometry) bool {
	switch t := g.(type) {
	case orb.Point:
		return finite(t)
	case orb.MultiPoint:
		for _, p := range t {
			if !finite(p) {
				return false
			}
		}
		return true
	case orb.LineString:
		return validLineString(t)
	case orb.MultiLineString:
		for _, ls := range t {
			if !validLineString(ls) {
				return false
			}
		}
		return true
	case orb.Ring:
		return validRing(t)
	case orb.Polygon:
		return validPolygon(t)
	case orb.MultiPolygon:
		for _, p := range t {
			if !validPolygon(p) {
				return false
			}
		}
		return true
	case orb.Collection:
		for _, c := range t {
			if c == nil || isEmpty(c) {
				continue
			}
			if !isStructurallyValid(c) {
				return false
			}
		}
		return true
	case orb.Bound:
		return finite(t.Min) && finite(t.Max)
	}
	return false
}

func validLineString(ls orb.LineString) bool {
	if len(ls) < 2 {
		return false
	}
	for _, p := range ls {
		if !finite(p) {
			return false
		}
	}
	return true
}

func validRing(r orb.Ring) bool {
	if len(r) < 4 {
		return false
	}
	for _, p := range r {
		if !finite(p) {
			return false
		}
	}
	return r[0] == r[len(r)-1]
}

func validPolygon(p orb.Polygon) bool {
	if len(p) == 0 {
		return false
	}
	for _, r := range p {
		if !validRing(r) {
			return false
		}
	}
	return true
}

func finite(p orb.Point) bool {
	return !math.IsNaN(p[0]) && !math.IsInf(p[0], 0) &&
		!math.IsNaN(p[1]) && !math.IsInf(p[1], 0)
}
