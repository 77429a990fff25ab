package qastats

import (
	"math"
	"reflect"
	"testing"

	"github.com/paulmach/orb"

	"geoqa/internal/dataset"
)

func TestComputeEmptyDataset(t *testing.T) {
	t.Parallel()

	st := Compute(&dataset.Dataset{})
	if st.Failed {
		t.Fatal("Failed = true for empty dataset")
	}
	if st.Rows != 0 || st.Cols != 0 {
		t.Fatalf("rows/cols = %d/%d, want 0/0", st.Rows, st.Cols)
	}
	if len(st.NullCounts) != 0 || len(st.ConstantColumns) != 0 {
		t.Fatalf("null/constant = %v/%v, want empty", st.NullCounts, st.ConstantColumns)
	}
	if st.BBox != nil {
		t.Fatalf("BBox = %v, want nil", st.BBox)
	}
}

// TestConstantColumns pins the single-state rule: a column is constant iff its
// states (distinct non-null values, plus a null state when any null exists)
// number exactly one.
func TestConstantColumns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		values []any
		want   bool
	}{
		{"single repeated value", []any{10.0, 10.0, 10.0}, true},
		{"all null", []any{nil, nil}, true},
		{"value plus null is two states", []any{10.0, nil, 10.0}, false},
		{"two values", []any{10.0, 11.0}, false},
		{"int and float collapse", []any{int64(10), 10.0}, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := &dataset.Dataset{Attrs: []dataset.Column{{Name: "v", Values: tt.values}}}
			st := Compute(d)
			got := len(st.ConstantColumns) == 1 && st.ConstantColumns[0] == "v"
			if got != tt.want {
				t.Fatalf("constant = %v (%v), want %v", got, st.ConstantColumns, tt.want)
			}
		})
	}
}

func TestConstantGeometryColumn(t *testing.T) {
	t.Parallel()

	d := &dataset.Dataset{
		Attrs:       []dataset.Column{{Name: "id", Values: []any{int64(1), int64(2)}}},
		Geometry:    []orb.Geometry{orb.Point{1, 2}, orb.Point{1, 2}},
		HasGeometry: true,
	}
	st := Compute(d)
	if !reflect.DeepEqual(st.ConstantColumns, []string{dataset.GeometryColumn}) {
		t.Fatalf("ConstantColumns = %v, want [%s]", st.ConstantColumns, dataset.GeometryColumn)
	}
}

// TestNullCountOrdering verifies descending count with ties broken by column
// order, and that the geometry column participates.
func TestNullCountOrdering(t *testing.T) {
	t.Parallel()

	d := &dataset.Dataset{
		Attrs: []dataset.Column{
			{Name: "a", Values: []any{nil, "x", "y"}},
			{Name: "b", Values: []any{nil, nil, "z"}},
			{Name: "c", Values: []any{nil, "x", nil}},
			{Name: "full", Values: []any{"1", "2", "3"}},
		},
		Geometry:    []orb.Geometry{orb.Point{0, 0}, nil, orb.Point{1, 1}},
		HasGeometry: true,
	}

	st := Compute(d)
	want := []NullCount{
		{"b", 2},
		{"c", 2},
		{"a", 1},
		{dataset.GeometryColumn, 1},
	}
	if !reflect.DeepEqual(st.NullCounts, want) {
		t.Fatalf("NullCounts = %v, want %v", st.NullCounts, want)
	}
}

func TestComputeGeometryStats(t *testing.T) {
	t.Parallel()

	openRing := orb.Polygon{orb.Ring{{0, 0}, {1, 0}, {1, 1}, {2, 2}}}
	closed := orb.Polygon{orb.Ring{{0, 0}, {4, 0}, {4, 4}, {0, 0}}}

	d := &dataset.Dataset{
		Attrs: []dataset.Column{{Name: "id", Values: []any{int64(1), int64(2), int64(3), int64(4), int64(5)}}},
		Geometry: []orb.Geometry{
			orb.Point{-10, 2},
			orb.LineString{}, // empty
			openRing,         // invalid: ring not closed
			closed,
			nil,
		},
		HasGeometry: true,
	}

	st := Compute(d)
	wantTypes := map[string]int{"Point": 1, "LineString": 1, "Polygon": 2}
	if !reflect.DeepEqual(st.GeomTypes, wantTypes) {
		t.Fatalf("GeomTypes = %v, want %v", st.GeomTypes, wantTypes)
	}
	if st.EmptyGeoms != 1 {
		t.Fatalf("EmptyGeoms = %d, want 1", st.EmptyGeoms)
	}
	if st.InvalidGeoms != 1 {
		t.Fatalf("InvalidGeoms = %d, want 1", st.InvalidGeoms)
	}
	if st.BBox == nil {
		t.Fatal("BBox = nil, want envelope")
	}
	if *st.BBox != [4]float64{-10, 0, 4, 4} {
		t.Fatalf("BBox = %v, want [-10 0 4 4]", *st.BBox)
	}
}

func TestStructuralValidity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		g    orb.Geometry
		want bool
	}{
		{"point", orb.Point{1, 2}, true},
		{"nan point", orb.Point{math.NaN(), 0}, false},
		{"inf point", orb.Point{0, math.Inf(1)}, false},
		{"one-point linestring", orb.LineString{{0, 0}}, false},
		{"two-point linestring", orb.LineString{{0, 0}, {1, 1}}, true},
		{"closed ring", orb.Polygon{orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}, true},
		{"open ring", orb.Polygon{orb.Ring{{0, 0}, {1, 0}, {1, 1}, {2, 2}}}, false},
		{"short ring", orb.Polygon{orb.Ring{{0, 0}, {1, 0}, {0, 0}}}, false},
		{"multipolygon with bad member", orb.MultiPolygon{
			{orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 0}}},
			{orb.Ring{{0, 0}, {1, 0}}},
		}, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := isStructurallyValid(tt.g); got != tt.want {
				t.Fatalf("isStructurallyValid = %v, want %v", got, tt.want)
			}
		})
	}
}
