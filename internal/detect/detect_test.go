package detect

import (
	"reflect"
	"testing"

	"geoqa/internal/dataset"
)

type blob []byte

func col(name string, values ...any) dataset.Column {
	return dataset.Column{Name: name, Values: values}
}

func TestCandidates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		columns []dataset.Column
		want    []string
	}{
		{
			name: "name tokens in column order",
			columns: []dataset.Column{
				col("id", int64(1)),
				col("the_geom", "x"),
				col("SHAPE_area", 1.0),
				col("wkb_geometry", "x"),
			},
			want: []string{"the_geom", "SHAPE_area", "wkb_geometry"},
		},
		{
			name: "name match suppresses content scan",
			columns: []dataset.Column{
				col("spatial_ref", "whatever"),
				col("payload", "POINT(1 2)"),
			},
			want: []string{"spatial_ref"},
		},
		{
			name: "content wkt keyword",
			columns: []dataset.Column{
				col("id", int64(1)),
				col("outline", nil, "  polygon((0 0,1 0,1 1,0 0))"),
			},
			want: []string{"outline"},
		},
		{
			name: "content byte-like",
			columns: []dataset.Column{
				col("id", int64(1)),
				col("payload", []byte{0x01}),
			},
			want: []string{"payload"},
		},
		{
			name: "content named byte slice",
			columns: []dataset.Column{
				col("payload", blob{0x01}),
			},
			want: []string{"payload"},
		},
		{
			name: "sampling stops after five non-null values",
			columns: []dataset.Column{
				col("notes", "a", "b", "c", "d", "e", "POINT(1 2)"),
			},
			want: nil,
		},
		{
			name: "nulls do not consume the sample",
			columns: []dataset.Column{
				col("notes", nil, nil, nil, nil, nil, "POINT(1 2)"),
			},
			want: []string{"notes"},
		},
		{
			name: "no candidates",
			columns: []dataset.Column{
				col("id", int64(1)),
				col("label", "north"),
			},
			want: nil,
		},
		{
			name:    "no columns",
			columns: nil,
			want:    nil,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Candidates(tt.columns)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Candidates = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestCandidatesDeterministic verifies repeated detection over the same input
// yields the same ordered result.
func TestCandidatesDeterministic(t *testing.T) {
	t.Parallel()

	columns := []dataset.Column{
		col("geom_a", "x"),
		col("geom_b", "x"),
	}
	first := Candidates(columns)
	for i := 0; i < 10; i++ {
		if got := Candidates(columns); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d: Candidates = %v, want %v", i, got, first)
		}
	}
}
