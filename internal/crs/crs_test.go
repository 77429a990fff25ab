package crs

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"geoqa/internal/dataset"
)

func wgs84Sample() *dataset.Dataset {
	return &dataset.Dataset{
		Attrs:       []dataset.Column{{Name: "id", Values: []any{int64(1), int64(2)}}},
		Geometry:    []orb.Geometry{orb.Point{1, 0}, nil},
		HasGeometry: true,
		CRS:         "EPSG:4326",
	}
}

func TestCorrectReassign(t *testing.T) {
	t.Parallel()

	src := wgs84Sample()
	out, err := Correct(src, "EPSG:3857", Reassign)
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}

	if out.CRS != "EPSG:3857" {
		t.Fatalf("CRS = %q, want EPSG:3857", out.CRS)
	}
	// Reassign relabels only: coordinates untouched, source unchanged.
	if !reflect.DeepEqual(out.Geometry[0], orb.Point{1, 0}) {
		t.Fatalf("geometry changed under reassign: %v", out.Geometry[0])
	}
	if src.CRS != "EPSG:4326" {
		t.Fatalf("source CRS mutated to %q", src.CRS)
	}
}

func TestCorrectReproject(t *testing.T) {
	t.Parallel()

	src := wgs84Sample()
	out, err := Correct(src, "EPSG:3857", Reproject)
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}

	p, ok := out.Geometry[0].(orb.Point)
	if !ok {
		t.Fatalf("geometry[0] = %T, want Point", out.Geometry[0])
	}
	// One degree of longitude at the equator in Web Mercator meters.
	const wantX = 111319.49079327358
	if math.Abs(p[0]-wantX) > 1e-6 || math.Abs(p[1]) > 1e-6 {
		t.Fatalf("reprojected point = %v, want (%g, 0)", p, wantX)
	}
	if out.Geometry[1] != nil {
		t.Fatalf("geometry[1] = %v, want nil", out.Geometry[1])
	}

	// Source is untouched.
	if !reflect.DeepEqual(src.Geometry[0], orb.Point{1, 0}) {
		t.Fatalf("source geometry mutated: %v", src.Geometry[0])
	}
	if src.CRS != "EPSG:4326" {
		t.Fatalf("source CRS mutated to %q", src.CRS)
	}
}

func TestCorrectReprojectRoundTrip(t *testing.T) {
	t.Parallel()

	src := wgs84Sample()
	mercator, err := Correct(src, "EPSG:3857", Reproject)
	if err != nil {
		t.Fatalf("to mercator: %v", err)
	}
	back, err := Correct(mercator, "EPSG:4326", Reproject)
	if err != nil {
		t.Fatalf("back to wgs84: %v", err)
	}

	p := back.Geometry[0].(orb.Point)
	if math.Abs(p[0]-1) > 1e-9 || math.Abs(p[1]) > 1e-9 {
		t.Fatalf("round trip = %v, want (1, 0)", p)
	}
}

func TestCorrectErrors(t *testing.T) {
	t.Parallel()

	t.Run("unsupported pair", func(t *testing.T) {
		t.Parallel()
		src := wgs84Sample()
		_, err := Correct(src, "EPSG:25832", Reproject)
		if !errors.Is(err, ErrUnsupportedProjection) {
			t.Fatalf("err = %v, want ErrUnsupportedProjection", err)
		}
	})

	t.Run("undefined source", func(t *testing.T) {
		t.Parallel()
		src := wgs84Sample()
		src.CRS = ""
		_, err := Correct(src, "EPSG:3857", Reproject)
		if err == nil || !strings.Contains(err.Error(), "undefined") {
			t.Fatalf("err = %v, want undefined-source error", err)
		}
	})

	t.Run("no geometry", func(t *testing.T) {
		t.Parallel()
		src := &dataset.Dataset{Attrs: []dataset.Column{{Name: "id", Values: []any{int64(1)}}}}
		_, err := Correct(src, "EPSG:3857", Reproject)
		if err == nil || !strings.Contains(err.Error(), "no geometry") {
			t.Fatalf("err = %v, want no-geometry error", err)
		}
	})

	t.Run("empty target", func(t *testing.T) {
		t.Parallel()
		_, err := Correct(wgs84Sample(), "  ", Reassign)
		if err == nil {
			t.Fatal("err = nil, want empty-target error")
		}
	})
}

func TestCorrectReprojectSameCRS(t *testing.T) {
	t.Parallel()

	src := wgs84Sample()
	out, err := Correct(src, "4326", Reproject)
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}
	if out.CRS != "EPSG:4326" {
		t.Fatalf("CRS = %q, want EPSG:4326", out.CRS)
	}
	if !reflect.DeepEqual(out.Geometry[0], orb.Point{1, 0}) {
		t.Fatalf("geometry changed under no-op reprojection: %v", out.Geometry[0])
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"EPSG:4326", "EPSG:4326"},
		{"epsg:4326", "EPSG:4326"},
		{"  epsg:3857 ", "EPSG:3857"},
		{"4326", "EPSG:4326"},
		{"OGC:CRS84", "EPSG:4326"},
		{"crs84", "EPSG:4326"},
		{"", ""},
		{"   ", ""},
		{"ESRI:102100", "ESRI:102100"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := Normalize(tt.in); got != tt.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
