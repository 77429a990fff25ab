// Package crs implements the user-triggered CRS correction operation.
//
// Reassign only relabels the declared CRS; reproject recomputes every
// geometry's coordinates into the target CRS and relabels. Both return a new
// dataset, leaving the input untouched; the caller invalidates any cached
// statistics for the old dataset identity.
package crs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"geoqa/internal/dataset"
)

// Mode selects between relabeling and recomputing coordinates.
type Mode int

const (
	Reassign Mode = iota
	Reproject
)

// ErrUnsupportedProjection marks a reprojection between CRS pairs the tool has
// no transform for.
var ErrUnsupportedProjection = errors.New("unsupported reprojection")

// Correct applies the CRS correction and returns a new dataset.
func Correct(d *dataset.Dataset, target string, mode Mode) (*dataset.Dataset, error) {
	target = Normalize(target)
	if target == "" {
		return nil, fmt.Errorf("crs: target CRS is empty")
	}

	switch mode {
	case Reassign:
		out := *d
		out.CRS = target
		return &out, nil

	case Reproject:
		return reproject(d, target)

	default:
		return nil, fmt.Errorf("crs: unknown mode %d", mode)
	}
}

func reproject(d *dataset.Dataset, target string) (*dataset.Dataset, error) {
	if !d.HasGeometry {
		return nil, fmt.Errorf("crs: dataset has no geometry to reproject")
	}
	source := Normalize(d.CRS)
	if source == "" {
		return nil, fmt.Errorf("crs: source CRS is undefined; reassign one before reprojecting")
	}
	if source == target {
		out := *d
		out.CRS = target
		return &out, nil
	}

	proj, err := projection(source, target)
	if err != nil {
		return nil, err
	}

	geoms := make([]orb.Geometry, len(d.Geometry))
	for i, g := range d.Geometry {
		if g == nil {
			continue
		}
		// project.Geometry transforms in place, so work on a clone to keep
		// the source dataset immutable.
		geoms[i] = project.Geometry(orb.Clone(g), proj)
	}

	out := *d
	out.Geometry = geoms
	out.CRS = target
	return &out, nil
}

// projection resolves a coordinate transform. The tool ships the WGS84 <->
// Web Mercator pair; anything else is ErrUnsupportedProjection.
func projection(source, target string) (orb.Projection, error) {
	switch {
	case source == "EPSG:4326" && target == "EPSG:3857":
		return project.WGS84.ToMercator, nil
	case source == "EPSG:3857" && target == "EPSG:4326":
		return project.Mercator.ToWGS84, nil
	default:
		return nil, fmt.Errorf("%w: %s -> %s (supported: EPSG:4326 <-> EPSG:3857)",
			ErrUnsupportedProjection, source, target)
	}
}

// Normalize canonicalizes a CRS label: uppercase authority, bare numeric codes
// get the EPSG authority, and the WGS84 aliases collapse to EPSG:4326.
func Normalize(label string) string {
	s := strings.ToUpper(strings.TrimSpace(label))
	if s == "" {
		return ""
	}
	if s == "OGC:CRS84" || s == "CRS84" {
		return "EPSG:4326"
	}
	if !strings.Contains(s, ":") {
		return "EPSG:" + s
	}
	return s
}
