// Package detect proposes candidate geometry columns for tabular data that
// carries no native geometry typing.
//
// Detection is two-step: a name heuristic over geometry-related tokens, then
// (only when no name matches) a content heuristic over a small sample of
// values per column. Detection never fails; an empty result tells the caller
// the dataset has no geometry.
package detect

import (
	"reflect"
	"strings"

	"geoqa/internal/dataset"
)

// nameTokens are the case-insensitive substrings that mark a column name as
// geometry-bearing. "geometry" itself matches via "geom".
var nameTokens = []string{"geom", "shape", "wkt", "wkb", "spatial"}

// wktKeywords are the canonical geometry type keywords a WKT string starts with.
var wktKeywords = []string{
	"POINT",
	"LINESTRING",
	"POLYGON",
	"MULTIPOINT",
	"MULTILINESTRING",
	"MULTIPOLYGON",
	"GEOMETRYCOLLECTION",
}

// sampleSize bounds how many non-null values per column the content heuristic
// inspects.
const sampleSize = 5

// Candidates returns candidate geometry column names in column order, possibly
// empty. The content heuristic applies only when the name heuristic found
// nothing.
func Candidates(columns []dataset.Column) []string {
	var byName []string
	for _, c := range columns {
		if nameMatches(c.Name) {
			byName = append(byName, c.Name)
		}
	}
	if len(byName) > 0 {
		return byName
	}

	var byContent []string
	for _, c := range columns {
		if contentMatches(c.Values) {
			byContent = append(byContent, c.Name)
		}
	}
	return byContent
}

func nameMatches(name string) bool {
	lower := strings.ToLower(name)
	for _, tok := range nameTokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}

// contentMatches samples up to sampleSize non-null values and reports whether
// any of them is byte-like or starts with a WKT geometry keyword.
func contentMatches(values []any) bool {
	seen := 0
	for _, v := range values {
		if v == nil {
			continue
		}
		if seen >= sampleSize {
			break
		}
		seen++

		if isByteLike(v) {
			return true
		}
		if s, ok := v.(string); ok && hasWKTPrefix(s) {
			return true
		}
	}
	return false
}

func isByteLike(v any) bool {
	if _, ok := v.([]byte); ok {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8
}

func hasWKTPrefix(s string) bool {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for _, kw := range wktKeywords {
		if strings.HasPrefix(upper, kw) {
			return true
		}
	}
	return false
}
