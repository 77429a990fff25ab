package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
)

// Fingerprint returns a stable SHA-256 identity token for the dataset content:
// CRS label, column names, cell values, and geometry bytes. Two loads of the
// same file bytes produce the same fingerprint, which is what the session
// cache keys derived results on.
//
// Canonicalization rules:
//   - nil values are encoded as a single NUL byte so missing differs from
//     empty-string;
//   - common scalar types avoid fmt.Sprint;
//   - time.Time values are encoded as RFC3339Nano in UTC;
//   - geometries are encoded as WKB.
func (d *Dataset) Fingerprint() string {
	h := sha256.New()

	writeToken(h, "crs="+d.CRS)
	for _, c := range d.Attrs {
		writeToken(h, "col="+c.Name)
		for _, v := range c.Values {
			writeValue(h, v)
		}
	}
	if d.HasGeometry {
		writeToken(h, "col="+GeometryColumn)
		for _, g := range d.Geometry {
			if g == nil {
				h.Write([]byte{0x00})
				continue
			}
			if raw, err := wkb.Marshal(g); err == nil {
				h.Write(raw)
			}
			h.Write([]byte{0x1f})
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}

func writeToken(h hash.Hash, s string) {
	h.Write([]byte(s))
	h.Write([]byte{0x1f})
}

func writeValue(h hash.Hash, v any) {
	h.Write([]byte(canonicalValue(v)))
	h.Write([]byte{0x1f})
}

// CanonicalKey returns a stable textual form of a cell value, used for
// distinct counting, constant-column states, and change-detection equality.
// Integral floats collapse to the same key as integers so that 10 and 10.0
// compare equal across differently-typed columns.
func CanonicalKey(v any) string {
	if g, ok := v.(orb.Geometry); ok {
		raw, err := wkb.Marshal(g)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(raw)
	}
	return canonicalValue(v)
}

func canonicalValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "\x00"
	case string:
		return t
	case []byte:
		return string(t)
	case bool:
		if t {
			return "true"
		}
		return "false"
	case int:
		return strconv.Itoa(t)
	case int8:
		return strconv.FormatInt(int64(t), 10)
	case int16:
		return strconv.FormatInt(int64(t), 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	case uint8:
		return strconv.FormatUint(uint64(t), 10)
	case uint16:
		return strconv.FormatUint(uint64(t), 10)
	case uint32:
		return strconv.FormatUint(uint64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float32:
		return strconv.FormatFloat(float64(t), 'g', -1, 64)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case time.Time:
		tt := t
		if !tt.IsZero() {
			tt = tt.UTC()
		}
		return tt.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(t)
	}
}

// FormatValue renders a cell value for text output (CSV export, CLI tables).
// Nulls render as the empty string; geometries render as WKT by the caller.
func FormatValue(v any) string {
	if v == nil {
		return ""
	}
	s := canonicalValue(v)
	// canonicalValue uses NUL for nil only; everything else is printable as-is.
	return strings.ToValidUTF8(s, "�")
}

// MemoryEstimate approximates the in-memory footprint of the dataset in bytes.
// It is an estimate for display, not an accounting tool.
func (d *Dataset) MemoryEstimate() int64 {
	var total int64
	for _, c := range d.Attrs {
		total += int64(len(c.Name))
		for _, v := range c.Values {
			total += approxValueSize(v)
		}
	}
	if d.HasGeometry {
		for _, g := range d.Geometry {
			total += approxGeometrySize(g)
		}
	}
	return total
}

func approxValueSize(v any) int64 {
	switch t := v.(type) {
	case nil:
		return 8
	case string:
		return int64(len(t)) + 16
	case []byte:
		return int64(len(t)) + 24
	case bool:
		return 1
	case time.Time:
		return 24
	default:
		return 8
	}
}

func approxGeometrySize(g orb.Geometry) int64 {
	if g == nil {
		return 8
	}
	return int64(pointCount(g))*16 + 16
}

func pointCount(g orb.Geometry) int {
	switch t := g.(type) {
	case orb.Point:
		return 1
	case orb.MultiPoint:
		return len(t)
	case orb.LineString:
		return len(t)
	case orb.MultiLineString:
		n := 0
		for _, ls := range t {
			n += len(ls)
		}
		return n
	case orb.Ring:
		return len(t)
	case orb.Polygon:
		n := 0
		for _, r := range t {
			n += len(r)
		}
		return n
	case orb.MultiPolygon:
		n := 0
		for _, p := range t {
			n += pointCount(p)
		}
		return n
	case orb.Collection:
		n := 0
		for _, c := range t {
			n += pointCount(c)
		}
		return n
	case orb.Bound:
		return 2
	}
	return 0
}
