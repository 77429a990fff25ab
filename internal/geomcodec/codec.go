// Package geomcodec decodes a raw column of unknown representation into typed
// geometries.
//
// The column may already hold typed geometry values, raw WKB bytes, WKB bytes
// hiding behind byte-slice-like wrappers or strings, or WKT text. Decoding
// tries a fixed sequence of strategies; each attempt is atomic over the whole
// column and always restarts from the original raw values, so a partial
// failure in one attempt can never leak corrupted input into the next.
package geomcodec

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/encoding/wkt"
	"golang.org/x/text/encoding/charmap"
)

// Encoding is an optional hint for the caller's best guess at the column's
// representation. The matching attempt is promoted to the front of the chain;
// the remaining attempts still run in their fixed order afterwards.
type Encoding string

const (
	EncodingAuto Encoding = ""
	EncodingWKB  Encoding = "wkb"
	EncodingWKT  Encoding = "wkt"
)

// ErrUndecodable is wrapped by Decode when every attempt failed. Callers treat
// it as a warning-level condition and continue with a geometry-less dataset.
var ErrUndecodable = errors.New("geometry column could not be decoded")

// decodeValue decodes one non-null cell. An error aborts the whole attempt.
type decodeValue func(v any) (orb.Geometry, error)

type attempt struct {
	name string
	fn   decodeValue
}

// Decode converts raw cell values into a row-aligned geometry column.
//
// If the first non-null value is already a typed geometry, the column is
// treated as decoded and passed through unchanged. Otherwise the attempts run
// in order: raw WKB bytes, coerced byte-slice WKB, string-payload WKB,
// single-byte re-encoded WKB, then WKT text. The first attempt that decodes
// every non-null value wins. Nulls decode to nulls at every stage.
//
// On exhaustion Decode returns an all-null column together with an error
// wrapping ErrUndecodable that names the offending column; it never fails the
// load outright.
func Decode(raw []any, column string, hint Encoding) ([]orb.Geometry, error) {
	if first := firstNonNull(raw); first == nil {
		// Nothing to decode; an all-null input is a valid all-null column.
		return make([]orb.Geometry, len(raw)), nil
	} else if _, ok := first.(orb.Geometry); ok {
		return passthrough(raw), nil
	}

	for _, a := range orderedAttempts(hint) {
		geoms, err := decodeAll(raw, a.fn)
		if err == nil {
			return geoms, nil
		}
	}

	return make([]orb.Geometry, len(raw)), fmt.Errorf("%w: column %q", ErrUndecodable, column)
}

func orderedAttempts(hint Encoding) []attempt {
	attempts := []attempt{
		{"wkb-raw", decodeWKBRaw},
		{"wkb-coerced", decodeWKBCoerced},
		{"wkb-string", decodeWKBString},
		{"wkb-latin1", decodeWKBLatin1},
		{"wkt", decodeWKT},
	}
	if hint == EncodingWKT {
		// Promote the WKT attempt; keep the rest in order.
		reordered := make([]attempt, 0, len(attempts))
		reordered = append(reordered, attempts[len(attempts)-1])
		reordered = append(reordered, attempts[:len(attempts)-1]...)
		return reordered
	}
	return attempts
}

// decodeAll applies one strategy to the whole column. Any per-value error
// discards the attempt's partial work and the caller moves on to the next
// strategy with the untouched raw values.
func decodeAll(raw []any, fn decodeValue) ([]orb.Geometry, error) {
	out := make([]orb.Geometry, len(raw))
	for i, v := range raw {
		if v == nil {
			continue
		}
		g, err := fn(v)
		if err != nil {
			return nil, err
		}
		out[i] = g
	}
	return out, nil
}

func passthrough(raw []any) []orb.Geometry {
	out := make([]orb.Geometry, len(raw))
	for i, v := range raw {
		if g, ok := v.(orb.Geometry); ok {
			out[i] = g
		}
	}
	return out
}

func firstNonNull(raw []any) any {
	for _, v := range raw {
		if v != nil {
			return v
		}
	}
	return nil
}

// decodeWKBRaw handles values that already are []byte.
func decodeWKBRaw(v any) (orb.Geometry, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("not raw bytes: %T", v)
	}
	return wkb.Unmarshal(b)
}

// decodeWKBCoerced handles byte-slice-like values: named []byte types and
// anything exposing a Bytes() accessor.
func decodeWKBCoerced(v any) (orb.Geometry, error) {
	b, ok := coerceBytes(v)
	if !ok {
		return nil, fmt.Errorf("not byte-like: %T", v)
	}
	return wkb.Unmarshal(b)
}

func coerceBytes(v any) ([]byte, bool) {
	if b, ok := v.(interface{ Bytes() []byte }); ok {
		return b.Bytes(), true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
		return rv.Bytes(), true
	}
	return nil, false
}

// decodeWKBString treats a string cell as the raw byte payload of a WKB value.
func decodeWKBString(v any) (orb.Geometry, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("not a string: %T", v)
	}
	return wkb.Unmarshal([]byte(s))
}

// decodeWKBLatin1 recovers binary payloads that were round-tripped through a
// single-byte text decoding: re-encoding the string as ISO 8859-1 restores the
// original bytes, which are then parsed as WKB.
func decodeWKBLatin1(v any) (orb.Geometry, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("not a string: %T", v)
	}
	b, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, err
	}
	return wkb.Unmarshal(b)
}

func decodeWKT(v any) (orb.Geometry, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("not a string: %T", v)
	}
	return wkt.Unmarshal(strings.TrimSpace(s))
}
