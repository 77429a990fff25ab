package geomcodec

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"golang.org/x/text/encoding/charmap"
)

// rawBlob is a named byte slice, deliberately not []byte, to exercise the
// coercion attempt.
type rawBlob []byte

func mustWKB(t *testing.T, g orb.Geometry) []byte {
	t.Helper()
	b, err := wkb.Marshal(g)
	if err != nil {
		t.Fatalf("wkb.Marshal: %v", err)
	}
	return b
}

// TestDecodePassthrough verifies that a column whose first non-null value is
// already typed geometry is passed through unchanged, nulls included.
func TestDecodePassthrough(t *testing.T) {
	t.Parallel()

	raw := []any{orb.Point{1, 2}, nil, orb.LineString{{0, 0}, {1, 1}}}
	got, err := Decode(raw, "geom", EncodingAuto)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []orb.Geometry{orb.Point{1, 2}, nil, orb.LineString{{0, 0}, {1, 1}}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Decode = %v, want %v", got, want)
	}
}

// TestDecodeWKBRoundTrip covers the raw-bytes attempt: encoding a known
// geometry to WKB and decoding it through the codec reproduces an equal
// geometry, with nulls propagating.
func TestDecodeWKBRoundTrip(t *testing.T) {
	t.Parallel()

	p := orb.Point{12.5, -3.25}
	ls := orb.LineString{{0, 0}, {2, 2}, {4, 0}}
	raw := []any{mustWKB(t, p), nil, mustWKB(t, ls)}

	got, err := Decode(raw, "geom", EncodingAuto)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !reflect.DeepEqual(got[0], p) || got[1] != nil || !reflect.DeepEqual(got[2], ls) {
		t.Fatalf("Decode = %v, want [%v nil %v]", got, p, ls)
	}
}

// TestDecodeCoercedBytes verifies the second attempt: values that are
// byte-slice-like but not []byte still decode as WKB.
func TestDecodeCoercedBytes(t *testing.T) {
	t.Parallel()

	p := orb.Point{7, 8}
	raw := []any{rawBlob(mustWKB(t, p)), nil}

	got, err := Decode(raw, "geom", EncodingAuto)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !reflect.DeepEqual(got[0], p) || got[1] != nil {
		t.Fatalf("Decode = %v, want [%v nil]", got, p)
	}
}

// TestDecodeStringPayload verifies the third attempt: a string cell whose raw
// bytes are a WKB payload.
func TestDecodeStringPayload(t *testing.T) {
	t.Parallel()

	p := orb.Point{1, 2}
	raw := []any{string(mustWKB(t, p)), nil}

	got, err := Decode(raw, "geom", EncodingAuto)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !reflect.DeepEqual(got[0], p) || got[1] != nil {
		t.Fatalf("Decode = %v, want [%v nil]", got, p)
	}
}

// TestDecodeLatin1Attempt exercises the single-byte re-encode strategy in
// isolation: WKB bytes that were decoded as ISO 8859-1 text are recovered by
// re-encoding the string.
func TestDecodeLatin1Attempt(t *testing.T) {
	t.Parallel()

	// Coordinates chosen so the WKB payload contains bytes above 0x7f.
	p := orb.Point{123456.789, -987654.321}
	payload := mustWKB(t, p)

	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(payload)
	if err != nil {
		t.Fatalf("latin1 decode: %v", err)
	}
	if string(decoded) == string(payload) {
		t.Fatal("test setup: payload has no high bytes, latin1 round-trip is a no-op")
	}

	got, err := decodeWKBLatin1(string(decoded))
	if err != nil {
		t.Fatalf("decodeWKBLatin1: %v", err)
	}
	if !reflect.DeepEqual(got, p) {
		t.Fatalf("decodeWKBLatin1 = %v, want %v", got, p)
	}
}

// TestDecodeWKT covers the text attempt, including surrounding whitespace.
func TestDecodeWKT(t *testing.T) {
	t.Parallel()

	raw := []any{"POINT(1 2)", nil, "  LINESTRING(0 0,1 1)  "}
	got, err := Decode(raw, "geom", EncodingAuto)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !reflect.DeepEqual(got[0], orb.Point{1, 2}) {
		t.Fatalf("got[0] = %v, want POINT(1 2)", got[0])
	}
	if got[1] != nil {
		t.Fatalf("got[1] = %v, want nil", got[1])
	}
	if !reflect.DeepEqual(got[2], orb.LineString{{0, 0}, {1, 1}}) {
		t.Fatalf("got[2] = %v, want LINESTRING(0 0,1 1)", got[2])
	}
}

func TestDecodeWithWKTHint(t *testing.T) {
	t.Parallel()

	got, err := Decode([]any{"POINT(3 4)"}, "geom", EncodingWKT)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !reflect.DeepEqual(got[0], orb.Point{3, 4}) {
		t.Fatalf("Decode = %v, want POINT(3 4)", got[0])
	}
}

// TestDecodeExhaustion verifies the warning-level contract: when every attempt
// fails, the codec returns an all-null column and an error wrapping
// ErrUndecodable that names the offending column. It never hard-fails.
func TestDecodeExhaustion(t *testing.T) {
	t.Parallel()

	raw := []any{"definitely not geometry", nil, "still not geometry"}
	got, err := Decode(raw, "geom_src", EncodingAuto)
	if !errors.Is(err, ErrUndecodable) {
		t.Fatalf("err = %v, want ErrUndecodable", err)
	}
	if !strings.Contains(err.Error(), "geom_src") {
		t.Fatalf("err = %v, want column name in message", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, g := range got {
		if g != nil {
			t.Fatalf("got[%d] = %v, want nil", i, g)
		}
	}
}

// TestDecodeAtomicAttempts verifies the attempt-boundary rule: one bad row
// fails the whole strategy and the next strategy restarts from the original
// raw values. A column mixing WKB strings with WKT strings therefore decodes
// via WKT only if it is WKT throughout, and is undecodable when no single
// strategy covers every row.
func TestDecodeAtomicAttempts(t *testing.T) {
	t.Parallel()

	p := orb.Point{1, 2}
	mixed := []any{string(mustWKB(t, p)), "POINT(3 4)"}
	got, err := Decode(mixed, "geom", EncodingAuto)
	if !errors.Is(err, ErrUndecodable) {
		t.Fatalf("err = %v, want ErrUndecodable for mixed encodings", err)
	}
	for i, g := range got {
		if g != nil {
			t.Fatalf("got[%d] = %v, want nil after exhaustion", i, g)
		}
	}
}

// TestDecodeAllNullColumn verifies that an all-null input decodes to an
// all-null column without error.
func TestDecodeAllNullColumn(t *testing.T) {
	t.Parallel()

	got, err := Decode([]any{nil, nil}, "geom", EncodingAuto)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != 2 || got[0] != nil || got[1] != nil {
		t.Fatalf("Decode = %v, want [nil nil]", got)
	}
}
