// Package gpkg reads vector features from a GeoPackage file.
//
// A GeoPackage is a SQLite container with well-known metadata tables
// (gpkg_contents, gpkg_geometry_columns, gpkg_spatial_ref_sys). Geometry cells
// are GeoPackage binary blobs: a small header (magic, version, flags, srs_id,
// optional envelope) followed by a standard WKB payload.
//
// The reader trusts the container: geometry typing and CRS come from the
// metadata tables, so no column detection or codec fallback is involved.
package gpkg

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	_ "modernc.org/sqlite"

	"geoqa/internal/dataset"
)

// ReadBytes loads the first feature table of a GeoPackage given its raw file
// bytes. The bytes are staged to a temporary file because SQLite opens files,
// not readers; the file is removed before returning.
func ReadBytes(ctx context.Context, raw []byte) (*dataset.Dataset, error) {
	tmp, err := os.CreateTemp("", "geoqa-*.gpkg")
	if err != nil {
		return nil, fmt.Errorf("stage gpkg: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("stage gpkg: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("stage gpkg: %w", err)
	}

	return ReadFile(ctx, tmp.Name())
}

// ReadFile loads the first feature table of a GeoPackage on disk.
func ReadFile(ctx context.Context, path string) (*dataset.Dataset, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open gpkg: %w", err)
	}
	defer db.Close()
	// A read of one container never needs more than one connection, and
	// keeping it single avoids per-connection page cache churn.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("open gpkg: %w", err)
	}

	layer, err := firstFeatureLayer(ctx, db)
	if err != nil {
		return nil, err
	}

	crs, err := crsLabel(ctx, db, layer.srsID)
	if err != nil {
		return nil, err
	}

	d, err := readFeatures(ctx, db, layer)
	if err != nil {
		return nil, err
	}
	d.CRS = crs
	return d, nil
}

type featureLayer struct {
	table      string
	geomColumn string
	srsID      int64
}

func firstFeatureLayer(ctx context.Context, db *sql.DB) (*featureLayer, error) {
	const q = `
		SELECT c.table_name, g.column_name, g.srs_id
		FROM gpkg_contents c
		JOIN gpkg_geometry_columns g ON g.table_name = c.table_name
		WHERE c.data_type = 'features'
		ORDER BY c.table_name
		LIMIT 1`

	var l featureLayer
	if err := db.QueryRowContext(ctx, q).Scan(&l.table, &l.geomColumn, &l.srsID); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("gpkg: no feature table in container")
		}
		return nil, fmt.Errorf("gpkg metadata: %w", err)
	}
	return &l, nil
}

// crsLabel resolves an srs_id to an "AUTHORITY:CODE" label. The reserved ids 0
// (undefined geographic) and -1 (undefined cartesian) map to an empty label.
func crsLabel(ctx context.Context, db *sql.DB, srsID int64) (string, error) {
	if srsID == 0 || srsID == -1 {
		return "", nil
	}

	var org string
	var code int64
	err := db.QueryRowContext(ctx,
		`SELECT organization, organization_coordsys_id FROM gpkg_spatial_ref_sys WHERE srs_id = ?`,
		srsID,
	).Scan(&org, &code)
	if err == sql.ErrNoRows {
		// Dangling srs_id: fall back to the id itself under the EPSG authority.
		return fmt.Sprintf("EPSG:%d", srsID), nil
	}
	if err != nil {
		return "", fmt.Errorf("gpkg srs lookup: %w", err)
	}
	return fmt.Sprintf("%s:%d", org, code), nil
}

func readFeatures(ctx context.Context, db *sql.DB, layer *featureLayer) (*dataset.Dataset, error) {
	rows, err := db.QueryContext(ctx, `SELECT * FROM `+sqlIdent(layer.table))
	if err != nil {
		return nil, fmt.Errorf("gpkg read %s: %w", layer.table, err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("gpkg read %s: %w", layer.table, err)
	}

	geomIdx := -1
	for i, n := range names {
		if n == layer.geomColumn {
			geomIdx = i
			break
		}
	}
	if geomIdx < 0 {
		return nil, fmt.Errorf("gpkg: geometry column %q missing from table %s", layer.geomColumn, layer.table)
	}

	d := &dataset.Dataset{HasGeometry: true}
	for i, n := range names {
		if i == geomIdx {
			continue
		}
		d.Attrs = append(d.Attrs, dataset.Column{Name: n})
	}

	scan := make([]any, len(names))
	ptrs := make([]any, len(names))
	for i := range scan {
		ptrs[i] = &scan[i]
	}

	for rows.Next() {
		for i := range scan {
			scan[i] = nil
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("gpkg read %s: %w", layer.table, err)
		}

		ai := 0
		for i, v := range scan {
			if i == geomIdx {
				g, err := parseBlob(v)
				if err != nil {
					return nil, fmt.Errorf("gpkg read %s.%s: %w", layer.table, layer.geomColumn, err)
				}
				d.Geometry = append(d.Geometry, g)
				continue
			}
			d.Attrs[ai].Values = append(d.Attrs[ai].Values, copyValue(v))
			ai++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("gpkg read %s: %w", layer.table, err)
	}
	return d, nil
}

// copyValue detaches scanned values from driver-owned buffers.
func copyValue(v any) any {
	if b, ok := v.([]byte); ok {
		out := make([]byte, len(b))
		copy(out, b)
		return out
	}
	return v
}

func parseBlob(v any) (orb.Geometry, error) {
	if v == nil {
		return nil, nil
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("geometry cell is %T, want blob", v)
	}
	return ParseGPB(b)
}

// ParseGPB decodes a GeoPackage binary geometry blob.
//
// Layout: magic "GP", version byte, flags byte, int32 srs_id, optional
// envelope (size selected by flags bits 1-3), then the WKB payload. Flags bit
// 0 selects the header byte order; bit 4 marks an empty geometry.
func ParseGPB(b []byte) (orb.Geometry, error) {
	if len(b) < 8 {
		return nil, fmt.Errorf("gpb blob too short (%d bytes)", len(b))
	}
	if b[0] != 'G' || b[1] != 'P' {
		return nil, fmt.Errorf("gpb magic mismatch: % x", b[:2])
	}

	flags := b[3]
	envSize, err := envelopeSize(flags)
	if err != nil {
		return nil, err
	}

	offset := 8 + envSize
	if len(b) < offset {
		return nil, fmt.Errorf("gpb blob truncated: %d bytes, envelope needs %d", len(b), offset)
	}

	if flags&0x10 != 0 && len(b) == offset {
		// Empty-geometry flag with no WKB payload: a null geometry row.
		return nil, nil
	}

	return wkb.Unmarshal(b[offset:])
}

func envelopeSize(flags byte) (int, error) {
	switch (flags >> 1) & 0x07 {
	case 0:
		return 0, nil
	case 1:
		return 32, nil // [minx maxx miny maxy]
	case 2, 3:
		return 48, nil // xy + one extra dimension
	case 4:
		return 64, nil // xyzm
	default:
		return 0, fmt.Errorf("gpb invalid envelope code %d", (flags>>1)&0x07)
	}
}

// BuildGPB encodes a geometry as a GeoPackage binary blob with no envelope.
// Used by tests and kept here so the header layout lives in one place.
func BuildGPB(g orb.Geometry, srsID int32) ([]byte, error) {
	payload, err := wkb.Marshal(g)
	if err != nil {
		return nil, err
	}
	header := make([]byte, 8)
	header[0], header[1] = 'G', 'P'
	header[2] = 0          // version 1
	header[3] = 0x01       // little-endian header, no envelope
	binary.LittleEndian.PutUint32(header[4:], uint32(srsID))
	return append(header, payload...), nil
}

func sqlIdent(id string) string {
	out := make([]byte, 0, len(id)+2)
	out = append(out, '"')
	for i := 0; i < len(id); i++ {
		if id[i] == '"' {
			out = append(out, '"', '"')
			continue
		}
		out = append(out, id[i])
	}
	return string(append(out, '"'))
}
