// Package engine hosts the ad-hoc SQL surface: an in-memory SQLite database,
// process-lifetime scoped, with the current dataset registered under a fixed
// logical table name.
//
// The engine has no native geometry support by design, so a registered
// geometry column is exposed only as WKT text. Queries are passed through
// verbatim; a failing statement is reported to the user and never affects the
// registered dataset.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb/encoding/wkt"
	_ "modernc.org/sqlite"

	"geoqa/internal/dataset"
)

// TableName is the fixed logical table the current dataset is registered as.
const TableName = "dataset"

// insertChunkRows bounds the multi-row INSERT batches so the total number of
// bound parameters stays well under SQLite's variable limit.
const insertChunkRows = 200

// Engine wraps the reusable analytic connection. Create once per process and
// reuse; the single-request-at-a-time interaction model means it is never
// accessed concurrently.
type Engine struct {
	db *sql.DB
}

// New opens the in-memory database.
func New() (*Engine, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("engine open: %w", err)
	}
	// In-memory SQLite databases are per-connection; a second pooled
	// connection would see an empty database.
	db.SetMaxOpenConns(1)
	return &Engine{db: db}, nil
}

func (e *Engine) Close() error { return e.db.Close() }

// Register replaces the logical table with the dataset's contents. Attribute
// columns keep their names and get affinities from their semantic types;
// geometry is stored as WKT text under the canonical column name.
func (e *Engine) Register(ctx context.Context, d *dataset.Dataset) error {
	if _, err := e.db.ExecContext(ctx, `DROP TABLE IF EXISTS `+sqlIdent(TableName)); err != nil {
		return fmt.Errorf("engine register: %w", err)
	}
	if _, err := e.db.ExecContext(ctx, createTableSQL(d)); err != nil {
		return fmt.Errorf("engine register: %w", err)
	}
	if err := e.insertRows(ctx, d); err != nil {
		return fmt.Errorf("engine register: %w", err)
	}
	return nil
}

// ResultSet is a fully materialized query result.
type ResultSet struct {
	Columns []string
	Rows    [][]any
}

// Query executes one SQL statement and materializes the result. Errors are
// returned verbatim for user display.
func (e *Engine) Query(ctx context.Context, q string) (*ResultSet, error) {
	rows, err := e.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	rs := &ResultSet{Columns: cols}
	for rows.Next() {
		scan := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range scan {
			ptrs[i] = &scan[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range scan {
			if b, ok := v.([]byte); ok {
				scan[i] = append([]byte(nil), b...)
			}
		}
		rs.Rows = append(rs.Rows, scan)
	}
	return rs, rows.Err()
}

func createTableSQL(d *dataset.Dataset) string {
	var parts []string
	for _, c := range d.Attrs {
		parts = append(parts, sqlIdent(c.Name)+" "+columnAffinity(dataset.InferType(c.Values)))
	}
	if d.HasGeometry {
		parts = append(parts, sqlIdent(dataset.GeometryColumn)+" TEXT")
	}
	if len(parts) == 0 {
		// A dataset with no columns still needs a registerable table.
		parts = append(parts, `"rowid_only" INTEGER`)
	}
	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", sqlIdent(TableName), strings.Join(parts, ",\n  "))
}

func columnAffinity(t dataset.Type) string {
	switch t {
	case dataset.TypeInteger, dataset.TypeBoolean:
		return "INTEGER"
	case dataset.TypeFloat:
		return "REAL"
	default:
		return "TEXT"
	}
}

func (e *Engine) insertRows(ctx context.Context, d *dataset.Dataset) error {
	rows := d.RowCount()
	cols := d.ColumnCount()
	if rows == 0 || cols == 0 {
		return nil
	}

	colList := make([]string, 0, cols)
	for _, c := range d.Attrs {
		colList = append(colList, sqlIdent(c.Name))
	}
	if d.HasGeometry {
		colList = append(colList, sqlIdent(dataset.GeometryColumn))
	}
	placeholders := "(" + strings.TrimRight(strings.Repeat("?,", cols), ",") + ")"
	prefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", sqlIdent(TableName), strings.Join(colList, ", "))

	for start := 0; start < rows; start += insertChunkRows {
		end := start + insertChunkRows
		if end > rows {
			end = rows
		}

		var b strings.Builder
		b.WriteString(prefix)
		args := make([]any, 0, (end-start)*cols)
		for r := start; r < end; r++ {
			if r > start {
				b.WriteString(", ")
			}
			b.WriteString(placeholders)
			for _, c := range d.Attrs {
				args = append(args, bindValue(c.Values[r]))
			}
			if d.HasGeometry {
				if g := d.Geometry[r]; g != nil {
					args = append(args, wkt.MarshalString(g))
				} else {
					args = append(args, nil)
				}
			}
		}

		if _, err := e.db.ExecContext(ctx, b.String(), args...); err != nil {
			return err
		}
	}
	return nil
}

// bindValue maps cell values onto driver-friendly types. Timestamps are stored
// as RFC3339Nano strings for reliable round-trips with SQLite's TEXT affinity.
func bindValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case bool:
		if t {
			return int64(1)
		}
		return int64(0)
	default:
		return v
	}
}

func sqlIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
