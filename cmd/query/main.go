// Command query runs one SQL statement against a loaded dataset.
//
// The dataset is registered in an in-memory analytic database under the fixed
// logical table name "dataset"; geometry is exposed as a WKT text column.
//
//	query -file data.gpkg -sql "SELECT kind, COUNT(*) FROM dataset GROUP BY kind"
//	query -file data.parquet -sql "SELECT * FROM dataset LIMIT 10" -out out.parquet
//
// Results print as delimited text on stdout, or are written to -out as CSV or
// Parquet depending on -format (default: by -out extension).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"geoqa/internal/engine"
	"geoqa/internal/export"
	"geoqa/internal/loader"
	"geoqa/internal/session"
)

func main() {
	var (
		// flagFile is the dataset the query runs against.
		flagFile = flag.String("file", "", "Input file (.gpkg, .parquet, .geoparquet)")

		// flagSQL is the single statement to execute, verbatim.
		flagSQL = flag.String("sql", "", "SQL statement (table name: dataset)")

		// flagOut optionally writes the result instead of printing it.
		flagOut = flag.String("out", "", "Result output path (.csv or .parquet)")

		// flagFormat overrides the output format implied by -out.
		flagFormat = flag.String("format", "", "Result format: csv|parquet (default: by -out extension)")
	)
	flag.Parse()

	if *flagFile == "" || *flagSQL == "" {
		log.Fatalf("query: both -file and -sql are required")
	}

	ctx := context.Background()

	raw, err := os.ReadFile(*flagFile)
	if err != nil {
		log.Fatalf("query: %v", err)
	}
	res, err := loader.Load(ctx, raw, *flagFile)
	if err != nil {
		log.Fatalf("query: %v", err)
	}

	sess := session.New()
	defer sess.Reset()
	sess.Put(*flagFile, res)

	if err := sess.RegisterForQuery(ctx, *flagFile); err != nil {
		log.Fatalf("query: %v", err)
	}

	eng, err := sess.Engine()
	if err != nil {
		log.Fatalf("query: %v", err)
	}

	rs, err := eng.Query(ctx, *flagSQL)
	if err != nil {
		// Query failures are user-facing; report verbatim and leave the
		// dataset alone.
		log.Fatalf("query failed: %v", err)
	}

	if *flagOut == "" {
		if err := export.ResultCSV(os.Stdout, rs); err != nil {
			log.Fatalf("query: %v", err)
		}
		return
	}

	if err := writeResult(rs, *flagOut, *flagFormat); err != nil {
		log.Fatalf("query: %v", err)
	}
	fmt.Printf("wrote %d rows to %s\n", len(rs.Rows), *flagOut)
}

func writeResult(rs *engine.ResultSet, out, format string) error {
	if format == "" {
		switch strings.ToLower(filepath.Ext(out)) {
		case ".parquet":
			format = "parquet"
		default:
			format = "csv"
		}
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()

	switch format {
	case "csv":
		return export.ResultCSV(f, rs)
	case "parquet":
		return export.ResultParquet(f, rs)
	default:
		return fmt.Errorf("unknown format %q (want csv or parquet)", format)
	}
}
