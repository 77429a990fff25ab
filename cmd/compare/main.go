// Command compare juxtaposes two geospatial datasets: schema diff, per-column
// type and null comparison, numeric summaries, and identifier-keyed change
// detection.
//
//	compare -a before.gpkg -b after.gpkg
//	compare -a before.parquet -b after.parquet -id parcel_id
//
// Without -id the identifier column is chosen automatically among columns
// that are unique and non-null in both datasets (columns literally named
// id/idx/index are preferred). When no column qualifies, change detection is
// skipped with an explanation; the rest of the comparison still runs.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"geoqa/internal/compare"
	"geoqa/internal/dataset"
	"geoqa/internal/loader"
)

func main() {
	var (
		// flagA and flagB are the two input files; A is the baseline.
		flagA = flag.String("a", "", "First dataset (.gpkg, .parquet, .geoparquet)")
		flagB = flag.String("b", "", "Second dataset (.gpkg, .parquet, .geoparquet)")

		// flagID optionally forces the change-detection identifier column.
		flagID = flag.String("id", "", "Identifier column for change detection (auto-selected when empty)")
	)
	flag.Parse()

	if *flagA == "" || *flagB == "" {
		log.Fatalf("compare: both -a and -b are required")
	}

	ctx := context.Background()
	a := mustLoad(ctx, *flagA)
	b := mustLoad(ctx, *flagB)

	res := compare.Compare(a, b, *flagA, *flagB, *flagID)
	printResult(res)
}

func mustLoad(ctx context.Context, path string) *dataset.Dataset {
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("compare: %v", err)
	}
	res, err := loader.Load(ctx, raw, path)
	if err != nil {
		log.Fatalf("compare: %v", err)
	}
	if res.Warning != loader.WarnNone {
		log.Printf("compare: %s: %s", path, res.Warning)
	}
	return res.Dataset
}

func printResult(res *compare.Result) {
	fmt.Printf("comparing %s vs %s\n", res.NameA, res.NameB)

	fmt.Println("\n== Schema ==")
	if res.SchemaEqual {
		fmt.Println("both datasets have the exact same columns")
	}
	if len(res.OnlyInA) > 0 {
		fmt.Printf("only in %s: %v\n", res.NameA, res.OnlyInA)
	}
	if len(res.OnlyInB) > 0 {
		fmt.Printf("only in %s: %v\n", res.NameB, res.OnlyInB)
	}

	fmt.Println("\n== Summary ==")
	fmt.Printf("%-20s %14s %14s\n", "metric", "A", "B")
	fmt.Printf("%-20s %14d %14d\n", "rows", res.StatsA.Rows, res.StatsB.Rows)
	fmt.Printf("%-20s %14d %14d\n", "columns", res.StatsA.Cols, res.StatsB.Cols)
	fmt.Printf("%-20s %14s %14s\n", "crs", orDefault(res.StatsA.CRS), orDefault(res.StatsB.CRS))
	fmt.Printf("%-20s %14d %14d\n", "invalid geometries", res.StatsA.InvalidGeoms, res.StatsB.InvalidGeoms)
	fmt.Printf("%-20s %14d %14d\n", "empty geometries", res.StatsA.EmptyGeoms, res.StatsB.EmptyGeoms)

	fmt.Println("\n== Column types ==")
	for _, tp := range res.Types {
		marker := ""
		if tp.Mismatch {
			marker = "  << mismatch"
		}
		fmt.Printf("%-24s %-10s %-10s%s\n", tp.Column, tp.TypeA, tp.TypeB, marker)
	}

	fmt.Println("\n== Null counts ==")
	for _, np := range res.Nulls {
		if np.NullsA == 0 && np.NullsB == 0 {
			continue
		}
		fmt.Printf("%-24s %6d %6d\n", np.Column, np.NullsA, np.NullsB)
	}

	if len(res.Numeric) > 0 {
		fmt.Println("\n== Numeric summaries ==")
		for _, np := range res.Numeric {
			fmt.Printf("%s:\n", np.Column)
			printSummary("  "+res.NameA, np.A)
			printSummary("  "+res.NameB, np.B)
		}
	}

	fmt.Println("\n== Change detection ==")
	if res.RowDiff == nil {
		fmt.Println(res.SkipReason)
		return
	}
	d := res.RowDiff
	fmt.Printf("identifier: %s\n", d.Identifier)
	fmt.Printf("added:   %d %v\n", len(d.Added), d.Added)
	fmt.Printf("removed: %d %v\n", len(d.Removed), d.Removed)
	fmt.Printf("changed values: %d\n", len(d.Changed))
	for _, c := range d.Changed {
		fmt.Printf("  %s=%s %s: %v -> %v\n", d.Identifier, c.ID, c.Column, c.ValueA, c.ValueB)
	}
}

func printSummary(label string, s compare.NumericSummary) {
	fmt.Printf("%-14s min=%g max=%g mean=%g median=%g std=%g nulls=%d distinct=%d\n",
		label, s.Min, s.Max, s.Mean, s.Median, s.StdDev, s.Nulls, s.Distinct)
}

func orDefault(crs string) string {
	if crs == "" {
		return "not defined"
	}
	return crs
}
