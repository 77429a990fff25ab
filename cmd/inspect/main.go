// Command inspect loads one geospatial file and prints its QA summary.
//
// Supported inputs are GeoPackage (.gpkg) and GeoParquet (.parquet,
// .geoparquet). The summary covers row/column counts, CRS, memory estimate,
// per-column null counts, constant columns, geometry health (type histogram,
// empty and invalid counts), and the bounding envelope.
//
// An optional CRS correction runs before the summary:
//
//	inspect -file data.parquet -crs EPSG:4326 -crs-mode reassign
//	inspect -file data.gpkg -crs EPSG:3857 -crs-mode reproject
//
// Reassign only relabels the declared CRS; reproject recomputes coordinates
// (EPSG:4326 <-> EPSG:3857).
//
// With -export the normalized view is written as CSV, geometry rendered as
// WKT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"geoqa/internal/crs"
	"geoqa/internal/export"
	"geoqa/internal/loader"
	"geoqa/internal/qastats"
	"geoqa/internal/session"
)

func main() {
	var (
		// flagFile is the input file path; its extension declares the format.
		flagFile = flag.String("file", "", "Input file (.gpkg, .parquet, .geoparquet)")

		// flagCRS optionally corrects the dataset's CRS before the summary.
		flagCRS = flag.String("crs", "", "Target CRS for correction (e.g. EPSG:4326)")

		// flagCRSMode selects the correction semantics when -crs is set.
		flagCRSMode = flag.String("crs-mode", "reassign", "CRS correction mode: reassign|reproject")

		// flagExport optionally writes the normalized view as CSV.
		flagExport = flag.String("export", "", "Write the normalized dataset as CSV to this path")
	)
	flag.Parse()

	if *flagFile == "" {
		log.Fatalf("inspect: -file is required")
	}

	ctx := context.Background()

	raw, err := os.ReadFile(*flagFile)
	if err != nil {
		log.Fatalf("inspect: %v", err)
	}

	res, err := loader.Load(ctx, raw, *flagFile)
	if err != nil {
		log.Fatalf("inspect: %v", err)
	}
	if res.Warning != loader.WarnNone {
		fmt.Printf("warning: %s\n\n", res.Warning)
	}

	sess := session.New()
	defer sess.Reset()
	sess.Put(*flagFile, res)

	if *flagCRS != "" {
		mode := crs.Reassign
		switch *flagCRSMode {
		case "reassign":
		case "reproject":
			mode = crs.Reproject
		default:
			log.Fatalf("inspect: unknown -crs-mode %q", *flagCRSMode)
		}
		if err := sess.CorrectCRS(*flagFile, *flagCRS, mode); err != nil {
			log.Fatalf("inspect: %v", err)
		}
	}

	st, err := sess.Stats(*flagFile)
	if err != nil {
		log.Fatalf("inspect: %v", err)
	}
	printStats(st)

	if *flagExport != "" {
		entry, _ := sess.Get(*flagFile)
		f, err := os.Create(*flagExport)
		if err != nil {
			log.Fatalf("inspect: %v", err)
		}
		if err := export.CSV(f, entry.Dataset); err != nil {
			_ = f.Close()
			log.Fatalf("inspect: %v", err)
		}
		if err := f.Close(); err != nil {
			log.Fatalf("inspect: %v", err)
		}
		fmt.Printf("\nexported CSV to %s\n", *flagExport)
	}
}

func printStats(st qastats.Stats) {
	if st.Failed {
		fmt.Println("could not compute QA statistics (see log)")
		return
	}

	crsLabel := st.CRS
	if crsLabel == "" {
		crsLabel = "not defined"
	}

	fmt.Println("== Summary ==")
	fmt.Printf("rows:    %d\n", st.Rows)
	fmt.Printf("columns: %d\n", st.Cols)
	fmt.Printf("crs:     %s\n", crsLabel)
	fmt.Printf("memory:  %.2f MB\n", float64(st.MemoryBytes)/1e6)

	fmt.Println("\n== Missing values ==")
	if len(st.NullCounts) == 0 {
		fmt.Println("none")
	}
	for _, nc := range st.NullCounts {
		fmt.Printf("%-24s %d\n", nc.Column, nc.Count)
	}

	fmt.Println("\n== Constant columns ==")
	if len(st.ConstantColumns) == 0 {
		fmt.Println("none")
	}
	for _, c := range st.ConstantColumns {
		fmt.Println(c)
	}

	fmt.Println("\n== Geometry health ==")
	if len(st.GeomTypes) == 0 {
		fmt.Println("no geometry")
		return
	}
	for typ, n := range st.GeomTypes {
		fmt.Printf("%-24s %d\n", typ, n)
	}
	fmt.Printf("empty geometries:   %d\n", st.EmptyGeoms)
	fmt.Printf("invalid geometries: %d\n", st.InvalidGeoms)
	if st.BBox != nil {
		fmt.Printf("bbox: [%g %g %g %g]\n", st.BBox[0], st.BBox[1], st.BBox[2], st.BBox[3])
	} else {
		fmt.Println("bbox: none")
	}
}
