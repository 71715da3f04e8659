package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/envlake/envlake/internal/analysis"
	"github.com/envlake/envlake/internal/dataset"
	"github.com/envlake/envlake/internal/log"
	"github.com/envlake/envlake/internal/runmeta"
)

func main() {
	var (
		input       = flag.String("input", "", "Input CSV (discovered under -search-root when empty)")
		searchRoot  = flag.String("search-root", ".", "Directory searched for Cleaned_*.csv when -input is empty")
		outDir      = flag.String("out-dir", "trend", "Output directory")
		dateCol     = flag.String("date-col", "date", "Date column")
		valueCol    = flag.String("value-col", "", "Value column (required)")
		locationCol = flag.String("location-col", "", "Location column (empty treats the dataset as one series)")
		debug       = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	if err := log.Init(*debug); err != nil {
		fmt.Printf("could not initialize logger: %v\n", err)
	}
	defer log.Sync()

	if *valueCol == "" {
		log.Fatalf("-value-col is required")
	}

	path := resolveInput(*input, *searchRoot)
	ds, err := dataset.ReadCSV(path)
	if err != nil {
		log.Fatalf("could not read input: %v", err)
	}

	results, err := analysis.Trend(ds, analysis.TrendOptions{
		DateColumn:     *dateCol,
		ValueColumn:    *valueCol,
		LocationColumn: *locationCol,
	})
	if err != nil {
		log.Fatalf("trend analysis failed: %v", err)
	}
	for _, r := range results {
		log.Infof("%s: slope %.4g/yr, r=%.3f, n=%d", displayName(r.Location), r.Slope, r.Pearson, r.N)
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("could not create output directory: %v", err)
	}
	summary := filepath.Join(*outDir, "trend_summary.csv")
	if err := analysis.WriteTrendSummary(summary, results); err != nil {
		log.Fatalf("could not write summary: %v", err)
	}
	uncertainty := filepath.Join(*outDir, "trend_uncertainty.csv")
	if err := analysis.WriteUncertainty(uncertainty, analysis.TrendUncertainty(results)); err != nil {
		log.Fatalf("could not write uncertainty report: %v", err)
	}

	groups, err := analysis.GroupByLocation(ds, *dateCol, *valueCol, *locationCol)
	if err != nil {
		log.Fatalf("could not group series for charts: %v", err)
	}
	byLocation := make(map[string]analysis.LocationSeries, len(groups))
	for _, g := range groups {
		byLocation[g.Location] = g
	}
	for _, r := range results {
		chart := filepath.Join(*outDir, fmt.Sprintf("trend_%s.png", safeName(r.Location)))
		title := fmt.Sprintf("%s trend: %s", *valueCol, displayName(r.Location))
		if err := analysis.TrendChart(chart, title, *valueCol, r, byLocation[r.Location]); err != nil {
			log.Fatalf("could not render %s: %v", chart, err)
		}
	}
	log.Infof("wrote summary, uncertainty report, and %d charts to %s", len(results), *outDir)

	run := runmeta.New("trend-analyze")
	run.InputPath = path
	run.OutputPath = *outDir
	run.RowCount = ds.Rows()
	run.Parameters["value_col"] = *valueCol
	run.Parameters["location_col"] = *locationCol
	run.Stats["locations_fitted"] = len(results)
	if metaPath, err := run.WriteJSON(*outDir); err != nil {
		log.Warnf("%v", err)
	} else {
		log.Infof("run metadata written to %s", metaPath)
	}
}

func displayName(location string) string {
	if location == "" {
		return "all"
	}
	return location
}

func safeName(location string) string {
	if location == "" {
		return "all"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "_", "\\", "_", "=", "_")
	return replacer.Replace(location)
}

func resolveInput(input, searchRoot string) string {
	if input != "" {
		return input
	}
	matches, err := dataset.Discover(searchRoot)
	if err != nil {
		log.Fatalf("input discovery failed: %v", err)
	}
	if len(matches) > 1 {
		log.Warnf("multiple cleaned CSVs found, using %s", matches[0])
	}
	return matches[0]
}
