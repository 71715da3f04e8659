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
		outDir      = flag.String("out-dir", "forecast", "Output directory")
		dateCol     = flag.String("date-col", "date", "Date column")
		valueCol    = flag.String("value-col", "", "Value column (required)")
		locationCol = flag.String("location-col", "", "Location column (empty treats the dataset as one series)")
		horizon     = flag.Int("horizon", 12, "Months to forecast past the last observation")
		season      = flag.Int("season", 12, "Seasonal period in months (0 = non-seasonal)")
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

	results, err := analysis.Forecast(ds, analysis.ForecastOptions{
		DateColumn:     *dateCol,
		ValueColumn:    *valueCol,
		LocationColumn: *locationCol,
		Horizon:        *horizon,
		Season:         *season,
	})
	if err != nil {
		log.Fatalf("forecasting failed: %v", err)
	}
	for _, fc := range results {
		log.Infof("%s: %s, holdout RMSE %.4g", displayName(fc.Location), fc.Model, fc.RMSE)
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("could not create output directory: %v", err)
	}
	csvPath := filepath.Join(*outDir, "forecast.csv")
	if err := analysis.WriteForecastCSV(csvPath, results); err != nil {
		log.Fatalf("could not write forecasts: %v", err)
	}
	uncertainty := filepath.Join(*outDir, "forecast_uncertainty.csv")
	if err := analysis.WriteUncertainty(uncertainty, analysis.ForecastUncertainty(results)); err != nil {
		log.Fatalf("could not write uncertainty report: %v", err)
	}
	for _, fc := range results {
		chart := filepath.Join(*outDir, fmt.Sprintf("forecast_%s.png", safeName(fc.Location)))
		title := fmt.Sprintf("%s forecast: %s", *valueCol, displayName(fc.Location))
		if err := analysis.ForecastChart(chart, title, *valueCol, fc); err != nil {
			log.Fatalf("could not render %s: %v", chart, err)
		}
	}
	log.Infof("wrote forecasts for %d locations to %s", len(results), *outDir)

	run := runmeta.New("forecast")
	run.InputPath = path
	run.OutputPath = *outDir
	run.RowCount = ds.Rows()
	run.Parameters["horizon"] = *horizon
	run.Parameters["season"] = *season
	run.Parameters["value_col"] = *valueCol
	run.Stats["locations_forecast"] = len(results)
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
