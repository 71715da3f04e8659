package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/envlake/envlake/internal/clean"
	"github.com/envlake/envlake/internal/dataset"
	"github.com/envlake/envlake/internal/log"
	"github.com/envlake/envlake/internal/runmeta"
)

func main() {
	var (
		kind     = flag.String("kind", "", "Cleaner to run: ozone or power (required)")
		glob     = flag.String("glob", "", "Raw file glob for the ozone cleaner")
		input    = flag.String("input", "", "Raw export path for the power cleaner")
		skipRows = flag.Int("skip-rows", 0, "Preamble lines before the CSV header (power cleaner)")
		output   = flag.String("output", "", "Output CSV path (defaults to Cleaned_<name>_Monthly.csv)")
		debug    = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	if err := log.Init(*debug); err != nil {
		fmt.Printf("could not initialize logger: %v\n", err)
	}
	defer log.Sync()

	run := runmeta.New("dataset-clean")
	run.Parameters["kind"] = *kind

	var ds *dataset.Dataset
	var dropped int
	switch *kind {
	case "ozone":
		if *glob == "" {
			log.Fatalf("-glob is required for the ozone cleaner")
		}
		result, err := clean.Ozone(*glob)
		if err != nil {
			log.Fatalf("ozone cleaning failed: %v", err)
		}
		for _, skipped := range result.FilesSkipped {
			log.Warnf("skipped %s", skipped)
		}
		log.Infof("parsed %d files, dropped %d rows", result.FilesParsed, result.RowsDropped)
		ds = result.Dataset
		dropped = result.RowsDropped
		run.InputPath = *glob
		run.Stats["files_parsed"] = result.FilesParsed
		run.Stats["files_skipped"] = len(result.FilesSkipped)
	case "power":
		if *input == "" {
			log.Fatalf("-input is required for the power cleaner")
		}
		var err error
		ds, err = clean.Power(*input, clean.PowerOptions{SkipRows: *skipRows})
		if err != nil {
			log.Fatalf("power cleaning failed: %v", err)
		}
		run.InputPath = *input
		run.Parameters["skip_rows"] = *skipRows
	default:
		log.Fatalf("invalid -kind %q: must be ozone or power", *kind)
	}

	out := *output
	if out == "" {
		out = fmt.Sprintf("Cleaned_%s_Monthly.csv", strings.ToUpper((*kind)[:1])+(*kind)[1:])
	}
	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("could not create output directory: %v", err)
		}
	}
	if err := ds.WriteCSV(out); err != nil {
		log.Fatalf("could not write output: %v", err)
	}
	log.Infof("wrote %d monthly rows to %s", ds.Rows(), out)

	run.OutputPath = out
	run.RowCount = ds.Rows()
	run.DroppedRows = dropped
	run.Columns = ds.Columns()
	if metaPath, err := run.WriteJSON(filepath.Dir(out)); err != nil {
		log.Warnf("%v", err)
	} else {
		log.Infof("run metadata written to %s", metaPath)
	}
}
