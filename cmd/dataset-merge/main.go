package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/envlake/envlake/internal/dataset"
	"github.com/envlake/envlake/internal/log"
	"github.com/envlake/envlake/internal/mergecsv"
	"github.com/envlake/envlake/internal/runmeta"
)

func main() {
	var (
		left   = flag.String("left", "", "Left cleaned monthly CSV (required)")
		right  = flag.String("right", "", "Right cleaned monthly CSV (required)")
		attrs  = flag.String("attrs", "", "Optional yearly-attribute CSV left-joined on year")
		output = flag.String("output", "merged.csv", "Output CSV path")
		debug  = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	if err := log.Init(*debug); err != nil {
		fmt.Printf("could not initialize logger: %v\n", err)
	}
	defer log.Sync()

	if *left == "" || *right == "" {
		log.Fatalf("-left and -right are both required")
	}

	leftDS, err := dataset.ReadCSV(*left)
	if err != nil {
		log.Fatalf("could not read left input: %v", err)
	}
	rightDS, err := dataset.ReadCSV(*right)
	if err != nil {
		log.Fatalf("could not read right input: %v", err)
	}

	result, err := mergecsv.Monthly(leftDS, rightDS)
	if err != nil {
		log.Fatalf("merge failed: %v", err)
	}
	if result.DroppedLeft > 0 || result.DroppedRight > 0 {
		log.Warnf("dropped rows with unparseable dates: %d left, %d right", result.DroppedLeft, result.DroppedRight)
	}

	if *attrs != "" {
		attrsDS, err := dataset.ReadCSV(*attrs)
		if err != nil {
			log.Fatalf("could not read attribute input: %v", err)
		}
		if err := mergecsv.JoinYearly(result.Dataset, attrsDS); err != nil {
			log.Fatalf("yearly attribute join failed: %v", err)
		}
	}

	for col, missing := range mergecsv.MissingCounts(result.Dataset) {
		if missing > 0 {
			log.Infof("column %s: %d missing values", col, missing)
		}
	}

	if dir := filepath.Dir(*output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("could not create output directory: %v", err)
		}
	}
	if err := result.Dataset.WriteCSV(*output); err != nil {
		log.Fatalf("could not write output: %v", err)
	}
	log.Infof("wrote %d merged rows to %s", result.Dataset.Rows(), *output)

	run := runmeta.New("dataset-merge")
	run.InputPath = *left + "," + *right
	run.OutputPath = *output
	run.RowCount = result.Dataset.Rows()
	run.DroppedRows = result.DroppedLeft + result.DroppedRight
	run.Columns = result.Dataset.Columns()
	run.Parameters["attrs"] = *attrs
	if metaPath, err := run.WriteJSON(filepath.Dir(*output)); err != nil {
		log.Warnf("%v", err)
	} else {
		log.Infof("run metadata written to %s", metaPath)
	}
}
