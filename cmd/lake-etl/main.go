package main

import (
	"flag"
	"fmt"
	"path/filepath"

	"github.com/envlake/envlake/internal/dataset"
	"github.com/envlake/envlake/internal/lake"
	"github.com/envlake/envlake/internal/log"
	"github.com/envlake/envlake/internal/partition"
	"github.com/envlake/envlake/internal/runmeta"
	"github.com/envlake/envlake/internal/schema"
)

func main() {
	var (
		input           = flag.String("input", "", "Input CSV (discovered under -search-root when empty)")
		searchRoot      = flag.String("search-root", ".", "Directory searched for Cleaned_*.csv when -input is empty")
		outRoot         = flag.String("out-root", "lake", "Lake root directory")
		datasetName     = flag.String("dataset", "", "Dataset name (defaults to the input file name)")
		dateCol         = flag.String("date-col", "", "Date column (resolved by synonym matching when empty)")
		locationCol     = flag.String("location-col", "", "Location column (resolved by synonym matching when empty)")
		mode            = flag.String("mode", "", "Write mode: overwrite or append (required)")
		chunkSize       = flag.Int("chunk-size", 0, "Rows per parquet row-group flush (0 = default)")
		byLocation      = flag.Bool("partition-by-location", false, "Add the location column to the partition key")
		missingLocation = flag.String("missing-location", "", "Policy when the location column is absent: fallback or fail (required with -partition-by-location)")
		maxDropRate     = flag.Float64("max-drop-rate", 0.05, "Fraction of unparseable-date rows tolerated before aborting")
		runsDB          = flag.String("runs-db", "", "Optional sqlite database for the relational run log")
		debug           = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	if err := log.Init(*debug); err != nil {
		fmt.Printf("could not initialize logger: %v\n", err)
	}
	defer log.Sync()

	writeMode, err := lake.ParseWriteMode(*mode)
	if err != nil {
		log.Fatalf("invalid -mode: %v", err)
	}
	var policy partition.MissingLocationPolicy
	if *byLocation {
		policy, err = partition.ParseMissingLocationPolicy(*missingLocation)
		if err != nil {
			log.Fatalf("invalid -missing-location: %v", err)
		}
	}

	path := resolveInput(*input, *searchRoot)
	ds, err := dataset.ReadCSV(path)
	if err != nil {
		log.Fatalf("could not read input: %v", err)
	}
	name := *datasetName
	if name == "" {
		name = ds.Name
	}
	log.Infof("loaded %s: %d rows, %d columns", path, ds.Rows(), len(ds.Columns()))

	fields := []schema.Field{schema.DateField(*dateCol == "")}
	if *locationCol == "" {
		fields = append(fields, schema.LocationField("location", false))
	}
	mapping, err := schema.Resolve(ds.Columns(), fields)
	if err != nil {
		log.Fatalf("schema validation failed: %v", err)
	}
	effDateCol := *dateCol
	if effDateCol == "" {
		effDateCol = mapping["date"]
	}
	effLocationCol := *locationCol
	if effLocationCol == "" {
		effLocationCol = mapping["location"]
	}

	run := runmeta.New("lake-etl")
	run.InputPath = path
	run.Parameters["mode"] = string(writeMode)
	run.Parameters["partition_by_location"] = *byLocation
	run.Parameters["max_drop_rate"] = *maxDropRate

	derived, err := partition.Derive(ds, partition.Config{
		DateColumn:      effDateCol,
		LocationColumn:  effLocationCol,
		ByLocation:      *byLocation,
		MissingLocation: policy,
		MaxDropRate:     *maxDropRate,
	})
	if err != nil {
		log.Fatalf("partition key derivation failed: %v", err)
	}
	if derived.Dropped > 0 {
		log.Warnf("dropped %d of %d rows with unparseable dates", derived.Dropped, derived.Total)
	}

	partitionCols := []string{"year", "month"}
	if *byLocation {
		partitionCols = append(partitionCols, derived.LocationColumn)
	}

	result, err := lake.Write(ds, lake.WriterConfig{
		OutRoot:          *outRoot,
		DatasetName:      name,
		PartitionColumns: partitionCols,
		Mode:             writeMode,
		ChunkSize:        *chunkSize,
	})
	if err != nil {
		log.Fatalf("lake write failed: %v", err)
	}
	log.Infof("wrote %d rows across %d partitions to %s", result.RowCount, len(result.Partitions), filepath.Join(*outRoot, name))

	// Metadata is a separate phase: the lake write has committed, so
	// logging failures only warn.
	run.OutputPath = filepath.Join(*outRoot, name)
	run.RowCount = result.RowCount
	run.DroppedRows = derived.Dropped
	run.Columns = result.Columns
	run.Stats["partitions"] = len(result.Partitions)
	if metaPath, err := run.WriteJSON(run.OutputPath); err != nil {
		log.Warnf("%v", err)
	} else {
		log.Infof("run metadata written to %s", metaPath)
	}
	if *runsDB != "" {
		logRun(*runsDB, run)
	}
}

func logRun(path string, run *runmeta.Run) {
	rl, err := runmeta.OpenSQLiteLog(path)
	if err != nil {
		log.Warnf("could not open run log %s: %v", path, err)
		return
	}
	defer rl.Close()
	if err := rl.Insert(run); err != nil {
		log.Warnf("could not insert run log row: %v", err)
	}
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
