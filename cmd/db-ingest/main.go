package main

import (
	"flag"
	"fmt"

	"github.com/envlake/envlake/internal/dataset"
	"github.com/envlake/envlake/internal/log"
	"github.com/envlake/envlake/internal/sink"
)

func main() {
	var (
		csvPath = flag.String("csv", "", "CSV to mirror (required)")
		db      = flag.String("db", "sqlite", "Target database: sqlite or postgres")
		dsn     = flag.String("dsn", "", "SQLite file path or postgres connection string (required)")
		table   = flag.String("table", "", "Table name (defaults to the input file name)")
		debug   = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	if err := log.Init(*debug); err != nil {
		fmt.Printf("could not initialize logger: %v\n", err)
	}
	defer log.Sync()

	if *csvPath == "" {
		log.Fatalf("-csv is required")
	}
	if *dsn == "" {
		log.Fatalf("-dsn is required")
	}

	ds, err := dataset.ReadCSV(*csvPath)
	if err != nil {
		log.Fatalf("could not read input: %v", err)
	}
	name := *table
	if name == "" {
		name = ds.Name
	}

	var target sink.Sink
	switch *db {
	case "sqlite":
		target, err = sink.NewSQLite(*dsn)
	case "postgres":
		target, err = sink.NewPostgres(*dsn)
	default:
		log.Fatalf("invalid -db %q: must be sqlite or postgres", *db)
	}
	if err != nil {
		log.Fatalf("could not open %s sink: %v", *db, err)
	}
	defer target.Close()

	if err := target.Replace(name, ds); err != nil {
		log.Fatalf("ingest failed: %v", err)
	}
}
