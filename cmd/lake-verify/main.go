package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/envlake/envlake/internal/lake"
	"github.com/envlake/envlake/internal/log"
	"github.com/envlake/envlake/internal/partition"
)

func main() {
	var (
		root    = flag.String("root", "", "Lake dataset directory to verify (required)")
		dateCol = flag.String("date-col", "date", "Date column checked against the partition path")
		debug   = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	if err := log.Init(*debug); err != nil {
		fmt.Printf("could not initialize logger: %v\n", err)
	}
	defer log.Sync()

	if *root == "" {
		log.Fatalf("-root is required")
	}

	parts, err := lake.ListPartFiles(*root)
	if err != nil {
		log.Fatalf("could not scan lake directory: %v", err)
	}
	if len(parts) == 0 {
		log.Fatalf("no part files found under %s", *root)
	}

	total := 0
	mismatches := 0
	for _, p := range parts {
		pf, err := lake.ReadPartFile(p, *root)
		if err != nil {
			log.Fatalf("could not read %s: %v", p, err)
		}
		total += len(pf.Rows)
		log.Infof("%s: %d rows", p, len(pf.Rows))
		mismatches += checkPartition(pf, *dateCol)
	}

	if mismatches > 0 {
		log.Errorf("verification failed: %d rows disagree with their partition path", mismatches)
		log.Sync()
		os.Exit(1)
	}
	log.Infof("verified %d rows in %d partitions", total, len(parts))
}

// checkPartition parses every date cell in a part file and counts rows whose
// calendar year or month disagrees with the file's partition path.
func checkPartition(pf *lake.PartFile, dateCol string) int {
	dateIdx := -1
	for i, c := range pf.Columns {
		if c == dateCol {
			dateIdx = i
		}
	}
	if dateIdx < 0 {
		log.Warnf("%s: no %s column, skipping key check", pf.Path, dateCol)
		return 0
	}

	wantYear, wantMonth := "", ""
	for _, kv := range pf.PartitionKeys {
		switch kv.Key {
		case "year":
			wantYear = kv.Value
		case "month":
			wantMonth = kv.Value
		}
	}
	if wantYear == "" && wantMonth == "" {
		log.Warnf("%s: no year/month partition segments, skipping key check", pf.Path)
		return 0
	}

	mismatches := 0
	for _, row := range pf.Rows {
		t, err := partition.ParseDate(row[dateIdx])
		if err != nil {
			log.Errorf("%s: unparseable date %q", pf.Path, row[dateIdx])
			mismatches++
			continue
		}
		if wantYear != "" && fmt.Sprintf("%d", t.Year()) != wantYear {
			log.Errorf("%s: date %s under year=%s", pf.Path, row[dateIdx], wantYear)
			mismatches++
			continue
		}
		if wantMonth != "" && fmt.Sprintf("%02d", int(t.Month())) != wantMonth {
			log.Errorf("%s: date %s under month=%s", pf.Path, row[dateIdx], wantMonth)
			mismatches++
		}
	}
	return mismatches
}
