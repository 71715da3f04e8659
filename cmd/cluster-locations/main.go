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
		outDir      = flag.String("out-dir", "clusters", "Output directory")
		locationCol = flag.String("location-col", "Location", "Location column")
		featureCols = flag.String("features", "", "Comma-separated feature columns (required)")
		k           = flag.Int("k", 3, "Requested cluster count (capped at locations-1)")
		pcaN        = flag.Int("pca-n", 0, "Principal components before clustering (0 = off)")
		debug       = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	if err := log.Init(*debug); err != nil {
		fmt.Printf("could not initialize logger: %v\n", err)
	}
	defer log.Sync()

	var cols []string
	for _, c := range strings.Split(*featureCols, ",") {
		if c = strings.TrimSpace(c); c != "" {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		log.Fatalf("-features is required")
	}

	path := resolveInput(*input, *searchRoot)
	ds, err := dataset.ReadCSV(path)
	if err != nil {
		log.Fatalf("could not read input: %v", err)
	}

	res, err := analysis.ClusterLocations(ds, analysis.ClusterOptions{
		LocationColumn: *locationCol,
		FeatureColumns: cols,
		K:              *k,
		PCAComponents:  *pcaN,
	})
	if err != nil {
		log.Fatalf("clustering failed: %v", err)
	}
	for ci, size := range res.Sizes {
		log.Infof("cluster %d: %d locations", ci, size)
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("could not create output directory: %v", err)
	}
	if err := analysis.WriteAssignments(filepath.Join(*outDir, "assignments.csv"), res); err != nil {
		log.Fatalf("could not write assignments: %v", err)
	}
	if err := analysis.WriteClusterSummary(filepath.Join(*outDir, "cluster_summary.csv"), res); err != nil {
		log.Fatalf("could not write summary: %v", err)
	}
	if err := analysis.WriteClusterMetadata(filepath.Join(*outDir, "cluster_metadata.json"), res); err != nil {
		log.Fatalf("could not write metadata: %v", err)
	}
	if len(res.CoordNames) >= 2 {
		chart := filepath.Join(*outDir, "clusters.png")
		if err := analysis.ClusterChart(chart, "location clusters", res); err != nil {
			log.Fatalf("could not render %s: %v", chart, err)
		}
	} else {
		log.Warnf("skipping scatter chart: only %d clustering coordinate(s)", len(res.CoordNames))
	}
	log.Infof("clustered %d locations into %d clusters, outputs in %s", len(res.Locations), res.K, *outDir)

	run := runmeta.New("cluster-locations")
	run.InputPath = path
	run.OutputPath = *outDir
	run.RowCount = ds.Rows()
	run.Parameters["k"] = *k
	run.Parameters["pca_n"] = *pcaN
	run.Parameters["features"] = cols
	run.Stats["effective_k"] = res.K
	run.Stats["pca_applied"] = res.PCAApplied
	if res.PCAApplied {
		run.Stats["explained_variance_ratio"] = res.ExplainedVarianceRatio
	}
	if metaPath, err := run.WriteJSON(*outDir); err != nil {
		log.Warnf("%v", err)
	} else {
		log.Infof("run metadata written to %s", metaPath)
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
