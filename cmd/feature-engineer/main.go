package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/envlake/envlake/internal/dataset"
	"github.com/envlake/envlake/internal/features"
	"github.com/envlake/envlake/internal/log"
	"github.com/envlake/envlake/internal/runmeta"
	"github.com/envlake/envlake/internal/schema"
)

func main() {
	var (
		input       = flag.String("input", "", "Input CSV (discovered under -search-root when empty)")
		searchRoot  = flag.String("search-root", ".", "Directory searched for Cleaned_*.csv when -input is empty")
		output      = flag.String("output", "", "Output CSV path (required)")
		dateCol     = flag.String("date-col", "", "Date column (resolved by synonym matching when empty)")
		valueCol    = flag.String("value-col", "", "Value column (resolved by synonym matching when empty)")
		locationCol = flag.String("location-col", "", "Location column grouping the windowed operations")
		window      = flag.Int("rolling-window-months", 0, "Trailing rolling-average window in months (0 = off)")
		cumulative  = flag.Bool("compute-cumulative", false, "Add the running-total column")
		spatialMean = flag.Bool("spatial-mean", false, "Add the per-location mean column")
		pcaCols     = flag.String("pca-cols", "", "Comma-separated columns for PCA")
		pcaN        = flag.Int("pca-n", 0, "Number of principal components to fit (0 = off)")
		pcaModel    = flag.String("pca-model", "", "PCA model JSON path: written when fitting, loaded for re-projection when -pca-n is 0")
		debug       = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	if err := log.Init(*debug); err != nil {
		fmt.Printf("could not initialize logger: %v\n", err)
	}
	defer log.Sync()

	if *output == "" {
		log.Fatalf("-output is required")
	}

	path := resolveInput(*input, *searchRoot)
	ds, err := dataset.ReadCSV(path)
	if err != nil {
		log.Fatalf("could not read input: %v", err)
	}
	log.Infof("loaded %s: %d rows, %d columns", path, ds.Rows(), len(ds.Columns()))

	fields := []schema.Field{schema.DateField(*dateCol == ""), schema.ValueField("value", *valueCol == "")}
	if *locationCol == "" {
		fields = append(fields, schema.LocationField("location", false))
	}
	mapping, err := schema.Resolve(ds.Columns(), fields)
	if err != nil {
		log.Fatalf("schema validation failed: %v", err)
	}
	effDateCol := pick(*dateCol, mapping["date"])
	effValueCol := pick(*valueCol, mapping["value"])
	effLocationCol := pick(*locationCol, mapping["location"])

	if err := features.SortByDate(ds, effDateCol); err != nil {
		log.Fatalf("could not sort by date: %v", err)
	}

	result, err := features.Compute(ds, features.Options{
		ValueColumn:    effValueCol,
		LocationColumn: effLocationCol,
		RollingWindow:  *window,
		Cumulative:     *cumulative,
		SpatialMean:    *spatialMean,
	})
	if err != nil {
		log.Fatalf("feature computation failed: %v", err)
	}

	run := runmeta.New("feature-engineer")
	run.InputPath = path
	run.Parameters["rolling_window_months"] = *window
	run.Parameters["compute_cumulative"] = *cumulative
	run.Parameters["spatial_mean"] = *spatialMean

	if *pcaN > 0 || *pcaModel != "" {
		added, err := applyPCA(ds, *pcaCols, *pcaN, *pcaModel, run)
		if err != nil {
			log.Fatalf("PCA failed: %v", err)
		}
		result.ColumnsAdded = append(result.ColumnsAdded, added...)
	}

	if err := os.MkdirAll(filepath.Dir(*output), 0o755); err != nil {
		log.Fatalf("could not create output directory: %v", err)
	}
	if err := ds.WriteCSV(*output); err != nil {
		log.Fatalf("could not write output: %v", err)
	}
	log.Infof("wrote %d rows to %s (added columns: %s)", ds.Rows(), *output, strings.Join(result.ColumnsAdded, ", "))

	run.OutputPath = *output
	run.RowCount = ds.Rows()
	run.Columns = ds.Columns()
	run.Stats["columns_added"] = result.ColumnsAdded
	if metaPath, err := run.WriteJSON(filepath.Dir(*output)); err != nil {
		log.Warnf("%v", err)
	} else {
		log.Infof("run metadata written to %s", metaPath)
	}
}

// applyPCA fits a fresh model when n > 0, otherwise re-projects with a saved
// one. Re-projection with a saved model reproduces the original component
// values exactly.
func applyPCA(ds *dataset.Dataset, colsFlag string, n int, modelPath string, run *runmeta.Run) ([]string, error) {
	var model *features.PCAModel
	var err error
	if n > 0 {
		cols := splitCols(colsFlag)
		if len(cols) == 0 {
			return nil, fmt.Errorf("-pca-cols is required when -pca-n is set")
		}
		model, err = features.FitPCA(ds, cols, n)
		if err != nil {
			return nil, err
		}
		if modelPath != "" {
			if err := model.Save(modelPath); err != nil {
				return nil, err
			}
			log.Infof("PCA model saved to %s", modelPath)
		}
	} else {
		model, err = features.LoadPCAModel(modelPath)
		if err != nil {
			return nil, err
		}
		log.Infof("PCA model loaded from %s", modelPath)
	}

	if err := model.Project(ds); err != nil {
		return nil, err
	}
	run.Stats["explained_variance"] = model.ExplainedVariance
	run.Stats["explained_variance_ratio"] = model.ExplainedVarianceRatio

	added := make([]string, model.NumComponents())
	for i := range added {
		added[i] = fmt.Sprintf("pc%d", i+1)
	}
	return added, nil
}

func splitCols(s string) []string {
	var cols []string
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			cols = append(cols, c)
		}
	}
	return cols
}

func pick(explicit, resolved string) string {
	if explicit != "" {
		return explicit
	}
	return resolved
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
