package analysis

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/envlake/envlake/internal/dataset"
	"github.com/envlake/envlake/internal/log"
	"github.com/envlake/envlake/internal/pipeline"
)

// ClusterOptions controls per-location k-means clustering.
type ClusterOptions struct {
	LocationColumn string
	FeatureColumns []string

	// K is the requested cluster count; it is capped at locations-1.
	K int
	// PCAComponents reduces the standardized feature matrix before
	// clustering. 0 disables PCA; the count is capped at
	// min(locations, features) and PCA is skipped entirely when it would
	// not reduce dimensionality.
	PCAComponents int
}

// ClusterResult is the clustering of locations by their mean feature values.
type ClusterResult struct {
	K                      int
	Locations              []string
	Assignments            []int       // parallel to Locations
	Sizes                  []int       // per cluster
	Coords                 [][]float64 // matrix actually clustered, parallel to Locations
	CoordNames             []string
	PCAApplied             bool
	ExplainedVarianceRatio []float64
}

// locationPoint carries the location index through the k-means partition so
// assignments can be read back out.
type locationPoint struct {
	index  int
	coords clusters.Coordinates
}

func (p locationPoint) Coordinates() clusters.Coordinates { return p.coords }

func (p locationPoint) Distance(point clusters.Coordinates) float64 {
	return p.coords.Distance(point)
}

// ClusterLocations builds one feature vector per location (the mean of each
// feature column), standardizes it, optionally reduces it with PCA, and
// partitions the locations with k-means.
func ClusterLocations(ds *dataset.Dataset, opts ClusterOptions) (*ClusterResult, error) {
	if len(opts.FeatureColumns) == 0 {
		return nil, fmt.Errorf("clustering requires at least one feature column")
	}
	locations, matrix, err := locationMeans(ds, opts.LocationColumn, opts.FeatureColumns)
	if err != nil {
		return nil, err
	}
	if len(locations) < 2 {
		return nil, &pipeline.InsufficientDataError{Op: "clustering", Have: len(locations), Required: 2}
	}

	standardizeColumns(matrix)

	coords := matrix
	coordNames := append([]string(nil), opts.FeatureColumns...)
	pcaApplied := false
	var ratio []float64
	if opts.PCAComponents > 0 {
		coords, ratio, pcaApplied, err = reduce(matrix, opts.PCAComponents)
		if err != nil {
			return nil, err
		}
		if pcaApplied {
			coordNames = make([]string, len(coords[0]))
			for i := range coordNames {
				coordNames[i] = fmt.Sprintf("pc%d", i+1)
			}
		}
	}

	k := opts.K
	if k >= len(locations) {
		log.Warnf("requested k=%d with only %d locations, capping at %d", k, len(locations), len(locations)-1)
		k = len(locations) - 1
	}
	if k < 1 {
		return nil, fmt.Errorf("cluster count must be at least 1, got %d", opts.K)
	}

	obs := make(clusters.Observations, len(locations))
	for i, row := range coords {
		obs[i] = locationPoint{index: i, coords: clusters.Coordinates(row)}
	}
	km := kmeans.New()
	partition, err := km.Partition(obs, k)
	if err != nil {
		return nil, fmt.Errorf("k-means partition failed: %w", err)
	}

	assignments := make([]int, len(locations))
	sizes := make([]int, len(partition))
	for ci, c := range partition {
		for _, o := range c.Observations {
			p := o.(locationPoint)
			assignments[p.index] = ci
			sizes[ci]++
		}
	}

	return &ClusterResult{
		K:                      k,
		Locations:              locations,
		Assignments:            assignments,
		Sizes:                  sizes,
		Coords:                 coords,
		CoordNames:             coordNames,
		PCAApplied:             pcaApplied,
		ExplainedVarianceRatio: ratio,
	}, nil
}

// locationMeans returns sorted location names and one row of column means
// per location. NaN and empty cells are skipped; a location with no valid
// value for a column gets NaN, which standardization replaces with the
// column mean (zero after centering).
func locationMeans(ds *dataset.Dataset, locationCol string, featureCols []string) ([]string, [][]float64, error) {
	cols := ds.Columns()
	locIdx := -1
	featIdx := make([]int, len(featureCols))
	for i := range featIdx {
		featIdx[i] = -1
	}
	for i, c := range cols {
		if c == locationCol {
			locIdx = i
		}
		for j, fc := range featureCols {
			if c == fc {
				featIdx[j] = i
			}
		}
	}
	if locIdx < 0 {
		return nil, nil, fmt.Errorf("location column %q not found; dataset has: %s", locationCol, strings.Join(cols, ", "))
	}
	for j, idx := range featIdx {
		if idx < 0 {
			return nil, nil, fmt.Errorf("feature column %q not found; dataset has: %s", featureCols[j], strings.Join(cols, ", "))
		}
	}

	sums := make(map[string][]float64)
	counts := make(map[string][]int)
	for _, row := range ds.DF.Records()[1:] {
		loc := strings.TrimSpace(row[locIdx])
		if _, ok := sums[loc]; !ok {
			sums[loc] = make([]float64, len(featureCols))
			counts[loc] = make([]int, len(featureCols))
		}
		for j, idx := range featIdx {
			v, err := strconv.ParseFloat(strings.TrimSpace(row[idx]), 64)
			if err != nil || math.IsNaN(v) {
				continue
			}
			sums[loc][j] += v
			counts[loc][j]++
		}
	}

	locations := make([]string, 0, len(sums))
	for loc := range sums {
		locations = append(locations, loc)
	}
	sort.Strings(locations)

	matrix := make([][]float64, len(locations))
	for i, loc := range locations {
		row := make([]float64, len(featureCols))
		for j := range featureCols {
			if counts[loc][j] == 0 {
				row[j] = math.NaN()
				continue
			}
			row[j] = sums[loc][j] / float64(counts[loc][j])
		}
		matrix[i] = row
	}
	return locations, matrix, nil
}

// standardizeColumns centers and scales each column in place. Constant
// columns keep scale 1; NaN cells become 0 (the column mean).
func standardizeColumns(matrix [][]float64) {
	if len(matrix) == 0 {
		return
	}
	p := len(matrix[0])
	for j := 0; j < p; j++ {
		col := make([]float64, 0, len(matrix))
		for i := range matrix {
			if !math.IsNaN(matrix[i][j]) {
				col = append(col, matrix[i][j])
			}
		}
		mean, std := stat.MeanStdDev(col, nil)
		if len(col) == 0 {
			mean, std = 0, 1
		}
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		for i := range matrix {
			if math.IsNaN(matrix[i][j]) {
				matrix[i][j] = 0
				continue
			}
			matrix[i][j] = (matrix[i][j] - mean) / std
		}
	}
}

// reduce projects the matrix onto its first n principal components. It
// reports pcaApplied=false (returning the input unchanged) when the capped
// component count would not reduce dimensionality.
func reduce(matrix [][]float64, n int) ([][]float64, []float64, bool, error) {
	rows := len(matrix)
	p := len(matrix[0])
	if n > rows {
		n = rows
	}
	if n > p {
		n = p
	}
	if n >= p {
		log.Warnf("PCA skipped: %d components over %d features is no reduction", n, p)
		return matrix, nil, false, nil
	}

	data := make([]float64, 0, rows*p)
	for _, row := range matrix {
		data = append(data, row...)
	}
	m := mat.NewDense(rows, p, data)

	var pc stat.PC
	if ok := pc.PrincipalComponents(m, nil); !ok {
		return nil, nil, false, fmt.Errorf("principal component decomposition failed")
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	vars := pc.VarsTo(nil)

	var projected mat.Dense
	projected.Mul(m, vecs.Slice(0, p, 0, n))

	out := make([][]float64, rows)
	for i := range out {
		out[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			out[i][j] = projected.At(i, j)
		}
	}

	total := 0.0
	for _, v := range vars {
		total += v
	}
	ratio := make([]float64, n)
	for j := 0; j < n; j++ {
		if total > 0 {
			ratio[j] = vars[j] / total
		}
	}
	return out, ratio, true, nil
}

// WriteAssignments writes one CSV row per location.
func WriteAssignments(path string, res *ClusterResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create assignments output %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append([]string{"location", "cluster"}, res.CoordNames...)
	if err := w.Write(header); err != nil {
		return err
	}
	for i, loc := range res.Locations {
		row := []string{loc, strconv.Itoa(res.Assignments[i])}
		for _, v := range res.Coords[i] {
			row = append(row, formatFloat(v))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// WriteClusterSummary writes per-cluster sizes.
func WriteClusterSummary(path string, res *ClusterResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create cluster summary %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"cluster", "size"}); err != nil {
		return err
	}
	for ci, size := range res.Sizes {
		if err := w.Write([]string{strconv.Itoa(ci), strconv.Itoa(size)}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// WriteClusterMetadata writes run-level clustering facts as JSON.
func WriteClusterMetadata(path string, res *ClusterResult) error {
	doc := map[string]interface{}{
		"k":                        res.K,
		"n_locations":              len(res.Locations),
		"pca_applied":              res.PCAApplied,
		"explained_variance_ratio": res.ExplainedVarianceRatio,
		"cluster_sizes":            res.Sizes,
		"feature_columns":          res.CoordNames,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
