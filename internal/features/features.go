// Package features derives analytical columns (rolling averages, cumulative
// sums, spatial aggregates, PCA projections) from a normalized dataset.
//
// All derivations are deterministic functions of the input row order and the
// declared parameters. Time ordering is a precondition for the windowed
// operations; SortByDate establishes it.
package features

import (
	"fmt"
	"math"
	"sort"

	"github.com/go-gota/gota/series"

	"github.com/envlake/envlake/internal/dataset"
	"github.com/envlake/envlake/internal/partition"
)

// Options selects which feature columns to derive. Each operation is
// independently toggled.
type Options struct {
	// ValueColumn is the resolved physical measurement column.
	ValueColumn string

	// LocationColumn groups the windowed operations when non-empty.
	LocationColumn string

	// RollingWindow is the trailing window size in periods (months for the
	// monthly datasets). Zero disables the rolling average.
	RollingWindow int

	// Cumulative enables the running total column.
	Cumulative bool

	// SpatialMean enables the per-location mean column.
	SpatialMean bool
}

// Result lists what Compute added.
type Result struct {
	ColumnsAdded []string
}

// SortByDate orders the dataset rows ascending by parsed date. The sort is
// stable so rows sharing a timestamp keep their input order.
func SortByDate(d *dataset.Dataset, dateCol string) error {
	records := d.DF.Col(dateCol).Records()
	type keyed struct {
		idx  int
		unix int64
	}
	keys := make([]keyed, len(records))
	for i, r := range records {
		t, err := partition.ParseDate(r)
		if err != nil {
			return fmt.Errorf("cannot sort by %s: %w", dateCol, err)
		}
		keys[i] = keyed{idx: i, unix: t.Unix()}
	}
	sort.SliceStable(keys, func(i, j int) bool { return keys[i].unix < keys[j].unix })

	order := make([]int, len(keys))
	for i, k := range keys {
		order[i] = k.idx
	}
	df := d.DF.Subset(order)
	if df.Error() != nil {
		return fmt.Errorf("failed to reorder rows: %w", df.Error())
	}
	d.DF = df
	return nil
}

// Compute derives the selected feature columns in place. The caller must have
// sorted the dataset by time before enabling the rolling or cumulative
// operations.
func Compute(d *dataset.Dataset, opts Options) (Result, error) {
	var res Result

	values := d.DF.Col(opts.ValueColumn).Float()
	groups := groupKeys(d, opts.LocationColumn)

	if opts.RollingWindow > 0 {
		name := fmt.Sprintf("%s_rolling_%dm", opts.ValueColumn, opts.RollingWindow)
		rolled := rollingMean(values, groups, opts.RollingWindow)
		df := d.DF.Mutate(series.New(rolled, series.Float, name))
		if df.Error() != nil {
			return res, fmt.Errorf("failed to add %s: %w", name, df.Error())
		}
		d.DF = df
		res.ColumnsAdded = append(res.ColumnsAdded, name)
	}

	if opts.Cumulative {
		name := opts.ValueColumn + "_cumulative"
		cum := cumulativeSum(values, groups)
		df := d.DF.Mutate(series.New(cum, series.Float, name))
		if df.Error() != nil {
			return res, fmt.Errorf("failed to add %s: %w", name, df.Error())
		}
		d.DF = df
		res.ColumnsAdded = append(res.ColumnsAdded, name)
	}

	if opts.SpatialMean {
		name := opts.ValueColumn + "_location_mean"
		means := spatialMean(values, groups)
		df := d.DF.Mutate(series.New(means, series.Float, name))
		if df.Error() != nil {
			return res, fmt.Errorf("failed to add %s: %w", name, df.Error())
		}
		d.DF = df
		res.ColumnsAdded = append(res.ColumnsAdded, name)
	}

	return res, nil
}

// groupKeys returns the per-row grouping key, or a single shared key when no
// location column is configured.
func groupKeys(d *dataset.Dataset, locationCol string) []string {
	n := d.Rows()
	keys := make([]string, n)
	if locationCol == "" {
		return keys
	}
	copy(keys, d.DF.Col(locationCol).Records())
	return keys
}

// rollingMean computes the trailing mean over the last window observations of
// each group. The partial-window prefix emits the mean over however many
// periods are available, so a constant series stays constant from row one.
// Non-numeric cells (NaN after coercion) are excluded from the window mean.
func rollingMean(values []float64, groups []string, window int) []float64 {
	out := make([]float64, len(values))
	recent := make(map[string][]float64, 8)

	for i, v := range values {
		g := groups[i]
		buf := append(recent[g], v)
		if len(buf) > window {
			buf = buf[len(buf)-window:]
		}
		recent[g] = buf

		sum, n := 0.0, 0
		for _, x := range buf {
			if math.IsNaN(x) {
				continue
			}
			sum += x
			n++
		}
		if n == 0 {
			out[i] = math.NaN()
		} else {
			out[i] = sum / float64(n)
		}
	}
	return out
}

// cumulativeSum computes the running total per group in row order. NaN cells
// contribute nothing but still receive the running total.
func cumulativeSum(values []float64, groups []string) []float64 {
	out := make([]float64, len(values))
	totals := make(map[string]float64, 8)

	for i, v := range values {
		g := groups[i]
		if !math.IsNaN(v) {
			totals[g] += v
		}
		out[i] = totals[g]
	}
	return out
}

// spatialMean broadcasts each group's mean value onto its rows, independent
// of time ordering.
func spatialMean(values []float64, groups []string) []float64 {
	sums := make(map[string]float64, 8)
	counts := make(map[string]int, 8)
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		sums[groups[i]] += v
		counts[groups[i]]++
	}

	out := make([]float64, len(values))
	for i := range values {
		g := groups[i]
		if counts[g] == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sums[g] / float64(counts[g])
	}
	return out
}
