package analysis

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/stat"

	"github.com/envlake/envlake/internal/dataset"
	"github.com/envlake/envlake/internal/log"
	"github.com/envlake/envlake/internal/pipeline"
)

// TrendOptions selects the columns for per-location OLS regression.
type TrendOptions struct {
	DateColumn     string
	ValueColumn    string
	LocationColumn string

	// MinObservations is the fewest points a location needs for a fit.
	// Values below 3 are raised to 3.
	MinObservations int
}

// TrendResult is the fitted line for one location, with the value regressed
// against fractional year.
type TrendResult struct {
	Location  string
	N         int
	Slope     float64 // units per year
	Intercept float64
	Pearson   float64
	R2        float64
	StdErr    float64 // standard error of the slope
	PValue    float64 // normal approximation, two-sided
}

// Trend fits one ordinary least squares line per location. Locations with
// too few observations are skipped with a warning; an error is returned only
// when no location can be fitted.
func Trend(ds *dataset.Dataset, opts TrendOptions) ([]TrendResult, error) {
	minObs := opts.MinObservations
	if minObs < 3 {
		minObs = 3
	}

	groups, err := GroupByLocation(ds, opts.DateColumn, opts.ValueColumn, opts.LocationColumn)
	if err != nil {
		return nil, err
	}

	var results []TrendResult
	for _, g := range groups {
		if len(g.Values) < minObs {
			log.Warnf("skipping trend for %q: %d observations, need %d", g.Location, len(g.Values), minObs)
			continue
		}
		results = append(results, fitTrend(g))
	}
	if len(results) == 0 {
		return nil, &pipeline.InsufficientDataError{Op: "trend", Have: 0, Required: minObs}
	}
	return results, nil
}

func fitTrend(g LocationSeries) TrendResult {
	n := len(g.Values)
	xs := make([]float64, n)
	for i, t := range g.Dates {
		xs[i] = fractionalYear(t)
	}

	alpha, beta := stat.LinearRegression(xs, g.Values, nil, false)
	r := stat.Correlation(xs, g.Values, nil)

	var sse, sxx float64
	xMean := stat.Mean(xs, nil)
	for i := range xs {
		resid := g.Values[i] - (alpha + beta*xs[i])
		sse += resid * resid
		dx := xs[i] - xMean
		sxx += dx * dx
	}
	stderr := 0.0
	if n > 2 && sxx > 0 {
		stderr = math.Sqrt(sse / float64(n-2) / sxx)
	}
	p := 1.0
	if stderr > 0 {
		t := math.Abs(beta / stderr)
		p = 2 * (1 - 0.5*(1+math.Erf(t/math.Sqrt2)))
	}

	return TrendResult{
		Location:  g.Location,
		N:         n,
		Slope:     beta,
		Intercept: alpha,
		Pearson:   r,
		R2:        r * r,
		StdErr:    stderr,
		PValue:    p,
	}
}

// WriteTrendSummary writes one CSV row per location.
func WriteTrendSummary(path string, results []TrendResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create trend summary %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"location", "n", "slope_per_year", "intercept", "pearson_r", "r_squared", "slope_stderr", "p_value"}); err != nil {
		return err
	}
	for _, r := range results {
		row := []string{
			r.Location,
			fmt.Sprintf("%d", r.N),
			formatFloat(r.Slope),
			formatFloat(r.Intercept),
			formatFloat(r.Pearson),
			formatFloat(r.R2),
			formatFloat(r.StdErr),
			formatFloat(r.PValue),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return fmt.Sprintf("%.6g", v)
}
