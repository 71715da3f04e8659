package analysis

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
)

// Metrics computes forecast accuracy between actual and predicted values.
// MAPE skips zero actuals.
func Metrics(actual, predicted []float64) (rmse, mae, mape float64) {
	n := len(actual)
	if len(predicted) < n {
		n = len(predicted)
	}
	if n == 0 {
		return
	}
	for i := 0; i < n; i++ {
		d := actual[i] - predicted[i]
		rmse += d * d
		mae += math.Abs(d)
		if actual[i] != 0 {
			mape += math.Abs(d) / math.Abs(actual[i]) * 100
		}
	}
	return math.Sqrt(rmse / float64(n)), mae / float64(n), mape / float64(n)
}

// UncertaintyRow is one confidence statement in the uncertainty report.
type UncertaintyRow struct {
	Kind     string // "trend" or "forecast"
	Location string
	Metric   string
	Value    float64
	Lower    float64
	Upper    float64
}

// TrendUncertainty turns fitted trends into 95% slope intervals.
func TrendUncertainty(results []TrendResult) []UncertaintyRow {
	rows := make([]UncertaintyRow, 0, len(results))
	for _, r := range results {
		rows = append(rows, UncertaintyRow{
			Kind:     "trend",
			Location: r.Location,
			Metric:   "slope_per_year",
			Value:    r.Slope,
			Lower:    r.Slope - 1.96*r.StdErr,
			Upper:    r.Slope + 1.96*r.StdErr,
		})
	}
	return rows
}

// ForecastUncertainty reports holdout error metrics per location together
// with the RMSE-derived interval half-width.
func ForecastUncertainty(results []LocationForecast) []UncertaintyRow {
	var rows []UncertaintyRow
	for _, r := range results {
		rows = append(rows,
			UncertaintyRow{Kind: "forecast", Location: r.Location, Metric: "rmse", Value: r.RMSE, Lower: 0, Upper: 1.96 * r.RMSE},
			UncertaintyRow{Kind: "forecast", Location: r.Location, Metric: "mae", Value: r.MAE},
			UncertaintyRow{Kind: "forecast", Location: r.Location, Metric: "mape", Value: r.MAPE},
		)
	}
	return rows
}

// WriteUncertainty writes the uncertainty report CSV.
func WriteUncertainty(path string, rows []UncertaintyRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create uncertainty report %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"kind", "location", "metric", "value", "lower_95", "upper_95"}); err != nil {
		return err
	}
	for _, r := range rows {
		row := []string{r.Kind, r.Location, r.Metric, formatFloat(r.Value), formatFloat(r.Lower), formatFloat(r.Upper)}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
