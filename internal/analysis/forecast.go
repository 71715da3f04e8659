package analysis

import (
	"encoding/csv"
	"fmt"
	"os"
	"time"

	"github.com/sartorproj/goarima/arima"
	"github.com/sartorproj/goarima/autoarima"
	"github.com/sartorproj/goarima/sarima"
	"github.com/sartorproj/goarima/timeseries"

	"github.com/envlake/envlake/internal/dataset"
	"github.com/envlake/envlake/internal/log"
	"github.com/envlake/envlake/internal/pipeline"
)

// ForecastOptions controls per-location SARIMA forecasting.
type ForecastOptions struct {
	DateColumn     string
	ValueColumn    string
	LocationColumn string

	// Horizon is the number of future months to forecast.
	Horizon int
	// Season is the seasonal period in months, 0 for non-seasonal.
	Season int
	// MinObservations is the fewest points a location needs. Values below 12
	// are raised to 12; seasonal fits additionally require 2 full periods.
	MinObservations int
}

// ForecastPoint is one forecast step with a ±1.96·RMSE interval.
type ForecastPoint struct {
	Date  time.Time
	Point float64
	Lower float64
	Upper float64
}

// LocationForecast holds fitted-model diagnostics and the forecast path for
// one location.
type LocationForecast struct {
	Location string
	Model    string
	RMSE     float64
	MAE      float64
	MAPE     float64
	History  LocationSeries
	Points   []ForecastPoint
}

// Forecast fits one model per location and projects Horizon months past the
// last observation. Accuracy metrics come from a holdout of the most recent
// observations; the final model is refitted on the full series. Locations
// with too few observations are skipped with a warning.
func Forecast(ds *dataset.Dataset, opts ForecastOptions) ([]LocationForecast, error) {
	if opts.Horizon < 1 {
		return nil, fmt.Errorf("forecast horizon must be at least 1, got %d", opts.Horizon)
	}
	minObs := opts.MinObservations
	if minObs < 12 {
		minObs = 12
	}
	if opts.Season > 0 && minObs < 2*opts.Season {
		minObs = 2 * opts.Season
	}

	groups, err := GroupByLocation(ds, opts.DateColumn, opts.ValueColumn, opts.LocationColumn)
	if err != nil {
		return nil, err
	}

	var results []LocationForecast
	for _, g := range groups {
		if len(g.Values) < minObs {
			log.Warnf("skipping forecast for %q: %d observations, need %d", g.Location, len(g.Values), minObs)
			continue
		}
		fc, err := forecastOne(g, opts)
		if err != nil {
			log.Warnf("forecast failed for %q: %v", g.Location, err)
			continue
		}
		results = append(results, fc)
	}
	if len(results) == 0 {
		return nil, &pipeline.InsufficientDataError{Op: "forecast", Have: 0, Required: minObs}
	}
	return results, nil
}

func forecastOne(g LocationSeries, opts ForecastOptions) (LocationForecast, error) {
	n := len(g.Values)

	holdout := n / 5
	if holdout > opts.Horizon {
		holdout = opts.Horizon
	}
	if holdout < 3 {
		holdout = 3
	}
	train := g.Values[:n-holdout]
	test := g.Values[n-holdout:]

	predicted, label, err := fitAndPredict(train, holdout, opts.Season)
	if err != nil {
		return LocationForecast{}, err
	}
	rmse, mae, mape := Metrics(test, predicted)

	points, _, err := fitAndPredict(g.Values, opts.Horizon, opts.Season)
	if err != nil {
		return LocationForecast{}, err
	}

	last := g.Dates[n-1]
	fc := LocationForecast{
		Location: g.Location,
		Model:    label,
		RMSE:     rmse,
		MAE:      mae,
		MAPE:     mape,
		History:  g,
	}
	for i, v := range points {
		fc.Points = append(fc.Points, ForecastPoint{
			Date:  monthAfter(last, i+1),
			Point: v,
			Lower: v - 1.96*rmse,
			Upper: v + 1.96*rmse,
		})
	}
	return fc, nil
}

// fitAndPredict fits a seasonal model when a period is given and the series
// is long enough, falling back to auto-ARIMA otherwise.
func fitAndPredict(values []float64, steps, season int) ([]float64, string, error) {
	series := &timeseries.Series{Values: append([]float64(nil), values...)}

	if season > 0 && len(values) >= 3*season {
		model := sarima.New(1, 1, 1, 1, 1, 1, season)
		if err := model.Fit(series); err == nil {
			forecasts, err := model.Predict(steps)
			if err == nil {
				return forecasts, fmt.Sprintf("SARIMA(1,1,1)(1,1,1)[%d]", season), nil
			}
		}
		log.Warnf("seasonal fit failed, falling back to auto-ARIMA")
	}

	cfg := autoarima.DefaultConfig()
	cfg.MaxP, cfg.MaxQ = 3, 3
	cfg.Criterion = "aicc"
	cfg.AutoSeasonal = false
	cfg.CompareModels = false
	auto, err := autoarima.AutoARIMA(series, cfg)
	if err == nil && auto.Model != nil {
		forecasts, err := auto.Predict(steps)
		if err == nil {
			return forecasts, fmt.Sprintf("ARIMA(%d,%d,%d)", auto.P, auto.D, auto.Q), nil
		}
	}

	// Last resort: a random walk with drift always fits.
	model := arima.New(0, 1, 0)
	if err := model.Fit(series); err != nil {
		return nil, "", fmt.Errorf("no model could be fitted: %w", err)
	}
	forecasts, err := model.Predict(steps)
	if err != nil {
		return nil, "", err
	}
	return forecasts, "ARIMA(0,1,0)", nil
}

// monthAfter returns the month-start date i months past t.
func monthAfter(t time.Time, i int) time.Time {
	return time.Date(t.Year(), t.Month()+time.Month(i), 1, 0, 0, 0, 0, time.UTC)
}

// WriteForecastCSV writes one row per location per forecast step.
func WriteForecastCSV(path string, results []LocationForecast) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create forecast output %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"location", "model", "date", "forecast", "lower_95", "upper_95", "rmse", "mae", "mape"}); err != nil {
		return err
	}
	for _, r := range results {
		for _, p := range r.Points {
			row := []string{
				r.Location,
				r.Model,
				p.Date.Format("2006-01-02"),
				formatFloat(p.Point),
				formatFloat(p.Lower),
				formatFloat(p.Upper),
				formatFloat(r.RMSE),
				formatFloat(r.MAE),
				formatFloat(r.MAPE),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}
	w.Flush()
	return w.Error()
}
