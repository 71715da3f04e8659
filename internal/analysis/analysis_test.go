package analysis

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/envlake/envlake/internal/dataset"
	"github.com/envlake/envlake/internal/pipeline"
)

func loadDataset(t *testing.T, csv string) *dataset.Dataset {
	t.Helper()
	df := dataframe.ReadCSV(strings.NewReader(csv),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Error() != nil {
		t.Fatalf("failed to load test CSV: %v", df.Error())
	}
	return &dataset.Dataset{Name: "test", DF: df}
}

// linearCSV builds monthly observations whose value is an exact linear
// function of fractional year.
func linearCSV(location string, months int, slope, intercept float64) string {
	var b strings.Builder
	b.WriteString("date,value,Location\n")
	for i := 0; i < months; i++ {
		d := time.Date(2018, time.Month(1+i), 1, 0, 0, 0, 0, time.UTC)
		v := intercept + slope*fractionalYear(d)
		fmt.Fprintf(&b, "%s,%.10f,%s\n", d.Format("2006-01-02"), v, location)
	}
	return b.String()
}

func TestGroupByLocation(t *testing.T) {
	csv := "date,value,Location\n" +
		"2020-03-01,3,b\n" +
		"2020-01-01,1,a\n" +
		"2020-02-01,2,a\n" +
		"bad-date,9,a\n" +
		"2020-04-01,not-a-number,b\n"
	groups, err := GroupByLocation(loadDataset(t, csv), "date", "value", "Location")
	if err != nil {
		t.Fatalf("GroupByLocation: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if groups[0].Location != "a" || groups[1].Location != "b" {
		t.Errorf("groups not sorted by location: %q, %q", groups[0].Location, groups[1].Location)
	}
	if len(groups[0].Values) != 2 {
		t.Errorf("location a has %d rows, want 2 (bad date dropped)", len(groups[0].Values))
	}
	if !groups[0].Dates[0].Before(groups[0].Dates[1]) {
		t.Error("dates not sorted within group")
	}
	if len(groups[1].Values) != 1 {
		t.Errorf("location b has %d rows, want 1 (bad value dropped)", len(groups[1].Values))
	}
}

func TestGroupByLocationMissingColumn(t *testing.T) {
	ds := loadDataset(t, "date,value\n2020-01-01,1\n")
	_, err := GroupByLocation(ds, "date", "missing", "")
	var colErr *ColumnError
	if !errors.As(err, &colErr) {
		t.Fatalf("expected ColumnError, got %v", err)
	}
}

func TestTrendExactLinearFit(t *testing.T) {
	ds := loadDataset(t, linearCSV("north", 36, 2.0, -4000))
	results, err := Trend(ds, TrendOptions{DateColumn: "date", ValueColumn: "value", LocationColumn: "Location"})
	if err != nil {
		t.Fatalf("Trend: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	r := results[0]
	if math.Abs(r.Slope-2.0) > 1e-6 {
		t.Errorf("slope = %v, want 2.0", r.Slope)
	}
	if math.Abs(r.R2-1.0) > 1e-9 {
		t.Errorf("R2 = %v, want 1.0", r.R2)
	}
	if r.N != 36 {
		t.Errorf("N = %d, want 36", r.N)
	}
}

func TestTrendSkipsShortLocations(t *testing.T) {
	csv := linearCSV("long", 24, 1.0, 0) +
		strings.TrimPrefix(linearCSV("short", 2, 1.0, 0), "date,value,Location\n")
	results, err := Trend(loadDataset(t, csv), TrendOptions{DateColumn: "date", ValueColumn: "value", LocationColumn: "Location"})
	if err != nil {
		t.Fatalf("Trend: %v", err)
	}
	if len(results) != 1 || results[0].Location != "long" {
		t.Fatalf("expected only the long location to be fitted, got %+v", results)
	}
}

func TestTrendInsufficientData(t *testing.T) {
	ds := loadDataset(t, linearCSV("only", 2, 1.0, 0))
	_, err := Trend(ds, TrendOptions{DateColumn: "date", ValueColumn: "value", LocationColumn: "Location"})
	var insufficient *pipeline.InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
}

func TestWriteTrendSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trend.csv")
	results := []TrendResult{
		{Location: "a", N: 12, Slope: 1.5, Intercept: 2, Pearson: 0.9, R2: 0.81, StdErr: 0.1, PValue: 0.01},
	}
	if err := WriteTrendSummary(path, results); err != nil {
		t.Fatalf("WriteTrendSummary: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if !strings.HasPrefix(lines[1], "a,12,1.5") {
		t.Errorf("unexpected summary row: %q", lines[1])
	}
}

func TestMetrics(t *testing.T) {
	actual := []float64{10, 20, 30}
	predicted := []float64{12, 18, 30}
	rmse, mae, mape := Metrics(actual, predicted)
	wantRMSE := math.Sqrt((4.0 + 4.0 + 0.0) / 3.0)
	if math.Abs(rmse-wantRMSE) > 1e-12 {
		t.Errorf("rmse = %v, want %v", rmse, wantRMSE)
	}
	if math.Abs(mae-4.0/3.0) > 1e-12 {
		t.Errorf("mae = %v, want %v", mae, 4.0/3.0)
	}
	wantMAPE := (2.0/10.0 + 2.0/20.0) * 100 / 3.0
	if math.Abs(mape-wantMAPE) > 1e-12 {
		t.Errorf("mape = %v, want %v", mape, wantMAPE)
	}
}

func TestTrendUncertainty(t *testing.T) {
	rows := TrendUncertainty([]TrendResult{{Location: "a", Slope: 2.0, StdErr: 0.5}})
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if math.Abs(rows[0].Lower-(2.0-1.96*0.5)) > 1e-12 || math.Abs(rows[0].Upper-(2.0+1.96*0.5)) > 1e-12 {
		t.Errorf("interval = [%v, %v]", rows[0].Lower, rows[0].Upper)
	}
}

func TestMonthAfter(t *testing.T) {
	base := time.Date(2020, 11, 1, 0, 0, 0, 0, time.UTC)
	got := monthAfter(base, 3)
	want := time.Date(2021, 2, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("monthAfter = %v, want %v", got, want)
	}
}

func TestForecastRejectsBadHorizon(t *testing.T) {
	ds := loadDataset(t, linearCSV("a", 36, 1.0, 0))
	if _, err := Forecast(ds, ForecastOptions{DateColumn: "date", ValueColumn: "value", LocationColumn: "Location", Horizon: 0}); err == nil {
		t.Fatal("expected error for horizon 0")
	}
}

func TestForecastInsufficientData(t *testing.T) {
	ds := loadDataset(t, linearCSV("a", 5, 1.0, 0))
	_, err := Forecast(ds, ForecastOptions{DateColumn: "date", ValueColumn: "value", LocationColumn: "Location", Horizon: 6})
	var insufficient *pipeline.InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
}

func TestForecastLinearSeries(t *testing.T) {
	ds := loadDataset(t, linearCSV("a", 48, 3.0, 0))
	results, err := Forecast(ds, ForecastOptions{DateColumn: "date", ValueColumn: "value", LocationColumn: "Location", Horizon: 6})
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	fc := results[0]
	if len(fc.Points) != 6 {
		t.Fatalf("got %d forecast points, want 6", len(fc.Points))
	}
	lastHistory := time.Date(2021, 12, 1, 0, 0, 0, 0, time.UTC)
	if !fc.Points[0].Date.Equal(monthAfter(lastHistory, 1)) {
		t.Errorf("first forecast date = %v", fc.Points[0].Date)
	}
	for _, p := range fc.Points {
		if p.Lower > p.Point || p.Point > p.Upper {
			t.Errorf("interval [%v, %v] does not bracket point %v", p.Lower, p.Upper, p.Point)
		}
	}
	if fc.Model == "" {
		t.Error("model label is empty")
	}
}
