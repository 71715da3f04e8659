package features

import (
	"math"
	"strings"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/envlake/envlake/internal/dataset"
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

func TestRollingMeanConstantSeries(t *testing.T) {
	// A constant series must stay constant everywhere, including the
	// partial-window prefix.
	values := []float64{7.5, 7.5, 7.5, 7.5, 7.5, 7.5}
	got := rollingMean(values, make([]string, len(values)), 3)
	for i, v := range got {
		if math.Abs(v-7.5) > 1e-12 {
			t.Errorf("row %d: rolling mean = %v, want 7.5", i, v)
		}
	}
}

func TestRollingMeanPartialWindow(t *testing.T) {
	values := []float64{1, 2, 3, 4}
	got := rollingMean(values, make([]string, len(values)), 3)
	want := []float64{1, 1.5, 2, 3}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("row %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestRollingMeanGrouped(t *testing.T) {
	values := []float64{10, 100, 20, 200}
	groups := []string{"a", "b", "a", "b"}
	got := rollingMean(values, groups, 2)
	want := []float64{10, 100, 15, 150}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("row %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestCumulativeSum(t *testing.T) {
	values := []float64{1, 2, 0, 4}
	got := cumulativeSum(values, make([]string, len(values)))
	want := []float64{1, 3, 3, 7}
	prev := 0.0
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("row %d: got %v, want %v", i, got[i], want[i])
		}
		if got[i] < prev {
			t.Errorf("row %d: cumulative sum decreased: %v < %v", i, got[i], prev)
		}
		prev = got[i]
	}
}

func TestCumulativeSumGrouped(t *testing.T) {
	values := []float64{1, 10, 2, 20}
	groups := []string{"a", "b", "a", "b"}
	got := cumulativeSum(values, groups)
	want := []float64{1, 10, 3, 30}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("row %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSpatialMean(t *testing.T) {
	values := []float64{1, 3, 10, 20}
	groups := []string{"a", "a", "b", "b"}
	got := spatialMean(values, groups)
	want := []float64{2, 2, 15, 15}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("row %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSortByDate(t *testing.T) {
	ds := loadDataset(t, "date,value\n2020-03-01,3\n2020-01-01,1\n2020-02-01,2\n")
	if err := SortByDate(ds, "date"); err != nil {
		t.Fatalf("SortByDate: %v", err)
	}
	got := ds.DF.Col("value").Records()
	want := []string{"1", "2", "3"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d: value = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestComputeAddsSelectedColumns(t *testing.T) {
	ds := loadDataset(t,
		"date,value,region\n2020-01-01,1.0,east\n2020-02-01,2.0,east\n2020-03-01,3.0,east\n")

	res, err := Compute(ds, Options{
		ValueColumn:    "value",
		LocationColumn: "region",
		RollingWindow:  2,
		Cumulative:     true,
		SpatialMean:    true,
	})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	wantCols := []string{"value_rolling_2m", "value_cumulative", "value_location_mean"}
	if len(res.ColumnsAdded) != len(wantCols) {
		t.Fatalf("columns added = %v, want %v", res.ColumnsAdded, wantCols)
	}
	for i, c := range wantCols {
		if res.ColumnsAdded[i] != c {
			t.Errorf("column %d = %q, want %q", i, res.ColumnsAdded[i], c)
		}
		if !containsStr(ds.Columns(), c) {
			t.Errorf("dataset missing derived column %q", c)
		}
	}

	cum := ds.DF.Col("value_cumulative").Float()
	want := []float64{1, 3, 6}
	for i := range want {
		if math.Abs(cum[i]-want[i]) > 1e-12 {
			t.Errorf("cumulative row %d: got %v, want %v", i, cum[i], want[i])
		}
	}
}

func containsStr(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
