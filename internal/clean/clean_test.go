package clean

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestToMicrogramsPerM3(t *testing.T) {
	tests := []struct {
		v    float64
		unit string
		want float64
	}{
		{0.05, "Parts per million", 107.0},
		{30, "ppb", 64.2},
		{30, "Parts per billion", 64.2},
		{80, "ug/m3", 80},
		{80, "", 80},
	}
	for _, tt := range tests {
		if got := toMicrogramsPerM3(tt.v, tt.unit); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("toMicrogramsPerM3(%v, %q) = %v, want %v", tt.v, tt.unit, got, tt.want)
		}
	}
}

func TestMonthlyAggregateMeanAndSum(t *testing.T) {
	mk := func(y int, m time.Month, d int, v float64) monthlySample {
		return monthlySample{t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), v: v}
	}
	samples := []monthlySample{
		mk(2020, time.January, 5, 2),
		mk(2020, time.January, 20, 4),
		mk(2020, time.February, 1, 10),
	}

	dates, means := monthlyAggregate(samples, aggMean)
	if len(dates) != 2 || dates[0] != "2020-01-01" || dates[1] != "2020-02-01" {
		t.Fatalf("dates = %v", dates)
	}
	if means[0] != 3 || means[1] != 10 {
		t.Errorf("means = %v, want [3 10]", means)
	}

	_, sums := monthlyAggregate(samples, aggSum)
	if sums[0] != 6 || sums[1] != 10 {
		t.Errorf("sums = %v, want [6 10]", sums)
	}
}

func TestOzoneCleansRawExports(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "EPAair_O3_Site1_raw.csv",
		"Date Local,Daily Max 8-hour Ozone Concentration,Units of Measure\n"+
			"2020-01-05,0.040,ppm\n"+
			"2020-01-20,0.060,ppm\n"+
			"2020-02-10,0.050,ppm\n"+
			"not-a-date,0.050,ppm\n")
	// A file with undetectable columns is skipped, not fatal.
	writeFile(t, dir, "EPAair_O3_Site2_raw.csv", "foo,bar\n1,2\n")

	res, err := Ozone(filepath.Join(dir, "EPAair_O3_*_raw.csv"))
	if err != nil {
		t.Fatalf("Ozone: %v", err)
	}
	if res.FilesParsed != 1 || len(res.FilesSkipped) != 1 {
		t.Fatalf("parsed=%d skipped=%d, want 1/1", res.FilesParsed, len(res.FilesSkipped))
	}
	if res.RowsDropped != 1 {
		t.Errorf("rows dropped = %d, want 1", res.RowsDropped)
	}

	ds := res.Dataset
	if ds.Rows() != 2 {
		t.Fatalf("monthly rows = %d, want 2", ds.Rows())
	}
	dates := ds.DF.Col("Date").Records()
	if dates[0] != "2020-01-01" || dates[1] != "2020-02-01" {
		t.Errorf("dates = %v", dates)
	}

	vals := ds.DF.Col("O3_ug_m3").Float()
	// January mean of 0.040 and 0.060 ppm = 0.050 ppm = 107 µg/m³.
	if math.Abs(vals[0]-107.0) > 1e-9 {
		t.Errorf("january mean = %v, want 107", vals[0])
	}
}

func TestPowerBuildsDatesFromYearAndDOY(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "power.csv",
		"-- preamble line 1\n"+
			"-- preamble line 2\n"+
			"YEAR,DOY,T2M,PRECTOTCORR\n"+
			"2020,1,283.15,1.0\n"+
			"2020,2,285.15,2.0\n"+
			"2020,32,290.15,3.0\n")

	ds, err := Power(path, PowerOptions{SkipRows: 2})
	if err != nil {
		t.Fatalf("Power: %v", err)
	}
	if ds.Rows() != 2 {
		t.Fatalf("monthly rows = %d, want 2", ds.Rows())
	}

	dates := ds.DF.Col("Date").Records()
	if dates[0] != "2020-01-01" || dates[1] != "2020-02-01" {
		t.Errorf("dates = %v", dates)
	}

	// Kelvin inputs (mean > 100) are converted: Jan mean of 10°C and 12°C.
	temps := ds.DF.Col("T2M").Float()
	if math.Abs(temps[0]-11.0) > 1e-9 {
		t.Errorf("january temperature = %v, want 11", temps[0])
	}

	// Precipitation sums per month.
	precip := ds.DF.Col("PRECTOTCORR").Float()
	if math.Abs(precip[0]-3.0) > 1e-9 || math.Abs(precip[1]-3.0) > 1e-9 {
		t.Errorf("precip = %v, want [3 3]", precip)
	}
}
