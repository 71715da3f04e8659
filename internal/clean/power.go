package clean

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/envlake/envlake/internal/dataset"
)

// PowerOptions configures cleaning of a meteorological export whose dates are
// encoded as YEAR + day-of-year columns under a preamble of header lines.
type PowerOptions struct {
	// SkipRows is the number of preamble lines before the CSV header.
	SkipRows int
}

// Power cleans a YEAR/DOY-keyed daily export into a monthly dataset. Variable
// columns are kept when their name suggests temperature or precipitation;
// temperatures that look like Kelvin (column mean above 100) are converted to
// Celsius. Monthly aggregation uses mean for temperature-like columns and sum
// for precipitation-like ones. Output dates are month starts.
func Power(path string, opts PowerOptions) (*dataset.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for i := 0; i < opts.SkipRows; i++ {
		if _, err := r.ReadString('\n'); err != nil {
			return nil, fmt.Errorf("input ends before the %d preamble rows: %w", opts.SkipRows, err)
		}
	}

	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Error() != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, df.Error())
	}

	cols := df.Names()
	yearCol, doyCol := "", ""
	for _, c := range cols {
		switch strings.ToUpper(strings.TrimSpace(c)) {
		case "YEAR":
			yearCol = c
		case "DOY":
			doyCol = c
		}
	}
	if yearCol == "" || doyCol == "" {
		return nil, fmt.Errorf("expected YEAR and DOY columns, found: %s", strings.Join(cols, ", "))
	}

	var tempCols, precipCols []string
	for _, c := range cols {
		up := strings.ToUpper(c)
		switch {
		case strings.Contains(up, "T2M") || strings.Contains(up, "TEMP"):
			tempCols = append(tempCols, c)
		case strings.Contains(up, "PRECTOT") || strings.Contains(up, "PRECIP") || strings.Contains(up, "PRCP"):
			precipCols = append(precipCols, c)
		}
	}
	if len(tempCols)+len(precipCols) == 0 {
		return nil, fmt.Errorf("no temperature or precipitation columns found in %s", path)
	}

	years := df.Col(yearCol).Records()
	doys := df.Col(doyCol).Records()

	times := make([]time.Time, 0, len(years))
	valid := make([]bool, len(years))
	for i := range years {
		y, yerr := strconv.Atoi(strings.TrimSpace(years[i]))
		d, derr := strconv.ParseFloat(strings.TrimSpace(doys[i]), 64)
		if yerr != nil || derr != nil || d < 1 {
			times = append(times, time.Time{})
			continue
		}
		valid[i] = true
		times = append(times, time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, int(d)-1))
	}

	// One shared month index keeps every column aligned even when a column
	// has gaps.
	monthKey := make([]string, len(times))
	monthSet := make(map[string]bool)
	for i := range times {
		if !valid[i] {
			continue
		}
		k := fmt.Sprintf("%04d-%02d-01", times[i].Year(), int(times[i].Month()))
		monthKey[i] = k
		monthSet[k] = true
	}
	months := make([]string, 0, len(monthSet))
	for k := range monthSet {
		months = append(months, k)
	}
	sort.Strings(months)
	monthIdx := make(map[string]int, len(months))
	for i, k := range months {
		monthIdx[k] = i
	}

	out := []series.Series{series.New(months, series.String, "Date")}

	varCols := append(append([]string{}, tempCols...), precipCols...)
	for _, c := range varCols {
		vals := maybeKelvinToCelsius(c, tempCols, df.Col(c).Float())

		sums := make([]float64, len(months))
		counts := make([]int, len(months))
		for i, v := range vals {
			if !valid[i] || math.IsNaN(v) {
				continue
			}
			j := monthIdx[monthKey[i]]
			sums[j] += v
			counts[j]++
		}

		agg := make([]float64, len(months))
		isPrecip := containsStr(precipCols, c)
		for j := range months {
			switch {
			case counts[j] == 0:
				agg[j] = math.NaN()
			case isPrecip:
				agg[j] = sums[j]
			default:
				agg[j] = sums[j] / float64(counts[j])
			}
		}
		out = append(out, series.New(agg, series.Float, c))
	}

	res := dataframe.New(out...)
	if res.Error() != nil {
		return nil, fmt.Errorf("failed to build cleaned dataset: %w", res.Error())
	}
	return &dataset.Dataset{Name: "cleaned_power_monthly", Path: path, DF: res}, nil
}

// maybeKelvinToCelsius converts a temperature column when its mean suggests
// Kelvin. Precipitation columns pass through untouched.
func maybeKelvinToCelsius(col string, tempCols []string, vals []float64) []float64 {
	if !containsStr(tempCols, col) {
		return vals
	}
	sum, n := 0.0, 0
	for _, v := range vals {
		if !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	if n == 0 || sum/float64(n) <= 100 {
		return vals
	}
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = v - 273.15
	}
	return out
}

func containsStr(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
