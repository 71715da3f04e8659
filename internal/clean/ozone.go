// Package clean turns raw measurement exports into the Cleaned_*_Monthly.csv
// shape the rest of the pipeline consumes: one row per month, a parseable
// date column, and values normalized to a single unit.
package clean

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/envlake/envlake/internal/dataset"
	"github.com/envlake/envlake/internal/partition"
	"github.com/envlake/envlake/internal/schema"
)

// OzoneResult reports one ozone cleaning run.
type OzoneResult struct {
	Dataset      *dataset.Dataset
	FilesParsed  int
	FilesSkipped []string
	RowsDropped  int
}

var (
	ozoneValuePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)arithmetic`),
		regexp.MustCompile(`(?i)8-?hour`),
		regexp.MustCompile(`(?i)daily.*max`),
		regexp.MustCompile(`(?i)o3`),
		regexp.MustCompile(`(?i)ozone`),
		regexp.MustCompile(`(?i)daily.*avg`),
		regexp.MustCompile(`(?i)value`),
	}
	unitPattern = regexp.MustCompile(`(?i)unit|measure`)
)

// Ozone cleans every raw export matching glob into one monthly-mean series.
// Files whose date or value column cannot be detected are skipped with a
// warning entry, not fatal; rows with unparseable dates or non-numeric values
// are dropped and counted. Output columns: Date (month start), O3_ug_m3.
func Ozone(glob string) (*OzoneResult, error) {
	files, err := filepath.Glob(glob)
	if err != nil {
		return nil, fmt.Errorf("bad raw-file glob %q: %w", glob, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no raw files match %q", glob)
	}
	sort.Strings(files)

	res := &OzoneResult{}
	var samples []monthlySample

	for _, f := range files {
		ds, err := dataset.ReadCSV(f)
		if err != nil {
			res.FilesSkipped = append(res.FilesSkipped, fmt.Sprintf("%s: %v", f, err))
			continue
		}

		dateCol, valueCol, unitCol := detectOzoneColumns(ds.Columns())
		if dateCol == "" || valueCol == "" {
			res.FilesSkipped = append(res.FilesSkipped,
				fmt.Sprintf("%s: could not detect date/value columns (date=%q, value=%q)", f, dateCol, valueCol))
			continue
		}

		dates := ds.DF.Col(dateCol).Records()
		values := ds.DF.Col(valueCol).Records()
		var units []string
		if unitCol != "" {
			units = ds.DF.Col(unitCol).Records()
		}

		for i := range dates {
			t, err := partition.ParseDate(dates[i])
			if err != nil {
				res.RowsDropped++
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(values[i]), 64)
			if err != nil {
				res.RowsDropped++
				continue
			}
			unit := ""
			if units != nil {
				unit = units[i]
			}
			samples = append(samples, monthlySample{t: t, v: toMicrogramsPerM3(v, unit)})
		}
		res.FilesParsed++
	}

	if res.FilesParsed == 0 {
		return nil, fmt.Errorf("no raw files parsed successfully (%d skipped)", len(res.FilesSkipped))
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("no valid rows found across %d files", res.FilesParsed)
	}

	dates, means := monthlyAggregate(samples, aggMean)
	df := dataframe.New(
		series.New(dates, series.String, "Date"),
		series.New(means, series.Float, "O3_ug_m3"),
	)
	if df.Error() != nil {
		return nil, fmt.Errorf("failed to build cleaned dataset: %w", df.Error())
	}
	res.Dataset = &dataset.Dataset{Name: "cleaned_o3_monthly", DF: df}
	return res, nil
}

// detectOzoneColumns finds the date, measurement and unit columns of a raw
// export. Date detection reuses the schema synonym/substring rules; the
// measurement column is matched against known export header patterns in
// preference order.
func detectOzoneColumns(cols []string) (dateCol, valueCol, unitCol string) {
	if m, err := schema.Resolve(cols, []schema.Field{schema.DateField(true)}); err == nil {
		dateCol = m["date"]
	}
	for _, p := range ozoneValuePatterns {
		for _, c := range cols {
			if c != dateCol && p.MatchString(c) {
				return dateCol, c, detectUnitColumn(cols)
			}
		}
	}
	return dateCol, "", detectUnitColumn(cols)
}

func detectUnitColumn(cols []string) string {
	for _, c := range cols {
		if unitPattern.MatchString(c) {
			return c
		}
	}
	return ""
}

// toMicrogramsPerM3 normalizes an ozone concentration to µg/m³. ppm and ppb
// conversions assume 25°C; values without a recognized unit pass through.
func toMicrogramsPerM3(v float64, unit string) float64 {
	s := strings.ToLower(unit)
	switch {
	case strings.Contains(s, "ppm"), strings.Contains(s, "parts per million"):
		return v * 2140.0
	case strings.Contains(s, "ppb"), strings.Contains(s, "parts per billion"):
		return v * 2.14
	default:
		return v
	}
}
