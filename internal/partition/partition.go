// Package partition derives lake partition keys (year, month, optional
// location) from a dataset's date column.
package partition

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/envlake/envlake/internal/dataset"
	"github.com/envlake/envlake/internal/pipeline"
)

// MissingLocationPolicy decides what happens when partitioning by location was
// requested but the dataset has no location column. The choice is always
// explicit configuration, never inferred.
type MissingLocationPolicy string

const (
	// LocationFallbackUnknown fabricates a constant "unknown" location.
	LocationFallbackUnknown MissingLocationPolicy = "fallback"
	// LocationFail aborts the run.
	LocationFail MissingLocationPolicy = "fail"
)

// ParseMissingLocationPolicy validates an operator-supplied policy string.
func ParseMissingLocationPolicy(s string) (MissingLocationPolicy, error) {
	switch MissingLocationPolicy(s) {
	case LocationFallbackUnknown, LocationFail:
		return MissingLocationPolicy(s), nil
	}
	return "", fmt.Errorf("invalid missing-location policy %q: must be %q or %q",
		s, LocationFallbackUnknown, LocationFail)
}

// UnknownLocation is the fabricated location value under the fallback policy.
const UnknownLocation = "unknown"

// Config controls key derivation. DateColumn is the resolved physical column;
// LocationColumn may be empty when the schema had none.
type Config struct {
	DateColumn      string
	LocationColumn  string
	ByLocation      bool
	MissingLocation MissingLocationPolicy

	// MaxDropRate is the fraction of unparseable-date rows tolerated before
	// the whole run aborts with a DateParseError.
	MaxDropRate float64
}

// Result reports what derivation did to the dataset.
type Result struct {
	Total   int
	Dropped int

	// LocationColumn is the effective location column after fallback
	// handling, or "" when not partitioning by location.
	LocationColumn string
}

// dateLayouts are the accepted date formats, tried in order.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006",
	"2006/01/02",
}

// ParseDate parses one date cell against the accepted layouts.
func ParseDate(s string) (time.Time, error) {
	v := strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

// Derive parses the date column, drops (and counts) rows whose dates do not
// parse, and adds year, month and year_month columns. On request it also
// guarantees a location column per the configured policy. Rows keep their
// input order.
func Derive(d *dataset.Dataset, cfg Config) (Result, error) {
	res := Result{Total: d.Rows()}

	dates := d.DF.Col(cfg.DateColumn).Records()

	keep := make([]int, 0, len(dates))
	years := make([]int, 0, len(dates))
	months := make([]string, 0, len(dates))
	yearMonths := make([]string, 0, len(dates))

	for i, raw := range dates {
		t, err := ParseDate(raw)
		if err != nil {
			res.Dropped++
			continue
		}
		keep = append(keep, i)
		years = append(years, t.Year())
		m := fmt.Sprintf("%02d", int(t.Month()))
		months = append(months, m)
		yearMonths = append(yearMonths, fmt.Sprintf("%d-%s", t.Year(), m))
	}

	if res.Total > 0 && float64(res.Dropped)/float64(res.Total) > cfg.MaxDropRate && res.Dropped > 0 {
		return res, &pipeline.DateParseError{Dropped: res.Dropped, Total: res.Total, MaxRate: cfg.MaxDropRate}
	}

	df := d.DF
	if res.Dropped > 0 {
		df = df.Subset(keep)
		if df.Error() != nil {
			return res, fmt.Errorf("failed to drop unparseable rows: %w", df.Error())
		}
	}

	df = df.Mutate(series.New(years, series.Int, "year")).
		Mutate(series.New(months, series.String, "month")).
		Mutate(series.New(yearMonths, series.String, "year_month"))
	if df.Error() != nil {
		return res, fmt.Errorf("failed to add partition key columns: %w", df.Error())
	}

	if cfg.ByLocation {
		col, err := ensureLocation(&df, cfg, len(keep))
		if err != nil {
			return res, err
		}
		res.LocationColumn = col
	}

	d.DF = df
	return res, nil
}

func ensureLocation(df *dataframe.DataFrame, cfg Config, nrows int) (string, error) {
	col := cfg.LocationColumn
	if col != "" && contains(df.Names(), col) {
		return col, nil
	}

	switch cfg.MissingLocation {
	case LocationFallbackUnknown:
		if col == "" {
			col = "location"
		}
		vals := make([]string, nrows)
		for i := range vals {
			vals[i] = UnknownLocation
		}
		*df = df.Mutate(series.New(vals, series.String, col))
		if df.Error() != nil {
			return "", fmt.Errorf("failed to add fallback location column: %w", df.Error())
		}
		return col, nil
	case LocationFail:
		return "", &pipeline.SchemaValidationError{
			Missing:   []string{"location"},
			Available: df.Names(),
		}
	default:
		return "", fmt.Errorf("missing-location policy not configured; set one of %q, %q",
			LocationFallbackUnknown, LocationFail)
	}
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
