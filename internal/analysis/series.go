// Package analysis implements the batch analysis jobs that run against
// cleaned and feature-engineered datasets: per-location trend regression,
// SARIMA forecasting, k-means clustering, and uncertainty summaries.
package analysis

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/envlake/envlake/internal/dataset"
	"github.com/envlake/envlake/internal/log"
	"github.com/envlake/envlake/internal/partition"
)

// LocationSeries is one location's observations ordered by date.
type LocationSeries struct {
	Location string
	Dates    []time.Time
	Values   []float64
}

// GroupByLocation splits a dataset into per-location time series. Rows with
// an unparseable date or a non-numeric value are dropped with a count in the
// log. When locationCol is empty the whole dataset is one series.
func GroupByLocation(ds *dataset.Dataset, dateCol, valueCol, locationCol string) ([]LocationSeries, error) {
	cols := ds.Columns()
	dateIdx, valIdx, locIdx := -1, -1, -1
	for i, c := range cols {
		switch c {
		case dateCol:
			dateIdx = i
		case valueCol:
			valIdx = i
		case locationCol:
			locIdx = i
		}
	}
	if dateIdx < 0 || valIdx < 0 {
		return nil, &ColumnError{Date: dateCol, Value: valueCol, Available: cols}
	}

	groups := make(map[string]*LocationSeries)
	dropped := 0
	for _, row := range ds.DF.Records()[1:] {
		t, err := partition.ParseDate(row[dateIdx])
		if err != nil {
			dropped++
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[valIdx]), 64)
		if err != nil {
			dropped++
			continue
		}
		loc := ""
		if locIdx >= 0 {
			loc = strings.TrimSpace(row[locIdx])
		}
		g, ok := groups[loc]
		if !ok {
			g = &LocationSeries{Location: loc}
			groups[loc] = g
		}
		g.Dates = append(g.Dates, t)
		g.Values = append(g.Values, v)
	}
	if dropped > 0 {
		log.Warnf("dropped %d rows with unparseable date or value", dropped)
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]LocationSeries, 0, len(names))
	for _, name := range names {
		g := groups[name]
		sortSeries(g)
		out = append(out, *g)
	}
	return out, nil
}

func sortSeries(s *LocationSeries) {
	idx := make([]int, len(s.Dates))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return s.Dates[idx[a]].Before(s.Dates[idx[b]]) })
	dates := make([]time.Time, len(idx))
	values := make([]float64, len(idx))
	for i, j := range idx {
		dates[i] = s.Dates[j]
		values[i] = s.Values[j]
	}
	s.Dates = dates
	s.Values = values
}

// ColumnError reports that a required analysis column is absent.
type ColumnError struct {
	Date      string
	Value     string
	Available []string
}

func (e *ColumnError) Error() string {
	return "analysis requires columns " + e.Date + " and " + e.Value +
		"; dataset has: " + strings.Join(e.Available, ", ")
}

// fractionalYear converts a timestamp to a continuous year axis so slopes
// come out in units per year.
func fractionalYear(t time.Time) float64 {
	return float64(t.Year()) + float64(t.YearDay()-1)/365.25
}
