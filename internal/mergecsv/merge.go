// Package mergecsv joins cleaned monthly datasets on their date column, plus
// an optional yearly-attribute table joined on year.
package mergecsv

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-gota/gota/series"

	"github.com/envlake/envlake/internal/dataset"
	"github.com/envlake/envlake/internal/partition"
	"github.com/envlake/envlake/internal/schema"
)

// Result reports one merge.
type Result struct {
	Dataset      *dataset.Dataset
	DroppedLeft  int
	DroppedRight int
}

// Monthly inner-joins two cleaned monthly datasets on calendar date. Each
// side's date column is resolved by the schema rules, canonicalized to
// YYYY-MM-DD, and rows with unparseable dates are dropped and counted.
// Non-key columns colliding between the two sides get a "_2" suffix on the
// right.
func Monthly(left, right *dataset.Dataset) (*Result, error) {
	res := &Result{}

	dl, err := canonicalizeDate(left)
	if err != nil {
		return nil, fmt.Errorf("left dataset: %w", err)
	}
	res.DroppedLeft = dl

	dr, err := canonicalizeDate(right)
	if err != nil {
		return nil, fmt.Errorf("right dataset: %w", err)
	}
	res.DroppedRight = dr

	// Deduplicate non-key column names before the join.
	leftCols := left.DF.Names()
	renames := map[string]string{}
	for _, c := range right.DF.Names() {
		if c != "date" && containsStr(leftCols, c) {
			renames[c] = c + "_2"
		}
	}
	rdf := right.DF
	for old, renamed := range renames {
		rdf = rdf.Rename(renamed, old)
		if rdf.Error() != nil {
			return nil, fmt.Errorf("failed to rename colliding column %q: %w", old, rdf.Error())
		}
	}

	merged := left.DF.InnerJoin(rdf, "date")
	if merged.Error() != nil {
		return nil, fmt.Errorf("failed to join datasets on date: %w", merged.Error())
	}

	res.Dataset = &dataset.Dataset{Name: "merged_dataset", DF: merged}
	return res, nil
}

// JoinYearly left-joins a yearly attribute table (one row per year) onto the
// merged dataset, so monthly rows keep their place even for years the
// attribute table misses.
func JoinYearly(ds *dataset.Dataset, attrs *dataset.Dataset) error {
	// Join keys are canonical year strings on both sides so the column
	// types always line up.
	if !containsStr(ds.Columns(), "year") {
		dates := ds.DF.Col("date").Records()
		years := make([]string, len(dates))
		for i, d := range dates {
			t, err := partition.ParseDate(d)
			if err != nil {
				return fmt.Errorf("row %d has unparseable date %q after merge", i, d)
			}
			years[i] = strconv.Itoa(t.Year())
		}
		df := ds.DF.Mutate(series.New(years, series.String, "year"))
		if df.Error() != nil {
			return fmt.Errorf("failed to derive year column: %w", df.Error())
		}
		ds.DF = df
	}

	yearCol := ""
	for _, c := range attrs.Columns() {
		if strings.Contains(strings.ToLower(c), "year") {
			yearCol = c
			break
		}
	}
	if yearCol == "" {
		return fmt.Errorf("yearly attribute table has no year column (have %v)", attrs.Columns())
	}
	adf := attrs.DF
	if yearCol != "year" {
		adf = adf.Rename("year", yearCol)
		if adf.Error() != nil {
			return fmt.Errorf("failed to normalize year column: %w", adf.Error())
		}
	}
	canon := make([]string, 0, adf.Nrow())
	for _, r := range adf.Col("year").Records() {
		if f, err := strconv.ParseFloat(strings.TrimSpace(r), 64); err == nil {
			canon = append(canon, strconv.Itoa(int(f)))
		} else {
			canon = append(canon, strings.TrimSpace(r))
		}
	}
	adf = adf.Mutate(series.New(canon, series.String, "year"))
	if adf.Error() != nil {
		return fmt.Errorf("failed to canonicalize attribute years: %w", adf.Error())
	}

	joined := ds.DF.LeftJoin(adf, "year")
	if joined.Error() != nil {
		return fmt.Errorf("failed to join yearly attributes: %w", joined.Error())
	}
	ds.DF = joined
	return nil
}

// MissingCounts reports per-column empty/NA cell counts for post-merge
// diagnostics.
func MissingCounts(ds *dataset.Dataset) map[string]int {
	out := make(map[string]int, len(ds.Columns()))
	for _, c := range ds.Columns() {
		n := 0
		for _, v := range ds.DF.Col(c).Records() {
			if v == "" || v == "NaN" || v == "NA" {
				n++
			}
		}
		out[c] = n
	}
	return out
}

// canonicalizeDate resolves the dataset's date column, rewrites it to
// YYYY-MM-DD under the name "date", and drops rows that do not parse.
// Returns the dropped count.
func canonicalizeDate(ds *dataset.Dataset) (int, error) {
	m, err := schema.Resolve(ds.Columns(), []schema.Field{schema.DateField(true)})
	if err != nil {
		return 0, err
	}
	col := m["date"]

	records := ds.DF.Col(col).Records()
	keep := make([]int, 0, len(records))
	canon := make([]string, 0, len(records))
	dropped := 0
	for i, r := range records {
		t, err := partition.ParseDate(r)
		if err != nil {
			dropped++
			continue
		}
		keep = append(keep, i)
		canon = append(canon, t.Format("2006-01-02"))
	}

	df := ds.DF
	if dropped > 0 {
		df = df.Subset(keep)
		if df.Error() != nil {
			return dropped, fmt.Errorf("failed to drop unparseable rows: %w", df.Error())
		}
	}
	if col != "date" {
		df = df.Rename("date", col)
		if df.Error() != nil {
			return dropped, fmt.Errorf("failed to rename date column: %w", df.Error())
		}
	}
	df = df.Mutate(series.New(canon, series.String, "date"))
	if df.Error() != nil {
		return dropped, fmt.Errorf("failed to canonicalize dates: %w", df.Error())
	}
	ds.DF = df
	return dropped, nil
}

func containsStr(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
