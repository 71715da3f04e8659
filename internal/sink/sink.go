// Package sink mirrors datasets into an analytical database for ad-hoc
// querying. The database is an optional mirror of the lake, never the
// primary store.
package sink

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/envlake/envlake/internal/dataset"
)

// Sink loads one table per dataset with replace semantics.
type Sink interface {
	// Replace drops and recreates the table, then loads every row.
	Replace(table string, ds *dataset.Dataset) error
	Close() error
}

var identPattern = regexp.MustCompile(`[^a-z0-9_]+`)

// sqlIdent normalizes a dataset column or table name into a safe SQL
// identifier.
func sqlIdent(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = identPattern.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		s = "col"
	}
	if s[0] >= '0' && s[0] <= '9' {
		s = "c_" + s
	}
	return s
}

// columnTypes classifies each column as REAL when every non-empty cell
// coerces to a number, TEXT otherwise.
func columnTypes(ds *dataset.Dataset) []string {
	cols := ds.Columns()
	types := make([]string, len(cols))
	records := ds.DF.Records()[1:]
	for j := range cols {
		typ := "REAL"
		seen := false
		for _, row := range records {
			v := strings.TrimSpace(row[j])
			if v == "" || v == "NaN" || v == "NA" {
				continue
			}
			seen = true
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				typ = "TEXT"
				break
			}
		}
		if !seen {
			typ = "TEXT"
		}
		types[j] = typ
	}
	return types
}

// createTableSQL builds the DDL for a dataset table.
func createTableSQL(table string, ds *dataset.Dataset) string {
	cols := ds.Columns()
	types := columnTypes(ds)
	defs := make([]string, len(cols))
	for j, c := range cols {
		defs[j] = fmt.Sprintf("%s %s", sqlIdent(c), types[j])
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", sqlIdent(table), strings.Join(defs, ", "))
}

// insertSQL builds a positional-placeholder INSERT for a dataset table.
func insertSQL(table string, ds *dataset.Dataset) string {
	cols := ds.Columns()
	names := make([]string, len(cols))
	marks := make([]string, len(cols))
	for j, c := range cols {
		names[j] = sqlIdent(c)
		marks[j] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		sqlIdent(table), strings.Join(names, ", "), strings.Join(marks, ", "))
}

// dateIndexSQL returns index DDL for the dataset's date column, or "" when
// none is present. Time-series queries against the mirror hit this index.
func dateIndexSQL(table string, ds *dataset.Dataset) string {
	for _, c := range ds.Columns() {
		if strings.EqualFold(strings.TrimSpace(c), "date") {
			t := sqlIdent(table)
			return fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_date ON %s (%s)", t, t, sqlIdent(c))
		}
	}
	return ""
}

// rowArgs converts one record to driver arguments, with SQL NULL for
// empty/NA cells.
func rowArgs(row []string) []interface{} {
	args := make([]interface{}, len(row))
	for j, v := range row {
		v = strings.TrimSpace(v)
		if v == "" || v == "NaN" || v == "NA" {
			args[j] = nil
			continue
		}
		args[j] = v
	}
	return args
}
