// Package dataset wraps CSV measurement tables in a gota dataframe and
// handles discovery of cleaned inputs on disk.
package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Dataset is an ordered collection of measurement records sharing a schema.
// It exists between reading a CSV and writing partitioned output; derived
// columns are added by mutation along the way.
type Dataset struct {
	// Name identifies the dataset in lake paths and metadata. Derived from
	// the input filename unless set explicitly.
	Name string

	// Path is the file the dataset was read from.
	Path string

	DF dataframe.DataFrame
}

// ReadCSV loads a headered CSV into a Dataset. All columns are read as
// strings; numeric coercion happens at the point of use so that one stray
// token in a column does not poison the whole column's type.
func ReadCSV(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input CSV: %w", err)
	}
	defer f.Close()

	df := dataframe.ReadCSV(f,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Error() != nil {
		return nil, fmt.Errorf("failed to parse CSV %s: %w", path, df.Error())
	}

	return &Dataset{
		Name: NameFromPath(path),
		Path: path,
		DF:   df,
	}, nil
}

// NameFromPath derives a lake dataset name from a filename:
// "Cleaned_EPA_O3_Monthly.csv" -> "cleaned_epa_o3_monthly".
func NameFromPath(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.ToLower(base)
}

// Rows returns the record count.
func (d *Dataset) Rows() int { return d.DF.Nrow() }

// Columns returns the column headers in order.
func (d *Dataset) Columns() []string { return d.DF.Names() }

// WriteCSV writes the dataset to path, creating parent directories.
func (d *Dataset) WriteCSV(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output CSV: %w", err)
	}
	defer f.Close()
	if err := d.DF.WriteCSV(f); err != nil {
		return fmt.Errorf("failed to write CSV %s: %w", path, err)
	}
	return nil
}
