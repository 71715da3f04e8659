package lake

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"github.com/envlake/envlake/internal/dataset"
)

// PartFile is one partition part file read back from the lake, with the
// partition key values recovered from its path segments.
type PartFile struct {
	Path          string
	PartitionKeys []KeyValue
	Columns       []string
	Rows          [][]string
}

// KeyValue is one partition path segment (e.g. year=2020).
type KeyValue struct {
	Key   string
	Value string
}

// ReadPartFile reads a single parquet part file. datasetRoot anchors the
// partition-segment parsing; pass the part file's own directory to skip it.
func ReadPartFile(path, datasetRoot string) (*PartFile, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open part file %s: %w", path, err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, nil, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet schema from %s: %w", path, err)
	}
	defer pr.ReadStop()

	// Leaf column names, in schema order; Infos[0] is the root. The reader
	// rewrites Footer.Schema names to Go-exported form, so the headers as
	// written survive only in the ExName side.
	var cols []string
	for _, info := range pr.SchemaHandler.Infos[1:] {
		cols = append(cols, info.ExName)
	}

	n := int(pr.GetNumRows())
	recs, err := pr.ReadByNumber(n)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from %s: %w", path, err)
	}

	rows := make([][]string, 0, len(recs))
	for _, rec := range recs {
		v := reflect.Indirect(reflect.ValueOf(rec))
		row := make([]string, len(cols))
		for j := range cols {
			row[j] = cellString(v.Field(j))
		}
		rows = append(rows, row)
	}

	keys, err := partitionKeys(path, datasetRoot)
	if err != nil {
		return nil, err
	}

	return &PartFile{Path: path, PartitionKeys: keys, Columns: cols, Rows: rows}, nil
}

// Read reconstructs a full dataset from a lake dataset directory: every part
// file's rows plus the partition key columns re-synthesized from the paths.
// Part files are visited in lexical path order, so output order is
// deterministic.
func Read(datasetRoot string) (*dataset.Dataset, error) {
	parts, err := ListPartFiles(datasetRoot)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("no part files found under %s", datasetRoot)
	}

	var header []string
	var records [][]string

	for _, p := range parts {
		pf, err := ReadPartFile(p, datasetRoot)
		if err != nil {
			return nil, err
		}

		full := append([]string{}, pf.Columns...)
		for _, kv := range pf.PartitionKeys {
			full = append(full, kv.Key)
		}
		if header == nil {
			header = full
			records = append(records, header)
		} else if !equalStrings(header, full) {
			return nil, fmt.Errorf("part file %s has columns %v, expected %v", p, full, header)
		}

		for _, row := range pf.Rows {
			out := append([]string{}, row...)
			for _, kv := range pf.PartitionKeys {
				out = append(out, kv.Value)
			}
			records = append(records, out)
		}
	}

	df := dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Error() != nil {
		return nil, fmt.Errorf("failed to assemble dataset from %s: %w", datasetRoot, df.Error())
	}

	return &dataset.Dataset{
		Name: filepath.Base(datasetRoot),
		Path: datasetRoot,
		DF:   df,
	}, nil
}

// ListPartFiles returns every part-*.parquet under root in lexical order.
func ListPartFiles(root string) ([]string, error) {
	var parts []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, "part-") && strings.HasSuffix(name, ".parquet") {
			parts = append(parts, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan lake directory %s: %w", root, err)
	}
	return parts, nil
}

// partitionKeys parses key=value path segments between the dataset root and
// the part file.
func partitionKeys(path, datasetRoot string) ([]KeyValue, error) {
	rel, err := filepath.Rel(datasetRoot, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("part file %s is not under dataset root %s: %w", path, datasetRoot, err)
	}
	if rel == "." {
		return nil, nil
	}
	var keys []KeyValue
	for _, seg := range strings.Split(rel, string(filepath.Separator)) {
		k, v, ok := strings.Cut(seg, "=")
		if !ok {
			return nil, fmt.Errorf("path segment %q in %s is not a key=value partition segment", seg, path)
		}
		keys = append(keys, KeyValue{Key: k, Value: v})
	}
	return keys, nil
}

func cellString(v reflect.Value) string {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return ""
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Float64, reflect.Float32:
		return strconv.FormatFloat(v.Float(), 'f', -1, 64)
	case reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
