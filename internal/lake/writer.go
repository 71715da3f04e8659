// Package lake writes and reads the partitioned Parquet data lake. Layout is
// hive-style: <out-root>/<dataset>/year=<YYYY>/month=<MM>[/region=<R>]/part-N.parquet,
// with partition key values carried by the path segments rather than the file
// contents.
package lake

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/envlake/envlake/internal/dataset"
)

// WriteMode decides how an existing dataset directory is treated. It is a
// required, validated parameter: the writer never infers behavior from
// directory state.
type WriteMode string

const (
	// Overwrite replaces the dataset's previous partitions entirely, so a
	// repeated identical run produces identical output with no duplicates.
	Overwrite WriteMode = "overwrite"
	// Append adds new part files next to existing ones.
	Append WriteMode = "append"
)

// ParseWriteMode validates an operator-supplied mode string.
func ParseWriteMode(s string) (WriteMode, error) {
	switch WriteMode(s) {
	case Overwrite, Append:
		return WriteMode(s), nil
	}
	return "", fmt.Errorf("invalid write mode %q: must be %q or %q", s, Overwrite, Append)
}

// WriterConfig configures one partitioned write.
type WriterConfig struct {
	OutRoot     string
	DatasetName string

	// PartitionColumns name the key columns, in path order
	// (e.g. ["year", "month"] or ["year", "month", "region"]). Key values
	// become path segments and are excluded from the file contents.
	PartitionColumns []string

	Mode WriteMode

	// ChunkSize bounds how many rows are buffered before a row group is
	// flushed, keeping peak memory proportional to the chunk, not the
	// dataset. Zero means the default of 5000.
	ChunkSize int
}

const defaultChunkSize = 5000

// WriteResult reports what was written.
type WriteResult struct {
	RowCount   int
	Partitions map[string]int // relative partition path -> row count
	Columns    []string       // data columns stored in the part files
}

// Write partitions the dataset by the configured key columns and writes one
// parquet part file per partition. Partitions are processed in sorted key
// order and rows keep their in-partition input order.
func Write(d *dataset.Dataset, cfg WriterConfig) (*WriteResult, error) {
	if _, err := ParseWriteMode(string(cfg.Mode)); err != nil {
		return nil, err
	}
	if cfg.DatasetName == "" {
		return nil, fmt.Errorf("dataset name is required for lake writes")
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}

	names := d.Columns()
	for _, pc := range cfg.PartitionColumns {
		if !containsStr(names, pc) {
			return nil, fmt.Errorf("partition column %q not present in dataset (have %v)", pc, names)
		}
	}

	dataCols := make([]string, 0, len(names))
	for _, n := range names {
		if !containsStr(cfg.PartitionColumns, n) {
			dataCols = append(dataCols, n)
		}
	}
	if len(dataCols) == 0 {
		return nil, fmt.Errorf("no data columns left after excluding partition keys")
	}

	records := d.DF.Records()[1:] // drop header row
	colIdx := make(map[string]int, len(names))
	for i, n := range names {
		colIdx[n] = i
	}

	// Group row indexes by partition key tuple.
	partitions := make(map[string][]int)
	for i, row := range records {
		segs := make([]string, len(cfg.PartitionColumns))
		for j, pc := range cfg.PartitionColumns {
			segs[j] = fmt.Sprintf("%s=%s", pc, sanitizeSegment(row[colIdx[pc]]))
		}
		key := filepath.Join(segs...)
		partitions[key] = append(partitions[key], i)
	}

	keys := make([]string, 0, len(partitions))
	for k := range partitions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	datasetRoot := filepath.Join(cfg.OutRoot, cfg.DatasetName)
	if cfg.Mode == Overwrite {
		if err := os.RemoveAll(datasetRoot); err != nil {
			return nil, fmt.Errorf("failed to clear dataset directory for overwrite: %w", err)
		}
	}

	md := schemaMetadata(records, dataCols, colIdx)

	res := &WriteResult{Partitions: make(map[string]int, len(keys)), Columns: dataCols}
	for _, key := range keys {
		rows := partitions[key]
		dir := filepath.Join(datasetRoot, key)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create partition directory %s: %w", dir, err)
		}
		path, err := nextPartPath(dir)
		if err != nil {
			return nil, err
		}
		if err := writePartFile(path, md, records, rows, dataCols, colIdx, cfg.ChunkSize); err != nil {
			return nil, err
		}
		res.Partitions[key] = len(rows)
		res.RowCount += len(rows)
	}

	return res, nil
}

// schemaMetadata builds the parquet CSV-writer schema for the data columns.
// A column is stored as DOUBLE when every cell coerces to a number, as a
// UTF-8 string otherwise.
func schemaMetadata(records [][]string, dataCols []string, colIdx map[string]int) []string {
	md := make([]string, len(dataCols))
	for j, c := range dataCols {
		numeric := len(records) > 0
		for _, row := range records {
			if _, err := strconv.ParseFloat(strings.TrimSpace(row[colIdx[c]]), 64); err != nil {
				numeric = false
				break
			}
		}
		if numeric {
			md[j] = fmt.Sprintf("name=%s, type=DOUBLE", c)
		} else {
			md[j] = fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY", c)
		}
	}
	return md
}

func writePartFile(path string, md []string, records [][]string, rows []int, dataCols []string, colIdx map[string]int, chunkSize int) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("failed to create part file %s: %w", path, err)
	}
	defer fw.Close()

	pw, err := writer.NewCSVWriter(md, fw, 1)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer for %s: %w", path, err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	written := 0
	for _, ri := range rows {
		rec := make([]*string, len(dataCols))
		for j, c := range dataCols {
			v := records[ri][colIdx[c]]
			rec[j] = &v
		}
		if err := pw.WriteString(rec); err != nil {
			return fmt.Errorf("failed to write row to %s: %w", path, err)
		}
		written++
		if written%chunkSize == 0 {
			if err := pw.Flush(true); err != nil {
				return fmt.Errorf("failed to flush row group to %s: %w", path, err)
			}
		}
	}

	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("failed to finalize parquet file %s: %w", path, err)
	}
	return nil
}

// nextPartPath returns the next unused part-N filename in a partition
// directory. Under overwrite mode the directory is always fresh, so this
// matters only for append.
func nextPartPath(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to list partition directory %s: %w", dir, err)
	}
	n := 0
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "part-") && strings.HasSuffix(e.Name(), ".parquet") {
			n++
		}
	}
	return filepath.Join(dir, fmt.Sprintf("part-%05d.parquet", n)), nil
}

// sanitizeSegment keeps partition values path-safe.
func sanitizeSegment(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "empty"
	}
	v = strings.ReplaceAll(v, string(filepath.Separator), "_")
	v = strings.ReplaceAll(v, "=", "_")
	return v
}

func containsStr(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
