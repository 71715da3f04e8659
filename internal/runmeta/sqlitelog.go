package runmeta

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/envlake/envlake/internal/pipeline"
)

// SQLiteLog is the optional relational run log: one row per run in a local
// sqlite file, for ad-hoc querying of pipeline history.
type SQLiteLog struct {
	db   *sql.DB
	path string
}

const createRunsTable = `
CREATE TABLE IF NOT EXISTS runs (
	run_id       TEXT PRIMARY KEY,
	tool         TEXT NOT NULL,
	timestamp    TEXT NOT NULL,
	input_path   TEXT,
	output_path  TEXT,
	row_count    INTEGER,
	dropped_rows INTEGER,
	parameters   TEXT,
	stats        TEXT
);
CREATE INDEX IF NOT EXISTS idx_runs_tool ON runs (tool);
`

// OpenSQLiteLog opens (creating if needed) the run log database.
func OpenSQLiteLog(path string) (*SQLiteLog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run log database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping run log database: %w", err)
	}
	if _, err := db.Exec(createRunsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create runs table: %w", err)
	}
	return &SQLiteLog{db: db, path: path}, nil
}

// Insert appends one run row. Failures are MetadataLogError: non-fatal by
// policy since the primary write has already committed.
func (l *SQLiteLog) Insert(r *Run) error {
	params, err := json.Marshal(r.Parameters)
	if err != nil {
		return &pipeline.MetadataLogError{Path: l.path, Err: err}
	}
	stats, err := json.Marshal(r.Stats)
	if err != nil {
		return &pipeline.MetadataLogError{Path: l.path, Err: err}
	}
	_, err = l.db.Exec(
		`INSERT INTO runs (run_id, tool, timestamp, input_path, output_path, row_count, dropped_rows, parameters, stats)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Tool, r.Timestamp, r.InputPath, r.OutputPath, r.RowCount, r.DroppedRows, string(params), string(stats),
	)
	if err != nil {
		return &pipeline.MetadataLogError{Path: l.path, Err: err}
	}
	return nil
}

// Close releases the database handle.
func (l *SQLiteLog) Close() error {
	return l.db.Close()
}
