// Package runmeta records one audit document per pipeline invocation: the
// inputs, parameters, row counts and outputs of a run. Metadata is written in
// a second phase after the primary data has committed, and a failure here
// never rolls that data back; callers degrade it to a warning.
package runmeta

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/envlake/envlake/internal/pipeline"
)

// Run describes one pipeline invocation. Created once per run, written at the
// end, never mutated afterward and never read back by the pipeline.
type Run struct {
	RunID       string                 `json:"run_id"`
	Tool        string                 `json:"tool"`
	Timestamp   string                 `json:"timestamp"`
	InputPath   string                 `json:"input_path"`
	OutputPath  string                 `json:"output_path"`
	Parameters  map[string]interface{} `json:"parameters"`
	RowCount    int                    `json:"row_count"`
	DroppedRows int                    `json:"dropped_rows"`
	Columns     []string               `json:"columns"`
	Stats       map[string]interface{} `json:"stats,omitempty"`
}

// New starts a run record for the named tool, stamped with a fresh run ID and
// the current UTC time.
func New(tool string) *Run {
	return &Run{
		RunID:      uuid.NewString(),
		Tool:       tool,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Parameters: make(map[string]interface{}),
		Stats:      make(map[string]interface{}),
	}
}

// WriteJSON persists the run as run-<run_id>.json inside dir and returns the
// path. Failures come back as MetadataLogError so callers can distinguish
// them from primary-write failures.
func (r *Run) WriteJSON(dir string) (string, error) {
	path := filepath.Join(dir, "run-"+r.RunID+".json")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &pipeline.MetadataLogError{Path: path, Err: err}
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", &pipeline.MetadataLogError{Path: path, Err: err}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", &pipeline.MetadataLogError{Path: path, Err: err}
	}
	return path, nil
}
