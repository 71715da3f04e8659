package analysis

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/envlake/envlake/internal/dataset"
	"github.com/envlake/envlake/internal/pipeline"
)

// clusterCSV builds a dataset where each location repeats a fixed feature
// vector, so per-location means equal the vectors exactly.
func clusterCSV(vectors map[string][]float64) string {
	var b strings.Builder
	b.WriteString("Location,f1,f2,f3\n")
	locs := make([]string, 0, len(vectors))
	for loc := range vectors {
		locs = append(locs, loc)
	}
	// Deterministic row order is irrelevant to the means.
	for _, loc := range locs {
		v := vectors[loc]
		for i := 0; i < 3; i++ {
			fmt.Fprintf(&b, "%s,%g,%g,%g\n", loc, v[0], v[1], v[2])
		}
	}
	return b.String()
}

func clusterDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	return loadDataset(t, clusterCSV(map[string][]float64{
		"alpha": {10, 10, 1},
		"beta":  {9.5, 10.5, 1.2},
		"gamma": {-10, -10, -1},
		"delta": {-9.5, -10.5, -1.2},
	}))
}

// duplicateDataset pairs locations with byte-identical feature vectors.
func duplicateDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	return loadDataset(t, clusterCSV(map[string][]float64{
		"alpha": {10, 10, 1},
		"beta":  {10, 10, 1},
		"gamma": {-10, -10, -1},
		"delta": {-10, -10, -1},
	}))
}

func TestClusterLocationsStructure(t *testing.T) {
	res, err := ClusterLocations(duplicateDataset(t), ClusterOptions{
		LocationColumn: "Location",
		FeatureColumns: []string{"f1", "f2", "f3"},
		K:              2,
	})
	if err != nil {
		t.Fatalf("ClusterLocations: %v", err)
	}
	if res.K != 2 {
		t.Errorf("K = %d, want 2", res.K)
	}
	if len(res.Assignments) != 4 || len(res.Locations) != 4 {
		t.Fatalf("got %d assignments for %d locations", len(res.Assignments), len(res.Locations))
	}
	total := 0
	for _, s := range res.Sizes {
		total += s
	}
	if total != 4 {
		t.Errorf("cluster sizes sum to %d, want 4", total)
	}
	for i, a := range res.Assignments {
		if a < 0 || a >= res.K {
			t.Errorf("assignment[%d] = %d out of range", i, a)
		}
	}

	// Locations with identical feature vectors always land together.
	byName := make(map[string]int)
	for i, loc := range res.Locations {
		byName[loc] = res.Assignments[i]
	}
	if byName["alpha"] != byName["beta"] {
		t.Error("identical locations alpha and beta split across clusters")
	}
	if byName["gamma"] != byName["delta"] {
		t.Error("identical locations gamma and delta split across clusters")
	}
}

func TestClusterLocationsCapsK(t *testing.T) {
	res, err := ClusterLocations(clusterDataset(t), ClusterOptions{
		LocationColumn: "Location",
		FeatureColumns: []string{"f1", "f2"},
		K:              10,
	})
	if err != nil {
		t.Fatalf("ClusterLocations: %v", err)
	}
	if res.K != 3 {
		t.Errorf("K = %d, want capped to 3", res.K)
	}
}

func TestClusterLocationsTooFewLocations(t *testing.T) {
	ds := loadDataset(t, "Location,f1\nonly,1\nonly,2\n")
	_, err := ClusterLocations(ds, ClusterOptions{LocationColumn: "Location", FeatureColumns: []string{"f1"}, K: 2})
	var insufficient *pipeline.InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
}

func TestClusterLocationsMissingFeatureColumn(t *testing.T) {
	_, err := ClusterLocations(clusterDataset(t), ClusterOptions{
		LocationColumn: "Location",
		FeatureColumns: []string{"f1", "nope"},
		K:              2,
	})
	if err == nil {
		t.Fatal("expected error for missing feature column")
	}
}

func TestClusterLocationsWithPCA(t *testing.T) {
	res, err := ClusterLocations(clusterDataset(t), ClusterOptions{
		LocationColumn: "Location",
		FeatureColumns: []string{"f1", "f2", "f3"},
		K:              2,
		PCAComponents:  2,
	})
	if err != nil {
		t.Fatalf("ClusterLocations: %v", err)
	}
	if !res.PCAApplied {
		t.Fatal("expected PCA to apply")
	}
	if len(res.CoordNames) != 2 || res.CoordNames[0] != "pc1" || res.CoordNames[1] != "pc2" {
		t.Errorf("coord names = %v", res.CoordNames)
	}
	if len(res.ExplainedVarianceRatio) != 2 {
		t.Fatalf("got %d variance ratios, want 2", len(res.ExplainedVarianceRatio))
	}
	sum := 0.0
	for _, r := range res.ExplainedVarianceRatio {
		if r < 0 || r > 1 {
			t.Errorf("variance ratio %v out of [0,1]", r)
		}
		sum += r
	}
	if sum > 1+1e-9 {
		t.Errorf("variance ratios sum to %v", sum)
	}
}

func TestClusterLocationsSkipsUselessPCA(t *testing.T) {
	res, err := ClusterLocations(clusterDataset(t), ClusterOptions{
		LocationColumn: "Location",
		FeatureColumns: []string{"f1", "f2"},
		K:              2,
		PCAComponents:  5,
	})
	if err != nil {
		t.Fatalf("ClusterLocations: %v", err)
	}
	if res.PCAApplied {
		t.Error("PCA applied with no dimensionality reduction")
	}
	if len(res.CoordNames) != 2 || res.CoordNames[0] != "f1" {
		t.Errorf("coord names = %v", res.CoordNames)
	}
}

func TestStandardizeColumns(t *testing.T) {
	matrix := [][]float64{{1, 5, math.NaN()}, {3, 5, 2}}
	standardizeColumns(matrix)
	if matrix[0][0] >= 0 || matrix[1][0] <= 0 {
		t.Errorf("first column not centered: %v, %v", matrix[0][0], matrix[1][0])
	}
	if matrix[0][1] != 0 || matrix[1][1] != 0 {
		t.Errorf("constant column should center to zero: %v, %v", matrix[0][1], matrix[1][1])
	}
	if matrix[0][2] != 0 {
		t.Errorf("NaN cell should become the column mean (0 after centering), got %v", matrix[0][2])
	}
}

func TestClusterOutputs(t *testing.T) {
	res, err := ClusterLocations(clusterDataset(t), ClusterOptions{
		LocationColumn: "Location",
		FeatureColumns: []string{"f1", "f2", "f3"},
		K:              2,
	})
	if err != nil {
		t.Fatalf("ClusterLocations: %v", err)
	}

	dir := t.TempDir()
	assignments := filepath.Join(dir, "assignments.csv")
	summary := filepath.Join(dir, "summary.csv")
	meta := filepath.Join(dir, "meta.json")
	if err := WriteAssignments(assignments, res); err != nil {
		t.Fatalf("WriteAssignments: %v", err)
	}
	if err := WriteClusterSummary(summary, res); err != nil {
		t.Fatalf("WriteClusterSummary: %v", err)
	}
	if err := WriteClusterMetadata(meta, res); err != nil {
		t.Fatalf("WriteClusterMetadata: %v", err)
	}

	data, err := os.ReadFile(assignments)
	if err != nil {
		t.Fatalf("read assignments: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 5 {
		t.Errorf("assignments has %d lines, want header + 4", len(lines))
	}
	if !strings.Contains(string(data), "alpha") {
		t.Error("assignments missing location names")
	}
}
