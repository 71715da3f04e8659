package features

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/envlake/envlake/internal/pipeline"
)

func TestFitPCAInsufficientData(t *testing.T) {
	ds := loadDataset(t, "a,b,c,d,e\n1,2,3,4,5\n2,3,4,5,6\n3,4,5,6,7\n")

	_, err := FitPCA(ds, []string{"a", "b", "c", "d", "e"}, 5)
	var ide *pipeline.InsufficientDataError
	if !errors.As(err, &ide) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
	if ide.Have != 3 || ide.Required != 5 {
		t.Errorf("got have=%d required=%d, want 3/5", ide.Have, ide.Required)
	}
}

func TestFitPCAExplainedVariance(t *testing.T) {
	// Two perfectly correlated columns: the first component carries all the
	// variance.
	ds := loadDataset(t, "a,b\n1,2\n2,4\n3,6\n4,8\n5,10\n")

	model, err := FitPCA(ds, []string{"a", "b"}, 2)
	if err != nil {
		t.Fatalf("FitPCA: %v", err)
	}
	if model.NumComponents() != 2 {
		t.Fatalf("components = %d, want 2", model.NumComponents())
	}
	if model.ExplainedVarianceRatio[0] < 0.99 {
		t.Errorf("first component explains %v, want ~1.0", model.ExplainedVarianceRatio[0])
	}
	sum := 0.0
	for _, r := range model.ExplainedVarianceRatio {
		sum += r
	}
	if sum > 1.0+1e-9 {
		t.Errorf("explained variance ratios sum to %v > 1", sum)
	}
}

func TestPCAProjectionIdempotentWithSavedModel(t *testing.T) {
	csv := "x,y,z\n1.0,0.5,2.0\n2.0,1.5,1.0\n3.0,2.5,4.0\n4.0,3.0,3.0\n5.0,4.5,5.0\n"
	ds := loadDataset(t, csv)

	model, err := FitPCA(ds, []string{"x", "y", "z"}, 2)
	if err != nil {
		t.Fatalf("FitPCA: %v", err)
	}

	path := filepath.Join(t.TempDir(), "models", "pca.json")
	if err := model.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := LoadPCAModel(path)
	if err != nil {
		t.Fatalf("LoadPCAModel: %v", err)
	}

	first := loadDataset(t, csv)
	if err := loaded.Project(first); err != nil {
		t.Fatalf("Project (first): %v", err)
	}
	second := loadDataset(t, csv)
	if err := loaded.Project(second); err != nil {
		t.Fatalf("Project (second): %v", err)
	}

	for _, col := range []string{"pc1", "pc2"} {
		a := first.DF.Col(col).Float()
		b := second.DF.Col(col).Float()
		for i := range a {
			if a[i] != b[i] {
				t.Errorf("%s row %d: %v != %v (projection not bit-identical)", col, i, a[i], b[i])
			}
		}
	}
}

func TestPCAProjectionCentersData(t *testing.T) {
	ds := loadDataset(t, "x,y\n1,10\n2,20\n3,30\n4,40\n")

	model, err := FitPCA(ds, []string{"x", "y"}, 1)
	if err != nil {
		t.Fatalf("FitPCA: %v", err)
	}
	if err := model.Project(ds); err != nil {
		t.Fatalf("Project: %v", err)
	}

	pc1 := ds.DF.Col("pc1").Float()
	sum := 0.0
	for _, v := range pc1 {
		sum += v
	}
	if math.Abs(sum) > 1e-9 {
		t.Errorf("projected component not centered: sum = %v", sum)
	}
}
