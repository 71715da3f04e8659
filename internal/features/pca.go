package features

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/envlake/envlake/internal/dataset"
	"github.com/envlake/envlake/internal/pipeline"
)

// PCAModel is a fitted principal-component projection: per-column
// standardization parameters plus the component vectors. Persisted as JSON so
// a later run can re-project new data with the exact same transform;
// re-projecting identical input through a saved model is bit-identical.
type PCAModel struct {
	Columns                []string    `json:"columns"`
	Means                  []float64   `json:"means"`
	Scales                 []float64   `json:"scales"`
	Components             [][]float64 `json:"components"` // one row per component, len(Columns) wide
	ExplainedVariance      []float64   `json:"explained_variance"`
	ExplainedVarianceRatio []float64   `json:"explained_variance_ratio"`
}

// NumComponents returns the projection's output dimensionality.
func (m *PCAModel) NumComponents() int { return len(m.Components) }

// FitPCA fits an n-component projection over the named columns. Columns are
// standardized (zero mean, unit variance) before decomposition; cells that do
// not coerce to a number take the column mean. Fails with
// InsufficientDataError when the dataset has fewer rows than components.
func FitPCA(d *dataset.Dataset, cols []string, n int) (*PCAModel, error) {
	rows := d.Rows()
	if rows < n {
		return nil, &pipeline.InsufficientDataError{Op: "PCA", Have: rows, Required: n}
	}
	if n <= 0 || n > len(cols) {
		return nil, fmt.Errorf("invalid component count %d for %d columns", n, len(cols))
	}

	raw, err := columnMatrix(d, cols)
	if err != nil {
		return nil, err
	}

	model := &PCAModel{
		Columns: cols,
		Means:   make([]float64, len(cols)),
		Scales:  make([]float64, len(cols)),
	}

	standardized := make([]float64, rows*len(cols))
	for j := range cols {
		col := make([]float64, 0, rows)
		for i := 0; i < rows; i++ {
			v := raw[i*len(cols)+j]
			if !math.IsNaN(v) {
				col = append(col, v)
			}
		}
		if len(col) == 0 {
			return nil, fmt.Errorf("PCA column %q has no numeric values", cols[j])
		}
		mean, std := stat.MeanStdDev(col, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		model.Means[j] = mean
		model.Scales[j] = std
		for i := 0; i < rows; i++ {
			v := raw[i*len(cols)+j]
			if math.IsNaN(v) {
				v = mean
			}
			standardized[i*len(cols)+j] = (v - mean) / std
		}
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(mat.NewDense(rows, len(cols), standardized), nil); !ok {
		return nil, fmt.Errorf("principal component decomposition failed")
	}

	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	vars := pc.VarsTo(nil)

	total := 0.0
	for _, v := range vars {
		total += v
	}

	model.Components = make([][]float64, n)
	model.ExplainedVariance = make([]float64, n)
	model.ExplainedVarianceRatio = make([]float64, n)
	for k := 0; k < n; k++ {
		comp := make([]float64, len(cols))
		for j := range cols {
			comp[j] = vecs.At(j, k)
		}
		model.Components[k] = comp
		model.ExplainedVariance[k] = vars[k]
		if total > 0 {
			model.ExplainedVarianceRatio[k] = vars[k] / total
		}
	}

	return model, nil
}

// Project adds pc1..pcN columns to the dataset using the fitted model.
func (m *PCAModel) Project(d *dataset.Dataset) error {
	rows := d.Rows()
	raw, err := columnMatrix(d, m.Columns)
	if err != nil {
		return err
	}

	p := len(m.Columns)
	for k, comp := range m.Components {
		out := make([]float64, rows)
		for i := 0; i < rows; i++ {
			sum := 0.0
			for j := 0; j < p; j++ {
				v := raw[i*p+j]
				if math.IsNaN(v) {
					v = m.Means[j]
				}
				sum += ((v - m.Means[j]) / m.Scales[j]) * comp[j]
			}
			out[i] = sum
		}
		name := fmt.Sprintf("pc%d", k+1)
		df := d.DF.Mutate(series.New(out, series.Float, name))
		if df.Error() != nil {
			return fmt.Errorf("failed to add %s: %w", name, df.Error())
		}
		d.DF = df
	}
	return nil
}

// Save writes the model as indented JSON, creating parent directories.
func (m *PCAModel) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode PCA model: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write PCA model %s: %w", path, err)
	}
	return nil
}

// LoadPCAModel reads a previously saved projection model.
func LoadPCAModel(path string) (*PCAModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read PCA model %s: %w", path, err)
	}
	var m PCAModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode PCA model %s: %w", path, err)
	}
	if len(m.Columns) == 0 || len(m.Components) == 0 {
		return nil, fmt.Errorf("PCA model %s is empty", path)
	}
	return &m, nil
}

// columnMatrix extracts the named columns row-major. Cells that do not
// coerce to a number come back NaN.
func columnMatrix(d *dataset.Dataset, cols []string) ([]float64, error) {
	rows := d.Rows()
	names := d.Columns()
	for _, c := range cols {
		if !contains(names, c) {
			return nil, fmt.Errorf("column %q not present in dataset (have %v)", c, names)
		}
	}

	out := make([]float64, rows*len(cols))
	for j, c := range cols {
		vals := d.DF.Col(c).Float()
		for i := 0; i < rows; i++ {
			out[i*len(cols)+j] = vals[i]
		}
	}
	return out, nil
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
