// Package datasets provides the California housing table and loaders for it.
package datasets

import (
	"context"

	"gonum.org/v1/gonum/mat"

	scigoErrors "github.com/jayakrishnap100/california-housing-mlops/pkg/errors"
)

// Loader produces a Table.
type Loader interface {
	Load(ctx context.Context) (*Table, error)
}

// Table is a numeric feature matrix with named columns and a named target.
type Table struct {
	FeatureNames []string
	TargetName   string
	X            *mat.Dense
	Y            *mat.VecDense
}

// NewTable builds a Table from row-major feature values.
func NewTable(featureNames []string, targetName string, rows [][]float64, target []float64) (*Table, error) {
	if len(rows) != len(target) {
		return nil, scigoErrors.NewDimensionError("NewTable", len(rows), len(target), 0)
	}
	if len(rows) == 0 {
		return nil, scigoErrors.NewValueError("NewTable", "no rows")
	}

	cols := len(featureNames)
	data := make([]float64, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, scigoErrors.NewInputShapeError("loading", []int{cols}, []int{len(r)})
		}
		if err := scigoErrors.CheckNumericalStability("NewTable", r, i); err != nil {
			return nil, err
		}
		data = append(data, r...)
	}

	t := &Table{
		FeatureNames: append([]string(nil), featureNames...),
		TargetName:   targetName,
		X:            mat.NewDense(len(rows), cols, data),
		Y:            mat.NewVecDense(len(target), append([]float64(nil), target...)),
	}
	return t, t.Validate()
}

// Rows returns the number of samples.
func (t *Table) Rows() int {
	r, _ := t.X.Dims()
	return r
}

// Row returns a copy of the features of sample i.
func (t *Table) Row(i int) []float64 {
	return mat.Row(nil, i, t.X)
}

// Head returns a copy of the first n rows (or fewer).
func (t *Table) Head(n int) *Table {
	if n > t.Rows() {
		n = t.Rows()
	}
	_, cols := t.X.Dims()
	x := mat.NewDense(n, cols, nil)
	x.Copy(t.X.Slice(0, n, 0, cols))
	y := mat.NewVecDense(n, nil)
	y.CopyVec(t.Y.SliceVec(0, n))
	return &Table{
		FeatureNames: append([]string(nil), t.FeatureNames...),
		TargetName:   t.TargetName,
		X:            x,
		Y:            y,
	}
}

// Validate checks that column names match the matrix and are unique.
func (t *Table) Validate() error {
	rows, cols := t.X.Dims()
	if len(t.FeatureNames) != cols {
		return scigoErrors.NewDimensionError("Table.Validate", len(t.FeatureNames), cols, 1)
	}
	if t.Y.Len() != rows {
		return scigoErrors.NewDimensionError("Table.Validate", rows, t.Y.Len(), 0)
	}
	if t.TargetName == "" {
		return scigoErrors.NewValidationError("target_name", "must not be empty", t.TargetName)
	}
	seen := make(map[string]struct{}, cols)
	for _, name := range t.FeatureNames {
		if name == "" {
			return scigoErrors.NewValidationError("feature_names", "must not contain empty names", t.FeatureNames)
		}
		if _, ok := seen[name]; ok {
			return scigoErrors.NewValidationError("feature_names", "duplicate column "+name, t.FeatureNames)
		}
		if name == t.TargetName {
			return scigoErrors.NewValidationError("feature_names", "target column used as feature", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}
