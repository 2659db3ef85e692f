package tree

import (
	"gonum.org/v1/gonum/mat"

	scigoErrors "github.com/jayakrishnap100/california-housing-mlops/pkg/errors"
)

// Samples is a feature-major copy of a training matrix. A forest builds it once
// and shares it read-only between all of its trees.
type Samples struct {
	// Columns[f][i] is feature f of sample i.
	Columns [][]float64
	Y       []float64
}

// NewSamples validates (X, y) and copies them into a Samples.
// y must be a single column with one row per sample of X.
func NewSamples(op string, X, y mat.Matrix) (*Samples, error) {
	rows, cols := X.Dims()
	yRows, yCols := y.Dims()

	if rows == 0 || cols == 0 {
		return nil, scigoErrors.NewValueError(op, "empty training data")
	}
	if rows != yRows {
		return nil, scigoErrors.NewDimensionError(op, rows, yRows, 0)
	}
	if yCols != 1 {
		return nil, scigoErrors.NewDimensionError(op, 1, yCols, 1)
	}
	if err := scigoErrors.CheckMatrix(op, X, rows, cols); err != nil {
		return nil, err
	}
	if err := scigoErrors.CheckMatrix(op, y, yRows, 1); err != nil {
		return nil, err
	}

	s := &Samples{
		Columns: make([][]float64, cols),
		Y:       make([]float64, rows),
	}
	for j := 0; j < cols; j++ {
		col := make([]float64, rows)
		for i := 0; i < rows; i++ {
			col[i] = X.At(i, j)
		}
		s.Columns[j] = col
	}
	for i := 0; i < rows; i++ {
		s.Y[i] = y.At(i, 0)
	}
	return s, nil
}

// Rows returns the number of samples.
func (s *Samples) Rows() int {
	return len(s.Y)
}

// Features returns the number of feature columns.
func (s *Samples) Features() int {
	return len(s.Columns)
}
