// Package model_selection partitions datasets for training and evaluation.
package model_selection

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	scigoErrors "github.com/jayakrishnap100/california-housing-mlops/pkg/errors"
)

// ShuffleSplitIndices shuffles [0, n) with seed and returns the train and test
// row indices. The test partition holds ceil(testSize * n) rows.
func ShuffleSplitIndices(n int, testSize float64, seed int64) (train, test []int, err error) {
	if !(testSize > 0 && testSize < 1) {
		return nil, nil, scigoErrors.NewValidationError("test_size", "must be in the open interval (0, 1)", testSize)
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	nTrain := n - nTest
	if nTest < 1 || nTrain < 1 {
		return nil, nil, scigoErrors.NewValueError("ShuffleSplitIndices",
			"the resulting train or test partition is empty; use more samples or a different test_size")
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return perm[nTest:], perm[:nTest], nil
}

// TrainTestSplit shuffles the rows of X and y with randomState and splits them
// into train and test partitions. The same seed always yields the same split.
func TrainTestSplit(X mat.Matrix, y mat.Vector, testSize float64, randomState int64) (
	XTrain, XTest *mat.Dense, yTrain, yTest *mat.VecDense, err error,
) {
	rows, cols := X.Dims()
	if y.Len() != rows {
		return nil, nil, nil, nil, scigoErrors.NewDimensionError("TrainTestSplit", rows, y.Len(), 0)
	}
	if rows == 0 {
		return nil, nil, nil, nil, scigoErrors.NewValueError("TrainTestSplit", "empty data")
	}

	train, test, err := ShuffleSplitIndices(rows, testSize, randomState)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	XTrain, yTrain = takeRows(X, y, train, cols)
	XTest, yTest = takeRows(X, y, test, cols)
	return XTrain, XTest, yTrain, yTest, nil
}

func takeRows(X mat.Matrix, y mat.Vector, idx []int, cols int) (*mat.Dense, *mat.VecDense) {
	outX := mat.NewDense(len(idx), cols, nil)
	outY := mat.NewVecDense(len(idx), nil)
	row := make([]float64, cols)
	for i, r := range idx {
		mat.Row(row, r, X)
		outX.SetRow(i, row)
		outY.SetVec(i, y.AtVec(r))
	}
	return outX, outY
}
