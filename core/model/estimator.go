package model

import "gonum.org/v1/gonum/mat"

// Fitter is implemented by models that learn from (X, y).
type Fitter interface {
	// Fit trains the model from scratch. X is samples x features, y is samples x 1.
	Fit(X, y mat.Matrix) error
}

// Predictor is implemented by models that produce one prediction per row of X.
type Predictor interface {
	// Predict returns a len(rows) x 1 matrix.
	Predict(X mat.Matrix) (mat.Matrix, error)
}
