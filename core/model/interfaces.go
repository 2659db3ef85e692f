package model

import (
	"gonum.org/v1/gonum/mat"
)

// Scorer is implemented by models that can compute a score.
type Scorer interface {
	// Score returns the coefficient of determination R^2 of the prediction.
	Score(X mat.Matrix, y mat.Matrix) (float64, error)
}

// ParameterGetter is implemented by models that expose their hyperparameters.
type ParameterGetter interface {
	GetParams() map[string]interface{}
}

// Regressor is the capability set the training pipeline and the prediction
// service depend on.
type Regressor interface {
	Fitter
	Predictor
	ParameterGetter
}

// FeatureImportancer is implemented by tree based models.
type FeatureImportancer interface {
	FeatureImportances() ([]float64, error)
}
