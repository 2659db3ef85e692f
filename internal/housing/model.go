// Package housing wraps the random forest used to predict California house prices.
package housing

import (
	"gonum.org/v1/gonum/mat"

	"github.com/jayakrishnap100/california-housing-mlops/core/model"
	"github.com/jayakrishnap100/california-housing-mlops/datasets"
	scigoErrors "github.com/jayakrishnap100/california-housing-mlops/pkg/errors"
	"github.com/jayakrishnap100/california-housing-mlops/sklearn/ensemble"
)

const (
	DefaultNEstimators = 100
	DefaultMaxDepth    = 10
	RandomState        = 42
)

// HousePriceModel is a random forest regressor with a fixed random state.
type HousePriceModel struct {
	NEstimators int
	MaxDepth    int
	Features    []string
	Forest      *ensemble.RandomForestRegressor

	progress ensemble.ProgressFunc
	workers  int
}

var (
	_ model.Regressor          = (*HousePriceModel)(nil)
	_ model.FeatureImportancer = (*HousePriceModel)(nil)
)

// Option configures a HousePriceModel.
type Option func(*HousePriceModel)

// WithProgress reports fitted trees during Fit.
func WithProgress(fn ensemble.ProgressFunc) Option {
	return func(m *HousePriceModel) {
		m.progress = fn
	}
}

// WithWorkers sets the number of trees fitted concurrently.
func WithWorkers(n int) Option {
	return func(m *HousePriceModel) {
		m.workers = n
	}
}

// NewHousePriceModel validates the hyperparameters and creates an unfitted model.
func NewHousePriceModel(nEstimators, maxDepth int, opts ...Option) (*HousePriceModel, error) {
	if nEstimators < 1 {
		return nil, scigoErrors.NewValidationError("n_estimators", "must be a positive integer", nEstimators)
	}
	if maxDepth < 1 {
		return nil, scigoErrors.NewValidationError("max_depth", "must be a positive integer", maxDepth)
	}
	m := &HousePriceModel{
		NEstimators: nEstimators,
		MaxDepth:    maxDepth,
		Features:    append([]string(nil), datasets.FeatureNames...),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// NewDefaultHousePriceModel creates a model with 100 trees of depth 10.
func NewDefaultHousePriceModel(opts ...Option) *HousePriceModel {
	m, _ := NewHousePriceModel(DefaultNEstimators, DefaultMaxDepth, opts...)
	return m
}

// Fit trains a fresh forest, discarding any previous fit.
func (m *HousePriceModel) Fit(X, y mat.Matrix) error {
	forest := ensemble.NewRandomForestRegressor(
		ensemble.WithNEstimators(m.NEstimators),
		ensemble.WithMaxDepth(m.MaxDepth),
		ensemble.WithRandomState(RandomState),
		ensemble.WithNJobs(m.workers),
		ensemble.WithProgress(m.progress),
	)
	if err := forest.Fit(X, y); err != nil {
		m.Forest = nil
		return err
	}
	m.Forest = forest
	return nil
}

// FitTable fits on a Table and records its feature names.
func (m *HousePriceModel) FitTable(t *datasets.Table) error {
	if err := m.Fit(t.X, t.Y); err != nil {
		return err
	}
	m.Features = append([]string(nil), t.FeatureNames...)
	return nil
}

// Predict returns one price per row of X in units of $100,000.
func (m *HousePriceModel) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !m.IsFitted() {
		return nil, scigoErrors.NewNotFittedError("HousePriceModel", "Predict")
	}
	return m.Forest.Predict(X)
}

// PredictOne predicts a single feature vector given in FeatureNames order.
func (m *HousePriceModel) PredictOne(features []float64) (float64, error) {
	if !m.IsFitted() {
		return 0, scigoErrors.NewNotFittedError("HousePriceModel", "Predict")
	}
	if len(features) != len(m.Features) {
		return 0, scigoErrors.NewInputShapeError("prediction", []int{len(m.Features)}, []int{len(features)})
	}
	out, err := m.Forest.Predict(mat.NewDense(1, len(features), append([]float64(nil), features...)))
	if err != nil {
		return 0, err
	}
	return out.At(0, 0), nil
}

// IsFitted reports whether Fit has succeeded.
func (m *HousePriceModel) IsFitted() bool {
	return m.Forest != nil && m.Forest.IsFitted()
}

// GetParams returns exactly n_estimators and max_depth.
func (m *HousePriceModel) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators": m.NEstimators,
		"max_depth":    m.MaxDepth,
	}
}

// FeatureNames returns the feature order the model expects.
func (m *HousePriceModel) FeatureNames() []string {
	return append([]string(nil), m.Features...)
}

// FeatureImportances returns the forest importances in FeatureNames order.
func (m *HousePriceModel) FeatureImportances() ([]float64, error) {
	if !m.IsFitted() {
		return nil, scigoErrors.NewNotFittedError("HousePriceModel", "FeatureImportances")
	}
	return m.Forest.FeatureImportances()
}
