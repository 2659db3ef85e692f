package model

// EstimatorState is the fit state of an estimator.
type EstimatorState int

const (
	// NotFitted is the state of a freshly constructed or reset estimator.
	NotFitted EstimatorState = iota
	// Fitted is the state after a successful Fit.
	Fitted
)

// BaseEstimator is embedded by every estimator to track fit state and the
// number of features seen during Fit. Fields are exported for gob encoding.
type BaseEstimator struct {
	State     EstimatorState
	NFeatures int
}

// IsFitted reports whether Fit has completed successfully.
func (e *BaseEstimator) IsFitted() bool {
	return e.State == Fitted
}

// SetFitted marks the estimator as fitted on nFeatures columns.
func (e *BaseEstimator) SetFitted(nFeatures int) {
	e.State = Fitted
	e.NFeatures = nFeatures
}

// Reset returns the estimator to the NotFitted state.
func (e *BaseEstimator) Reset() {
	e.State = NotFitted
	e.NFeatures = 0
}
