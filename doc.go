// Package housing is a training and serving pipeline for California house
// price regression, built on a scikit-learn-like random forest written in Go.
//
// # Pipeline
//
// The train command loads the 1990 census California housing table, holds out
// 20% of it, fits a forest of 100 trees of depth 10, and records the run in a
// SQLite backed experiment tracker:
//
//	go run ./cmd/train
//
// Each run writes models/model_<YYYYMMDD_HHMMSS>/model.pkl, repoints
// models/latest at it and registers a new version of "california_housing".
//
// The serve command loads models/latest once and listens on 0.0.0.0:5000:
//
//	go run ./cmd/serve
//	curl -s localhost:5000/info
//	curl -s -X POST localhost:5000/predict \
//	    -d '{"features":[8.3252,41.0,6.984127,1.02381,322.0,2.555556,37.88,-122.23]}'
//
// # Library
//
// The estimators follow the scikit-learn API on top of gonum matrices:
//
//	forest := ensemble.NewRandomForestRegressor(
//	    ensemble.WithNEstimators(100),
//	    ensemble.WithMaxDepth(10),
//	    ensemble.WithRandomState(42),
//	)
//	if err := forest.Fit(XTrain, yTrain); err != nil {
//	    log.Fatal(err)
//	}
//	predictions, err := forest.Predict(XTest)
//
// # Packages
//
//   - datasets: California housing download, parsing and CSV loading
//   - sklearn/tree: CART DecisionTreeRegressor
//   - sklearn/ensemble: RandomForestRegressor
//   - sklearn/model_selection: TrainTestSplit
//   - metrics: Regression metrics (MSE, RMSE, MAE, R²)
//   - core/model: Core interfaces, base types and gob persistence
//   - core/parallel: Parallel processing utilities
//   - pkg/errors, pkg/log: Structured errors and logging
//   - internal/...: Tracker, model store, trainer and prediction service
package housing
