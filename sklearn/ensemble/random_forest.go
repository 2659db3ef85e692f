// Package ensemble implements bagged tree ensembles.
package ensemble

import (
	"math/rand"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/jayakrishnap100/california-housing-mlops/core/model"
	"github.com/jayakrishnap100/california-housing-mlops/core/parallel"
	"github.com/jayakrishnap100/california-housing-mlops/metrics"
	scigoErrors "github.com/jayakrishnap100/california-housing-mlops/pkg/errors"
	"github.com/jayakrishnap100/california-housing-mlops/pkg/log"
	"github.com/jayakrishnap100/california-housing-mlops/sklearn/tree"
)

// ProgressFunc is called after each tree is fitted. Calls are serialised.
type ProgressFunc func(done, total int)

var (
	_ model.Regressor          = (*RandomForestRegressor)(nil)
	_ model.Scorer             = (*RandomForestRegressor)(nil)
	_ model.FeatureImportancer = (*RandomForestRegressor)(nil)
)

// RandomForestRegressor averages CART trees fitted on bootstrap samples.
type RandomForestRegressor struct {
	model.BaseEstimator

	// Hyperparameters
	NEstimators     int   // number of trees
	MaxDepth        int   // per-tree depth limit, <= 0 means unlimited
	MinSamplesSplit int   // per-tree minimum samples to split
	MinSamplesLeaf  int   // per-tree minimum samples per leaf
	MaxFeatures     int   // features examined per split, <= 0 means all
	Bootstrap       bool  // draw n rows with replacement per tree
	RandomState     int64 // seed for bootstrap draws and per-tree seeds
	NJobs           int   // worker count, <= 0 means NumCPU

	// Fitted state
	Trees []*tree.DecisionTreeRegressor

	progress ProgressFunc
}

// Option configures a RandomForestRegressor.
type Option func(*RandomForestRegressor)

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) Option {
	return func(f *RandomForestRegressor) {
		f.NEstimators = n
	}
}

// WithMaxDepth sets the depth limit of every tree.
func WithMaxDepth(depth int) Option {
	return func(f *RandomForestRegressor) {
		f.MaxDepth = depth
	}
}

// WithMinSamplesSplit sets the minimum samples to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(f *RandomForestRegressor) {
		f.MinSamplesSplit = n
	}
}

// WithMinSamplesLeaf sets the minimum samples per leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(f *RandomForestRegressor) {
		f.MinSamplesLeaf = n
	}
}

// WithMaxFeatures sets the features examined per split.
func WithMaxFeatures(n int) Option {
	return func(f *RandomForestRegressor) {
		f.MaxFeatures = n
	}
}

// WithBootstrap toggles bootstrap sampling.
func WithBootstrap(bootstrap bool) Option {
	return func(f *RandomForestRegressor) {
		f.Bootstrap = bootstrap
	}
}

// WithRandomState sets the seed.
func WithRandomState(seed int64) Option {
	return func(f *RandomForestRegressor) {
		f.RandomState = seed
	}
}

// WithNJobs sets the number of trees fitted concurrently.
func WithNJobs(n int) Option {
	return func(f *RandomForestRegressor) {
		f.NJobs = n
	}
}

// WithProgress installs a callback invoked after each fitted tree.
func WithProgress(fn ProgressFunc) Option {
	return func(f *RandomForestRegressor) {
		f.progress = fn
	}
}

// NewRandomForestRegressor creates an unfitted forest with 100 unlimited-depth
// trees, bootstrap sampling and random state 42.
func NewRandomForestRegressor(opts ...Option) *RandomForestRegressor {
	f := &RandomForestRegressor{
		NEstimators:     100,
		MaxDepth:        0,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		MaxFeatures:     0,
		Bootstrap:       true,
		RandomState:     42,
		NJobs:           -1,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fit trains NEstimators trees from scratch.
// The result depends only on the data and RandomState, not on NJobs.
func (f *RandomForestRegressor) Fit(X, y mat.Matrix) (err error) {
	defer scigoErrors.Recover(&err, "RandomForestRegressor.Fit")

	f.Reset()
	f.Trees = nil

	if f.NEstimators < 1 {
		return scigoErrors.NewValidationError("n_estimators", "must be at least 1", f.NEstimators)
	}

	samples, err := tree.NewSamples("RandomForestRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	n := samples.Rows()

	logger := log.GetLoggerWithName("ensemble").With(
		log.ModelNameKey, "RandomForestRegressor",
		log.OperationKey, log.OperationFit,
	)
	logger.Info("Training RandomForestRegressor",
		log.SamplesKey, n,
		log.FeaturesKey, samples.Features(),
		log.TreesKey, f.NEstimators,
		log.RandomSeedKey, f.RandomState,
	)
	start := time.Now()

	rng := rand.New(rand.NewSource(f.RandomState))
	seeds := make([]int64, f.NEstimators)
	for i := range seeds {
		seeds[i] = rng.Int63()
	}

	var (
		progressMu sync.Mutex
		done       int
	)
	trees := make([]*tree.DecisionTreeRegressor, f.NEstimators)
	err = parallel.ForEach(f.NEstimators, f.NJobs, func(i int) (err error) {
		// Workers run on their own goroutines, out of reach of the Recover above.
		defer scigoErrors.Recover(&err, "RandomForestRegressor.Fit")

		t := tree.NewDecisionTreeRegressor(
			tree.WithMaxDepth(f.MaxDepth),
			tree.WithMinSamplesSplit(f.MinSamplesSplit),
			tree.WithMinSamplesLeaf(f.MinSamplesLeaf),
			tree.WithMaxFeatures(f.MaxFeatures),
			tree.WithRandomState(seeds[i]),
		)
		if err := t.FitIndices(samples, f.sampleIndices(n, seeds[i])); err != nil {
			return scigoErrors.Wrapf(err, "tree %d", i)
		}
		trees[i] = t

		if f.progress != nil {
			progressMu.Lock()
			defer progressMu.Unlock()
			done++
			f.progress(done, f.NEstimators)
		}
		return nil
	})
	if err != nil {
		return scigoErrors.NewModelError("RandomForestRegressor.Fit", "tree fitting failed", err)
	}

	f.Trees = trees
	f.SetFitted(samples.Features())

	logger.Info("Training completed",
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

func (f *RandomForestRegressor) sampleIndices(n int, seed int64) []int {
	idx := make([]int, n)
	if !f.Bootstrap {
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	rng := rand.New(rand.NewSource(seed))
	for i := range idx {
		idx[i] = rng.Intn(n)
	}
	return idx
}

// Predict returns the mean tree prediction for each row of X as a rows x 1 matrix.
func (f *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !f.IsFitted() {
		return nil, scigoErrors.NewNotFittedError("RandomForestRegressor", "Predict")
	}
	rows, cols := X.Dims()
	if cols != f.NFeatures {
		return nil, scigoErrors.NewDimensionError("Predict", f.NFeatures, cols, 1)
	}

	out := mat.NewDense(rows, 1, nil)
	nTrees := float64(len(f.Trees))
	parallel.ParallelizeWithThreshold(rows, 64, func(start, end int) {
		x := make([]float64, cols)
		for i := start; i < end; i++ {
			mat.Row(x, i, X)
			var sum float64
			for _, t := range f.Trees {
				sum += t.PredictRow(x)
			}
			out.Set(i, 0, sum/nTrees)
		}
	})
	return out, nil
}

// Score returns R^2 of the predictions on X against y.
func (f *RandomForestRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := f.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// FeatureImportances averages the normalised importances of the trees.
func (f *RandomForestRegressor) FeatureImportances() ([]float64, error) {
	if !f.IsFitted() {
		return nil, scigoErrors.NewNotFittedError("RandomForestRegressor", "FeatureImportances")
	}
	out := make([]float64, f.NFeatures)
	var total float64
	for _, t := range f.Trees {
		for j, v := range t.Importances {
			out[j] += v
			total += v
		}
	}
	for j := range out {
		out[j] = scigoErrors.SafeDivide(out[j], total)
	}
	return out, nil
}

// GetParams returns the hyperparameters.
func (f *RandomForestRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      f.NEstimators,
		"max_depth":         f.MaxDepth,
		"min_samples_split": f.MinSamplesSplit,
		"min_samples_leaf":  f.MinSamplesLeaf,
		"max_features":      f.MaxFeatures,
		"bootstrap":         f.Bootstrap,
		"random_state":      f.RandomState,
	}
}
