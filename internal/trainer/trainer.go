// Package trainer runs the training pipeline: load the housing table, split
// it, fit the forest, evaluate, persist a new model version and record the
// run in the experiment tracker.
package trainer

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/jayakrishnap100/california-housing-mlops/datasets"
	"github.com/jayakrishnap100/california-housing-mlops/internal/housing"
	"github.com/jayakrishnap100/california-housing-mlops/internal/metrics"
	"github.com/jayakrishnap100/california-housing-mlops/internal/modelstore"
	"github.com/jayakrishnap100/california-housing-mlops/internal/tracking"
	regression "github.com/jayakrishnap100/california-housing-mlops/metrics"
	"github.com/jayakrishnap100/california-housing-mlops/pkg/errors"
	"github.com/jayakrishnap100/california-housing-mlops/pkg/log"
	"github.com/jayakrishnap100/california-housing-mlops/sklearn/ensemble"
	"github.com/jayakrishnap100/california-housing-mlops/sklearn/model_selection"
)

const (
	DefaultTestSize            = 0.2
	DefaultExperimentName      = "california_housing"
	DefaultRegisteredModelName = "california_housing"
	DefaultExampleRows         = 1

	ModelArtifactPath = "model"
	PlotArtifactPath  = "plots/pred_vs_actual.png"
)

// Config holds the hyperparameters and naming of a training run.
type Config struct {
	NEstimators         int
	MaxDepth            int
	TestSize            float64
	RandomState         int64
	ExperimentName      string
	RegisteredModelName string
	ExampleRows         int
	Workers             int
	Plot                bool
}

// DefaultConfig returns 100 trees of depth 10 on an 80/20 split seeded with 42.
func DefaultConfig() Config {
	return Config{
		NEstimators:         housing.DefaultNEstimators,
		MaxDepth:            housing.DefaultMaxDepth,
		TestSize:            DefaultTestSize,
		RandomState:         housing.RandomState,
		ExperimentName:      DefaultExperimentName,
		RegisteredModelName: DefaultRegisteredModelName,
		ExampleRows:         DefaultExampleRows,
		Plot:                true,
	}
}

// Validate checks the configuration before any work is done.
func (c Config) Validate() error {
	if c.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be a positive integer", c.NEstimators)
	}
	if c.MaxDepth < 1 {
		return errors.NewValidationError("max_depth", "must be a positive integer", c.MaxDepth)
	}
	if c.TestSize <= 0 || c.TestSize >= 1 {
		return errors.NewValidationError("test_size", "must be in (0, 1)", c.TestSize)
	}
	if c.ExperimentName == "" {
		return errors.NewValidationError("experiment_name", "must not be empty", c.ExperimentName)
	}
	if c.RegisteredModelName == "" {
		return errors.NewValidationError("registered_model_name", "must not be empty", c.RegisteredModelName)
	}
	if c.ExampleRows < 1 {
		return errors.NewValidationError("example_rows", "must be a positive integer", c.ExampleRows)
	}
	return nil
}

// Result describes a completed run.
type Result struct {
	RunID        string
	VersionDir   string
	ArtifactPath string
	LatestPath   string
	ModelVersion int
	Params       map[string]interface{}
	Metrics      map[string]float64

	// FeatureImportances maps each feature to its impurity based importance.
	FeatureImportances map[string]float64
}

// Trainer executes training runs one at a time.
type Trainer struct {
	cfg      Config
	loader   datasets.Loader
	tracker  *tracking.Tracker
	store    *modelstore.Store
	progress ensemble.ProgressFunc
	now      func() time.Time
	logger   log.Logger
}

// Option configures a Trainer.
type Option func(*Trainer)

// WithProgress reports fitted trees while the forest is trained.
func WithProgress(fn ensemble.ProgressFunc) Option {
	return func(t *Trainer) {
		t.progress = fn
	}
}

// WithClock replaces time.Now for version directory names.
func WithClock(now func() time.Time) Option {
	return func(t *Trainer) {
		t.now = now
	}
}

// New validates cfg and returns a Trainer.
func New(cfg Config, loader datasets.Loader, tracker *tracking.Tracker, store *modelstore.Store, opts ...Option) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if loader == nil || tracker == nil || store == nil {
		return nil, errors.New("trainer requires a loader, a tracker and a model store")
	}
	t := &Trainer{
		cfg:     cfg,
		loader:  loader,
		tracker: tracker,
		store:   store,
		now:     time.Now,
		logger:  log.GetLoggerWithName("trainer"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// run carries the state of one execution of the pipeline.
type run struct {
	stage      Stage
	tracked    *tracking.ActiveRun
	versionDir string
	table      *datasets.Table
	xTrain     *mat.Dense
	xTest      *mat.Dense
	yTrain     *mat.VecDense
	yTest      *mat.VecDense
	model      *housing.HousePriceModel
	testPred   *mat.VecDense
	result     Result
}

// Run executes START → DATA_LOADED → SPLIT → FIT → EVALUATED → PERSISTED → DONE.
// On failure the tracker run is marked FAILED and the new version directory is removed.
func (t *Trainer) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	r := &run{stage: StageStart}
	logger := t.logger.With(log.ExperimentKey, t.cfg.ExperimentName)

	err := t.execute(ctx, r, logger)
	metrics.TrainerRunDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		t.abort(r, err, logger)
		metrics.TrainerRunCount.WithLabelValues(metrics.StatusFailed).Inc()
		metrics.TrainerStageFailureCount.WithLabelValues(r.stage.String()).Inc()
		return nil, &StageError{Stage: r.stage, Err: err}
	}

	metrics.TrainerRunCount.WithLabelValues(metrics.StatusSuccess).Inc()
	for name, value := range r.result.Metrics {
		metrics.TrainerLastMetric.WithLabelValues(name).Set(value)
	}
	logger.Info("training run finished",
		log.RunIDKey, r.result.RunID,
		log.ArtifactPathKey, r.result.VersionDir,
		log.ModelVersionKey, r.result.ModelVersion,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	result := r.result
	return &result, nil
}

func (t *Trainer) advance(r *run, next Stage, logger log.Logger) {
	logger.Info("stage transition", "from", r.stage.String(), log.StageKey, next.String())
	r.stage = next
}

func (t *Trainer) execute(ctx context.Context, r *run, logger log.Logger) error {
	if _, err := t.tracker.SetExperiment(ctx, t.cfg.ExperimentName); err != nil {
		return err
	}
	tracked, err := t.tracker.StartRun(ctx)
	if err != nil {
		return err
	}
	r.tracked = tracked
	r.result.RunID = tracked.ID().String()

	if err := t.load(ctx, r, logger); err != nil {
		return err
	}
	t.advance(r, StageDataLoaded, logger)

	if err := t.split(r, logger); err != nil {
		return err
	}
	t.advance(r, StageSplit, logger)

	if err := t.fit(ctx, r, logger); err != nil {
		return err
	}
	t.advance(r, StageFit, logger)

	if err := t.evaluate(ctx, r, logger); err != nil {
		return err
	}
	t.advance(r, StageEvaluated, logger)

	if err := t.persist(r); err != nil {
		return err
	}
	t.advance(r, StagePersisted, logger)

	if err := t.register(ctx, r); err != nil {
		return err
	}
	if err := r.tracked.End(ctx, tracking.RunFinished); err != nil {
		return err
	}
	t.advance(r, StageDone, logger)
	return nil
}

func (t *Trainer) load(ctx context.Context, r *run, logger log.Logger) error {
	table, err := t.loader.Load(ctx)
	if err != nil {
		return err
	}
	r.table = table
	_, cols := table.X.Dims()
	logger.Info("loaded housing table", log.SamplesKey, table.Rows(), log.FeaturesKey, cols)
	return nil
}

func (t *Trainer) split(r *run, logger log.Logger) error {
	xTrain, xTest, yTrain, yTest, err := model_selection.TrainTestSplit(r.table.X, r.table.Y, t.cfg.TestSize, t.cfg.RandomState)
	if err != nil {
		return err
	}
	r.xTrain, r.xTest, r.yTrain, r.yTest = xTrain, xTest, yTrain, yTest
	logger.Info("split housing table",
		"train_samples", yTrain.Len(),
		"test_samples", yTest.Len(),
		log.RandomSeedKey, t.cfg.RandomState,
	)
	return nil
}

func (t *Trainer) fit(ctx context.Context, r *run, logger log.Logger) error {
	opts := []housing.Option{housing.WithWorkers(t.cfg.Workers)}
	if t.progress != nil {
		opts = append(opts, housing.WithProgress(t.progress))
	}
	m, err := housing.NewHousePriceModel(t.cfg.NEstimators, t.cfg.MaxDepth, opts...)
	if err != nil {
		return err
	}

	params := m.GetParams()
	for _, key := range []string{"n_estimators", "max_depth"} {
		if err := r.tracked.LogParam(ctx, key, params[key]); err != nil {
			return err
		}
	}
	r.result.Params = params

	start := time.Now()
	if err := m.Fit(r.xTrain, r.yTrain); err != nil {
		return err
	}
	m.Features = append([]string(nil), r.table.FeatureNames...)
	r.model = m

	logger.Info("fitted model",
		log.HyperParamsKey, params,
		log.TreesKey, m.NEstimators,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

func (t *Trainer) evaluate(ctx context.Context, r *run, logger log.Logger) error {
	trainPred, err := r.model.Predict(r.xTrain)
	if err != nil {
		return err
	}
	testPred, err := r.model.Predict(r.xTest)
	if err != nil {
		return err
	}
	trainVec := regression.ColumnVec(trainPred)
	testVec := regression.ColumnVec(testPred)
	r.testPred = testVec

	trainMSE, err := regression.MSE(r.yTrain, trainVec)
	if err != nil {
		return err
	}
	testMSE, err := regression.MSE(r.yTest, testVec)
	if err != nil {
		return err
	}
	testR2, err := regression.R2Score(r.yTest, testVec)
	if err != nil {
		return err
	}
	testRMSE, err := regression.RMSE(r.yTest, testVec)
	if err != nil {
		return err
	}
	testMAE, err := regression.MAE(r.yTest, testVec)
	if err != nil {
		return err
	}
	testEV, err := regression.ExplainedVarianceScore(r.yTest, testVec)
	if err != nil {
		return err
	}

	values := []struct {
		key   string
		value float64
	}{
		{"train_mse", trainMSE},
		{"test_mse", testMSE},
		{"test_r2", testR2},
		{"test_rmse", testRMSE},
		{"test_mae", testMAE},
		{"test_explained_variance", testEV},
	}
	r.result.Metrics = make(map[string]float64, len(values))
	for _, m := range values {
		if err := r.tracked.LogMetric(ctx, m.key, m.value); err != nil {
			return err
		}
		r.result.Metrics[m.key] = m.value
	}

	importances, err := r.model.FeatureImportances()
	if err != nil {
		return err
	}
	r.result.FeatureImportances = make(map[string]float64, len(importances))
	for i, name := range r.model.FeatureNames() {
		if err := r.tracked.LogMetric(ctx, "feature_importance."+name, importances[i]); err != nil {
			return err
		}
		r.result.FeatureImportances[name] = importances[i]
	}

	logger.Info("evaluated model",
		log.PhaseKey, log.PhaseValidation,
		log.MSEKey, testMSE,
		log.R2ScoreKey, testR2,
		"train_mse", trainMSE,
	)

	if t.cfg.Plot {
		if err := t.logPlot(r); err != nil {
			return err
		}
	}
	return nil
}

func (t *Trainer) logPlot(r *run) error {
	tmp, err := os.MkdirTemp("", "housing-plot-")
	if err != nil {
		return errors.Wrap(err, "create plot dir")
	}
	defer os.RemoveAll(tmp)

	path := filepath.Join(tmp, filepath.Base(PlotArtifactPath))
	if err := savePredictionPlot(path, r.yTest, r.testPred); err != nil {
		return err
	}
	_, err = r.tracked.LogArtifact(path, PlotArtifactPath)
	return err
}

func (t *Trainer) persist(r *run) error {
	dir, err := t.store.NewVersionDir(t.now())
	if err != nil {
		return err
	}
	r.versionDir = dir
	r.result.VersionDir = dir

	trainTable := &datasets.Table{
		FeatureNames: r.table.FeatureNames,
		TargetName:   r.table.TargetName,
		X:            r.xTrain,
		Y:            r.yTrain,
	}
	artifact, err := t.store.Save(dir, r.model, modelstore.Metadata{
		RunID:     r.result.RunID,
		Signature: modelstore.InferSignature(trainTable),
		Example:   modelstore.NewInputExample(trainTable, t.cfg.ExampleRows),
	})
	if err != nil {
		return err
	}
	r.result.ArtifactPath = artifact

	latest, err := t.store.UpdateLatest(dir)
	if err != nil {
		return err
	}
	r.result.LatestPath = latest
	return nil
}

func (t *Trainer) register(ctx context.Context, r *run) error {
	logged, err := r.tracked.LogModel(ctx, r.result.ArtifactPath, ModelArtifactPath, modelstore.Flavor)
	if err != nil {
		return err
	}
	version, err := t.tracker.RegisterModel(ctx, t.cfg.RegisteredModelName, r.tracked.ID(), logged)
	if err != nil {
		return err
	}
	r.result.ModelVersion = version.Version
	return nil
}

// abort marks the tracker run FAILED and removes the partial version directory.
// A directory already published as latest is kept.
func (t *Trainer) abort(r *run, cause error, logger log.Logger) {
	logger.Error("training run failed", log.ErrAttr(cause), log.StageKey, r.stage.String())

	if r.tracked != nil {
		// The run context may already be cancelled.
		if err := r.tracked.End(context.Background(), tracking.RunFailed); err != nil {
			logger.Warn("failed to mark run as failed", log.ErrAttr(err), log.RunIDKey, r.result.RunID)
		}
	}
	if r.versionDir != "" && r.stage < StagePersisted {
		if err := t.store.Discard(r.versionDir); err != nil {
			logger.Warn("failed to discard version dir", log.ErrAttr(err), log.ArtifactPathKey, r.versionDir)
		}
	}
}
