package trainer

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jayakrishnap100/california-housing-mlops/datasets"
	"github.com/jayakrishnap100/california-housing-mlops/internal/modelstore"
	"github.com/jayakrishnap100/california-housing-mlops/internal/tracking"
	"github.com/jayakrishnap100/california-housing-mlops/pkg/errors"
)

type tableLoader struct {
	table *datasets.Table
	err   error
}

func (l *tableLoader) Load(context.Context) (*datasets.Table, error) {
	return l.table, l.err
}

func syntheticTable(t *testing.T, n int) *datasets.Table {
	t.Helper()
	rng := rand.New(rand.NewSource(5))
	rows := make([][]float64, n)
	target := make([]float64, n)
	for i := range rows {
		row := make([]float64, len(datasets.FeatureNames))
		for j := range row {
			row[j] = rng.Float64() * 4
		}
		rows[i] = row
		target[i] = 0.8*row[0] + 0.2*row[5] + 0.05*rng.NormFloat64()
	}
	table, err := datasets.NewTable(datasets.FeatureNames, datasets.TargetName, rows, target)
	require.NoError(t, err)
	return table
}

type fixture struct {
	tracker *tracking.Tracker
	store   *modelstore.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	tr, err := tracking.Open(filepath.Join(root, "mlruns"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	store, err := modelstore.New(filepath.Join(root, "models"))
	require.NoError(t, err)
	return &fixture{tracker: tr, store: store}
}

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.NEstimators = 5
	cfg.MaxDepth = 4
	return cfg
}

func TestStageString(t *testing.T) {
	stages := []Stage{StageStart, StageDataLoaded, StageSplit, StageFit, StageEvaluated, StagePersisted, StageDone}
	names := []string{"START", "DATA_LOADED", "SPLIT", "FIT", "EVALUATED", "PERSISTED", "DONE"}
	for i, s := range stages {
		assert.Equal(t, names[i], s.String())
	}
	assert.Equal(t, "Stage(42)", Stage(42).String())
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	for name, mutate := range map[string]func(*Config){
		"n_estimators": func(c *Config) { c.NEstimators = 0 },
		"max_depth":    func(c *Config) { c.MaxDepth = -1 },
		"test_size":    func(c *Config) { c.TestSize = 1 },
		"experiment":   func(c *Config) { c.ExperimentName = "" },
		"registry":     func(c *Config) { c.RegisteredModelName = "" },
		"example_rows": func(c *Config) { c.ExampleRows = 0 },
	} {
		cfg := DefaultConfig()
		mutate(&cfg)
		assert.Error(t, cfg.Validate(), name)
	}
}

func TestRunEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var fitted int
	trainer, err := New(smallConfig(), &tableLoader{table: syntheticTable(t, 200)}, f.tracker, f.store,
		WithProgress(func(done, total int) { fitted = done }),
		WithClock(func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }),
	)
	require.NoError(t, err)

	result, err := trainer.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 5, fitted)
	assert.Equal(t, "model_20240501_120000", filepath.Base(result.VersionDir))
	assert.Equal(t, filepath.Join(result.VersionDir, modelstore.ArtifactDir), result.ArtifactPath)
	assert.Equal(t, 1, result.ModelVersion)
	assert.Equal(t, map[string]interface{}{"n_estimators": 5, "max_depth": 4}, result.Params)
	for _, key := range []string{"train_mse", "test_mse", "test_r2", "test_rmse", "test_mae", "test_explained_variance"} {
		assert.Contains(t, result.Metrics, key)
	}
	require.Len(t, result.FeatureImportances, len(datasets.FeatureNames))
	var total float64
	for _, v := range result.FeatureImportances {
		total += v
	}
	assert.InDelta(t, 1.0, total, 1e-9)
	assert.Greater(t, result.FeatureImportances["MedInc"], result.FeatureImportances["HouseAge"])
	assert.Greater(t, result.Metrics["test_r2"], 0.5)

	resolved, err := f.store.ResolveLatest()
	require.NoError(t, err)
	assert.Equal(t, result.VersionDir, resolved)

	ex, err := modelstore.ReadInputExample(result.VersionDir)
	require.NoError(t, err)
	assert.Len(t, ex.Data, 1)

	runs, err := f.tracker.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, tracking.RunFinished, runs[0].Status)
	assert.Equal(t, result.RunID, runs[0].Id.String())

	params, err := f.tracker.ListParams(ctx, runs[0].Id)
	require.NoError(t, err)
	assert.Len(t, params, 2)

	assert.FileExists(t, filepath.Join(runs[0].ArtifactUri, PlotArtifactPath))
	assert.FileExists(t, filepath.Join(runs[0].ArtifactUri, ModelArtifactPath, modelstore.MLmodelFile))

	latest, err := f.tracker.LatestVersion(ctx, DefaultRegisteredModelName)
	require.NoError(t, err)
	assert.Equal(t, 1, latest.Version)
}

func TestSecondRunMovesLatest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cfg := smallConfig()
	cfg.Plot = false

	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	trainer, err := New(cfg, &tableLoader{table: syntheticTable(t, 120)}, f.tracker, f.store,
		WithClock(func() time.Time { return clock }))
	require.NoError(t, err)

	first, err := trainer.Run(ctx)
	require.NoError(t, err)
	second, err := trainer.Run(ctx)
	require.NoError(t, err)

	assert.NotEqual(t, first.VersionDir, second.VersionDir, "same-second runs get distinct dirs")
	assert.Equal(t, 2, second.ModelVersion)

	resolved, err := f.store.ResolveLatest()
	require.NoError(t, err)
	assert.Equal(t, second.VersionDir, resolved)
	assert.DirExists(t, first.VersionDir)
}

func TestRunLoadFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cause := errors.NewDataError("cal_housing.tgz", errors.New("connection refused"))
	trainer, err := New(smallConfig(), &tableLoader{err: cause}, f.tracker, f.store)
	require.NoError(t, err)

	_, err = trainer.Run(ctx)
	require.Error(t, err)

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageStart, stageErr.Stage)
	var dataErr *errors.DataError
	assert.True(t, errors.As(err, &dataErr))

	runs, err := f.tracker.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, tracking.RunFailed, runs[0].Status)

	_, err = f.store.ResolveLatest()
	assert.Error(t, err)
}

func TestRunPersistFailureDiscardsVersionDir(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cfg := smallConfig()
	cfg.Plot = false

	// A directory where the lock file belongs makes UpdateLatest fail.
	require.NoError(t, os.MkdirAll(filepath.Join(f.store.Root, ".lock"), 0o755))

	trainer, err := New(cfg, &tableLoader{table: syntheticTable(t, 80)}, f.tracker, f.store)
	require.NoError(t, err)

	_, err = trainer.Run(ctx)
	require.Error(t, err)

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageEvaluated, stageErr.Stage)

	versions, err := filepath.Glob(filepath.Join(f.store.Root, modelstore.VersionPrefix+"*"))
	require.NoError(t, err)
	assert.Empty(t, versions)

	runs, err := f.tracker.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, tracking.RunFailed, runs[0].Status)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	f := newFixture(t)
	cfg := DefaultConfig()
	cfg.NEstimators = 0
	_, err := New(cfg, &tableLoader{}, f.tracker, f.store)
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))

	_, err = New(DefaultConfig(), nil, f.tracker, f.store)
	assert.Error(t, err)
}

func TestSavePredictionPlot(t *testing.T) {
	table := syntheticTable(t, 30)
	path := filepath.Join(t.TempDir(), "plot.png")
	require.NoError(t, savePredictionPlot(path, table.Y, table.Y))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
