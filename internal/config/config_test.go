package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jayakrishnap100/california-housing-mlops/datasets"
)

func TestConfig_Load(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "housing.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
train:
  nEstimators: 50
  maxDepth: 6
storage:
  modelsDir: /var/lib/housing/models
server:
  port: 8080
  shutdownTimeout: 3s
log:
  format: console
`), 0o644))

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Train.NEstimators)
	assert.Equal(t, 6, cfg.Train.MaxDepth)
	assert.Equal(t, 0.2, cfg.Train.TestSize, "unset keys keep their defaults")
	assert.Equal(t, int64(42), cfg.Train.RandomState)
	assert.Equal(t, "/var/lib/housing/models", cfg.Storage.ModelsDir)
	assert.Equal(t, DefaultTrackingDir, cfg.Storage.TrackingDir)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_LoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, New(), cfg)
	assert.Equal(t, "0.0.0.0:5000", cfg.Addr())
}

func TestConfig_LoadEnvAndFlags(t *testing.T) {
	t.Setenv("HOUSING_TRAIN_MAXDEPTH", "7")
	t.Setenv("HOUSING_TRAIN_NESTIMATORS", "30")

	flags := pflag.NewFlagSet("train", pflag.ContinueOnError)
	flags.Int("n-estimators", 100, "")
	require.NoError(t, flags.Parse([]string{"--n-estimators=12"}))

	v := viper.New()
	require.NoError(t, v.BindPFlag("train.nEstimators", flags.Lookup("n-estimators")))

	cfg, err := Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Train.NEstimators, "flags win over env")
	assert.Equal(t, 7, cfg.Train.MaxDepth)
}

func TestConfig_LoadMissingFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mock   func(cfg *Config)
		expect func(t *testing.T, err error)
	}{
		{
			name: "valid config",
			mock: func(cfg *Config) {},
			expect: func(t *testing.T, err error) {
				assert.NoError(t, err)
			},
		},
		{
			name: "train requires parameter nEstimators",
			mock: func(cfg *Config) {
				cfg.Train.NEstimators = 0
			},
			expect: func(t *testing.T, err error) {
				assert.EqualError(t, err, "train requires parameter nEstimators greater than 0")
			},
		},
		{
			name: "train requires parameter maxDepth",
			mock: func(cfg *Config) {
				cfg.Train.MaxDepth = 0
			},
			expect: func(t *testing.T, err error) {
				assert.EqualError(t, err, "train requires parameter maxDepth greater than 0")
			},
		},
		{
			name: "train requires parameter testSize",
			mock: func(cfg *Config) {
				cfg.Train.TestSize = 1.5
			},
			expect: func(t *testing.T, err error) {
				assert.EqualError(t, err, "train requires parameter testSize in (0, 1)")
			},
		},
		{
			name: "dataset requires parameter csvPath",
			mock: func(cfg *Config) {
				cfg.Dataset.Source = SourceCSV
			},
			expect: func(t *testing.T, err error) {
				assert.EqualError(t, err, "dataset requires parameter csvPath")
			},
		},
		{
			name: "unknown dataset source",
			mock: func(cfg *Config) {
				cfg.Dataset.Source = "s3"
			},
			expect: func(t *testing.T, err error) {
				assert.Error(t, err)
			},
		},
		{
			name: "server requires parameter listenIP",
			mock: func(cfg *Config) {
				cfg.Server.ListenIP = "localhost"
			},
			expect: func(t *testing.T, err error) {
				assert.EqualError(t, err, "server requires parameter listenIP")
			},
		},
		{
			name: "server requires parameter port",
			mock: func(cfg *Config) {
				cfg.Server.Port = 0
			},
			expect: func(t *testing.T, err error) {
				assert.EqualError(t, err, "server requires parameter port")
			},
		},
		{
			name: "invalid log level",
			mock: func(cfg *Config) {
				cfg.Log.Level = "verbose"
			},
			expect: func(t *testing.T, err error) {
				assert.Error(t, err)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := New()
			tc.mock(cfg)
			tc.expect(t, cfg.Validate())
		})
	}
}

func TestConfig_Loader(t *testing.T) {
	cfg := New()
	cfg.Dataset.DataHome = t.TempDir()
	cfg.Dataset.DownloadIfMissing = false

	ch, ok := cfg.Loader().(*datasets.CaliforniaHousing)
	require.True(t, ok)
	assert.False(t, ch.DownloadIfMissing)
	assert.Equal(t, cfg.Dataset.DataHome, ch.DataHome)

	cfg.Dataset.Source = SourceCSV
	cfg.Dataset.CSVPath = "housing.csv"
	csv, ok := cfg.Loader().(*datasets.CSVLoader)
	require.True(t, ok)
	assert.Equal(t, "housing.csv", csv.Path)
}
