// Package config holds the configuration of the train and serve commands.
// Values come from defaults, an optional YAML file, HOUSING_* environment
// variables and command line flags, in increasing order of precedence.
package config

import (
	"bytes"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jayakrishnap100/california-housing-mlops/datasets"
	"github.com/jayakrishnap100/california-housing-mlops/internal/housing"
	"github.com/jayakrishnap100/california-housing-mlops/pkg/errors"
	"github.com/jayakrishnap100/california-housing-mlops/pkg/log"
)

type Config struct {
	// Training configuration.
	Train TrainConfig `yaml:"train" mapstructure:"train"`

	// Storage configuration.
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`

	// Dataset configuration.
	Dataset DatasetConfig `yaml:"dataset" mapstructure:"dataset"`

	// Server configuration.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Log configuration.
	Log LogConfig `yaml:"log" mapstructure:"log"`

	// Metrics configuration.
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

type TrainConfig struct {
	// NEstimators is the number of trees in the forest.
	NEstimators int `yaml:"nEstimators" mapstructure:"nEstimators"`

	// MaxDepth is the maximum depth of each tree.
	MaxDepth int `yaml:"maxDepth" mapstructure:"maxDepth"`

	// TestSize is the held-out fraction.
	TestSize float64 `yaml:"testSize" mapstructure:"testSize"`

	// RandomState seeds the split and the forest.
	RandomState int64 `yaml:"randomState" mapstructure:"randomState"`

	// ExperimentName groups runs in the tracker.
	ExperimentName string `yaml:"experimentName" mapstructure:"experimentName"`

	// RegisteredModelName is the registry entry new versions are added to.
	RegisteredModelName string `yaml:"registeredModelName" mapstructure:"registeredModelName"`

	// Workers is the number of trees fitted concurrently, 0 uses every CPU.
	Workers int `yaml:"workers" mapstructure:"workers"`

	// Plot logs a predicted-vs-actual plot with the run.
	Plot bool `yaml:"plot" mapstructure:"plot"`

	// Progress renders a progress bar while the forest is fitted.
	Progress bool `yaml:"progress" mapstructure:"progress"`
}

type StorageConfig struct {
	// ModelsDir is the models root holding version directories and latest.
	ModelsDir string `yaml:"modelsDir" mapstructure:"modelsDir"`

	// TrackingDir holds the tracking database and run artifacts.
	TrackingDir string `yaml:"trackingDir" mapstructure:"trackingDir"`
}

type DatasetConfig struct {
	// Source is california or csv.
	Source string `yaml:"source" mapstructure:"source"`

	// CSVPath is read when Source is csv.
	CSVPath string `yaml:"csvPath" mapstructure:"csvPath"`

	// URL of the census archive.
	URL string `yaml:"url" mapstructure:"url"`

	// DataHome caches the downloaded archive.
	DataHome string `yaml:"dataHome" mapstructure:"dataHome"`

	// DownloadIfMissing allows network access when the archive is not cached.
	DownloadIfMissing bool `yaml:"downloadIfMissing" mapstructure:"downloadIfMissing"`
}

type ServerConfig struct {
	// ListenIP is listen ip, like: 0.0.0.0, 127.0.0.1.
	ListenIP string `yaml:"listenIP" mapstructure:"listenIP"`

	// Port is the http port.
	Port int `yaml:"port" mapstructure:"port"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" mapstructure:"shutdownTimeout"`
}

type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level" mapstructure:"level"`

	// Format is json or console.
	Format string `yaml:"format" mapstructure:"format"`

	// Dir enables a rotating log file.
	Dir string `yaml:"dir" mapstructure:"dir"`

	// Maximum size in megabytes of log files before rotation (default: 1024)
	MaxSize int `yaml:"maxSize" mapstructure:"maxSize"`

	// Maximum number of days to retain old log files (default: 7)
	MaxAge int `yaml:"maxAge" mapstructure:"maxAge"`

	// Maximum number of old log files to keep (default: 20)
	MaxBackups int `yaml:"maxBackups" mapstructure:"maxBackups"`
}

type MetricsConfig struct {
	// Enable serves /metrics from the prediction service.
	Enable bool `yaml:"enable" mapstructure:"enable"`
}

// New default configuration.
func New() *Config {
	return &Config{
		Train: TrainConfig{
			NEstimators:         housing.DefaultNEstimators,
			MaxDepth:            housing.DefaultMaxDepth,
			TestSize:            0.2,
			RandomState:         housing.RandomState,
			ExperimentName:      "california_housing",
			RegisteredModelName: "california_housing",
			Plot:                true,
			Progress:            true,
		},
		Storage: StorageConfig{
			ModelsDir:   DefaultModelsDir,
			TrackingDir: DefaultTrackingDir,
		},
		Dataset: DatasetConfig{
			Source:            SourceCalifornia,
			URL:               datasets.DefaultArchiveURL,
			DataHome:          datasets.DefaultDataHome(),
			DownloadIfMissing: true,
		},
		Server: ServerConfig{
			ListenIP:        DefaultServerListenIP,
			Port:            DefaultServerPort,
			ShutdownTimeout: DefaultServerShutdownTimeout,
		},
		Log: LogConfig{
			Level:      DefaultLogLevel,
			Format:     DefaultLogFormat,
			MaxSize:    DefaultLogRotateMaxSize,
			MaxAge:     DefaultLogRotateMaxAge,
			MaxBackups: DefaultLogRotateMaxBackups,
		},
		Metrics: MetricsConfig{
			Enable: true,
		},
	}
}

// Load builds the configuration from the defaults of New, the YAML file at
// path (optional) and HOUSING_* environment variables. Flags bound to v
// before the call take precedence over all of them.
func Load(v *viper.Viper, path string) (*Config, error) {
	defaults, err := yaml.Marshal(New())
	if err != nil {
		return nil, errors.Wrap(err, "encode default config")
	}
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, errors.Wrap(err, "read default config")
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", path)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	return cfg, nil
}

// Validate config parameters.
func (cfg *Config) Validate() error {
	if cfg.Train.NEstimators < 1 {
		return errors.New("train requires parameter nEstimators greater than 0")
	}

	if cfg.Train.MaxDepth < 1 {
		return errors.New("train requires parameter maxDepth greater than 0")
	}

	if cfg.Train.TestSize <= 0 || cfg.Train.TestSize >= 1 {
		return errors.New("train requires parameter testSize in (0, 1)")
	}

	if cfg.Train.ExperimentName == "" {
		return errors.New("train requires parameter experimentName")
	}

	if cfg.Train.RegisteredModelName == "" {
		return errors.New("train requires parameter registeredModelName")
	}

	if cfg.Storage.ModelsDir == "" {
		return errors.New("storage requires parameter modelsDir")
	}

	if cfg.Storage.TrackingDir == "" {
		return errors.New("storage requires parameter trackingDir")
	}

	switch cfg.Dataset.Source {
	case SourceCalifornia:
		if cfg.Dataset.URL == "" {
			return errors.New("dataset requires parameter url")
		}
	case SourceCSV:
		if cfg.Dataset.CSVPath == "" {
			return errors.New("dataset requires parameter csvPath")
		}
	default:
		return errors.Newf("dataset source %q is not one of california, csv", cfg.Dataset.Source)
	}

	if net.ParseIP(cfg.Server.ListenIP) == nil {
		return errors.New("server requires parameter listenIP")
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return errors.New("server requires parameter port")
	}

	if _, err := log.ParseLevel(cfg.Log.Level); err != nil {
		return err
	}

	if cfg.Log.Format != "json" && cfg.Log.Format != "console" {
		return errors.Newf("log format %q is not one of json, console", cfg.Log.Format)
	}

	return nil
}

// Addr is the listen address of the prediction service.
func (cfg *Config) Addr() string {
	return net.JoinHostPort(cfg.Server.ListenIP, strconv.Itoa(cfg.Server.Port))
}

// LogOptions converts the log section for log.SetupLogger.
func (cfg *Config) LogOptions(name string) log.Options {
	return log.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Name:       name,
		Dir:        cfg.Log.Dir,
		MaxSize:    cfg.Log.MaxSize,
		MaxAge:     cfg.Log.MaxAge,
		MaxBackups: cfg.Log.MaxBackups,
	}
}

// Loader returns the dataset loader selected by the dataset section.
func (cfg *Config) Loader() datasets.Loader {
	if cfg.Dataset.Source == SourceCSV {
		return datasets.NewCSVLoader(cfg.Dataset.CSVPath)
	}
	c := datasets.NewCaliforniaHousing(cfg.Dataset.DataHome)
	c.URL = cfg.Dataset.URL
	c.DownloadIfMissing = cfg.Dataset.DownloadIfMissing
	return c
}
