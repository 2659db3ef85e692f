package config

import "time"

const (
	// EnvPrefix is the prefix of environment overrides, e.g. HOUSING_TRAIN_NESTIMATORS.
	EnvPrefix = "HOUSING"

	DefaultModelsDir   = "models"
	DefaultTrackingDir = "mlruns"

	DefaultServerListenIP        = "0.0.0.0"
	DefaultServerPort            = 5000
	DefaultServerShutdownTimeout = 10 * time.Second

	DefaultLogLevel            = "info"
	DefaultLogFormat           = "json"
	DefaultLogRotateMaxSize    = 1024
	DefaultLogRotateMaxAge     = 7
	DefaultLogRotateMaxBackups = 20
)

const (
	// SourceCalifornia downloads and caches the census archive.
	SourceCalifornia = "california"

	// SourceCSV reads a headered CSV with the feature columns and PRICE.
	SourceCSV = "csv"
)
