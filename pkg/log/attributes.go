package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator type, e.g. "RandomForestRegressor".
	ModelNameKey = "model.name"

	// EstimatorIDKey identifies one model instance.
	EstimatorIDKey = "estimator.id"

	// OperationKey is the estimator operation: "fit", "predict", "score".
	OperationKey = "ml.operation"

	// ComponentKey names the package or service component emitting the record.
	ComponentKey = "ml.component"

	// PhaseKey is the lifecycle phase: "training", "inference", ...
	PhaseKey = "ml.phase"
)

// Data shape.
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	TargetsKey  = "data.targets"
	SourceKey   = "data.source"
)

// Performance and evaluation.
const (
	DurationMsKey = "perf.duration_ms"
	MSEKey        = "metrics.mse"
	R2ScoreKey    = "metrics.r2_score"
	TreesKey      = "ensemble.trees"
)

// Prediction.
const (
	PredsKey = "preds.count"
)

// Error context.
const (
	ErrorCodeKey = "error.code"
	ErrorTypeKey = "error.type"
)

// Configuration and hyperparameters.
const (
	HyperParamsKey = "model.hyperparams"
	RandomSeedKey  = "config.random_seed"
)

// Pipeline, tracking and serving.
const (
	StageKey        = "pipeline.stage"
	RunIDKey        = "tracking.run_id"
	ExperimentKey   = "tracking.experiment"
	ModelVersionKey = "registry.version"
	ArtifactPathKey = "artifact.path"
	RequestIDKey    = "http.request_id"
	StatusCodeKey   = "http.status"
	AddressKey      = "http.address"
)

// Standard attribute values.
const (
	OperationFit     = "fit"
	OperationPredict = "predict"
	OperationScore   = "score"

	PhaseTraining   = "training"
	PhaseValidation = "validation"
	PhaseInference  = "inference"

	ErrorNotFitted         = "NOT_FITTED"
	ErrorDimensionMismatch = "DIMENSION_MISMATCH"
	ErrorEmptyData         = "EMPTY_DATA"
	ErrorInvalidInput      = "INVALID_INPUT"
)
