// Package log defines standard attribute keys for estimation runs.
//
// Keys follow a hierarchical naming convention (e.g. "model.name",
// "data.samples") so log records from fit, predict and kernel construction
// can be filtered together.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the model or estimator type.
	// Examples: "KernelModel", "KernelEstimator", "NestedKernelEstimator"
	ModelNameKey = "model.name"

	// EstimatorIDKey provides a unique identifier for a model instance.
	EstimatorIDKey = "estimator.id"

	// OperationKey specifies the operation being performed.
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is logging.
	// Examples: "kernel", "optimizer", "estimator"
	ComponentKey = "ml.component"

	// PhaseKey indicates whether the record belongs to training or testing data.
	PhaseKey = "ml.phase"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of samples (rows) in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of columns of a kernel block.
	FeaturesKey = "data.features"

	// DataSizeKey indicates the memory size of the data in bytes.
	DataSizeKey = "data.size_bytes"

	// BatchSizeKey indicates the mini-batch size.
	BatchSizeKey = "data.batch_size"
)

// Choice model context
const (
	// AlternativesKey records the number of alternatives.
	AlternativesKey = "choice.alternatives"

	// NestsKey records the number of nests of a nested logit model.
	NestsKey = "choice.nests"

	// ParametersKey records the number of estimated parameters.
	ParametersKey = "choice.parameters"

	// KernelNameKey records the kernel function name.
	KernelNameKey = "kernel.name"

	// SupportPointsKey records the number of support points (training rows or landmarks).
	SupportPointsKey = "kernel.support_points"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// AccuracyKey records mean accuracy on a dataset.
	AccuracyKey = "metrics.accuracy"

	// LossKey records the objective value (penalized negative log-likelihood).
	LossKey = "metrics.loss"

	// LogLikelihoodKey records a log-likelihood value.
	LogLikelihoodKey = "metrics.log_likelihood"

	// R2ScoreKey records McFadden's pseudo R².
	R2ScoreKey = "metrics.r2_score"

	// IterationKey records the number of iterations performed.
	IterationKey = "training.iteration"

	// EpochKey records the current epoch number.
	EpochKey = "training.epoch"
)

// Error and Warning Context
const (
	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"

	// SuggestionKey provides a hint for resolving the issue.
	SuggestionKey = "error.suggestion"
)

// Hyperparameters and Configuration
const (
	// MethodKey records the optimization method.
	MethodKey = "hyperparams.method"

	// LearningRateKey records the learning rate for gradient-based algorithms.
	LearningRateKey = "hyperparams.learning_rate"

	// RegularizationKey records the penalization coefficient.
	RegularizationKey = "hyperparams.regularization"

	// PenalizationKey records the penalization method.
	PenalizationKey = "hyperparams.penalization"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Standard attribute values.
const (
	OperationSetKernel = "set_kernel"
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationScore     = "score"
	OperationMinimize  = "minimize"

	PhaseTraining = "training"
	PhaseTesting  = "testing"
)
