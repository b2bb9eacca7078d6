// Standard attribute keys for pipeline logging.
//
// Keys follow a hierarchical naming convention ("model.name", "data.samples")
// so log lines from every stage can be filtered the same way.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the estimator type.
	// Examples: "RandomForestClassifier", "GBTClassifier", "SMOTE"
	ModelNameKey = "model.name"

	// ModelKindKey identifies the pipeline variant: "boosted-trees" or "random-forest".
	ModelKindKey = "model.kind"

	// OperationKey specifies the operation being performed.
	OperationKey = "ml.operation"

	// ComponentKey identifies which component or package is logging.
	ComponentKey = "ml.component"

	// PhaseKey indicates the pipeline stage.
	PhaseKey = "ml.phase"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of samples (rows).
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of feature columns.
	FeaturesKey = "data.features"

	// ClassesKey indicates the number of distinct classes.
	ClassesKey = "data.classes"

	// ClassCountsKey records per-class row counts.
	ClassCountsKey = "data.class_counts"

	// SyntheticKey records the number of synthetic rows generated by oversampling.
	SyntheticKey = "data.synthetic"

	// TrainSamplesKey and TestSamplesKey record partition sizes.
	TrainSamplesKey = "data.train_samples"
	TestSamplesKey  = "data.test_samples"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// AccuracyKey records accuracy on the held-out split.
	AccuracyKey = "metrics.accuracy"

	// WeightedF1Key records support-weighted F1 on the held-out split.
	WeightedF1Key = "metrics.weighted_f1"

	// LossKey records the training loss of a boosting round.
	LossKey = "metrics.loss"

	// IterationKey records the current boosting round.
	IterationKey = "training.iteration"
)

// Error and Warning Context
const (
	// ErrorCodeKey carries errors.Code(err), e.g. "INSUFFICIENT_NEIGHBORS".
	ErrorCodeKey = "error.code"
)

// Hyperparameters and Configuration
const (
	// LearningRateKey records the shrinkage of the boosted ensemble.
	LearningRateKey = "hyperparams.learning_rate"

	// EstimatorsKey records the number of trees or boosting rounds.
	EstimatorsKey = "hyperparams.n_estimators"

	// MaxDepthKey records the maximum tree depth.
	MaxDepthKey = "hyperparams.max_depth"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"

	// TestFractionKey records the held-out fraction of the split.
	TestFractionKey = "config.test_fraction"

	// WorkersKey records the number of goroutines used by a parallel stage.
	WorkersKey = "infra.workers"

	// PathKey records a file written or read by the run.
	PathKey = "io.path"
)

// Standard attribute values.
const (
	OperationFit      = "fit"
	OperationSplit    = "split"
	OperationResample = "fit_resample"
	OperationEvaluate = "evaluate"
	OperationRank     = "rank_importances"

	PhaseSplitting  = "splitting"
	PhaseResampling = "resampling"
	PhaseTraining   = "training"
	PhaseEvaluation = "evaluation"
	PhaseReporting  = "reporting"
)
