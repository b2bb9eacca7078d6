package pipeline

import (
	"math"

	"github.com/YuminosukeSato/readmit/core/model"
	"github.com/YuminosukeSato/readmit/dataset"
	perrors "github.com/YuminosukeSato/readmit/pkg/errors"
	"github.com/YuminosukeSato/readmit/sklearn/boosting"
	"github.com/YuminosukeSato/readmit/sklearn/ensemble"
	"github.com/YuminosukeSato/readmit/sklearn/tree"
)

// ModelKind names a classifier variant.
type ModelKind string

const (
	// BoostedTrees is the softmax gradient-boosted tree ensemble.
	BoostedTrees ModelKind = "boosted-trees"
	// RandomForest is the bagged CART forest.
	RandomForest ModelKind = "random-forest"
)

// BoostingConfig holds the boosted-trees hyperparameters.
type BoostingConfig struct {
	Rounds         int
	LearningRate   float64
	MaxDepth       int
	Lambda         float64
	Gamma          float64
	MinChildWeight float64
	MaxBin         int
}

// Config parameterizes one pipeline run.
type Config struct {
	TestFraction float64
	SplitSeed    uint64

	ResampleSeed  uint64
	KNeighbors    int
	StrictBalance bool

	ForestSize      int
	ForestMaxDepth  int
	ForestCriterion string
	ModelSeed       uint64

	Boosting BoostingConfig

	TopK       int
	Features   []string
	ClassNames map[int]string
	Models     []ModelKind

	// NJobs bounds the goroutines used inside a stage. Zero or negative uses every CPU.
	NJobs int
}

// DefaultConfig returns the configuration of the reference readmission run.
func DefaultConfig() Config {
	return Config{
		TestFraction:    0.20,
		SplitSeed:       0,
		ResampleSeed:    20,
		KNeighbors:      5,
		ForestSize:      100,
		ForestMaxDepth:  120,
		ForestCriterion: string(tree.Entropy),
		ModelSeed:       0,
		Boosting: BoostingConfig{
			Rounds:         100,
			LearningRate:   0.3,
			MaxDepth:       6,
			Lambda:         1,
			Gamma:          0,
			MinChildWeight: 1,
			MaxBin:         256,
		},
		TopK:       10,
		Features:   append([]string(nil), dataset.ReadmissionFeatures...),
		ClassNames: dataset.ClassNames,
		Models:     []ModelKind{BoostedTrees, RandomForest},
	}
}

// Validate range-checks the configuration.
func (c Config) Validate() error {
	if math.IsNaN(c.TestFraction) || c.TestFraction <= 0 || c.TestFraction >= 1 {
		return perrors.NewFractionError("test_fraction", "must be in the open interval (0, 1)", c.TestFraction)
	}
	if c.KNeighbors < 1 {
		return perrors.NewValidationError("k_neighbors", "must be at least 1", c.KNeighbors)
	}
	if c.ForestSize < 1 {
		return perrors.NewValidationError("forest.size", "must be at least 1", c.ForestSize)
	}
	if _, err := tree.ParseCriterion(c.ForestCriterion); err != nil {
		return err
	}
	b := c.Boosting
	switch {
	case b.Rounds < 1:
		return perrors.NewValidationError("boosting.rounds", "must be at least 1", b.Rounds)
	case b.LearningRate <= 0:
		return perrors.NewValidationError("boosting.learning_rate", "must be positive", b.LearningRate)
	case b.MaxDepth < 1:
		return perrors.NewValidationError("boosting.max_depth", "must be at least 1", b.MaxDepth)
	case b.Lambda < 0 || b.Gamma < 0 || b.MinChildWeight < 0:
		return perrors.NewValidationError("boosting", "lambda, gamma and min_child_weight must be non-negative", b)
	case b.MaxBin < 2 || b.MaxBin > 256:
		return perrors.NewValidationError("boosting.max_bin", "must be in [2, 256]", b.MaxBin)
	}
	if c.TopK < 1 {
		return perrors.NewValidationError("top_k", "must be at least 1", c.TopK)
	}
	if len(c.Models) == 0 {
		return perrors.NewValidationError("models", "at least one model kind is required", c.Models)
	}
	for _, kind := range c.Models {
		if kind != BoostedTrees && kind != RandomForest {
			return unknownKind(kind)
		}
	}
	return nil
}

func unknownKind(kind ModelKind) error {
	return perrors.NewValidationError("model", "must be 'boosted-trees' or 'random-forest'", string(kind))
}

// NewClassifier builds an unfitted classifier of the given kind.
func NewClassifier(kind ModelKind, cfg Config) (model.ImportanceClassifier, error) {
	switch kind {
	case BoostedTrees:
		b := cfg.Boosting
		return boosting.NewGBTClassifier(
			boosting.WithNRounds(b.Rounds),
			boosting.WithLearningRate(b.LearningRate),
			boosting.WithMaxDepth(b.MaxDepth),
			boosting.WithLambda(b.Lambda),
			boosting.WithGamma(b.Gamma),
			boosting.WithMinChildWeight(b.MinChildWeight),
			boosting.WithMaxBin(b.MaxBin),
			boosting.WithRandomState(cfg.ModelSeed),
			boosting.WithNJobs(cfg.NJobs),
		), nil
	case RandomForest:
		return ensemble.NewRandomForestClassifier(
			ensemble.WithNEstimators(cfg.ForestSize),
			ensemble.WithMaxDepth(cfg.ForestMaxDepth),
			ensemble.WithCriterion(cfg.ForestCriterion),
			ensemble.WithRandomState(cfg.ModelSeed),
			ensemble.WithNJobs(cfg.NJobs),
		), nil
	default:
		return nil, unknownKind(kind)
	}
}
