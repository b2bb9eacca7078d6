// Package ensemble provides bagged ensembles of decision trees.
package ensemble

import (
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/readmit/core/model"
	"github.com/YuminosukeSato/readmit/core/parallel"
	perrors "github.com/YuminosukeSato/readmit/pkg/errors"
	"github.com/YuminosukeSato/readmit/pkg/log"
	"github.com/YuminosukeSato/readmit/sklearn/tree"
)

const modelName = "RandomForestClassifier"

// RandomForestClassifier は bootstrap サンプルで学習した決定木の集合です。
// 予測は各木のクラス確率の平均の argmax です。
type RandomForestClassifier struct {
	state *model.StateManager

	nEstimators     int
	maxDepth        int
	criterion       string
	maxFeatures     string
	minSamplesSplit int
	minSamplesLeaf  int
	bootstrap       bool
	randomState     uint64
	nJobs           int

	estimators          []*tree.DecisionTreeClassifier
	classes_            []int
	featureImportances_ []float64

	logger log.Logger
}

// Option configures a RandomForestClassifier.
type Option func(*RandomForestClassifier)

// WithNEstimators sets the number of trees (default 100).
func WithNEstimators(n int) Option {
	return func(rf *RandomForestClassifier) { rf.nEstimators = n }
}

// WithMaxDepth caps each tree's depth. Zero or negative means unlimited.
func WithMaxDepth(depth int) Option {
	return func(rf *RandomForestClassifier) { rf.maxDepth = depth }
}

// WithCriterion sets the split criterion of every tree ("gini" or "entropy").
func WithCriterion(criterion string) Option {
	return func(rf *RandomForestClassifier) { rf.criterion = criterion }
}

// WithMaxFeatures sets the per-split feature sampling rule (default "sqrt").
func WithMaxFeatures(rule string) Option {
	return func(rf *RandomForestClassifier) { rf.maxFeatures = rule }
}

// WithMinSamplesLeaf sets the minimum leaf size of every tree.
func WithMinSamplesLeaf(n int) Option {
	return func(rf *RandomForestClassifier) { rf.minSamplesLeaf = n }
}

// WithBootstrap toggles bootstrap sampling. Without it every tree sees all rows
// and differs only by feature sampling.
func WithBootstrap(b bool) Option {
	return func(rf *RandomForestClassifier) { rf.bootstrap = b }
}

// WithRandomState seeds the forest.
func WithRandomState(seed uint64) Option {
	return func(rf *RandomForestClassifier) { rf.randomState = seed }
}

// WithNJobs sets the number of goroutines used to build and query trees.
// Zero or negative uses every CPU.
func WithNJobs(n int) Option {
	return func(rf *RandomForestClassifier) { rf.nJobs = n }
}

// NewRandomForestClassifier creates an unfitted forest.
func NewRandomForestClassifier(opts ...Option) *RandomForestClassifier {
	rf := &RandomForestClassifier{
		state:           model.NewStateManager(),
		nEstimators:     100,
		maxDepth:        -1,
		criterion:       string(tree.Gini),
		maxFeatures:     "sqrt",
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		bootstrap:       true,
		logger:          log.GetLoggerWithName("ensemble.forest"),
	}
	for _, opt := range opts {
		opt(rf)
	}
	return rf
}

// Fit grows nEstimators trees. Per-tree seeds are drawn from the forest
// generator before any tree is built, so the result does not depend on nJobs.
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) (err error) {
	defer perrors.Recover(&err, modelName+".Fit")

	if rf.nEstimators < 1 {
		return perrors.NewValidationError("n_estimators", "must be at least 1", rf.nEstimators)
	}
	if _, err := tree.ParseCriterion(rf.criterion); err != nil {
		return err
	}
	rows, cols := X.Dims()
	if rows == 0 {
		return perrors.Wrap(perrors.ErrEmptyTrainingSet, modelName+".Fit")
	}
	yRows, _ := y.Dims()
	if yRows != rows {
		return perrors.NewDimensionError(modelName+".Fit", rows, yRows, 0)
	}

	start := time.Now()
	rf.logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.ModelNameKey, modelName,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.EstimatorsKey, rf.nEstimators,
		log.MaxDepthKey, rf.maxDepth,
		log.RandomSeedKey, rf.randomState,
		log.WorkersKey, rf.nJobs,
	)

	labels := make([]int, rows)
	for i := range labels {
		labels[i] = int(y.At(i, 0))
	}
	classes, encoded := tree.EncodeLabels(labels)
	columns := tree.NewColumns(X)

	r := rand.New(rand.NewPCG(rf.randomState, rf.randomState))
	seeds := make([]uint64, rf.nEstimators)
	for i := range seeds {
		seeds[i] = r.Uint64()
	}

	rf.state.Reset()
	estimators := make([]*tree.DecisionTreeClassifier, rf.nEstimators)
	err = parallel.ParallelizeErr(rf.nEstimators, rf.nJobs, func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			dt := tree.NewDecisionTreeClassifier(
				tree.WithCriterion(rf.criterion),
				tree.WithMaxDepth(rf.maxDepth),
				tree.WithMaxFeatures(rf.maxFeatures),
				tree.WithMinSamplesSplit(rf.minSamplesSplit),
				tree.WithMinSamplesLeaf(rf.minSamplesLeaf),
				tree.WithRandomState(seeds[i]),
			)
			if err := dt.FitColumns(columns, encoded, classes, rf.samplesFor(seeds[i], rows)); err != nil {
				return perrors.Wrapf(err, "tree %d", i)
			}
			estimators[i] = dt
		}
		return nil
	})
	if err != nil {
		return err
	}

	rf.estimators = estimators
	rf.classes_ = classes
	rf.featureImportances_ = averageImportances(estimators, cols)
	rf.state.SetDimensions(cols, rows)
	rf.state.SetFitted()

	rf.logger.Info("Training completed",
		log.OperationKey, log.OperationFit,
		log.ModelNameKey, modelName,
		log.ClassesKey, len(classes),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// samplesFor draws the bootstrap row indices of one tree.
func (rf *RandomForestClassifier) samplesFor(seed uint64, n int) []int {
	samples := make([]int, n)
	if !rf.bootstrap {
		for i := range samples {
			samples[i] = i
		}
		return samples
	}
	r := rand.New(rand.NewPCG(seed, ^seed))
	for i := range samples {
		samples[i] = r.IntN(n)
	}
	return samples
}

// averageImportances は分割を持つ木の重要度を平均し、合計 1 に正規化する
func averageImportances(estimators []*tree.DecisionTreeClassifier, nFeatures int) []float64 {
	sum := make([]float64, nFeatures)
	used := 0
	for _, dt := range estimators {
		if dt.GetNLeaves() <= 1 {
			continue
		}
		floats.Add(sum, dt.GetFeatureImportances())
		used++
	}
	if used == 0 {
		return sum
	}
	floats.Scale(1/float64(used), sum)
	if total := floats.Sum(sum); total > 0 {
		floats.Scale(1/total, sum)
	}
	return sum
}

// PredictProba averages the class probabilities of all trees. Columns follow Classes().
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.state.RequireFitted(modelName, "PredictProba"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := rf.state.CheckFeatures(modelName+".PredictProba", cols); err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, perrors.Wrap(perrors.ErrEmptyInput, modelName+".PredictProba")
	}

	dense := mat.DenseCopyOf(X)
	out := mat.NewDense(rows, len(rf.classes_), nil)
	weight := 1 / float64(len(rf.estimators))

	// 行範囲ごとに並列化する。各行は常に同じ木の順序で加算される
	err := parallel.ParallelizeErr(rows, rf.nJobs, func(lo, hi int) error {
		xs := dense.Slice(lo, hi, 0, cols)
		dst := out.Slice(lo, hi, 0, len(rf.classes_)).(*mat.Dense)
		for _, dt := range rf.estimators {
			if err := dt.AccumulateProba(xs, dst, weight); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Predict returns the class with the highest averaged probability as an n×1 matrix.
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return tree.ArgmaxClasses(proba, rf.classes_), nil
}

// Score returns the mean accuracy on X and y, or 0 when prediction fails.
func (rf *RandomForestClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := rf.Predict(X)
	if err != nil {
		return 0
	}
	rows, _ := pred.Dims()
	correct := 0
	for i := 0; i < rows; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(rows)
}

// Classes returns the sorted class labels seen during fitting.
func (rf *RandomForestClassifier) Classes() []int {
	return append([]int(nil), rf.classes_...)
}

// IsFitted reports whether Fit has completed.
func (rf *RandomForestClassifier) IsFitted() bool {
	return rf.state.IsFitted()
}

// FeatureImportances returns the mean impurity-decrease importance of each
// feature over all trees, normalized to sum to 1.
func (rf *RandomForestClassifier) FeatureImportances() ([]float64, error) {
	if err := rf.state.RequireFitted(modelName, "FeatureImportances"); err != nil {
		return nil, err
	}
	return append([]float64(nil), rf.featureImportances_...), nil
}

// Estimators returns the fitted trees.
func (rf *RandomForestClassifier) Estimators() []*tree.DecisionTreeClassifier {
	return append([]*tree.DecisionTreeClassifier(nil), rf.estimators...)
}

// GetParams returns the hyperparameters.
func (rf *RandomForestClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      rf.nEstimators,
		"max_depth":         rf.maxDepth,
		"criterion":         rf.criterion,
		"max_features":      rf.maxFeatures,
		"min_samples_split": rf.minSamplesSplit,
		"min_samples_leaf":  rf.minSamplesLeaf,
		"bootstrap":         rf.bootstrap,
		"random_state":      rf.randomState,
		"n_jobs":            rf.nJobs,
	}
}

var (
	_ model.ImportanceClassifier = (*RandomForestClassifier)(nil)
	_ model.ParameterGetter      = (*RandomForestClassifier)(nil)
)
