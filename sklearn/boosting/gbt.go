// Package boosting implements multi-class gradient-boosted trees with
// histogram-based split finding.
//
// Each boosting round fits one regression tree per class to the gradients of
// the softmax cross-entropy. Features are pre-binned once (at most MaxBin
// bins each); split search scans per-feature histograms in parallel and uses
// the parent-minus-sibling subtraction to build the larger child's histogram.
//
// Defaults follow the common XGBoost defaults: 100 rounds, learning rate 0.3,
// depth 6, lambda 1, gamma 0, min child weight 1, 256 bins and base score 0.5.
package boosting

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

const modelName = "GBTClassifier"

// Importance types accepted by WithImportanceType and ImportanceByType.
const (
	ImportanceGain      = "gain"       // average loss reduction of the splits on a feature
	ImportanceTotalGain = "total_gain" // summed loss reduction
	ImportanceSplit     = "split"      // number of splits
)

// GBTClassifier is a softmax gradient-boosted tree ensemble.
type GBTClassifier struct {
	state *model.StateManager

	nRounds        int
	learningRate   float64
	maxDepth       int
	lambda         float64
	gamma          float64
	minChildWeight float64
	maxBin         int
	baseScore      float64
	subsample      float64
	randomState    uint64
	importanceType string
	nJobs          int

	classes_   []int
	trees      []*regTree // round-major: trees[round*nClasses + class]
	splitCount []float64
	totalGain  []float64
	lossCurve  []float64

	logger log.Logger
}

// Option configures a GBTClassifier.
type Option func(*GBTClassifier)

// WithNRounds sets the number of boosting rounds.
func WithNRounds(n int) Option { return func(g *GBTClassifier) { g.nRounds = n } }

// WithLearningRate sets the shrinkage applied to every leaf (eta).
func WithLearningRate(eta float64) Option { return func(g *GBTClassifier) { g.learningRate = eta } }

// WithMaxDepth sets the depth of every tree.
func WithMaxDepth(depth int) Option { return func(g *GBTClassifier) { g.maxDepth = depth } }

// WithLambda sets the L2 regularization on leaf weights.
func WithLambda(lambda float64) Option { return func(g *GBTClassifier) { g.lambda = lambda } }

// WithGamma sets the minimum loss reduction required to split.
func WithGamma(gamma float64) Option { return func(g *GBTClassifier) { g.gamma = gamma } }

// WithMinChildWeight sets the minimum hessian sum of each child.
func WithMinChildWeight(w float64) Option { return func(g *GBTClassifier) { g.minChildWeight = w } }

// WithMaxBin sets the maximum number of histogram bins per feature (2..256).
func WithMaxBin(n int) Option { return func(g *GBTClassifier) { g.maxBin = n } }

// WithBaseScore sets the initial margin of every class.
func WithBaseScore(s float64) Option { return func(g *GBTClassifier) { g.baseScore = s } }

// WithSubsample sets the fraction of rows drawn for each round.
func WithSubsample(f float64) Option { return func(g *GBTClassifier) { g.subsample = f } }

// WithRandomState seeds row subsampling.
func WithRandomState(seed uint64) Option { return func(g *GBTClassifier) { g.randomState = seed } }

// WithImportanceType selects what FeatureImportances reports.
func WithImportanceType(t string) Option { return func(g *GBTClassifier) { g.importanceType = t } }

// WithNJobs sets the number of goroutines for histogram building and split search.
func WithNJobs(n int) Option { return func(g *GBTClassifier) { g.nJobs = n } }

// NewGBTClassifier creates an unfitted classifier with the default hyperparameters.
func NewGBTClassifier(opts ...Option) *GBTClassifier {
	g := &GBTClassifier{
		state:          model.NewStateManager(),
		nRounds:        100,
		learningRate:   0.3,
		maxDepth:       6,
		lambda:         1,
		gamma:          0,
		minChildWeight: 1,
		maxBin:         256,
		baseScore:      0.5,
		subsample:      1,
		importanceType: ImportanceGain,
		logger:         log.GetLoggerWithName("boosting.gbt"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GBTClassifier) validate() error {
	switch {
	case g.nRounds < 1:
		return perrors.NewValidationError("n_rounds", "must be at least 1", g.nRounds)
	case g.learningRate <= 0:
		return perrors.NewValidationError("learning_rate", "must be positive", g.learningRate)
	case g.maxDepth < 1:
		return perrors.NewValidationError("max_depth", "must be at least 1", g.maxDepth)
	case g.lambda < 0:
		return perrors.NewValidationError("lambda", "must be non-negative", g.lambda)
	case g.gamma < 0:
		return perrors.NewValidationError("gamma", "must be non-negative", g.gamma)
	case g.minChildWeight < 0:
		return perrors.NewValidationError("min_child_weight", "must be non-negative", g.minChildWeight)
	case g.maxBin < 2 || g.maxBin > 256:
		return perrors.NewValidationError("max_bin", "must be in [2, 256]", g.maxBin)
	case g.subsample <= 0 || g.subsample > 1:
		return perrors.NewValidationError("subsample", "must be in (0, 1]", g.subsample)
	}
	switch g.importanceType {
	case ImportanceGain, ImportanceTotalGain, ImportanceSplit:
	default:
		return perrors.NewValidationError("importance_type", "must be 'gain', 'total_gain' or 'split'", g.importanceType)
	}
	return nil
}

// Fit trains the ensemble on X (n×p) and class labels y (n×1).
func (g *GBTClassifier) Fit(X, y mat.Matrix) (err error) {
	defer perrors.Recover(&err, modelName+".Fit")

	if err := g.validate(); err != nil {
		return err
	}
	rows, cols := X.Dims()
	if rows == 0 {
		return perrors.Wrap(perrors.ErrEmptyTrainingSet, modelName+".Fit")
	}
	if yRows, _ := y.Dims(); yRows != rows {
		return perrors.NewDimensionError(modelName+".Fit", rows, yRows, 0)
	}
	if err := perrors.CheckFinite(modelName+".Fit", X, rows, cols); err != nil {
		return err
	}

	start := time.Now()
	g.logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.ModelNameKey, modelName,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.EstimatorsKey, g.nRounds,
		log.LearningRateKey, g.learningRate,
		log.MaxDepthKey, g.maxDepth,
	)

	raw := make([]int, rows)
	for i := range raw {
		raw[i] = int(y.At(i, 0))
	}
	classes, labels := tree.EncodeLabels(raw)
	k := len(classes)

	data := newBinnedData(X, g.maxBin, g.nJobs)
	obj := softmaxObjective{nClasses: k}

	margins := make([]float64, rows*k)
	for i := range margins {
		margins[i] = g.baseScore
	}
	grad := make([]float64, rows*k)
	hess := make([]float64, rows*k)
	gk := make([]float64, rows)
	hk := make([]float64, rows)

	params := growParams{
		maxDepth:       g.maxDepth,
		learningRate:   g.learningRate,
		lambda:         g.lambda,
		gamma:          g.gamma,
		minChildWeight: g.minChildWeight,
		workers:        g.nJobs,
	}
	r := rand.New(rand.NewPCG(g.randomState, g.randomState))

	g.state.Reset()
	trees := make([]*regTree, 0, g.nRounds*k)
	splitCount := make([]float64, cols)
	totalGain := make([]float64, cols)
	lossCurve := make([]float64, 0, g.nRounds)

	for round := 0; round < g.nRounds; round++ {
		obj.gradients(margins, labels, grad, hess, g.nJobs)
		sampled := g.sampleRows(r, rows)

		roundTrees := make([]*regTree, k)
		for c := 0; c < k; c++ {
			for i := 0; i < rows; i++ {
				gk[i] = grad[i*k+c]
				hk[i] = hess[i*k+c]
			}
			t := growTree(data, append([]int(nil), sampled...), gk, hk, params)
			for _, nd := range t.nodes {
				if nd.feature >= 0 {
					splitCount[nd.feature]++
					totalGain[nd.feature] += nd.gain
				}
			}
			roundTrees[c] = t
		}

		parallel.ParallelizeWorkers(rows, g.nJobs, func(lo, hi int) {
			for i := lo; i < hi; i++ {
				for c, t := range roundTrees {
					margins[i*k+c] += t.predictBinned(data, i)
				}
			}
		})
		trees = append(trees, roundTrees...)

		loss := obj.loss(margins, labels)
		lossCurve = append(lossCurve, loss)
		if round%10 == 0 || round == g.nRounds-1 {
			g.logger.Debug("Boosting round completed",
				log.IterationKey, round,
				log.LossKey, loss,
			)
		}
	}

	g.classes_ = classes
	g.trees = trees
	g.splitCount = splitCount
	g.totalGain = totalGain
	g.lossCurve = lossCurve
	g.state.SetDimensions(cols, rows)
	g.state.SetFitted()

	g.logger.Info("Training completed",
		log.OperationKey, log.OperationFit,
		log.ModelNameKey, modelName,
		log.ClassesKey, k,
		log.LossKey, lossCurve[len(lossCurve)-1],
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// sampleRows returns the rows used by one round.
func (g *GBTClassifier) sampleRows(r *rand.Rand, n int) []int {
	rows := make([]int, 0, n)
	if g.subsample >= 1 {
		for i := 0; i < n; i++ {
			rows = append(rows, i)
		}
		return rows
	}
	for i := 0; i < n; i++ {
		if r.Float64() < g.subsample {
			rows = append(rows, i)
		}
	}
	if len(rows) == 0 {
		rows = append(rows, r.IntN(n))
	}
	return rows
}

// PredictProba returns softmax class probabilities. Columns follow Classes().
func (g *GBTClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := g.state.RequireFitted(modelName, "PredictProba"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := g.state.CheckFeatures(modelName+".PredictProba", cols); err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, perrors.Wrap(perrors.ErrEmptyInput, modelName+".PredictProba")
	}

	k := len(g.classes_)
	out := mat.NewDense(rows, k, nil)
	raw := out.RawMatrix()
	parallel.ParallelizeWorkers(rows, g.nJobs, func(lo, hi int) {
		margin := make([]float64, k)
		for i := lo; i < hi; i++ {
			at := func(j int) float64 { return X.At(i, j) }
			for c := range margin {
				margin[c] = g.baseScore
			}
			for t, tr := range g.trees {
				margin[t%k] += tr.predict(at)
			}
			perrors.Softmax(raw.Data[i*raw.Stride:i*raw.Stride+k], margin)
		}
	})
	return out, nil
}

// Predict returns the most probable class for each row as an n×1 matrix.
func (g *GBTClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := g.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return tree.ArgmaxClasses(proba, g.classes_), nil
}

// Classes returns the sorted class labels seen during fitting.
func (g *GBTClassifier) Classes() []int {
	return append([]int(nil), g.classes_...)
}

// IsFitted reports whether Fit has completed.
func (g *GBTClassifier) IsFitted() bool {
	return g.state.IsFitted()
}

// FeatureImportances returns the normalized importances of the configured type.
func (g *GBTClassifier) FeatureImportances() ([]float64, error) {
	return g.ImportanceByType(g.importanceType)
}

// ImportanceByType returns normalized importances of the given type.
// Features never used in a split score 0.
func (g *GBTClassifier) ImportanceByType(kind string) ([]float64, error) {
	if err := g.state.RequireFitted(modelName, "FeatureImportances"); err != nil {
		return nil, err
	}
	out := make([]float64, len(g.splitCount))
	switch kind {
	case ImportanceGain:
		for j, n := range g.splitCount {
			if n > 0 {
				out[j] = g.totalGain[j] / n
			}
		}
	case ImportanceTotalGain:
		copy(out, g.totalGain)
	case ImportanceSplit:
		copy(out, g.splitCount)
	default:
		return nil, perrors.NewValidationError("importance_type", "must be 'gain', 'total_gain' or 'split'", kind)
	}
	if total := floats.Sum(out); total > 0 {
		floats.Scale(1/total, out)
	}
	return out, nil
}

// LossCurve returns the training mlogloss after each round.
func (g *GBTClassifier) LossCurve() []float64 {
	return append([]float64(nil), g.lossCurve...)
}

// NTrees returns the number of fitted trees (rounds × classes).
func (g *GBTClassifier) NTrees() int { return len(g.trees) }

// GetParams returns the hyperparameters.
func (g *GBTClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_rounds":         g.nRounds,
		"learning_rate":    g.learningRate,
		"max_depth":        g.maxDepth,
		"lambda":           g.lambda,
		"gamma":            g.gamma,
		"min_child_weight": g.minChildWeight,
		"max_bin":          g.maxBin,
		"base_score":       g.baseScore,
		"subsample":        g.subsample,
		"random_state":     g.randomState,
		"importance_type":  g.importanceType,
	}
}

var (
	_ model.ImportanceClassifier = (*GBTClassifier)(nil)
	_ model.ParameterGetter      = (*GBTClassifier)(nil)
)
