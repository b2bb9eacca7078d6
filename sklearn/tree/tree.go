// Package tree implements CART decision tree classifiers.
//
// Trees are grown depth first with exhaustive threshold search on sorted
// feature values. Nodes are split whenever they are impure and the size
// constraints allow it; leaves store class counts so that PredictProba
// returns the class distribution of the training samples that reached them.
package tree

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/readmit/core/model"
	perrors "github.com/YuminosukeSato/readmit/pkg/errors"
)

const modelName = "DecisionTreeClassifier"

// DecisionTreeClassifier is a CART classification tree.
type DecisionTreeClassifier struct {
	state *model.StateManager

	criterion       Criterion
	maxDepth        int // <= 0 means unlimited
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     string
	randomState     uint64

	classes_            []int
	nClasses_           int
	nodes               []node
	featureImportances_ []float64
	depth_              int
	nLeaves_            int
}

// Option configures a DecisionTreeClassifier.
type Option func(*DecisionTreeClassifier)

// WithCriterion sets the split-quality rule ("gini" or "entropy").
// Unknown names are rejected by Fit.
func WithCriterion(criterion string) Option {
	return func(dt *DecisionTreeClassifier) { dt.criterion = Criterion(criterion) }
}

// WithMaxDepth caps the depth of the tree. Zero or negative means unlimited.
func WithMaxDepth(depth int) Option {
	return func(dt *DecisionTreeClassifier) { dt.maxDepth = depth }
}

// WithMinSamplesSplit sets the minimum number of samples required to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum number of samples in each leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesLeaf = n }
}

// WithMaxFeatures sets how many features are considered per split:
// "sqrt", "log2", or "" for all of them.
func WithMaxFeatures(rule string) Option {
	return func(dt *DecisionTreeClassifier) { dt.maxFeatures = rule }
}

// WithRandomState seeds the feature sampling.
func WithRandomState(seed uint64) Option {
	return func(dt *DecisionTreeClassifier) { dt.randomState = seed }
}

// NewDecisionTreeClassifier creates an unfitted tree.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		state:           model.NewStateManager(),
		criterion:       Gini,
		maxDepth:        -1,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

func (dt *DecisionTreeClassifier) validate() error {
	if _, err := ParseCriterion(string(dt.criterion)); err != nil {
		return err
	}
	if dt.minSamplesSplit < 2 {
		return perrors.NewValidationError("min_samples_split", "must be at least 2", dt.minSamplesSplit)
	}
	if dt.minSamplesLeaf < 1 {
		return perrors.NewValidationError("min_samples_leaf", "must be at least 1", dt.minSamplesLeaf)
	}
	switch dt.maxFeatures {
	case "", "all", "sqrt", "log2":
	default:
		return perrors.NewValidationError("max_features", "must be 'sqrt', 'log2' or empty", dt.maxFeatures)
	}
	return nil
}

// ResolveMaxFeatures returns the number of features examined per split.
func ResolveMaxFeatures(rule string, nFeatures int) int {
	k := nFeatures
	switch rule {
	case "sqrt":
		k = int(math.Sqrt(float64(nFeatures)))
	case "log2":
		k = int(math.Log2(float64(nFeatures)))
	}
	if k < 1 {
		k = 1
	}
	return k
}

// Fit grows the tree on X (n×p) and class labels y (n×1).
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) (err error) {
	defer perrors.Recover(&err, modelName+".Fit")

	rows, _ := X.Dims()
	yRows, _ := y.Dims()
	if rows == 0 {
		return perrors.Wrap(perrors.ErrEmptyTrainingSet, modelName+".Fit")
	}
	if yRows != rows {
		return perrors.NewDimensionError(modelName+".Fit", rows, yRows, 0)
	}

	labels := make([]int, rows)
	for i := range labels {
		labels[i] = int(y.At(i, 0))
	}
	classes, encoded := EncodeLabels(labels)

	samples := make([]int, rows)
	for i := range samples {
		samples[i] = i
	}
	return dt.FitColumns(NewColumns(X), encoded, classes, samples)
}

// FitColumns grows the tree on the rows listed in samples (repetitions allowed)
// with labels already encoded as indices into classes. It is the entry point
// used by ensembles that share one column store between many trees.
func (dt *DecisionTreeClassifier) FitColumns(cols *Columns, encoded []int, classes []int, samples []int) (err error) {
	defer perrors.Recover(&err, modelName+".FitColumns")

	if err := dt.validate(); err != nil {
		return err
	}
	if len(samples) == 0 || cols.Rows() == 0 {
		return perrors.Wrap(perrors.ErrEmptyTrainingSet, modelName+".Fit")
	}
	if len(encoded) != cols.Rows() {
		return perrors.NewDimensionError(modelName+".Fit", cols.Rows(), len(encoded), 0)
	}

	dt.state.Reset()
	b := &builder{
		cols:        cols,
		y:           encoded,
		nClasses:    len(classes),
		criterion:   dt.criterion,
		maxDepth:    dt.maxDepth,
		minSplit:    dt.minSamplesSplit,
		minLeaf:     dt.minSamplesLeaf,
		maxFeatures: ResolveMaxFeatures(dt.maxFeatures, cols.Cols()),
		rng:         rand.New(rand.NewPCG(dt.randomState, dt.randomState)),
	}
	b.build(append([]int(nil), samples...))

	dt.classes_ = append([]int(nil), classes...)
	dt.nClasses_ = len(classes)
	dt.nodes = b.nodes
	dt.featureImportances_ = normalize(b.importances)
	dt.depth_, dt.nLeaves_ = 0, 0
	for _, nd := range dt.nodes {
		if nd.feature < 0 {
			dt.nLeaves_++
			if nd.depth > dt.depth_ {
				dt.depth_ = nd.depth
			}
		}
	}

	dt.state.SetDimensions(cols.Cols(), len(samples))
	dt.state.SetFitted()
	return nil
}

func normalize(v []float64) []float64 {
	out := make([]float64, len(v))
	total := 0.0
	for _, x := range v {
		total += x
	}
	if total <= 0 {
		return out
	}
	for i, x := range v {
		out[i] = x / total
	}
	return out
}

// EncodeLabels maps labels to indices into the sorted unique classes.
func EncodeLabels(labels []int) (classes []int, encoded []int) {
	seen := make(map[int]struct{})
	for _, l := range labels {
		if _, ok := seen[l]; !ok {
			seen[l] = struct{}{}
			classes = append(classes, l)
		}
	}
	sort.Ints(classes)
	index := make(map[int]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	encoded = make([]int, len(labels))
	for i, l := range labels {
		encoded[i] = index[l]
	}
	return classes, encoded
}

// leafFor walks the tree for one row.
func (dt *DecisionTreeClassifier) leafFor(at func(j int) float64) *node {
	nd := &dt.nodes[0]
	for nd.feature >= 0 {
		if at(nd.feature) <= nd.threshold {
			nd = &dt.nodes[nd.left]
		} else {
			nd = &dt.nodes[nd.right]
		}
	}
	return nd
}

func (dt *DecisionTreeClassifier) checkPredict(X mat.Matrix, method string) error {
	if err := dt.state.RequireFitted(modelName, method); err != nil {
		return err
	}
	_, c := X.Dims()
	return dt.state.CheckFeatures(modelName+"."+method, c)
}

// PredictProba returns the class distribution of the leaf each row falls into.
// Columns follow Classes().
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.checkPredict(X, "PredictProba"); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	if rows == 0 {
		return nil, perrors.Wrap(perrors.ErrEmptyInput, modelName+".PredictProba")
	}
	out := mat.NewDense(rows, dt.nClasses_, nil)
	dt.accumulateProba(X, out, 1)
	return out, nil
}

// AccumulateProba adds weight × leaf probabilities into dst (rows × len(Classes())).
// Ensembles use it to average trees without allocating per-tree matrices.
func (dt *DecisionTreeClassifier) AccumulateProba(X mat.Matrix, dst *mat.Dense, weight float64) error {
	if err := dt.checkPredict(X, "PredictProba"); err != nil {
		return err
	}
	dt.accumulateProba(X, dst, weight)
	return nil
}

func (dt *DecisionTreeClassifier) accumulateProba(X mat.Matrix, dst *mat.Dense, weight float64) {
	rows, _ := X.Dims()
	for i := 0; i < rows; i++ {
		leaf := dt.leafFor(func(j int) float64 { return X.At(i, j) })
		total := float64(leaf.nSamples)
		for k, c := range leaf.counts {
			if c > 0 {
				dst.Set(i, k, dst.At(i, k)+weight*float64(c)/total)
			}
		}
	}
}

// Predict returns the most probable class for each row as an n×1 matrix.
// Ties go to the smaller class label.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := dt.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return ArgmaxClasses(proba, dt.classes_), nil
}

// ArgmaxClasses converts a probability matrix into an n×1 label vector.
func ArgmaxClasses(proba mat.Matrix, classes []int) *mat.VecDense {
	rows, cols := proba.Dims()
	out := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		best := 0
		for k := 1; k < cols; k++ {
			if proba.At(i, k) > proba.At(i, best) {
				best = k
			}
		}
		out.SetVec(i, float64(classes[best]))
	}
	return out
}

// Score returns the mean accuracy on X and y. It returns 0 when prediction fails.
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := dt.Predict(X)
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
func (dt *DecisionTreeClassifier) Classes() []int {
	return append([]int(nil), dt.classes_...)
}

// IsFitted reports whether Fit has completed.
func (dt *DecisionTreeClassifier) IsFitted() bool {
	return dt.state.IsFitted()
}

// GetFeatureImportances returns the normalized impurity decrease per feature,
// or nil before Fit. A tree without splits reports all zeros.
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	if !dt.state.IsFitted() {
		return nil
	}
	return append([]float64(nil), dt.featureImportances_...)
}

// FeatureImportances implements model.FeatureImporter.
func (dt *DecisionTreeClassifier) FeatureImportances() ([]float64, error) {
	if err := dt.state.RequireFitted(modelName, "FeatureImportances"); err != nil {
		return nil, err
	}
	return dt.GetFeatureImportances(), nil
}

// GetDepth returns the depth of the deepest leaf (root = 0).
func (dt *DecisionTreeClassifier) GetDepth() int { return dt.depth_ }

// GetNLeaves returns the number of leaves.
func (dt *DecisionTreeClassifier) GetNLeaves() int { return dt.nLeaves_ }

// GetParams returns the hyperparameters.
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         string(dt.criterion),
		"max_depth":         dt.maxDepth,
		"min_samples_split": dt.minSamplesSplit,
		"min_samples_leaf":  dt.minSamplesLeaf,
		"max_features":      dt.maxFeatures,
		"random_state":      dt.randomState,
	}
}

// SetParams updates hyperparameters. Integer parameters accept int or
// integral float64 values (as decoded from JSON or YAML).
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "criterion":
			s, ok := value.(string)
			if !ok {
				return perrors.NewValidationError(key, "must be a string", value)
			}
			c, err := ParseCriterion(s)
			if err != nil {
				return err
			}
			dt.criterion = c
		case "max_depth":
			v, err := toInt(key, value)
			if err != nil {
				return err
			}
			dt.maxDepth = v
		case "min_samples_split":
			v, err := toInt(key, value)
			if err != nil {
				return err
			}
			dt.minSamplesSplit = v
		case "min_samples_leaf":
			v, err := toInt(key, value)
			if err != nil {
				return err
			}
			dt.minSamplesLeaf = v
		case "max_features":
			s, ok := value.(string)
			if !ok {
				return perrors.NewValidationError(key, "must be a string", value)
			}
			dt.maxFeatures = s
		case "random_state":
			v, err := toInt(key, value)
			if err != nil {
				return err
			}
			dt.randomState = uint64(v)
		default:
			return perrors.NewValidationError(key, "unknown parameter", value)
		}
	}
	return dt.validate()
}

func toInt(key string, value interface{}) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float64:
		if v == math.Trunc(v) {
			return int(v), nil
		}
	}
	return 0, perrors.NewValidationError(key, fmt.Sprintf("must be an integer, got %T", value), value)
}

var _ model.ImportanceClassifier = (*DecisionTreeClassifier)(nil)
