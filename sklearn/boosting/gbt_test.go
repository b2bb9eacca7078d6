package boosting

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	perrors "github.com/YuminosukeSato/readmit/pkg/errors"
)

// makeClusters returns three classes separated on feature 1; features 0 and 2 are noise.
func makeClusters(n int, seed uint64) (*mat.Dense, *mat.VecDense) {
	r := rand.New(rand.NewPCG(seed, seed+1))
	X := mat.NewDense(n, 3, nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		c := i % 3
		X.Set(i, 0, r.Float64())
		X.Set(i, 1, float64(c*5)+r.NormFloat64())
		X.Set(i, 2, float64(r.IntN(4)))
		y.SetVec(i, float64(c))
	}
	return X, y
}

func TestBinMapper(t *testing.T) {
	m := newBinMapper([]float64{3, 1, 2, 2, 3}, 256)
	assert.Equal(t, []float64{1, 2, 3}, m.bounds)
	assert.Equal(t, uint8(0), m.bin(0.5))
	assert.Equal(t, uint8(1), m.bin(1.5))
	assert.Equal(t, uint8(1), m.bin(2))
	assert.Equal(t, uint8(2), m.bin(99))

	values := make([]float64, 1000)
	for i := range values {
		values[i] = float64(i)
	}
	q := newBinMapper(values, 16)
	assert.LessOrEqual(t, len(q.bounds), 16)
	assert.Equal(t, 999.0, q.bounds[len(q.bounds)-1])
	assert.False(t, floats.HasNaN(q.bounds))
	for i := 1; i < len(q.bounds); i++ {
		assert.Greater(t, q.bounds[i], q.bounds[i-1])
	}
}

func TestHistogramSubtraction(t *testing.T) {
	X, _ := makeClusters(30, 1)
	d := newBinnedData(X, 8, 2)
	grad := make([]float64, 30)
	hess := make([]float64, 30)
	for i := range grad {
		grad[i] = float64(i%5) - 2
		hess[i] = 1
	}
	all := make([]int, 30)
	for i := range all {
		all[i] = i
	}

	parent, left, right, derived := d.newHistogram(), d.newHistogram(), d.newHistogram(), d.newHistogram()
	d.build(parent, all, grad, hess, 3)
	d.build(left, all[:12], grad, hess, 1)
	d.build(right, all[12:], grad, hess, 1)
	derived.subtract(parent, left)

	for k := range right {
		assert.InDelta(t, right[k], derived[k], 1e-12)
	}
}

func TestSoftmaxObjectiveGradients(t *testing.T) {
	obj := softmaxObjective{nClasses: 3}
	margins := []float64{0.5, 0.5, 0.5}
	grad := make([]float64, 3)
	hess := make([]float64, 3)
	obj.gradients(margins, []int{1}, grad, hess, 1)

	third := 1.0 / 3
	assert.InDeltaSlice(t, []float64{third, third - 1, third}, grad, 1e-12)
	for _, h := range hess {
		assert.InDelta(t, 2*third*(1-third), h, 1e-12)
	}
	assert.InDelta(t, -math.Log(third), obj.loss(margins, []int{1}), 1e-12)
}

func TestGBTClassifier_FitPredict(t *testing.T) {
	X, y := makeClusters(240, 2)
	gbt := NewGBTClassifier(WithNRounds(30))
	require.NoError(t, gbt.Fit(X, y))

	assert.True(t, gbt.IsFitted())
	assert.Equal(t, []int{0, 1, 2}, gbt.Classes())
	assert.Equal(t, 90, gbt.NTrees())

	curve := gbt.LossCurve()
	require.Len(t, curve, 30)
	assert.Less(t, curve[29], curve[0])

	Xt, yt := makeClusters(90, 3)
	pred, err := gbt.Predict(Xt)
	require.NoError(t, err)
	correct := 0
	for i := 0; i < 90; i++ {
		if pred.At(i, 0) == yt.AtVec(i) {
			correct++
		}
	}
	assert.GreaterOrEqual(t, correct, 75)

	proba, err := gbt.PredictProba(Xt)
	require.NoError(t, err)
	for i := 0; i < 90; i++ {
		assert.InDelta(t, 1.0, floats.Sum(mat.Row(nil, i, proba)), 1e-9)
	}
}

func TestGBTClassifier_BinnedAndRawPredictionAgree(t *testing.T) {
	X, y := makeClusters(120, 4)
	gbt := NewGBTClassifier(WithNRounds(5), WithMaxBin(16))
	require.NoError(t, gbt.Fit(X, y))

	d := newBinnedData(X, 16, 1)
	for _, tr := range gbt.trees {
		for i := 0; i < 120; i++ {
			at := func(j int) float64 { return X.At(i, j) }
			require.Equal(t, tr.predictBinned(d, i), tr.predict(at))
		}
	}
}

func TestGBTClassifier_FeatureImportances(t *testing.T) {
	X, y := makeClusters(180, 5)

	for _, kind := range []string{ImportanceGain, ImportanceTotalGain, ImportanceSplit} {
		t.Run(kind, func(t *testing.T) {
			gbt := NewGBTClassifier(WithNRounds(10), WithImportanceType(kind))
			require.NoError(t, gbt.Fit(X, y))
			imp, err := gbt.FeatureImportances()
			require.NoError(t, err)
			require.Len(t, imp, 3)
			assert.InDelta(t, 1.0, floats.Sum(imp), 1e-9)
			if kind != ImportanceSplit {
				assert.Equal(t, 1, floats.MaxIdx(imp))
			}
		})
	}
}

func TestGBTClassifier_DeterministicAcrossWorkers(t *testing.T) {
	X, y := makeClusters(150, 6)

	a := NewGBTClassifier(WithNRounds(8), WithNJobs(1))
	require.NoError(t, a.Fit(X, y))
	b := NewGBTClassifier(WithNRounds(8), WithNJobs(4))
	require.NoError(t, b.Fit(X, y))

	assert.Equal(t, a.LossCurve(), b.LossCurve())
	pa, err := a.PredictProba(X)
	require.NoError(t, err)
	pb, err := b.PredictProba(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(pa, pb))
}

func TestGBTClassifier_Subsample(t *testing.T) {
	X, y := makeClusters(150, 7)
	fit := func(seed uint64) []float64 {
		gbt := NewGBTClassifier(WithNRounds(5), WithSubsample(0.5), WithRandomState(seed))
		require.NoError(t, gbt.Fit(X, y))
		return gbt.LossCurve()
	}
	assert.Equal(t, fit(1), fit(1))
	assert.NotEqual(t, fit(1), fit(2))
}

func TestGBTClassifier_Errors(t *testing.T) {
	gbt := NewGBTClassifier(WithNRounds(2))

	_, err := gbt.PredictProba(mat.NewDense(1, 3, nil))
	assert.True(t, perrors.Is(err, perrors.ErrUnfittedModel))
	_, err = gbt.FeatureImportances()
	assert.True(t, perrors.Is(err, perrors.ErrUnfittedModel))

	X, y := makeClusters(12, 8)
	assert.True(t, perrors.Is(gbt.Fit(X, mat.NewVecDense(3, nil)), perrors.ErrSchemaMismatch))

	require.NoError(t, gbt.Fit(X, y))
	_, err = gbt.Predict(mat.NewDense(1, 2, nil))
	assert.True(t, perrors.Is(err, perrors.ErrSchemaMismatch))
	_, err = gbt.ImportanceByType("cover")
	var ve *perrors.ValidationError
	assert.True(t, perrors.As(err, &ve))

	for _, opt := range []Option{WithMaxBin(300), WithLearningRate(0), WithSubsample(0), WithImportanceType("weight")} {
		err := NewGBTClassifier(opt).Fit(X, y)
		assert.True(t, perrors.As(err, &ve), "got %v", err)
	}
}
