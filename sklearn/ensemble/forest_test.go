package ensemble

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	perrors "github.com/YuminosukeSato/readmit/pkg/errors"
)

// makeBlobs returns three well separated classes along feature 0 plus two noise features.
func makeBlobs(n int, seed uint64) (*mat.Dense, *mat.VecDense) {
	r := rand.New(rand.NewPCG(seed, seed))
	X := mat.NewDense(n, 3, nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		c := i % 3
		X.Set(i, 0, float64(c*10)+r.NormFloat64())
		X.Set(i, 1, r.Float64())
		X.Set(i, 2, r.Float64())
		y.SetVec(i, float64(c))
	}
	return X, y
}

func TestRandomForestClassifier_FitPredict(t *testing.T) {
	X, y := makeBlobs(150, 1)
	rf := NewRandomForestClassifier(WithNEstimators(20), WithRandomState(0))
	require.NoError(t, rf.Fit(X, y))

	assert.True(t, rf.IsFitted())
	assert.Equal(t, []int{0, 1, 2}, rf.Classes())
	assert.Len(t, rf.Estimators(), 20)

	Xt, yt := makeBlobs(60, 2)
	pred, err := rf.Predict(Xt)
	require.NoError(t, err)
	correct := 0
	for i := 0; i < 60; i++ {
		if pred.At(i, 0) == yt.AtVec(i) {
			correct++
		}
	}
	assert.GreaterOrEqual(t, correct, 57)

	proba, err := rf.PredictProba(Xt)
	require.NoError(t, err)
	for i := 0; i < 60; i++ {
		assert.InDelta(t, 1.0, floats.Sum(mat.Row(nil, i, proba)), 1e-9)
	}
}

func TestRandomForestClassifier_FeatureImportances(t *testing.T) {
	X, y := makeBlobs(150, 3)
	rf := NewRandomForestClassifier(WithNEstimators(25), WithCriterion("entropy"), WithMaxDepth(120))
	require.NoError(t, rf.Fit(X, y))

	imp, err := rf.FeatureImportances()
	require.NoError(t, err)
	require.Len(t, imp, 3)
	assert.InDelta(t, 1.0, floats.Sum(imp), 1e-9)
	assert.Equal(t, 0, floats.MaxIdx(imp))
	for _, v := range imp {
		assert.GreaterOrEqual(t, v, 0.0)
	}
}

func TestRandomForestClassifier_DeterministicAcrossWorkers(t *testing.T) {
	X, y := makeBlobs(90, 4)

	fit := func(jobs int) *RandomForestClassifier {
		rf := NewRandomForestClassifier(WithNEstimators(12), WithRandomState(7), WithNJobs(jobs))
		require.NoError(t, rf.Fit(X, y))
		return rf
	}
	a, b := fit(1), fit(4)

	ia, _ := a.FeatureImportances()
	ib, _ := b.FeatureImportances()
	assert.Equal(t, ia, ib)

	pa, err := a.PredictProba(X)
	require.NoError(t, err)
	pb, err := b.PredictProba(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(pa, pb))

	c := NewRandomForestClassifier(WithNEstimators(12), WithRandomState(8))
	require.NoError(t, c.Fit(X, y))
	ic, _ := c.FeatureImportances()
	assert.NotEqual(t, ia, ic)
}

func TestRandomForestClassifier_NoBootstrap(t *testing.T) {
	X, y := makeBlobs(30, 5)
	rf := NewRandomForestClassifier(WithNEstimators(3), WithBootstrap(false), WithMaxFeatures(""))
	require.NoError(t, rf.Fit(X, y))

	// 全特徴量・全行を使うので木はすべて同じになる
	trees := rf.Estimators()
	assert.Equal(t, trees[0].GetFeatureImportances(), trees[2].GetFeatureImportances())
	assert.Equal(t, 1.0, rf.Score(X, y))
}

func TestRandomForestClassifier_Errors(t *testing.T) {
	rf := NewRandomForestClassifier(WithNEstimators(2))

	_, err := rf.Predict(mat.NewDense(1, 3, nil))
	assert.True(t, perrors.Is(err, perrors.ErrUnfittedModel))
	_, err = rf.FeatureImportances()
	assert.True(t, perrors.Is(err, perrors.ErrUnfittedModel))

	X, y := makeBlobs(12, 6)
	err = rf.Fit(X, mat.NewVecDense(5, nil))
	assert.True(t, perrors.Is(err, perrors.ErrSchemaMismatch))

	require.NoError(t, rf.Fit(X, y))
	_, err = rf.Predict(mat.NewDense(2, 4, nil))
	assert.True(t, perrors.Is(err, perrors.ErrSchemaMismatch))

	var ve *perrors.ValidationError
	err = NewRandomForestClassifier(WithNEstimators(0)).Fit(X, y)
	assert.True(t, perrors.As(err, &ve))
	err = NewRandomForestClassifier(WithCriterion("log_loss")).Fit(X, y)
	assert.True(t, perrors.As(err, &ve))
}
