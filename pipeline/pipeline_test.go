package pipeline

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/readmit/dataset"
	perrors "github.com/YuminosukeSato/readmit/pkg/errors"
	"github.com/YuminosukeSato/readmit/pkg/log"
	"github.com/YuminosukeSato/readmit/sklearn/ensemble"
)

var testFeatures = []string{"time_in_hospital", "num_medications", "number_inpatient", "number_diagnoses", "age"}

// makeAdmissions returns an imbalanced three-class table. number_inpatient
// carries most of the class signal.
func makeAdmissions(t *testing.T, n int) (*dataset.Table, []int) {
	t.Helper()
	r := rand.New(rand.NewPCG(42, 42))
	rows := make([][]float64, n)
	y := make([]int, n)
	for i := range rows {
		var c int
		switch u := r.Float64(); {
		case u < 0.6:
			c = dataset.NotReadmitted
		case u < 0.8:
			c = dataset.ReadmittedLT30
		default:
			c = dataset.ReadmittedGT30
		}
		rows[i] = []float64{
			float64(1 + r.IntN(14)),
			float64(5+r.IntN(30)) + float64(c),
			float64(c*3) + r.NormFloat64()*0.5,
			float64(1 + r.IntN(9)),
			float64(r.IntN(10)),
		}
		y[i] = c
	}
	X, err := dataset.NewTableFromRows(testFeatures, rows)
	require.NoError(t, err)
	return X, y
}

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.Features = testFeatures
	cfg.ForestSize = 10
	cfg.Boosting.Rounds = 10
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.20, cfg.TestFraction)
	assert.Equal(t, uint64(20), cfg.ResampleSeed)
	assert.Equal(t, 5, cfg.KNeighbors)
	assert.Equal(t, 100, cfg.ForestSize)
	assert.Equal(t, 120, cfg.ForestMaxDepth)
	assert.Equal(t, "entropy", cfg.ForestCriterion)
	assert.Equal(t, 10, cfg.TopK)
	assert.Equal(t, []ModelKind{BoostedTrees, RandomForest}, cfg.Models)
	assert.Len(t, cfg.Features, 42)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		target error
	}{
		{"test fraction zero", func(c *Config) { c.TestFraction = 0 }, perrors.ErrInvalidFraction},
		{"test fraction one", func(c *Config) { c.TestFraction = 1 }, perrors.ErrInvalidFraction},
		{"k neighbors", func(c *Config) { c.KNeighbors = 0 }, nil},
		{"criterion", func(c *Config) { c.ForestCriterion = "mse" }, nil},
		{"max bin", func(c *Config) { c.Boosting.MaxBin = 1024 }, nil},
		{"unknown model", func(c *Config) { c.Models = []ModelKind{"svm"} }, nil},
		{"no models", func(c *Config) { c.Models = nil }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			if tt.target != nil {
				assert.True(t, perrors.Is(err, tt.target), "got %v", err)
			}
			_, err = New(cfg)
			assert.Error(t, err)
		})
	}

	_, err := NewClassifier("svm", DefaultConfig())
	var ve *perrors.ValidationError
	assert.True(t, perrors.As(err, &ve))
}

func TestRun(t *testing.T) {
	X, y := makeAdmissions(t, 400)
	logs := log.NewTestLogger(log.LevelDebug)

	p, err := New(smallConfig(), WithLogger(logs))
	require.NoError(t, err)
	run, err := p.Run(X, y)
	require.NoError(t, err)

	assert.Equal(t, 80, run.TestRows)
	assert.Equal(t, 320, run.TrainRows)

	// 学習側のみ均衡化され、各クラスが最多クラスと同数になる
	maxCount := 0
	for _, c := range run.TrainClassCounts {
		maxCount = max(maxCount, c)
	}
	for _, c := range run.ResampledClassCounts {
		assert.Equal(t, maxCount, c)
	}
	assert.Equal(t, 3*maxCount, run.ResampledRows)

	require.Len(t, run.Models, 2)
	assert.Equal(t, BoostedTrees, run.Models[0].Kind)
	assert.Equal(t, RandomForest, run.Models[1].Kind)
	for _, mr := range run.Models {
		sum := 0
		for _, row := range mr.Report.ConfusionMatrix {
			for _, v := range row {
				sum += v
			}
		}
		assert.Equal(t, run.TestRows, sum)
		assert.Greater(t, mr.Report.Accuracy, 0.6)
		assert.True(t, mr.Model.IsFitted())

		require.Len(t, mr.Importances, len(testFeatures))
		top := mr.Importances[len(mr.Importances)-1]
		assert.Equal(t, "number_inpatient", top.Name)
		for i := 1; i < len(mr.Importances); i++ {
			assert.LessOrEqual(t, mr.Importances[i-1].Score, mr.Importances[i].Score)
		}
	}

	assert.True(t, logs.ContainsMessage("Model evaluated"))
	assert.True(t, logs.ContainsField(log.ModelKindKey, string(RandomForest)))
	assert.True(t, logs.ContainsField(log.PhaseKey, log.PhaseResampling))
}

func TestRunDeterministic(t *testing.T) {
	X, y := makeAdmissions(t, 300)
	run := func(jobs int) *RunReport {
		cfg := smallConfig()
		cfg.NJobs = jobs
		p, err := New(cfg)
		require.NoError(t, err)
		r, err := p.Run(X, y)
		require.NoError(t, err)
		return r
	}
	a, b := run(1), run(4)
	require.Len(t, b.Models, len(a.Models))
	for i := range a.Models {
		assert.Equal(t, a.Models[i].Report.ConfusionMatrix, b.Models[i].Report.ConfusionMatrix)
		assert.Equal(t, a.Models[i].Report.Accuracy, b.Models[i].Report.Accuracy)
		assert.Equal(t, a.Models[i].Importances, b.Models[i].Importances)
	}
}

func TestRunDoesNotMutateInput(t *testing.T) {
	X, y := makeAdmissions(t, 200)
	before := append([]float64(nil), X.Matrix().RawMatrix().Data...)
	yBefore := append([]int(nil), y...)

	p, err := New(smallConfig())
	require.NoError(t, err)
	_, err = p.Run(X, y)
	require.NoError(t, err)

	assert.Equal(t, before, X.Matrix().RawMatrix().Data)
	assert.Equal(t, yBefore, y)
}

func TestRunErrors(t *testing.T) {
	X, y := makeAdmissions(t, 100)

	cfg := smallConfig()
	cfg.Features = []string{"age", "gender"}
	p, err := New(cfg)
	require.NoError(t, err)
	_, err = p.Run(X, y)
	assert.True(t, perrors.Is(err, perrors.ErrSchemaMismatch), "got %v", err)

	p, err = New(smallConfig())
	require.NoError(t, err)
	_, err = p.Run(X, y[:10])
	assert.True(t, perrors.Is(err, perrors.ErrSchemaMismatch))

	// 少数クラスが k+1 件未満
	var rows [][]float64
	var yTiny []int
	for i := 0; i < 30; i++ {
		c := 0
		if i >= 24 {
			c = 1 + i%2
		}
		rows = append(rows, []float64{float64(i), float64(i % 7), float64(c), 1, 2})
		yTiny = append(yTiny, c)
	}
	tiny, err := dataset.NewTableFromRows(testFeatures, rows)
	require.NoError(t, err)
	_, err = p.Run(tiny, yTiny)
	assert.True(t, perrors.Is(err, perrors.ErrInsufficientNeighbors), "got %v", err)
}

func TestEvaluate(t *testing.T) {
	X, y := makeAdmissions(t, 120)

	rf := ensemble.NewRandomForestClassifier(ensemble.WithNEstimators(5))
	_, err := Evaluate(rf, X, y)
	assert.True(t, perrors.Is(err, perrors.ErrUnfittedModel))

	require.NoError(t, Fit(rf, X, y, testFeatures))

	empty, err := dataset.NewTable(testFeatures, nil)
	require.NoError(t, err)
	_, err = Evaluate(rf, empty, nil)
	assert.True(t, perrors.Is(err, perrors.ErrEmptyTestSet))

	rep, err := Evaluate(rf, X, y)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, rep.Labels)
	assert.InDelta(t, 1.0, rep.Accuracy, 0.05)

	err = Fit(ensemble.NewRandomForestClassifier(), X, y, []string{"age"})
	assert.True(t, perrors.Is(err, perrors.ErrSchemaMismatch))
	err = Fit(ensemble.NewRandomForestClassifier(), empty, nil, nil)
	assert.True(t, perrors.Is(err, perrors.ErrEmptyTrainingSet))
}
