package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/readmit/inspection"
	"github.com/YuminosukeSato/readmit/metrics"
	"github.com/YuminosukeSato/readmit/pipeline"
)

func sampleRun(t *testing.T) *pipeline.RunReport {
	t.Helper()
	rep, err := metrics.NewReport([]int{0, 0, 1, 2}, []int{0, 1, 1, 2})
	require.NoError(t, err)
	return &pipeline.RunReport{
		TrainRows:     16,
		TestRows:      4,
		ResampledRows: 30,
		Models: []pipeline.ModelReport{{
			Kind:        pipeline.RandomForest,
			Report:      rep,
			Importances: []inspection.FeatureScore{{Name: "age", Score: 0.3}, {Name: "number_inpatient", Score: 0.7}},
			Duration:    250 * time.Millisecond,
		}},
	}
}

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSummarize(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := Summarize(sampleRun(t), pipeline.DefaultConfig(), "data.csv", at)

	assert.Equal(t, at, s.Timestamp)
	assert.Equal(t, 16, s.TrainRows)
	require.Len(t, s.Models, 1)
	m := s.Models[0]
	assert.Equal(t, "random-forest", m.Kind)
	assert.Equal(t, 0.75, m.Accuracy)
	assert.Equal(t, [][]int{{1, 1, 0}, {0, 1, 0}, {0, 0, 1}}, m.ConfusionMatrix)
	assert.Equal(t, int64(250), m.DurationMs)
	assert.Equal(t, "number_inpatient", m.TopFeatures[1].Name)
}

func TestStore_SaveAndList(t *testing.T) {
	s := openTemp(t)

	_, ok, err := s.Latest()
	require.NoError(t, err)
	assert.False(t, ok)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	// 保存順と時刻順を逆にしても時刻順で返る
	for _, d := range []time.Duration{2 * time.Hour, 0, time.Hour} {
		cfg := pipeline.DefaultConfig()
		cfg.SplitSeed = uint64(d / time.Hour)
		key, err := s.SaveRun(Summarize(sampleRun(t), cfg, "data.csv", base.Add(d)))
		require.NoError(t, err)
		assert.Contains(t, key, "run_")
	}

	runs, err := s.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 3)
	for i, r := range runs {
		assert.Equal(t, uint64(i), r.Config.SplitSeed)
		assert.True(t, r.Timestamp.Equal(base.Add(time.Duration(i)*time.Hour)))
		assert.Equal(t, 0.75, r.Models[0].Accuracy)
	}
	assert.Equal(t, "NO", runs[0].Config.ClassNames[0])
	assert.Equal(t, []pipeline.ModelKind{pipeline.BoostedTrees, pipeline.RandomForest}, runs[0].Config.Models)

	latest, ok, err := s.Latest()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(2), latest.Config.SplitSeed)
}

func TestStore_ZeroTimestamp(t *testing.T) {
	s := openTemp(t)
	before := time.Now()
	_, err := s.SaveRun(RunSummary{DataPath: "x.csv"})
	require.NoError(t, err)

	latest, ok, err := s.Latest()
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, latest.Timestamp.Before(before.Truncate(time.Second)))
	assert.Equal(t, "x.csv", latest.DataPath)
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.SaveRun(Summarize(sampleRun(t), pipeline.DefaultConfig(), "data.csv", time.Now()))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	runs, err := s.Runs()
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "history.db"))
	assert.Error(t, err)
}
