package model_selection

import (
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/readmit/dataset"
	perrors "github.com/YuminosukeSato/readmit/pkg/errors"
)

func makeTable(t *testing.T, n int) (*dataset.Table, []int) {
	t.Helper()
	rows := make([][]float64, n)
	y := make([]int, n)
	for i := range rows {
		rows[i] = []float64{float64(i), float64(i * i)}
		y[i] = i % 3
	}
	table, err := dataset.NewTableFromRows([]string{"id", "sq"}, rows)
	require.NoError(t, err)
	return table, y
}

func TestTrainTestSplit_Partition(t *testing.T) {
	X, y := makeTable(t, 101)

	s, err := TrainTestSplit(X, y, 0.2, 0)
	require.NoError(t, err)

	// ceil(0.2 * 101) = 21
	assert.Len(t, s.TestIndices, 21)
	assert.Len(t, s.TrainIndices, 80)
	assert.Equal(t, 21, s.XTest.Rows())
	assert.Equal(t, 80, s.XTrain.Rows())

	all := append(append([]int(nil), s.TrainIndices...), s.TestIndices...)
	sort.Ints(all)
	for i, v := range all {
		require.Equal(t, i, v, "train and test must be disjoint and cover all rows")
	}

	// 行とラベルの対応が保たれる
	for k, i := range s.TestIndices {
		assert.Equal(t, float64(i), s.XTest.At(k, 0))
		assert.Equal(t, y[i], s.YTest[k])
	}
	for k, i := range s.TrainIndices {
		assert.Equal(t, float64(i*i), s.XTrain.At(k, 1))
		assert.Equal(t, y[i], s.YTrain[k])
	}
}

func TestTrainTestSplit_Deterministic(t *testing.T) {
	X, y := makeTable(t, 50)

	a, err := TrainTestSplit(X, y, 0.3, 7)
	require.NoError(t, err)
	b, err := TrainTestSplit(X, y, 0.3, 7)
	require.NoError(t, err)
	assert.Equal(t, a.TestIndices, b.TestIndices)
	assert.Equal(t, a.TrainIndices, b.TrainIndices)

	c, err := TrainTestSplit(X, y, 0.3, 8)
	require.NoError(t, err)
	assert.NotEqual(t, a.TestIndices, c.TestIndices)
}

func TestTrainTestSplit_Errors(t *testing.T) {
	X, y := makeTable(t, 10)
	empty, err := dataset.NewTable([]string{"id", "sq"}, nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		X      *dataset.Table
		y      []int
		p      float64
		target error
	}{
		{"zero fraction", X, y, 0, perrors.ErrInvalidFraction},
		{"one fraction", X, y, 1, perrors.ErrInvalidFraction},
		{"negative fraction", X, y, -0.1, perrors.ErrInvalidFraction},
		{"nan fraction", X, y, math.NaN(), perrors.ErrInvalidFraction},
		{"empty input", empty, nil, 0.2, perrors.ErrEmptyInput},
		{"label length", X, y[:9], 0.2, perrors.ErrSchemaMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := TrainTestSplit(tt.X, tt.y, tt.p, 0)
			assert.True(t, perrors.Is(err, tt.target), "got %v", err)
		})
	}

	single, ys := makeTable(t, 1)
	_, err = TrainTestSplit(single, ys, 0.2, 0)
	assert.True(t, perrors.Is(err, perrors.ErrInvalidFraction))
}

func TestTrainTestSplit_DoesNotMutateInput(t *testing.T) {
	X, y := makeTable(t, 20)
	yCopy := append([]int(nil), y...)

	s, err := TrainTestSplit(X, y, 0.25, 3)
	require.NoError(t, err)
	s.XTrain.Matrix().Set(0, 0, -1)
	s.YTrain[0] = 99

	assert.Equal(t, yCopy, y)
	for i := 0; i < X.Rows(); i++ {
		assert.Equal(t, float64(i), X.At(i, 0))
	}
}
