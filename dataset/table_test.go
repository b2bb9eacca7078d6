package dataset

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	perrors "github.com/YuminosukeSato/readmit/pkg/errors"
)

func TestNewTable(t *testing.T) {
	x := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	table, err := NewTable([]string{"a", "b", "c"}, x)
	require.NoError(t, err)

	// 入力行列を変更してもテーブルは影響を受けない
	x.Set(0, 0, 100)
	assert.Equal(t, 1.0, table.At(0, 0))
	assert.Equal(t, 2, table.Rows())
	assert.Equal(t, 3, table.Cols())

	_, err = NewTable([]string{"a", "b"}, x)
	assert.True(t, perrors.Is(err, perrors.ErrSchemaMismatch))

	_, err = NewTable([]string{"a", "a", "c"}, x)
	assert.True(t, perrors.Is(err, perrors.ErrSchemaMismatch))

	empty, err := NewTable([]string{"a"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Rows())
	assert.Nil(t, empty.Matrix())
}

func TestTableSelect(t *testing.T) {
	table, err := NewTableFromRows([]string{"f0", "f1"}, [][]float64{{0, 0}, {1, 10}, {2, 20}, {3, 30}})
	require.NoError(t, err)

	sub := table.Select([]int{3, 1})
	assert.Equal(t, 2, sub.Rows())
	assert.Equal(t, []float64{3, 30}, sub.Row(0))
	assert.Equal(t, []float64{1, 10}, sub.Row(1))
	assert.True(t, sub.SameSchema(table))

	// 元テーブルと領域を共有しない
	sub.Matrix().Set(0, 0, -1)
	assert.Equal(t, 3.0, table.At(3, 0))

	assert.Equal(t, 0, table.Select(nil).Rows())
}

func TestTableAppend(t *testing.T) {
	head, err := NewTableFromRows([]string{"age", "number_inpatient"}, [][]float64{{5, 0}, {7, 2}})
	require.NoError(t, err)
	tail, err := NewTableFromRows([]string{"age", "number_inpatient"}, [][]float64{{6, 1}})
	require.NoError(t, err)

	both, err := head.Append(tail)
	require.NoError(t, err)
	assert.Equal(t, 3, both.Rows())
	assert.Equal(t, []float64{7, 2}, both.Row(1))
	assert.Equal(t, []float64{6, 1}, both.Row(2))
	assert.Equal(t, 2, head.Rows(), "receiver must not change")

	empty := head.Select(nil)
	same, err := empty.Append(tail)
	require.NoError(t, err)
	assert.Equal(t, []float64{6, 1}, same.Row(0))

	none, err := empty.Append(empty)
	require.NoError(t, err)
	assert.Equal(t, 0, none.Rows())

	other, err := NewTableFromRows([]string{"number_inpatient", "age"}, [][]float64{{1, 6}})
	require.NoError(t, err)
	_, err = head.Append(other)
	assert.True(t, perrors.Is(err, perrors.ErrSchemaMismatch))
}

func TestCheckSchema(t *testing.T) {
	table, err := NewTableFromRows([]string{"age", "race"}, [][]float64{{1, 2}})
	require.NoError(t, err)

	assert.NoError(t, table.CheckSchema([]string{"age", "race"}))

	tests := [][]string{
		{"race", "age"},
		{"age"},
		{"age", "race", "gender"},
	}
	for _, expected := range tests {
		err := table.CheckSchema(expected)
		assert.True(t, perrors.Is(err, perrors.ErrSchemaMismatch), "%v", expected)
	}
}

func TestValidate(t *testing.T) {
	table, err := NewTableFromRows([]string{"a"}, [][]float64{{1}, {2}})
	require.NoError(t, err)

	assert.NoError(t, Validate(table, []int{0, 1}))
	assert.True(t, perrors.Is(Validate(table, []int{0}), perrors.ErrSchemaMismatch))

	nan, err := NewTableFromRows([]string{"a"}, [][]float64{{math.Inf(1)}})
	require.NoError(t, err)
	var ve *perrors.ValueError
	assert.True(t, perrors.As(Validate(nan, []int{0}), &ve))
}

func TestClassHelpers(t *testing.T) {
	labels := []int{2, 0, 2, 1, 2}
	assert.Equal(t, map[int]int{0: 1, 1: 1, 2: 3}, ClassCounts(labels))
	assert.Equal(t, []int{0, 1, 2}, Classes(labels))

	vec := LabelVec(labels)
	assert.Equal(t, labels, LabelsFromMatrix(vec))
}

func TestReadCSV(t *testing.T) {
	input := strings.Join([]string{
		"encounter_id,age,race,readmitted",
		"10,3,1,0",
		"11,5,2,2.0",
		"12,7.5,1,1",
	}, "\n")

	table, labels, err := ReadCSV(strings.NewReader(input), []string{"race", "age"}, LabelColumn)
	require.NoError(t, err)
	assert.Equal(t, []string{"race", "age"}, table.Features())
	assert.Equal(t, []int{0, 2, 1}, labels)
	assert.Equal(t, []float64{1, 7.5}, table.Row(2))
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		target error
	}{
		{"missing feature", "age,readmitted\n1,0", perrors.ErrSchemaMismatch},
		{"missing label", "age,race\n1,0", perrors.ErrSchemaMismatch},
		{"empty", "", perrors.ErrEmptyInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ReadCSV(strings.NewReader(tt.input), []string{"age", "race"}, LabelColumn)
			assert.True(t, perrors.Is(err, tt.target), "got %v", err)
		})
	}

	_, _, err := ReadCSV(strings.NewReader("age,readmitted\nold,0"), []string{"age"}, LabelColumn)
	var ve *perrors.ValueError
	require.True(t, perrors.As(err, &ve))
	assert.Contains(t, ve.Message, `"old" is not numeric`)

	_, _, err = ReadCSV(strings.NewReader("age,readmitted\n1,0.5"), []string{"age"}, LabelColumn)
	assert.True(t, perrors.As(err, &ve))
}

func TestReadmissionFeatures(t *testing.T) {
	assert.Len(t, ReadmissionFeatures, 42)
	_, err := NewTable(ReadmissionFeatures, nil)
	assert.NoError(t, err)
}
