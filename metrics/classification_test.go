package metrics

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/YuminosukeSato/readmit/pkg/errors"
)

var (
	scenarioTrue = []int{0, 0, 0, 1, 1, 2, 2, 2, 2, 2}
	scenarioPred = []int{0, 0, 1, 1, 1, 2, 2, 2, 2, 0}
)

func TestAccuracyScore(t *testing.T) {
	got, err := AccuracyScore(scenarioTrue, scenarioPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, got, 1e-12)

	// 全件が多数派クラスと予測されても、少数派を外した分だけ下がる
	allNo := make([]int, len(scenarioTrue))
	got, err = AccuracyScore(scenarioTrue, allNo)
	require.NoError(t, err)
	assert.InDelta(t, 0.3, got, 1e-12)

	_, err = AccuracyScore(nil, nil)
	assert.True(t, perrors.Is(err, perrors.ErrEmptyInput), "got %v", err)

	_, err = AccuracyScore([]int{0, 1}, []int{0})
	assert.True(t, perrors.Is(err, perrors.ErrSchemaMismatch), "got %v", err)
}

func TestConfusionMatrix(t *testing.T) {
	tests := []struct {
		name       string
		yTrue      []int
		yPred      []int
		opts       []Option
		wantCM     [][]int
		wantLabels []int
		wantErr    error
	}{
		{
			name:       "Three class scenario",
			yTrue:      scenarioTrue,
			yPred:      scenarioPred,
			wantCM:     [][]int{{2, 1, 0}, {0, 2, 0}, {1, 0, 4}},
			wantLabels: []int{0, 1, 2},
		},
		{
			name:       "Prediction outside true labels expands the matrix",
			yTrue:      []int{0, 0, 1},
			yPred:      []int{0, 2, 1},
			wantCM:     [][]int{{1, 0, 1}, {0, 1, 0}, {0, 0, 0}},
			wantLabels: []int{0, 1, 2},
		},
		{
			name:       "Explicit labels keep unseen rows",
			yTrue:      []int{1, 1},
			yPred:      []int{1, 1},
			opts:       []Option{WithLabels(2, 0, 1)},
			wantCM:     [][]int{{0, 0, 0}, {0, 2, 0}, {0, 0, 0}},
			wantLabels: []int{0, 1, 2},
		},
		{
			name:    "Explicit labels reject unseen prediction",
			yTrue:   []int{0, 1},
			yPred:   []int{0, 2},
			opts:    []Option{WithLabels(0, 1)},
			wantErr: perrors.ErrUnseenClassInPrediction,
		},
		{
			name:    "Empty input",
			wantErr: perrors.ErrEmptyInput,
		},
		{
			name:    "Length mismatch",
			yTrue:   []int{0, 1},
			yPred:   []int{0},
			wantErr: perrors.ErrSchemaMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cm, labels, err := ConfusionMatrix(tt.yTrue, tt.yPred, tt.opts...)
			if tt.wantErr != nil {
				assert.True(t, perrors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCM, cm)
			assert.Equal(t, tt.wantLabels, labels)
		})
	}
}

func TestPrecisionRecallFScoreSupport(t *testing.T) {
	scores, err := PrecisionRecallFScoreSupport(scenarioTrue, scenarioPred)
	require.NoError(t, err)
	require.Len(t, scores, 3)

	want := []ClassScores{
		{Label: 0, Precision: 2.0 / 3, Recall: 2.0 / 3, F1: 2.0 / 3, Support: 3},
		{Label: 1, Precision: 2.0 / 3, Recall: 1, F1: 0.8, Support: 2},
		{Label: 2, Precision: 1, Recall: 0.8, F1: 8.0 / 9, Support: 5},
	}
	for i, w := range want {
		assert.Equal(t, w.Label, scores[i].Label)
		assert.Equal(t, w.Support, scores[i].Support)
		assert.InDelta(t, w.Precision, scores[i].Precision, 1e-12)
		assert.InDelta(t, w.Recall, scores[i].Recall, 1e-12)
		assert.InDelta(t, w.F1, scores[i].F1, 1e-12)
	}

	weighted, err := F1Score(scenarioTrue, scenarioPred, AverageWeighted)
	require.NoError(t, err)
	assert.InDelta(t, (3*2.0/3+2*0.8+5*8.0/9)/10, weighted, 1e-12)

	macro, err := F1Score(scenarioTrue, scenarioPred, AverageMacro)
	require.NoError(t, err)
	assert.InDelta(t, (2.0/3+0.8+8.0/9)/3, macro, 1e-12)

	_, err = F1Score(scenarioTrue, scenarioPred, Average("micro"))
	var ve *perrors.ValidationError
	assert.True(t, perrors.As(err, &ve))
}

func TestUndefinedMetricsWarn(t *testing.T) {
	var warnings []error
	perrors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer perrors.SetWarningHandler(func(w error) {})

	// クラス 2 は予測されない、クラス 1 は正解に存在しない
	scores, err := PrecisionRecallFScoreSupport([]int{0, 2, 2}, []int{0, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, scores[2].Precision)
	assert.Equal(t, 0.0, scores[1].Recall)
	assert.Equal(t, 0.0, scores[1].F1)

	require.Len(t, warnings, 2)
	var w *perrors.UndefinedMetricWarning
	require.True(t, perrors.As(warnings[0], &w))
	assert.Equal(t, "Precision", w.Metric)
	assert.Contains(t, w.Error(), "labels [2]")
}

func TestPerfectPredictions(t *testing.T) {
	y := []int{0, 1, 2, 2, 1, 0, 2}
	rep, err := NewReport(y, y)
	require.NoError(t, err)

	assert.Equal(t, 1.0, rep.Accuracy)
	assert.Equal(t, 1.0, rep.WeightedF1)
	for i, row := range rep.ConfusionMatrix {
		for j, v := range row {
			if i != j {
				assert.Zero(t, v)
			}
		}
	}
}

func TestReport(t *testing.T) {
	rep, err := NewReport(scenarioTrue, scenarioPred)
	require.NoError(t, err)

	assert.InDelta(t, 0.8, rep.Accuracy, 1e-12)
	sum, diag := 0, 0
	for i, row := range rep.ConfusionMatrix {
		for j, v := range row {
			sum += v
			if i == j {
				diag += v
			}
		}
	}
	assert.Equal(t, len(scenarioTrue), sum)
	assert.InDelta(t, rep.Accuracy, float64(diag)/float64(sum), 1e-12)
	assert.InDelta(t, rep.Classification.WeightedAvg.F1, rep.WeightedF1, 1e-12)

	text := rep.Classification.String()
	lines := strings.Split(text, "\n")
	assert.Equal(t, "              precision    recall  f1-score   support", lines[0])
	assert.Equal(t, "", lines[1])
	assert.Equal(t, "           0       0.67      0.67      0.67         3", lines[2])
	assert.Equal(t, "           2       1.00      0.80      0.89         5", lines[4])
	assert.Contains(t, text, "    accuracy                           0.80        10\n")
	assert.Contains(t, text, "weighted avg       ")

	named, err := NewClassificationReport(scenarioTrue, scenarioPred,
		WithTargetNames(map[int]string{0: "NO", 1: "<30", 2: ">30"}), WithDigits(3))
	require.NoError(t, err)
	assert.Contains(t, named.String(), "          NO      0.667")

	assert.Contains(t, rep.String(), " [2 1 0]\n [0 2 0]\n [1 0 4]\n")
}
