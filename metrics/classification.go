// Package metrics は分類モデルの評価指標を提供します。
//
// ラベルは整数のクラス値で、混同行列や適合率/再現率は
// 正解ラベルと予測ラベルの和集合（昇順）を行・列の順序とします。
package metrics

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	perrors "github.com/YuminosukeSato/readmit/pkg/errors"
)

// Average は多クラス指標の集約方法です。
type Average string

const (
	// AverageMacro はクラスごとの値の単純平均
	AverageMacro Average = "macro"
	// AverageWeighted はサポート（正解件数）で重み付けした平均
	AverageWeighted Average = "weighted"
)

type options struct {
	labels      []int
	targetNames map[int]string
	digits      int
}

// Option は評価関数の設定です。
type Option func(*options)

// WithLabels は行・列に使うラベル集合を明示します。
// 予測にこの集合外のクラスが含まれる場合 ErrUnseenClassInPrediction を返します。
func WithLabels(labels ...int) Option {
	return func(o *options) { o.labels = append([]int(nil), labels...) }
}

// WithTargetNames はレポートの行ラベルにクラス名を使います。
func WithTargetNames(names map[int]string) Option {
	return func(o *options) { o.targetNames = names }
}

// WithDigits はレポートの小数点以下の桁数を設定します（デフォルト 2）。
func WithDigits(d int) Option {
	return func(o *options) { o.digits = d }
}

func newOptions(opts []Option) *options {
	o := &options{digits: 2}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func checkLengths(op string, yTrue, yPred []int) error {
	if len(yTrue) == 0 {
		return perrors.Wrap(perrors.ErrEmptyInput, op)
	}
	if len(yTrue) != len(yPred) {
		return perrors.NewDimensionError(op, len(yTrue), len(yPred), 0)
	}
	return nil
}

// resolveLabels は評価に使うラベル順序を決める。
func resolveLabels(op string, yTrue, yPred []int, o *options) ([]int, error) {
	if o.labels != nil {
		labels := append([]int(nil), o.labels...)
		sort.Ints(labels)
		known := make(map[int]bool, len(labels))
		for _, l := range labels {
			known[l] = true
		}
		for _, p := range yPred {
			if !known[p] {
				return nil, perrors.Wrapf(perrors.ErrUnseenClassInPrediction, "%s: predicted class %d is not in labels %v", op, p, labels)
			}
		}
		for _, t := range yTrue {
			if !known[t] {
				return nil, perrors.NewValueError(op, fmt.Sprintf("true class %d is not in labels %v", t, labels))
			}
		}
		return labels, nil
	}

	seen := make(map[int]bool)
	var labels []int
	for _, ys := range [][]int{yTrue, yPred} {
		for _, l := range ys {
			if !seen[l] {
				seen[l] = true
				labels = append(labels, l)
			}
		}
	}
	sort.Ints(labels)
	return labels, nil
}

// AccuracyScore は正解率（一致した件数 / 全件数）を計算する
func AccuracyScore(yTrue, yPred []int) (float64, error) {
	if err := checkLengths("AccuracyScore", yTrue, yPred); err != nil {
		return 0, err
	}
	correct := 0
	for i, t := range yTrue {
		if t == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue)), nil
}

// ConfusionMatrix は混同行列を計算する。行が正解、列が予測で、順序は返り値の labels。
func ConfusionMatrix(yTrue, yPred []int, opts ...Option) (cm [][]int, labels []int, err error) {
	if err := checkLengths("ConfusionMatrix", yTrue, yPred); err != nil {
		return nil, nil, err
	}
	labels, err = resolveLabels("ConfusionMatrix", yTrue, yPred, newOptions(opts))
	if err != nil {
		return nil, nil, err
	}
	index := make(map[int]int, len(labels))
	for i, l := range labels {
		index[l] = i
	}
	cm = make([][]int, len(labels))
	for i := range cm {
		cm[i] = make([]int, len(labels))
	}
	for i, t := range yTrue {
		cm[index[t]][index[yPred[i]]]++
	}
	return cm, labels, nil
}

// ClassScores はクラスごと（または平均）の適合率・再現率・F1 とサポートです。
type ClassScores struct {
	Label     int
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// PrecisionRecallFScoreSupport はラベルごとの適合率・再現率・F1・サポートを計算する。
// 分母が 0 になる指標は 0 とし、UndefinedMetricWarning を発行する。
func PrecisionRecallFScoreSupport(yTrue, yPred []int, opts ...Option) ([]ClassScores, error) {
	cm, labels, err := ConfusionMatrix(yTrue, yPred, opts...)
	if err != nil {
		return nil, err
	}
	return scoresFromMatrix(cm, labels), nil
}

func scoresFromMatrix(cm [][]int, labels []int) []ClassScores {
	n := len(labels)
	scores := make([]ClassScores, n)
	var noPred, noTrue []int
	for k := 0; k < n; k++ {
		tp := cm[k][k]
		predicted, support := 0, 0
		for i := 0; i < n; i++ {
			predicted += cm[i][k]
			support += cm[k][i]
		}
		s := ClassScores{Label: labels[k], Support: support}
		if predicted == 0 {
			noPred = append(noPred, labels[k])
		} else {
			s.Precision = float64(tp) / float64(predicted)
		}
		if support == 0 {
			noTrue = append(noTrue, labels[k])
		} else {
			s.Recall = float64(tp) / float64(support)
		}
		if s.Precision+s.Recall > 0 {
			s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
		}
		scores[k] = s
	}
	if len(noPred) > 0 {
		perrors.Warn(perrors.NewUndefinedMetricWarning("Precision",
			fmt.Sprintf("no predicted samples in labels %v", noPred), 0))
	}
	if len(noTrue) > 0 {
		perrors.Warn(perrors.NewUndefinedMetricWarning("Recall",
			fmt.Sprintf("no true samples in labels %v", noTrue), 0))
	}
	return scores
}

// average は per-class スコアを集約する。Support は合計。
func average(scores []ClassScores, avg Average) ClassScores {
	n := len(scores)
	p, r, f, w := make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n)
	total := 0
	for i, s := range scores {
		p[i], r[i], f[i] = s.Precision, s.Recall, s.F1
		w[i] = float64(s.Support)
		total += s.Support
	}
	out := ClassScores{Label: -1, Support: total}
	var weights []float64
	if avg == AverageWeighted {
		if total == 0 {
			return out
		}
		weights = w
	}
	out.Precision = stat.Mean(p, weights)
	out.Recall = stat.Mean(r, weights)
	out.F1 = stat.Mean(f, weights)
	return out
}

// F1Score は集約された F1 を計算する
func F1Score(yTrue, yPred []int, avg Average, opts ...Option) (float64, error) {
	switch avg {
	case AverageMacro, AverageWeighted:
	default:
		return 0, perrors.NewValidationError("average", "must be 'macro' or 'weighted'", string(avg))
	}
	scores, err := PrecisionRecallFScoreSupport(yTrue, yPred, opts...)
	if err != nil {
		return 0, err
	}
	return average(scores, avg).F1, nil
}

// ClassificationReport は sklearn の classification_report 相当の集計です。
type ClassificationReport struct {
	Classes     []ClassScores
	Accuracy    float64
	MacroAvg    ClassScores
	WeightedAvg ClassScores

	targetNames map[int]string
	digits      int
}

// NewClassificationReport はラベルごとの行と accuracy / macro avg / weighted avg を計算する
func NewClassificationReport(yTrue, yPred []int, opts ...Option) (*ClassificationReport, error) {
	cm, labels, err := ConfusionMatrix(yTrue, yPred, opts...)
	if err != nil {
		return nil, err
	}
	return newClassificationReport(cm, labels, newOptions(opts)), nil
}

func newClassificationReport(cm [][]int, labels []int, o *options) *ClassificationReport {
	scores := scoresFromMatrix(cm, labels)
	correct, total := 0, 0
	for i := range cm {
		correct += cm[i][i]
		for _, v := range cm[i] {
			total += v
		}
	}
	return &ClassificationReport{
		Classes:     scores,
		Accuracy:    float64(correct) / float64(total),
		MacroAvg:    average(scores, AverageMacro),
		WeightedAvg: average(scores, AverageWeighted),
		targetNames: o.targetNames,
		digits:      o.digits,
	}
}

// LabelName はラベルの表示名を返す。名前がなければ数値のまま
func (r *ClassificationReport) LabelName(label int) string {
	if n, ok := r.targetNames[label]; ok {
		return n
	}
	return fmt.Sprint(label)
}

// String は sklearn と同じレイアウトの表を返す
func (r *ClassificationReport) String() string {
	width := len("weighted avg")
	for _, s := range r.Classes {
		if l := len(r.LabelName(s.Label)); l > width {
			width = l
		}
	}
	d := r.digits

	var b strings.Builder
	fmt.Fprintf(&b, "%*s ", width, "")
	for _, h := range []string{"precision", "recall", "f1-score", "support"} {
		fmt.Fprintf(&b, " %9s", h)
	}
	b.WriteString("\n\n")

	row := func(name string, s ClassScores) {
		fmt.Fprintf(&b, "%*s  %9.*f %9.*f %9.*f %9d\n", width, name, d, s.Precision, d, s.Recall, d, s.F1, s.Support)
	}
	for _, s := range r.Classes {
		row(r.LabelName(s.Label), s)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%*s  %9s %9s %9.*f %9d\n", width, "accuracy", "", "", d, r.Accuracy, r.WeightedAvg.Support)
	row("macro avg", r.MacroAvg)
	row("weighted avg", r.WeightedAvg)
	return b.String()
}

// Report はテスト分割上の評価結果一式です。予測は一度だけ行い全指標で共有します。
type Report struct {
	Accuracy        float64
	WeightedF1      float64
	Labels          []int
	ConfusionMatrix [][]int
	Classification  *ClassificationReport
}

// NewReport は正解と予測から Report を作る
func NewReport(yTrue, yPred []int, opts ...Option) (*Report, error) {
	cm, labels, err := ConfusionMatrix(yTrue, yPred, opts...)
	if err != nil {
		return nil, err
	}
	cr := newClassificationReport(cm, labels, newOptions(opts))
	return &Report{
		Accuracy:        cr.Accuracy,
		WeightedF1:      cr.WeightedAvg.F1,
		Labels:          labels,
		ConfusionMatrix: cm,
		Classification:  cr,
	}, nil
}

// String は混同行列と分類レポートを表示用に整形する
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "accuracy: %.4f\n", r.Accuracy)
	fmt.Fprintf(&b, "weighted f1: %.4f\n", r.WeightedF1)
	b.WriteString("confusion matrix (rows: true, columns: predicted):\n")
	for _, row := range r.ConfusionMatrix {
		b.WriteString(" [")
		for j, v := range row {
			if j > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(&b, "%d", v)
		}
		b.WriteString("]\n")
	}
	b.WriteString(r.Classification.String())
	return b.String()
}
