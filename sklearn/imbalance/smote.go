// Package imbalance はクラス不均衡を補正するオーバーサンプリング手法を提供します。
package imbalance

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/readmit/core/parallel"
	"github.com/YuminosukeSato/readmit/dataset"
	perrors "github.com/YuminosukeSato/readmit/pkg/errors"
	"github.com/YuminosukeSato/readmit/pkg/log"
)

// SMOTE (Synthetic Minority Over-sampling Technique) は少数クラスのサンプルと
// その同クラス k 近傍の間を線形補間して合成サンプルを生成し、
// 全クラスを最多クラスと同じ件数に揃えます。
//
// 出力は元の行（元の順序のまま）に続いて、少数クラスごと（クラス昇順）の合成行です。
type SMOTE struct {
	kNeighbors  int
	randomState uint64
	strict      bool
	nJobs       int

	logger log.Logger
}

// Option は SMOTE の設定関数です。
type Option func(*SMOTE)

// WithKNeighbors は補間に使う近傍数を設定します（デフォルト 5）。
func WithKNeighbors(k int) Option {
	return func(s *SMOTE) { s.kNeighbors = k }
}

// WithRandomState は乱数シードを設定します（デフォルト 20）。
func WithRandomState(seed uint64) Option {
	return func(s *SMOTE) { s.randomState = seed }
}

// WithStrict が true の場合、既に均衡したデータに対して ErrNoMinorityClass を返します。
// false（デフォルト）では入力のコピーをそのまま返し、警告を出します。
func WithStrict(strict bool) Option {
	return func(s *SMOTE) { s.strict = strict }
}

// WithNJobs は近傍探索の並列数を設定します（0 以下は CPU 数）。
func WithNJobs(n int) Option {
	return func(s *SMOTE) { s.nJobs = n }
}

// NewSMOTE は新しい SMOTE を作成します。
func NewSMOTE(opts ...Option) *SMOTE {
	s := &SMOTE{
		kNeighbors:  5,
		randomState: 20,
		logger:      log.GetLoggerWithName("imbalance.smote"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetParams はハイパーパラメータを返します。
func (s *SMOTE) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"k_neighbors":  s.kNeighbors,
		"random_state": s.randomState,
		"strict":       s.strict,
	}
}

// FitResample は学習データを均衡化した新しいテーブルとラベルを返します。入力は変更しません。
//
// 戻り値のエラー:
//   - ErrEmptyTrainingSet: 入力が 0 行
//   - ErrSchemaMismatch: ラベル数が行数と一致しない
//   - ErrInsufficientNeighbors: 少数クラスの件数が k+1 未満
//   - ErrNoMinorityClass: 厳格モードで既に均衡している
func (s *SMOTE) FitResample(X *dataset.Table, y []int) (_ *dataset.Table, _ []int, err error) {
	defer perrors.Recover(&err, "SMOTE.FitResample")

	if s.kNeighbors < 1 {
		return nil, nil, perrors.NewValidationError("k_neighbors", "must be at least 1", s.kNeighbors)
	}
	if X.Rows() == 0 {
		return nil, nil, perrors.Wrap(perrors.ErrEmptyTrainingSet, "SMOTE.FitResample")
	}
	if len(y) != X.Rows() {
		return nil, nil, perrors.NewDimensionError("SMOTE.FitResample", X.Rows(), len(y), 0)
	}

	counts := dataset.ClassCounts(y)
	classes := dataset.Classes(y)
	target := 0
	for _, c := range classes {
		if counts[c] > target {
			target = counts[c]
		}
	}

	var minority []int
	for _, c := range classes {
		if counts[c] < target {
			minority = append(minority, c)
		}
	}
	if len(minority) == 0 {
		if s.strict {
			return nil, nil, perrors.Wrapf(perrors.ErrNoMinorityClass, "SMOTE.FitResample: all %d classes have %d samples", len(classes), target)
		}
		perrors.Warn(perrors.NewBalancedDataWarning("SMOTE", target))
		return X.Select(identity(X.Rows())), append([]int(nil), y...), nil
	}

	for _, c := range minority {
		if counts[c] < s.kNeighbors+1 {
			return nil, nil, perrors.NewInsufficientNeighborsError(c, counts[c], s.kNeighbors+1)
		}
	}

	// 乱数はクラス昇順に逐次消費するため、近傍探索の並列化は結果に影響しない
	r := rand.New(rand.NewPCG(s.randomState, s.randomState))
	raw := X.Matrix().RawMatrix()
	nFeatures := X.Cols()

	nSynthetic := target*len(minority) - sumCounts(counts, minority)
	data := make([]float64, 0, nSynthetic*nFeatures)
	labels := make([]int, X.Rows(), X.Rows()+nSynthetic)
	copy(labels, y)

	for _, c := range minority {
		members := membersOf(y, c)
		points := make([][]float64, len(members))
		for k, i := range members {
			points[k] = raw.Data[i*raw.Stride : i*raw.Stride+nFeatures]
		}
		nn := s.neighbors(points)

		need := target - counts[c]
		picks := make([]int, need)
		for k := range picks {
			picks[k] = r.IntN(len(members) * s.kNeighbors)
		}
		steps := make([]float64, need)
		for k := range steps {
			steps[k] = r.Float64()
		}

		synthetic := make([]float64, nFeatures)
		for k := 0; k < need; k++ {
			row := picks[k] / s.kNeighbors
			col := picks[k] % s.kNeighbors
			base := points[row]
			neighbor := points[nn[row][col]]
			// base + step*(neighbor - base)
			floats.SubTo(synthetic, neighbor, base)
			floats.Scale(steps[k], synthetic)
			floats.Add(synthetic, base)
			data = append(data, synthetic...)
			labels = append(labels, c)
		}

		s.logger.Debug("Synthesized minority samples",
			log.OperationKey, log.OperationResample,
			"class", c,
			log.SamplesKey, counts[c],
			log.SyntheticKey, need,
		)
	}

	// 元の行はそのままの順序で先頭に残す
	synthetic, err := dataset.NewTable(X.Features(), mat.NewDense(nSynthetic, nFeatures, data))
	if err != nil {
		return nil, nil, err
	}
	out, err := X.Append(synthetic)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("Resampling completed",
		log.OperationKey, log.OperationResample,
		log.SamplesKey, X.Rows(),
		log.SyntheticKey, len(labels)-X.Rows(),
		log.ClassesKey, len(classes),
		log.RandomSeedKey, s.randomState,
	)
	return out, labels, nil
}

// neighbors は各点について自分自身を除く k 近傍（ユークリッド距離、同距離は添字の小さい順）を返します。
func (s *SMOTE) neighbors(points [][]float64) [][]int {
	k := s.kNeighbors
	nn := make([][]int, len(points))
	parallel.ParallelizeWorkers(len(points), s.nJobs, func(start, end int) {
		dist := make([]float64, k)
		for i := start; i < end; i++ {
			row := make([]int, 0, k)
			dist = dist[:0]
			for j := range points {
				if j == i {
					continue
				}
				d := floats.Distance(points[i], points[j], 2)
				if len(row) == k && d >= dist[k-1] {
					continue
				}
				// 挿入位置（同距離なら後ろに置くので添字の小さい方が優先される）
				pos := len(row)
				for pos > 0 && dist[pos-1] > d {
					pos--
				}
				if len(row) < k {
					row = append(row, 0)
					dist = append(dist, 0)
				}
				copy(row[pos+1:], row[pos:len(row)-1])
				copy(dist[pos+1:], dist[pos:len(dist)-1])
				row[pos] = j
				dist[pos] = d
			}
			nn[i] = row
		}
	})
	return nn
}

func membersOf(y []int, class int) []int {
	var idx []int
	for i, l := range y {
		if l == class {
			idx = append(idx, i)
		}
	}
	return idx
}

func sumCounts(counts map[int]int, classes []int) int {
	total := 0
	for _, c := range classes {
		total += counts[c]
	}
	return total
}

func identity(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}
