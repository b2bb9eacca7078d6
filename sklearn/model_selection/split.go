// Package model_selection はデータ分割ユーティリティを提供します。
package model_selection

import (
	"math"
	"math/rand/v2"

	"github.com/YuminosukeSato/readmit/dataset"
	perrors "github.com/YuminosukeSato/readmit/pkg/errors"
	"github.com/YuminosukeSato/readmit/pkg/log"
)

// Split は学習用と評価用に分割されたデータです。
// TrainIndices / TestIndices は入力テーブルの行インデックスで、互いに素かつ和集合が全行になります。
type Split struct {
	XTrain *dataset.Table
	XTest  *dataset.Table
	YTrain []int
	YTest  []int

	TrainIndices []int
	TestIndices  []int
}

// TrainTestSplit は行をランダムに並べ替え、先頭 ceil(testSize*N) 行を評価用、残りを学習用にします。
// 層化は行いません。同じ seed と入力からは常に同じ分割が得られます。
//
// パラメータ:
//   - X: 特徴量テーブル
//   - y: ラベル（len(y) == X.Rows()）
//   - testSize: 評価用の割合 (0, 1)
//   - seed: 並べ替えの乱数シード
//
// 戻り値:
//   - *Split: 分割結果（入力とは領域を共有しないコピー）
//   - error: testSize が範囲外なら ErrInvalidFraction、0 行なら ErrEmptyInput
func TrainTestSplit(X *dataset.Table, y []int, testSize float64, seed uint64) (*Split, error) {
	if math.IsNaN(testSize) || testSize <= 0 || testSize >= 1 {
		return nil, perrors.NewFractionError("test_size", "must be in the open interval (0, 1)", testSize)
	}
	n := X.Rows()
	if n == 0 {
		return nil, perrors.Wrap(perrors.ErrEmptyInput, "train_test_split")
	}
	if len(y) != n {
		return nil, perrors.NewDimensionError("TrainTestSplit", n, len(y), 0)
	}

	nTest := int(math.Ceil(testSize * float64(n)))
	nTrain := n - nTest
	if nTest == 0 || nTrain == 0 {
		return nil, perrors.NewFractionError("test_size",
			"leaves an empty train or test partition for this number of rows", testSize)
	}

	r := rand.New(rand.NewPCG(seed, seed))
	perm := r.Perm(n)

	testIdx := append([]int(nil), perm[:nTest]...)
	trainIdx := append([]int(nil), perm[nTest:]...)

	s := &Split{
		XTrain:       X.Select(trainIdx),
		XTest:        X.Select(testIdx),
		YTrain:       pick(y, trainIdx),
		YTest:        pick(y, testIdx),
		TrainIndices: trainIdx,
		TestIndices:  testIdx,
	}

	log.GetLoggerWithName("model_selection").Debug("Split completed",
		log.OperationKey, log.OperationSplit,
		log.SamplesKey, n,
		log.TrainSamplesKey, nTrain,
		log.TestSamplesKey, nTest,
		log.TestFractionKey, testSize,
		log.RandomSeedKey, seed,
	)
	return s, nil
}

func pick(y []int, idx []int) []int {
	out := make([]int, len(idx))
	for k, i := range idx {
		out[k] = y[i]
	}
	return out
}
