// Package errors はパイプライン全体のエラー分類と警告の配送を提供します。
//
// 各ステージは下の番兵エラーのいずれかにマークされたエラーを返すため、
// 呼び出し側は Is(err, ErrInsufficientNeighbors) のように分類だけで分岐できます。
// 型付きエラー (NotFittedError など) は As で詳細を取り出せます。
package errors

import "github.com/cockroachdb/errors"

// 分類用の番兵エラー
var (
	// 分割
	ErrInvalidFraction = errors.New("invalid fraction")
	ErrEmptyInput      = errors.New("empty input")

	// オーバーサンプリング
	ErrInsufficientNeighbors = errors.New("insufficient neighbors")
	ErrNoMinorityClass       = errors.New("no minority class")

	// 学習・予測
	ErrSchemaMismatch   = errors.New("schema mismatch")
	ErrEmptyTrainingSet = errors.New("empty training set")
	ErrUnfittedModel    = errors.New("unfitted model")

	// 評価
	ErrEmptyTestSet            = errors.New("empty test set")
	ErrUnseenClassInPrediction = errors.New("unseen class in prediction")
	ErrImportanceUnavailable   = errors.New("feature importance unavailable")
)

// codes は番兵エラーとログ用コードの対応。先に一致したものが優先される
var codes = []struct {
	sentinel error
	code     string
}{
	{ErrInvalidFraction, "INVALID_FRACTION"},
	{ErrEmptyInput, "EMPTY_INPUT"},
	{ErrInsufficientNeighbors, "INSUFFICIENT_NEIGHBORS"},
	{ErrNoMinorityClass, "NO_MINORITY_CLASS"},
	{ErrSchemaMismatch, "SCHEMA_MISMATCH"},
	{ErrEmptyTrainingSet, "EMPTY_TRAINING_SET"},
	{ErrUnfittedModel, "UNFITTED_MODEL"},
	{ErrEmptyTestSet, "EMPTY_TEST_SET"},
	{ErrUnseenClassInPrediction, "UNSEEN_CLASS"},
	{ErrImportanceUnavailable, "IMPORTANCE_UNAVAILABLE"},
}

// Code returns a stable, upper-case code for err's taxonomy entry.
// Errors outside the taxonomy map to "INVALID_INPUT" when they carry a
// ValidationError or ValueError, "PANIC" for recovered panics and
// "INTERNAL" otherwise. A nil error has the empty code.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.sentinel) {
			return c.code
		}
	}
	var (
		ve *ValidationError
		va *ValueError
		pe *PanicError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &va):
		return "INVALID_INPUT"
	case errors.As(err, &pe):
		return "PANIC"
	}
	return "INTERNAL"
}
