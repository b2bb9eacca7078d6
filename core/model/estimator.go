package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる。y は n×1 のクラスラベル
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対するクラスラベル (n×1) を返す
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// FeatureImporter は特徴量重要度を提供するモデルのインターフェース
type FeatureImporter interface {
	// FeatureImportances は学習時の列順に並んだ非負の重要度を返す
	FeatureImportances() ([]float64, error)
}
