// Package model defines the capability interfaces shared by the classifiers
// and the fitted-state bookkeeping they embed.
package model

import (
	"gonum.org/v1/gonum/mat"
)

// Classifier is the capability set every pipeline model variant provides.
type Classifier interface {
	Fitter
	Predictor

	// PredictProba returns an n×k matrix of class probabilities, columns ordered as Classes().
	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// Classes returns the sorted unique classes seen during fitting.
	Classes() []int

	// IsFitted reports whether Fit has completed successfully.
	IsFitted() bool
}

// ImportanceClassifier is a Classifier that can also rank its input features.
type ImportanceClassifier interface {
	Classifier
	FeatureImporter
}

// ParameterGetter is the interface for models that expose their parameters.
type ParameterGetter interface {
	// GetParams returns the model's hyperparameters.
	GetParams() map[string]interface{}
}

// ParameterSetter is the interface for models that allow parameter modification.
type ParameterSetter interface {
	// SetParams sets the model's hyperparameters.
	SetParams(params map[string]interface{}) error
}
