package model

import (
	"sync"

	perrors "github.com/YuminosukeSato/readmit/pkg/errors"
)

// StateManager records whether an estimator has been fitted and the shape of
// the data it was fitted on. Estimators hold one by pointer and consult it at
// the start of Predict, PredictProba and the importance accessors.
type StateManager struct {
	mu        sync.RWMutex
	fitted    bool
	nFeatures int
	nSamples  int
}

func NewStateManager() *StateManager {
	return &StateManager{}
}

func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fitted
}

// SetFitted は学習完了を記録する。SetDimensions の後に呼ぶ
func (s *StateManager) SetFitted() {
	s.mu.Lock()
	s.fitted = true
	s.mu.Unlock()
}

// Reset は再学習の前に呼ばれ、以前の形状も忘れる
func (s *StateManager) Reset() {
	s.mu.Lock()
	s.fitted, s.nFeatures, s.nSamples = false, 0, 0
	s.mu.Unlock()
}

func (s *StateManager) SetDimensions(nFeatures, nSamples int) {
	s.mu.Lock()
	s.nFeatures, s.nSamples = nFeatures, nSamples
	s.mu.Unlock()
}

func (s *StateManager) GetDimensions() (nFeatures, nSamples int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nFeatures, s.nSamples
}

// RequireFitted returns a NotFittedError (marked ErrUnfittedModel) until
// SetFitted has been called.
func (s *StateManager) RequireFitted(modelName, method string) error {
	if s.IsFitted() {
		return nil
	}
	return perrors.NewNotFittedError(modelName, method)
}

// CheckFeatures は列数が学習時と違えば ErrSchemaMismatch の DimensionError を返す
func (s *StateManager) CheckFeatures(op string, got int) error {
	nf, _ := s.GetDimensions()
	if got == nf {
		return nil
	}
	return perrors.NewDimensionError(op, nf, got, 1)
}
