package model

import (
	"testing"

	"github.com/stretchr/testify/assert"

	perrors "github.com/YuminosukeSato/readmit/pkg/errors"
)

func TestStateManager(t *testing.T) {
	s := NewStateManager()

	err := s.RequireFitted("GBTClassifier", "Predict")
	assert.True(t, perrors.Is(err, perrors.ErrUnfittedModel))

	s.SetDimensions(42, 1000)
	s.SetFitted()
	assert.NoError(t, s.RequireFitted("GBTClassifier", "Predict"))
	assert.NoError(t, s.CheckFeatures("Predict", 42))

	err = s.CheckFeatures("Predict", 41)
	assert.True(t, perrors.Is(err, perrors.ErrSchemaMismatch))

	nf, ns := s.GetDimensions()
	assert.Equal(t, 42, nf)
	assert.Equal(t, 1000, ns)

	s.Reset()
	assert.False(t, s.IsFitted())
}
