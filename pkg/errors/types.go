package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// marked はスタックトレースを付け、分類が指定されていればマークする
func marked(err error, class error) error {
	err = errors.WithStack(err)
	if class != nil {
		err = errors.Mark(err, class)
	}
	return err
}

// NotFittedError is returned when Predict, PredictProba or an importance
// accessor runs on a model that has not been fitted. It is marked as
// ErrUnfittedModel.
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("readmit: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

func (e *NotFittedError) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", "NotFittedError").Str("model_name", e.ModelName).Str("method", e.Method)
}

func NewNotFittedError(modelName, method string) error {
	return marked(&NotFittedError{ModelName: modelName, Method: method}, ErrUnfittedModel)
}

// DimensionError は行数または列数の不一致。ErrSchemaMismatch にマークされる
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0: 行, 1: 特徴量
}

func (e *DimensionError) axis() string {
	if e.Axis == 0 {
		return "rows"
	}
	return "features"
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("readmit: %s: dimension mismatch on axis %d (%s). Expected %d, got %d",
		e.Op, e.Axis, e.axis(), e.Expected, e.Got)
}

func (e *DimensionError) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", "DimensionError").
		Str("operation", e.Op).
		Str("axis", e.axis()).
		Int("expected", e.Expected).
		Int("got", e.Got)
}

func NewDimensionError(op string, expected, got, axis int) error {
	return marked(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}, ErrSchemaMismatch)
}

// ValidationError reports a rejected configuration value or hyperparameter.
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("readmit: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

func (e *ValidationError) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", "ValidationError").
		Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value)
}

func NewValidationError(param, reason string, value interface{}) error {
	return marked(&ValidationError{ParamName: param, Reason: reason, Value: value}, nil)
}

// NewFractionError は分割比率の ValidationError を ErrInvalidFraction にマークして返す
func NewFractionError(param, reason string, value float64) error {
	return marked(&ValidationError{ParamName: param, Reason: reason, Value: value}, ErrInvalidFraction)
}

// ValueError はデータそのものが不正な場合 (数値でないセル、NaN など)
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return "readmit: " + e.Op + ": " + e.Message
}

func NewValueError(op, message string) error {
	return marked(&ValueError{Op: op, Message: message}, nil)
}

// InsufficientNeighborsError names the minority class that is too small for
// the configured neighbourhood. It is marked as ErrInsufficientNeighbors.
type InsufficientNeighborsError struct {
	Class    int
	Count    int
	Required int
}

func (e *InsufficientNeighborsError) Error() string {
	return fmt.Sprintf("readmit: class %d has %d samples but at least %d are required (k_neighbors + 1)",
		e.Class, e.Count, e.Required)
}

func (e *InsufficientNeighborsError) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", "InsufficientNeighborsError").
		Int("class", e.Class).
		Int("count", e.Count).
		Int("required", e.Required)
}

func NewInsufficientNeighborsError(class, count, required int) error {
	return marked(&InsufficientNeighborsError{Class: class, Count: count, Required: required}, ErrInsufficientNeighbors)
}

// ModelError wraps a failure inside an estimator operation.
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	msg := "readmit: " + e.Op + ": " + e.Kind
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ModelError) Unwrap() error { return e.Err }

func NewModelError(op, kind string, err error) error {
	return marked(&ModelError{Op: op, Kind: kind, Err: err}, nil)
}
