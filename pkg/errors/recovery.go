package errors

import (
	"fmt"
	"runtime/debug"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// PanicError carries a panic recovered inside Fit, FitResample or a parallel
// worker, together with the goroutine stack at the point of recovery.
type PanicError struct {
	Operation  string
	PanicValue interface{}
	StackTrace string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Operation, e.PanicValue)
}

// String はスタックトレース付きの表現
func (e *PanicError) String() string {
	return e.Error() + "\nStack trace:\n" + e.StackTrace
}

func (e *PanicError) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", "PanicError").
		Str("operation", e.Operation).
		Interface("value", e.PanicValue)
}

// Recover は defer で使う。panic を *err に変換する。
// すでに err が設定されていれば、それを残したまま PanicError を副次エラーとして付ける
//
//	func (f *RandomForestClassifier) Fit(X, y mat.Matrix) (err error) {
//	    defer errors.Recover(&err, "RandomForestClassifier.Fit")
//	    ...
//	}
func Recover(err *error, operation string) {
	r := recover()
	if r == nil {
		return
	}
	pe := &PanicError{Operation: operation, PanicValue: r, StackTrace: string(debug.Stack())}
	if *err == nil {
		*err = pe
		return
	}
	*err = errors.WithSecondaryError(errors.Wrapf(*err, "panic in %s: %v", operation, r), pe)
}

// SafeExecute runs fn and turns a panic into a *PanicError.
func SafeExecute(operation string, fn func() error) (err error) {
	defer Recover(&err, operation)
	return fn()
}
