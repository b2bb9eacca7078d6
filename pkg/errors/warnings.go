package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/rs/zerolog"
)

// 警告の送り先。pkg/log が zerolog の送り先を登録すると、そちらが優先される
var (
	sinkMu      sync.RWMutex
	handlerSink = func(w error) { log.Printf("readmit: warning: %v", w) }
	zerologSink func(error)
)

// SetWarningHandler replaces the fallback warning handler used when no
// zerolog sink is registered. Tests use it to capture warnings.
func SetWarningHandler(handler func(w error)) {
	sinkMu.Lock()
	handlerSink = handler
	sinkMu.Unlock()
}

// SetZerologWarnFunc は pkg/log から呼ばれる。nil で登録を解除する
func SetZerologWarnFunc(warnFunc func(warning error)) {
	sinkMu.Lock()
	zerologSink = warnFunc
	sinkMu.Unlock()
}

// Warn delivers a non-fatal condition to the active sink. The sink runs
// without the lock held, so it may itself call Warn.
func Warn(w error) {
	sinkMu.RLock()
	sink := zerologSink
	if sink == nil {
		sink = handlerSink
	}
	sinkMu.RUnlock()
	if sink != nil {
		sink(w)
	}
}

// UndefinedMetricWarning は分母が 0 の指標を Result で代替したことを知らせる
type UndefinedMetricWarning struct {
	Metric    string
	Condition string
	Result    float64
}

func (w *UndefinedMetricWarning) Error() string {
	return fmt.Sprintf("'%s' is ill-defined and being set to %.1f due to %s.", w.Metric, w.Result, w.Condition)
}

func (w *UndefinedMetricWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("type", "UndefinedMetricWarning").
		Str("metric", w.Metric).
		Str("condition", w.Condition).
		Float64("result", w.Result)
}

func NewUndefinedMetricWarning(metric, condition string, result float64) *UndefinedMetricWarning {
	return &UndefinedMetricWarning{Metric: metric, Condition: condition, Result: result}
}

// BalancedDataWarning is emitted when every class already has Count rows and
// oversampling returns its input unchanged.
type BalancedDataWarning struct {
	Sampler string
	Count   int
}

func (w *BalancedDataWarning) Error() string {
	return fmt.Sprintf("%s: every class already has %d samples; returning the input unchanged", w.Sampler, w.Count)
}

func (w *BalancedDataWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("type", "BalancedDataWarning").Str("sampler", w.Sampler).Int("count", w.Count)
}

func NewBalancedDataWarning(sampler string, count int) *BalancedDataWarning {
	return &BalancedDataWarning{Sampler: sampler, Count: count}
}
