package log

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Record is one captured log call with its fields flattened into a map.
// Integers are stored as float64 and errors as their message so that
// assertions do not depend on the concrete type a component logged.
type Record struct {
	Level   Level
	Message string
	Fields  map[string]any
}

// recorder は With で派生した全ロガーが共有する記録先
type recorder struct {
	mu      sync.Mutex
	level   Level
	records []Record
}

// TestLogger keeps every record in memory. It is safe for concurrent use,
// so parallel training stages can log into it.
type TestLogger struct {
	rec    *recorder
	fields map[string]any
}

// NewTestLogger は level 以上を記録するロガーを返す
//
//	logs := log.NewTestLogger(log.LevelDebug)
//	p, _ := pipeline.New(cfg, pipeline.WithLogger(logs))
func NewTestLogger(level Level) *TestLogger {
	return &TestLogger{rec: &recorder{level: level}, fields: map[string]any{}}
}

func (t *TestLogger) Debug(msg string, fields ...any) { t.record(LevelDebug, msg, fields) }
func (t *TestLogger) Info(msg string, fields ...any)  { t.record(LevelInfo, msg, fields) }
func (t *TestLogger) Warn(msg string, fields ...any)  { t.record(LevelWarn, msg, fields) }
func (t *TestLogger) Error(msg string, fields ...any) { t.record(LevelError, msg, fields) }

func (t *TestLogger) With(fields ...any) Logger {
	merged := make(map[string]any, len(t.fields)+len(fields)/2)
	for k, v := range t.fields {
		merged[k] = v
	}
	collect(merged, fields)
	return &TestLogger{rec: t.rec, fields: merged}
}

func (t *TestLogger) Enabled(_ context.Context, level Level) bool {
	t.rec.mu.Lock()
	defer t.rec.mu.Unlock()
	return level >= t.rec.level
}

func (t *TestLogger) record(level Level, msg string, fields []any) {
	if !t.Enabled(context.Background(), level) {
		return
	}
	r := Record{Level: level, Message: msg, Fields: make(map[string]any, len(t.fields)+len(fields)/2)}
	for k, v := range t.fields {
		r.Fields[k] = v
	}
	collect(r.Fields, fields)

	t.rec.mu.Lock()
	t.rec.records = append(t.rec.records, r)
	t.rec.mu.Unlock()
}

// collect は key/value の並びを dst に入れる。先頭が error なら ErrAttrKey に置く
func collect(dst map[string]any, fields []any) {
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			dst[ErrAttrKey] = err.Error()
			fields = fields[1:]
		}
	}
	for i := 0; i+1 < len(fields); i += 2 {
		dst[fmt.Sprint(fields[i])] = normalize(fields[i+1])
	}
}

func normalize(v any) any {
	switch x := v.(type) {
	case error:
		return x.Error()
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case int32:
		return float64(x)
	case uint:
		return float64(x)
	case uint64:
		return float64(x)
	case float32:
		return float64(x)
	}
	return v
}

// Records returns a copy of everything captured so far.
func (t *TestLogger) Records() []Record {
	t.rec.mu.Lock()
	defer t.rec.mu.Unlock()
	return append([]Record(nil), t.rec.records...)
}

// ContainsMessage reports whether any record's message contains message.
func (t *TestLogger) ContainsMessage(message string) bool {
	for _, r := range t.Records() {
		if strings.Contains(r.Message, message) {
			return true
		}
	}
	return false
}

// ContainsField reports whether any record has key set to value.
// Integer values are compared as float64.
func (t *TestLogger) ContainsField(key string, value any) bool {
	want := normalize(value)
	for _, r := range t.Records() {
		if got, ok := r.Fields[key]; ok && reflect.DeepEqual(got, want) {
			return true
		}
	}
	return false
}

// Clear は記録を破棄する
func (t *TestLogger) Clear() {
	t.rec.mu.Lock()
	t.rec.records = nil
	t.rec.mu.Unlock()
}

// TestLoggerProvider hands out loggers that all record into one TestLogger.
type TestLoggerProvider struct {
	root *TestLogger
}

func (p *TestLoggerProvider) GetLogger() Logger { return p.root }

func (p *TestLoggerProvider) GetLoggerWithName(name string) Logger {
	return p.root.With(ComponentKey, name)
}

func (p *TestLoggerProvider) SetLevel(level Level) {
	p.root.rec.mu.Lock()
	p.root.rec.level = level
	p.root.rec.mu.Unlock()
}

// Capture installs a recording provider process-wide. The returned function
// restores the previous provider.
func Capture(level Level) (*TestLogger, func()) {
	root := NewTestLogger(level)
	prev := SetProvider(&TestLoggerProvider{root: root})
	return root, func() { SetProvider(prev) }
}
