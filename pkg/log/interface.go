// Package log は readmit の構造化ログです。
//
// Logger は log/slog と同じ key/value 形式を受け取り、既定の実装は zerolog
// で JSON 行 (または Console 指定時は人間向けの行) を書き出します。
// 各パッケージは名前付きロガーを一度だけ取得し、attributes.go のキーで
// フィールドを付けます。
//
//	logger := log.GetLoggerWithName("imbalance").With(log.ModelNameKey, "SMOTE")
//	logger.Info("Resampled",
//	    log.PhaseKey, log.PhaseResampling,
//	    log.SyntheticKey, 412,
//	)
package log

import (
	"context"
	"strings"

	perrors "github.com/YuminosukeSato/readmit/pkg/errors"
)

// Logger is the logging surface every pipeline stage depends on.
// When the first field passed to Error is an error it becomes the record's
// error, with the cockroachdb stack attached when present.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)
	With(fields ...any) Logger
	// Enabled lets callers skip building fields that would be dropped.
	Enabled(ctx context.Context, level Level) bool
}

// LoggerProvider builds loggers. SetProvider swaps the process-wide one.
type LoggerProvider interface {
	GetLogger() Logger
	GetLoggerWithName(name string) Logger
	SetLevel(level Level)
}

// Level uses the slog numbering.
type Level int

const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

func (l Level) String() string {
	if s, ok := levelNames[l]; ok {
		return s
	}
	return "UNKNOWN"
}

// ParseLevel は設定ファイルの文字列を Level に変換する。空文字は info
func ParseLevel(level string) (Level, error) {
	switch s := strings.ToLower(strings.TrimSpace(level)); s {
	case "", "info":
		return LevelInfo, nil
	case "warning":
		return LevelWarn, nil
	default:
		for l, name := range levelNames {
			if strings.ToLower(name) == s {
				return l, nil
			}
		}
	}
	return LevelInfo, perrors.NewValidationError("log.level", "must be one of debug, info, warn, error", level)
}
