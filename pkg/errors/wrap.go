package errors

import "github.com/cockroachdb/errors"

// cockroachdb/errors の薄いラッパー。呼び出し側はこのパッケージだけを import すればよい

func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target interface{}) bool { return errors.As(err, target) }

func Wrap(err error, message string) error { return errors.Wrap(err, message) }

func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

func New(message string) error { return errors.New(message) }

func Newf(format string, args ...interface{}) error { return errors.Newf(format, args...) }

func WithStack(err error) error { return errors.WithStack(err) }

// Mark makes Is(err, reference) true without changing err's message.
func Mark(err error, reference error) error { return errors.Mark(err, reference) }
