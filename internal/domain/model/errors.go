package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a run-level failure.
type ErrorKind string

const (
	KindNotFound  ErrorKind = "not-found"
	KindBadConfig ErrorKind = "bad-config"
	KindNoTarget  ErrorKind = "no-target"
	KindUnknown   ErrorKind = "unknown"
)

// Sentinels for errors.Is matching against a RunError's kind.
var (
	ErrNotFound  = errors.New(string(KindNotFound))
	ErrBadConfig = errors.New(string(KindBadConfig))
	ErrNoTarget  = errors.New(string(KindNoTarget))
	ErrUnknown   = errors.New(string(KindUnknown))
)

// RunError is a classified, run-fatal failure.
type RunError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

// Fail builds a RunError with a formatted message.
func Fail(kind ErrorKind, format string, args ...any) *RunError {
	return &RunError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// FailWrap builds a RunError that wraps a cause.
func FailWrap(kind ErrorKind, err error, format string, args ...any) *RunError {
	return &RunError{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

func (e *RunError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *RunError) Unwrap() error { return e.Err }

// Is matches the kind sentinels.
func (e *RunError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrBadConfig:
		return e.Kind == KindBadConfig
	case ErrNoTarget:
		return e.Kind == KindNoTarget
	case ErrUnknown:
		return e.Kind == KindUnknown
	}
	return false
}

// KindOf returns the kind of the first RunError in err's chain, or
// KindUnknown if there is none.
func KindOf(err error) ErrorKind {
	var re *RunError
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindUnknown
}
