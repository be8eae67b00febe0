package gateway

import (
	"errors"
	"fmt"

	"strata/internal/store"
	"strata/internal/vpath"
)

// Kind classifies gateway failures for callers that map them to transport
// status codes.
type Kind string

const (
	KindInvalidPath        Kind = "INVALID_PATH"
	KindNotFound           Kind = "NOT_FOUND"
	KindValidation         Kind = "VALIDATION"
	KindPreconditionFailed Kind = "PRECONDITION_FAILED"
	KindUpstreamFailure    Kind = "UPSTREAM_FAILURE"
)

// Error is a classified gateway failure.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf reports the classification of err, deriving one from known leaf
// sentinels when err is not already a gateway error.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	switch {
	case errors.Is(err, vpath.ErrInvalidPath):
		return KindInvalidPath
	case errors.Is(err, store.ErrNotExist):
		return KindNotFound
	default:
		return KindUpstreamFailure
	}
}

// classify wraps a store or resolver error, preserving an existing gateway
// classification if one is present.
func classify(err error, format string, args ...any) *Error {
	var ge *Error
	if errors.As(err, &ge) {
		return ge
	}
	return wrap(KindOf(err), err, format, args...)
}
