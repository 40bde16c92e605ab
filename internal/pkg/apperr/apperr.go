// Package apperr defines the error kinds shared by the sync engine and the
// HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error so callers can decide between retrying,
// treating the operation as already satisfied, or giving up.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnauthenticated
	KindNotFound
	KindRemoteWriteFailed
	KindRemoteReadFailed
	KindAnalysisFailed
	KindPartialFailure
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindNotFound:
		return "not_found"
	case KindRemoteWriteFailed:
		return "remote_write_failed"
	case KindRemoteReadFailed:
		return "remote_read_failed"
	case KindAnalysisFailed:
		return "analysis_failed"
	case KindPartialFailure:
		return "partial_failure"
	case KindInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is checks. Any *Error of the same kind matches.
var (
	ErrUnauthenticated   = &Error{Kind: KindUnauthenticated, Msg: "not authenticated"}
	ErrNotFound          = &Error{Kind: KindNotFound, Msg: "not found"}
	ErrRemoteWriteFailed = &Error{Kind: KindRemoteWriteFailed, Msg: "remote write failed"}
	ErrRemoteReadFailed  = &Error{Kind: KindRemoteReadFailed, Msg: "remote read failed"}
	ErrAnalysisFailed    = &Error{Kind: KindAnalysisFailed, Msg: "analysis failed"}
	ErrPartialFailure    = &Error{Kind: KindPartialFailure, Msg: "partial failure"}
	ErrInvalid           = &Error{Kind: KindInvalid, Msg: "invalid request"}
)

// Error is a classified error. Op names the failing operation.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, msg, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", msg, e.Err)
	default:
		return msg
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New builds a classified error without a cause.
func New(kind Kind, op, msg string) error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap classifies err. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Wrapf classifies err with a message.
func Wrapf(kind Kind, op string, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Unauthenticated reports a missing identity for op.
func Unauthenticated(op string) error {
	return &Error{Kind: KindUnauthenticated, Op: op, Msg: "not authenticated"}
}

// Invalid reports a rejected input for op.
func Invalid(op, msg string) error {
	return &Error{Kind: KindInvalid, Op: op, Msg: msg}
}

// NotFound reports a missing remote target for op.
func NotFound(op, msg string) error {
	return &Error{Kind: KindNotFound, Op: op, Msg: msg}
}
