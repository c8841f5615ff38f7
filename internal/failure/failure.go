package failure

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind names a distinguishable failure mode.
type Kind string

const (
	KindConnection     Kind = "connection"
	KindAuthentication Kind = "authentication"
	KindDirectory      Kind = "directory"
	KindPermission     Kind = "permission"
	KindNaming         Kind = "naming"
	KindSource         Kind = "source"
	KindTransfer       Kind = "transfer"
	KindConfiguration  Kind = "configuration"
	KindCanceled       Kind = "canceled"
	KindUnknown        Kind = "unknown"
)

// Class decides what the retry loop does with a failure.
type Class string

const (
	// ClassTransient failures are retried after a reconnect.
	ClassTransient Class = "transient"
	// ClassPermanent failures end the task immediately.
	ClassPermanent Class = "permanent"
	// ClassFatal failures end the whole run.
	ClassFatal Class = "fatal"
)

var (
	ErrConnection     = errors.New("connection error")
	ErrAuthentication = errors.New("authentication error")
	ErrDirectory      = errors.New("directory error")
	ErrPermission     = errors.New("permission error")
	ErrNaming         = errors.New("naming error")
	ErrSource         = errors.New("source error")
	ErrTransfer       = errors.New("transfer error")
	ErrConfiguration  = errors.New("configuration error")
	ErrCanceled       = errors.New("canceled")
)

var classTable = map[Kind]Class{
	KindConnection:     ClassTransient,
	KindAuthentication: ClassPermanent,
	KindDirectory:      ClassPermanent,
	KindPermission:     ClassPermanent,
	KindNaming:         ClassPermanent,
	KindSource:         ClassPermanent,
	KindTransfer:       ClassTransient,
	KindConfiguration:  ClassFatal,
	KindCanceled:       ClassFatal,
	KindUnknown:        ClassTransient,
}

var kindMarkers = map[Kind]error{
	KindConnection:     ErrConnection,
	KindAuthentication: ErrAuthentication,
	KindDirectory:      ErrDirectory,
	KindPermission:     ErrPermission,
	KindNaming:         ErrNaming,
	KindSource:         ErrSource,
	KindTransfer:       ErrTransfer,
	KindConfiguration:  ErrConfiguration,
	KindCanceled:       ErrCanceled,
}

// Kinds lists every tagged kind in a stable order.
func Kinds() []Kind {
	return []Kind{
		KindConnection,
		KindAuthentication,
		KindDirectory,
		KindPermission,
		KindNaming,
		KindSource,
		KindTransfer,
		KindConfiguration,
		KindCanceled,
		KindUnknown,
	}
}

// Class returns the class assigned to k. Unlisted kinds are transient.
func (k Kind) Class() Class {
	if class, ok := classTable[k]; ok {
		return class
	}
	return ClassTransient
}

// Error is a classified failure. Bytes holds the number of bytes already
// accepted by the transport when the failure happened, if any.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Bytes   int64
	Err     error
}

func (e *Error) Error() string {
	parts := make([]string, 0, 3)
	if op := strings.TrimSpace(e.Op); op != "" {
		parts = append(parts, op)
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	if len(parts) == 0 {
		return string(e.Kind) + " failure"
	}
	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel marker for the error's kind.
func (e *Error) Is(target error) bool {
	marker, ok := kindMarkers[e.Kind]
	return ok && marker == target
}

// ErrorKind exposes the kind as a plain string for status mapping.
func (e *Error) ErrorKind() string { return string(e.Kind) }

// New creates a classified error without a cause.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap tags err with kind. A nil err still yields an error so callers can
// report a rejection that carried no underlying cause.
func Wrap(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// WithBytes records the partial byte count on a classified error. Unclassified
// errors are wrapped as transfer failures first.
func WithBytes(err error, bytes int64) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		clone := *fe
		clone.Bytes = bytes
		return &clone
	}
	return &Error{Kind: KindTransfer, Op: "transfer", Bytes: bytes, Err: err}
}

// Configuration builds a fatal configuration error.
func Configuration(format string, args ...any) error {
	return &Error{Kind: KindConfiguration, Op: "config", Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind decided where err was created. Context
// cancellation is recognised even when untagged.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	return KindUnknown
}

// ClassOf classifies err through the kind table.
func ClassOf(err error) Class {
	if err == nil {
		return ""
	}
	return KindOf(err).Class()
}

// IsPermanent reports whether retries cannot resolve err.
func IsPermanent(err error) bool { return ClassOf(err) == ClassPermanent }

// IsFatal reports whether err should stop the whole run.
func IsFatal(err error) bool { return ClassOf(err) == ClassFatal }

// BytesOf returns the partial byte count carried by err, or 0.
func BytesOf(err error) int64 {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Bytes
	}
	return 0
}

var kindHints = map[Kind]string{
	KindConnection:     "check network connectivity and ftp.host/ftp.port",
	KindAuthentication: "check ftp.user and ftp.password",
	KindDirectory:      "check that ftp.remote_dir exists on the server",
	KindPermission:     "check write permission in the remote directory",
	KindNaming:         "destination names must be non-empty and free of path separators",
	KindSource:         "check that the local source is readable; consumed streams cannot be retried",
	KindTransfer:       "transfer interrupted; check server logs if it keeps happening",
	KindConfiguration:  "run ferry config validate",
	KindCanceled:       "run was interrupted",
}

// Hint returns an operator-facing next step for kind.
func Hint(kind Kind) string {
	if hint, ok := kindHints[kind]; ok {
		return hint
	}
	return "check logs for details"
}
