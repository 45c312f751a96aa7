// Package apperr defines the error taxonomy shared by the encoder, the
// vector store backends and the service boundaries.
package apperr

import (
	"errors"
	"fmt"
	"log/slog"
)

// Kind classifies an error so boundaries can render a distinguishable status.
type Kind string

const (
	KindAuth               Kind = "auth"
	KindValidation         Kind = "validation"
	KindEncoding           Kind = "encoding"
	KindStoreUnavailable   Kind = "store_unavailable"
	KindCollectionNotFound Kind = "collection_not_found"
	KindProvision          Kind = "provision"
	KindWrite              Kind = "write"
	KindInternal           Kind = "internal"
)

// Error carries a Kind, the operation that failed and the underlying cause.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

// Sentinels for errors.Is. Any *Error of the same Kind matches.
var (
	ErrAuth               = &Error{Kind: KindAuth}
	ErrValidation         = &Error{Kind: KindValidation}
	ErrEncoding           = &Error{Kind: KindEncoding}
	ErrStoreUnavailable   = &Error{Kind: KindStoreUnavailable}
	ErrCollectionNotFound = &Error{Kind: KindCollectionNotFound}
	ErrProvision          = &Error{Kind: KindProvision}
	ErrWrite              = &Error{Kind: KindWrite}
)

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap unwraps the error to support errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// New creates an error of the given kind without an underlying cause.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Newf is New with a formatted message.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err. An err that already carries a Kind keeps it.
func Wrap(kind Kind, op string, err error, message string) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return err
	}
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// KindOf returns the Kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Log writes err to logger with its kind attached.
func Log(logger *slog.Logger, msg string, err error, args ...any) {
	if logger == nil {
		logger = slog.Default()
	}
	args = append(args, "kind", string(KindOf(err)), "error", err)
	logger.Error(msg, args...)
}
