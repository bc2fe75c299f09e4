package errors

import (
	"errors"
	"fmt"
)

// Kind classifies error types for targeted handling and reporting.
type Kind string

const (
	KindArchiveRead       Kind = "archive_read"
	KindValidation        Kind = "validation"
	KindAuth              Kind = "auth"
	KindAPI               Kind = "api"
	KindTransport         Kind = "transport"
	KindMalformedResponse Kind = "malformed_response"
	KindCredential        Kind = "credential"
	KindReportWrite       Kind = "report_write"
	KindConfig            Kind = "config"
	KindDecode            Kind = "decode"
	KindEncode            Kind = "encode"
	KindInternal          Kind = "internal"
)

// ProcessingError is the structured error type used throughout the module.
type ProcessingError struct {
	Kind       Kind
	Op         string // operation name
	Err        error
	Retryable  bool
	StatusCode int // HTTP status for upload failures; 0 otherwise
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Op, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// New creates a non-retryable ProcessingError.
func New(kind Kind, op string, err error) *ProcessingError {
	return &ProcessingError{Kind: kind, Op: op, Err: err}
}

// Transient creates a retryable ProcessingError of the given kind.
func Transient(kind Kind, op string, err error) *ProcessingError {
	return &ProcessingError{Kind: kind, Op: op, Err: err, Retryable: true}
}

// Wrap wraps an existing error with context.  Errors that already carry a
// Kind keep it.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return err
	}
	return New(kind, op, err)
}

// Auth reports an expired or rejected credential.
func Auth(op string, status int, err error) *ProcessingError {
	return &ProcessingError{Kind: KindAuth, Op: op, Err: err, StatusCode: status}
}

// API reports an error payload returned by the remote API.
func API(op string, status int, retryable bool, err error) *ProcessingError {
	return &ProcessingError{Kind: KindAPI, Op: op, Err: err, StatusCode: status, Retryable: retryable}
}

// IsRetryable reports whether err represents a transient failure.
func IsRetryable(err error) bool {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// IsKind reports whether err belongs to the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// KindOf returns the Kind carried by err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindInternal
}

// Message returns the human-facing part of err, without the kind/op prefix.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var pe *ProcessingError
	if errors.As(err, &pe) && pe.Err != nil {
		return pe.Err.Error()
	}
	return err.Error()
}

// Sentinel errors for common failure modes.
var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrEmptyInput        = errors.New("empty input")
	ErrTooLarge          = errors.New("input exceeds size limit")
	ErrArchiveConsumed   = errors.New("archive items already consumed")
	ErrMissingHash       = errors.New("response did not contain an image hash")
	ErrTokenMissing      = errors.New("access token not found")
)
