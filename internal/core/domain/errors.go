package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind is the failure class of a stage or model call.
type ErrorKind string

const (
	// ErrorKindTransport indicates an external call did not complete within
	// bounds after retries.
	ErrorKindTransport ErrorKind = "transport"

	// ErrorKindMalformedOutput indicates the external call completed but the
	// text did not satisfy the expected structure.
	ErrorKindMalformedOutput ErrorKind = "malformed_output"

	// ErrorKindMissingUpstream indicates a required prior-stage field is absent.
	ErrorKindMissingUpstream ErrorKind = "missing_upstream"

	// ErrorKindValidation indicates a value failed a domain invariant.
	ErrorKindValidation ErrorKind = "validation"

	// ErrorKindNotFound indicates a requested resource does not exist.
	ErrorKindNotFound ErrorKind = "not_found"

	// ErrorKindInternal indicates an unexpected failure inside a stage.
	ErrorKindInternal ErrorKind = "internal"
)

// Sentinel errors matched with errors.Is by KindOf.
var (
	ErrTransport       = errors.New("transport failure")
	ErrMalformedOutput = errors.New("malformed model output")
	ErrMissingUpstream = errors.New("missing upstream data")
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
)

// KindOf classifies err. Unrecognized errors are internal.
func KindOf(err error) ErrorKind {
	var se *StageError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &se):
		return se.Kind
	case errors.Is(err, ErrTransport):
		return ErrorKindTransport
	case errors.Is(err, ErrMalformedOutput):
		return ErrorKindMalformedOutput
	case errors.Is(err, ErrMissingUpstream):
		return ErrorKindMissingUpstream
	case errors.Is(err, ErrValidation):
		return ErrorKindValidation
	case errors.Is(err, ErrNotFound):
		return ErrorKindNotFound
	default:
		return ErrorKindInternal
	}
}

// StageError is the typed failure returned by a stage alongside its
// best-effort state.
type StageError struct {
	// Stage is the name of the stage that failed.
	Stage string `json:"stage"`

	// Kind is the failure class.
	Kind ErrorKind `json:"kind"`

	// Message is the human-readable description.
	Message string `json:"message"`

	// Err is the underlying cause, if any.
	Err error `json:"-"`
}

// NewStageError creates a new stage error.
func NewStageError(stage string, kind ErrorKind, message string) *StageError {
	return &StageError{Stage: stage, Kind: kind, Message: message}
}

// StageErrorFrom wraps err, classifying it with KindOf.
func StageErrorFrom(stage, message string, err error) *StageError {
	return &StageError{Stage: stage, Kind: KindOf(err), Message: message, Err: err}
}

// WithErr attaches an underlying cause.
func (e *StageError) WithErr(err error) *StageError {
	e.Err = err
	return e
}

// Error implements the error interface.
func (e *StageError) Error() string {
	msg := fmt.Sprintf("%s: %s (%s)", e.Stage, e.Message, e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *StageError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode maps the error to the status the request layer reports
// when a run cannot be started.
func (e *StageError) HTTPStatusCode() int {
	switch e.Kind {
	case ErrorKindNotFound:
		return http.StatusNotFound
	case ErrorKindValidation, ErrorKindMissingUpstream:
		return http.StatusBadRequest
	case ErrorKindTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
