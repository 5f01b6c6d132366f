package provider

import (
	"errors"
	"fmt"

	"github.com/tjfontaine/audiencesim/internal/core/domain"
)

// ErrTransport matches every TransportError.
var ErrTransport = domain.ErrTransport

// TransportError is returned when a model call did not complete within
// bounds after all retries.
type TransportError struct {
	Model    string
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("model %s failed after %d attempt(s): %v", e.Model, e.Attempts, e.Err)
}

// Unwrap returns the last attempt's error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrTransport) hold.
func (e *TransportError) Is(target error) bool {
	return target == domain.ErrTransport
}

// permanentError marks a failure that retrying cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the retry policy gives up immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
