package backends

import "errors"

// errUnavailable is returned by Inject when Available() would have reported
// false; callers should check Available before calling Inject, but backends
// still guard defensively.
var errUnavailable = errors.New("backend unavailable on this platform/session")

// backendError ties a failure to the backend that produced it, so the
// Injection Strategy Manager's logs name which concrete mechanism failed.
type backendError struct {
	backend string
	message string
	err     error
}

func (e *backendError) Error() string {
	if e.err != nil {
		return e.backend + ": " + e.message + ": " + e.err.Error()
	}
	return e.backend + ": " + e.message
}

func (e *backendError) Unwrap() error { return e.err }

func newErr(backend, message string, err error) error {
	return &backendError{backend: backend, message: message, err: err}
}
