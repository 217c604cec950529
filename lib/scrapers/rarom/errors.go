package rarom

import (
	"errors"
	"fmt"
)

var ErrFormNotFound = errors.New("unable to find the query form on the portal page")
var ErrCaptchaNotFound = errors.New("captcha image not found in the portal page")
var ErrSubmissionRejected = errors.New("server rejected the verification code")

// TransportError covers non-200 responses and network failures on any
// of the pipeline's HTTP calls.
type TransportError struct {
	Op         string
	StatusCode int
	Cause      error
}

func (e *TransportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("%s: HTTP %d", e.Op, e.StatusCode)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// FetchError is the single terminal failure shape a caller receives
// once every attempt has been exhausted. It wraps the cause of the
// last attempt, not the first.
type FetchError struct {
	VIN      string
	Attempts int
	Cause    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("itp check for %s failed after %d attempts: %v", e.VIN, e.Attempts, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}
