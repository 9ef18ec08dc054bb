package hackatime

import (
	"errors"
	"fmt"
)

// MissingCredentialError indicates a user has no usable API key for the
// time-tracking service. The refresh for that participant is skipped, not
// aborted.
type MissingCredentialError struct {
	UserID string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("no api key found for user %s", e.UserID)
}

// AsMissingCredential attempts to unwrap an error into a MissingCredentialError.
func AsMissingCredential(err error) (*MissingCredentialError, bool) {
	var mcErr *MissingCredentialError
	if errors.As(err, &mcErr) {
		return mcErr, true
	}
	return nil, false
}

// UpstreamError captures summary API failures: transport errors, non-2xx
// statuses, and malformed bodies. The affected date stays eligible and is
// retried on the next poll cycle.
type UpstreamError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "summary api request failed"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (status=%d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// AsUpstreamError attempts to unwrap an error into an UpstreamError.
func AsUpstreamError(err error) (*UpstreamError, bool) {
	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		return upErr, true
	}
	return nil, false
}
