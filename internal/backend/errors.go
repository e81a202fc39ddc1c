package backend

import (
	"errors"
	"fmt"
)

// Error codes. The transient ones mark failures worth retrying on a later
// request; everything else is a hard reject.
const (
	CodeUnavailable = "BACKEND_UNAVAILABLE"
	CodeTimeout     = "BACKEND_TIMEOUT"
	CodeRateLimited = "RATE_LIMITED"
	CodeRejected    = "BACKEND_REJECTED"
	CodeBadResponse = "BAD_RESPONSE"
)

// Error represents a structured failure of a generation call
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transient reports whether err is a backend failure that a later request
// may retry. Summarization treats a transient failure as a clean abort: the
// batch stays unsummarized and the next triggering request tries again.
func Transient(err error) bool {
	var be *Error
	if !errors.As(err, &be) {
		return false
	}
	switch be.Code {
	case CodeUnavailable, CodeTimeout, CodeRateLimited:
		return true
	}
	return false
}
