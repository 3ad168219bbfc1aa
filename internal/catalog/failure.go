package catalog

import (
	"errors"
	"fmt"
)

type Reason string

const (
	ReasonTransport      Reason = "transport"
	ReasonUpstreamStatus Reason = "upstream-status"
	ReasonDecode         Reason = "decode"
)

// ErrUnknownOperation is wrapped by a transport Failure when Fetch is
// called with an operation outside the fixed set. No request is made.
var ErrUnknownOperation = errors.New("unknown catalog operation")

var errCallerAborted = errors.New("request aborted by caller")

// Failure is the only error type returned across the gateway boundary.
type Failure struct {
	Op     Op
	Reason Reason
	Status int // set for ReasonUpstreamStatus
	Err    error
}

// Code renders the reason code, e.g. "transport" or "upstream-status:503".
func (f *Failure) Code() string {
	if f.Reason == ReasonUpstreamStatus {
		return fmt.Sprintf("%s:%d", f.Reason, f.Status)
	}
	return string(f.Reason)
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("catalog %s: %s", f.Op, f.Code())
	}
	return fmt.Sprintf("catalog %s: %s: %v", f.Op, f.Code(), f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// AsFailure extracts a *Failure from err, if there is one.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// outcome is the metrics label for a call result.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if f, ok := AsFailure(err); ok {
		return string(f.Reason)
	}
	return "transport"
}
