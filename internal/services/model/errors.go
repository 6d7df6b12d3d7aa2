package model

import (
	"context"
	"errors"
	"fmt"
	"net"

	xhttp "PriceDrop/pkg/http"
)

// FailureReason classifies why a model call produced no usable prediction.
type FailureReason string

const (
	ReasonTimeout   FailureReason = "timeout"
	ReasonTransport FailureReason = "transport"
	ReasonStatus    FailureReason = "status"
	ReasonMalformed FailureReason = "malformed"
	ReasonRejected  FailureReason = "rejected"
	ReasonInvalid   FailureReason = "invalid"
)

// Error is returned by HTTPPredictor for every failed call.
type Error struct {
	Reason FailureReason
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("model %s: %v", e.Reason, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ReasonOf extracts the failure reason of err. Errors not produced by this
// package are classified as timeout or transport failures.
func ReasonOf(err error) FailureReason {
	var me *Error
	if errors.As(err, &me) {
		return me.Reason
	}
	if isTimeout(err) {
		return ReasonTimeout
	}
	return ReasonTransport
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func fail(reason FailureReason, format string, a ...interface{}) *Error {
	return &Error{Reason: reason, Err: fmt.Errorf(format, a...)}
}

func isDecodeError(err error) bool {
	return errors.Is(err, xhttp.ErrDecode)
}
