package transport

import (
	"context"
	"errors"
	"fmt"
)

// FailureReason is the delivery failure taxonomy shared by the dispatcher
// and the transport adapters. Adapters wrap platform errors into a
// DeliveryError carrying one of these reasons.
type FailureReason string

const (
	FailureBlocked      FailureReason = "blocked"
	FailureNetworkError FailureReason = "network_error"
	FailureTimeout      FailureReason = "timeout"
	FailureRateLimited  FailureReason = "rate_limited"
	FailureCancelled    FailureReason = "cancelled"
)

// DeliveryError wraps a transport error with its classified reason.
type DeliveryError struct {
	Reason FailureReason
	Err    error
}

func (e *DeliveryError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Reason extracts the failure reason from err.
// Context errors map to timeout/cancelled; anything unclassified is a
// network error.
func Reason(err error) FailureReason {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Reason
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	if errors.Is(err, context.Canceled) {
		return FailureCancelled
	}
	return FailureNetworkError
}
