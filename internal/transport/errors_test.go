package transport

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestReason(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want FailureReason
	}{
		{name: "delivery error passes through", err: &DeliveryError{Reason: FailureBlocked, Err: errors.New("forbidden")}, want: FailureBlocked},
		{name: "wrapped delivery error", err: fmt.Errorf("send: %w", &DeliveryError{Reason: FailureRateLimited}), want: FailureRateLimited},
		{name: "deadline", err: context.DeadlineExceeded, want: FailureTimeout},
		{name: "cancelled", err: context.Canceled, want: FailureCancelled},
		{name: "wrapped cancelled", err: fmt.Errorf("limiter: %w", context.Canceled), want: FailureCancelled},
		{name: "unknown", err: errors.New("connection reset"), want: FailureNetworkError},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Reason(tt.err); got != tt.want {
				t.Fatalf("Reason(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestDeliveryErrorUnwrap(t *testing.T) {
	t.Parallel()
	inner := errors.New("boom")
	err := &DeliveryError{Reason: FailureNetworkError, Err: inner}
	if !errors.Is(err, inner) {
		t.Fatal("DeliveryError should unwrap to its cause")
	}
}
