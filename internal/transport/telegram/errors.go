package telegram

import (
	"context"
	"errors"

	tele "gopkg.in/telebot.v4"

	kit "communibot/internal/transport"
)

// classify wraps a telebot error into the shared delivery taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}

	reason := kit.FailureNetworkError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		reason = kit.FailureTimeout
	case errors.Is(err, context.Canceled):
		reason = kit.FailureCancelled
	case isFlood(err):
		reason = kit.FailureRateLimited
	case errors.Is(err, tele.ErrBlockedByUser),
		errors.Is(err, tele.ErrUserIsDeactivated),
		errors.Is(err, tele.ErrNotStartedByUser),
		errors.Is(err, tele.ErrChatNotFound):
		reason = kit.FailureBlocked
	}
	return &kit.DeliveryError{Reason: reason, Err: err}
}

func isFlood(err error) bool {
	var fv tele.FloodError
	if errors.As(err, &fv) {
		return true
	}
	var fp *tele.FloodError
	return errors.As(err, &fp)
}
