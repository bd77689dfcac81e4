package broadcast

import (
	"context"
	"time"

	"communibot/internal/transport"
)

type Config struct {
	// Workers caps concurrent in-flight sends.
	Workers int
	// SendTimeout bounds each individual send attempt.
	SendTimeout time.Duration
	// RatePerSec throttles outbound sends across all workers.
	RatePerSec int
	// ShutdownGrace is how long already-started sends may keep running
	// after the dispatch context is cancelled. Once it expires the
	// remaining in-flight sends are abandoned as failed(cancelled).
	ShutdownGrace time.Duration
}

// SendFunc delivers one message to one recipient. Implementations must
// honor ctx and return a transport-classified error on failure.
type SendFunc func(ctx context.Context, to transport.RecipientID, text string) error

// Outcome is the per-recipient result of one dispatch.
type Outcome struct {
	Recipient transport.RecipientID
	Reason    transport.FailureReason
}

// Report aggregates the outcomes of one dispatch. Reports are ephemeral:
// the caller logs or summarizes them, they are never persisted per-recipient.
type Report struct {
	Total      int
	Delivered  int
	Failed     int
	Failures   []Outcome
	StartedAt  time.Time
	FinishedAt time.Time
}
