// Package announce glues the roster, the broadcast dispatcher, and the
// audit log into one "send this to everyone" capability. One-off
// /announce commands, admin-change notifications, and the scheduler loop
// all go through it, so fan-out logic exists exactly once.
package announce

import (
	"context"
	"fmt"
	"time"

	"communibot/internal/broadcast"
	"communibot/internal/storage"
	"communibot/internal/transport"
	"communibot/pkg/logx"
)

// Roster supplies the current recipient set. A fetch failure aborts the
// broadcast with zero sends attempted.
type Roster interface {
	ListRecipients(ctx context.Context) ([]transport.RecipientID, error)
}

// Auditor records one summary row per dispatch.
type Auditor interface {
	AppendBroadcastAudit(ctx context.Context, e storage.AuditEntry) error
}

type Sender interface {
	SendText(ctx context.Context, to transport.RecipientID, text string, opt *transport.SendOptions) (transport.MessageRef, error)
}

type Service struct {
	dispatcher *broadcast.Dispatcher
	roster     Roster
	sender     Sender
	audit      Auditor
	log        logx.Logger
}

func New(d *broadcast.Dispatcher, roster Roster, sender Sender, audit Auditor, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{dispatcher: d, roster: roster, sender: sender, audit: audit, log: log}
}

// Broadcast fans text out to the whole roster and returns the dispatch
// report. kind tags the audit row ("announce", "scheduled", "admin_change").
func (s *Service) Broadcast(ctx context.Context, kind, text string) (broadcast.Report, error) {
	recipients, err := s.roster.ListRecipients(ctx)
	if err != nil {
		return broadcast.Report{}, fmt.Errorf("roster fetch: %w", err)
	}

	s.log.Info("broadcast starting", logx.String("kind", kind), logx.Int("recipients", len(recipients)))
	rep := s.dispatcher.Dispatch(ctx, text, recipients, func(sctx context.Context, to transport.RecipientID, msg string) error {
		_, err := s.sender.SendText(sctx, to, msg, nil)
		return err
	})

	if s.audit != nil {
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.audit.AppendBroadcastAudit(actx, storage.AuditEntry{
			At:        rep.StartedAt,
			Kind:      kind,
			Total:     rep.Total,
			Delivered: rep.Delivered,
			Failed:    rep.Failed,
			TookMS:    rep.FinishedAt.Sub(rep.StartedAt).Milliseconds(),
		}); err != nil {
			s.log.Warn("broadcast audit append failed", logx.Err(err))
		}
	}
	return rep, nil
}
