// Package bot routes incoming chat updates: slash commands to their
// handlers, free text to the AI responder. Admin-only commands are gated
// by a fresh admin-roster lookup on every invocation.
package bot

import (
	"context"
	"sync"
	"time"

	"communibot/internal/broadcast"
	"communibot/internal/schedule"
	"communibot/internal/storage"
	"communibot/internal/transport"
	"communibot/pkg/logx"
)

// Store is the persistence capability the command layer consumes.
type Store interface {
	UpsertUser(ctx context.Context, u storage.User) error
	IsAdmin(ctx context.Context, userID int64) (bool, error)
	AddAdmin(ctx context.Context, userID, addedBy int64) error
	RemoveAdmin(ctx context.Context, userID int64) error
	ListAdmins(ctx context.Context) ([]storage.Admin, error)
	CountAdmins(ctx context.Context) (int, error)
	UpsertScheduleByCadence(ctx context.Context, sc schedule.Schedule) (schedule.Schedule, error)
}

// Broadcaster fans one message out to the whole roster.
type Broadcaster interface {
	Broadcast(ctx context.Context, kind, text string) (broadcast.Report, error)
}

// Responder generates an AI reply to one user message.
type Responder interface {
	Generate(ctx context.Context, userMessage string) (string, error)
}

// Replier is the slice of the transport the handlers need.
type Replier interface {
	SendText(ctx context.Context, to transport.RecipientID, text string, opt *transport.SendOptions) (transport.MessageRef, error)
	NotifyTyping(ctx context.Context, to transport.RecipientID) error
}

type Config struct {
	// AITimeout bounds one AI-generation round trip.
	AITimeout time.Duration
}

type Service struct {
	cfg   Config
	store Store
	bc    Broadcaster
	ai    Responder // nil disables AI replies
	out   Replier
	log   logx.Logger

	wg sync.WaitGroup
}

func New(cfg Config, store Store, bc Broadcaster, ai Responder, out Replier, log logx.Logger) *Service {
	if cfg.AITimeout <= 0 {
		cfg.AITimeout = 60 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, store: store, bc: bc, ai: ai, out: out, log: log}
}

// Run consumes updates until the channel closes or ctx is cancelled.
// Messages are handled sequentially; the heavy lifting (broadcast fan-out)
// has its own concurrency budget.
func (s *Service) Run(ctx context.Context, updates <-chan transport.Update) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case up, ok := <-updates:
				if !ok {
					return
				}
				if up.Kind != transport.UpdateMessage || up.Message == nil {
					continue
				}
				s.handle(ctx, *up.Message)
			}
		}
	}()
}

// Wait blocks until Run's consumer goroutine has exited.
func (s *Service) Wait() { s.wg.Wait() }

func (s *Service) handle(ctx context.Context, m transport.Message) {
	// Group chatter is not part of the bot's surface; the roster and the
	// AI responder are direct-message features.
	if m.IsGroup {
		return
	}

	// Every interaction refreshes the roster entry.
	if err := s.store.UpsertUser(ctx, storage.User{
		ID:        m.FromID,
		Username:  m.FromUsername,
		FirstName: m.FirstName,
		LastName:  m.LastName,
	}); err != nil {
		s.log.Warn("roster upsert failed", logx.Int64("user", m.FromID), logx.Err(err))
	}

	if !IsCommand(m.Text) {
		s.handleChat(ctx, m)
		return
	}

	cmd, err := ParseCommand(m.Text)
	if err != nil {
		s.reply(ctx, m, err.Error())
		return
	}
	s.dispatchCommand(ctx, m, cmd)
}

func (s *Service) dispatchCommand(ctx context.Context, m transport.Message, cmd Command) {
	switch c := cmd.(type) {
	case StartCmd:
		s.handleStart(ctx, m)
	case HelpCmd:
		s.handleHelp(ctx, m)
	case MotivateCmd:
		s.handleMotivate(ctx, m)
	case AnnounceCmd:
		s.adminOnly(ctx, m, func() { s.handleAnnounce(ctx, m, c) })
	case AddAdminCmd:
		s.adminOnly(ctx, m, func() { s.handleAddAdmin(ctx, m, c) })
	case RemoveAdminCmd:
		s.adminOnly(ctx, m, func() { s.handleRemoveAdmin(ctx, m, c) })
	case ListAdminsCmd:
		s.adminOnly(ctx, m, func() { s.handleListAdmins(ctx, m) })
	case SetScheduleCmd:
		s.adminOnly(ctx, m, func() { s.handleSetSchedule(ctx, m, c) })
	}
}

const accessDenied = "⛔ Access Denied: This command is only available to admins."

func (s *Service) adminOnly(ctx context.Context, m transport.Message, fn func()) {
	ok, err := s.store.IsAdmin(ctx, m.FromID)
	if err != nil {
		s.log.Error("admin check failed", logx.Int64("user", m.FromID), logx.Err(err))
		s.reply(ctx, m, "Something went wrong, please try again later.")
		return
	}
	if !ok {
		s.reply(ctx, m, accessDenied)
		return
	}
	fn()
}

func (s *Service) reply(ctx context.Context, m transport.Message, text string) {
	if _, err := s.out.SendText(ctx, transport.RecipientID(m.ChatID), text, nil); err != nil {
		s.log.Warn("reply failed", logx.Int64("chat", m.ChatID), logx.Err(err))
	}
}
