package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"communibot/internal/schedule"
	"communibot/internal/storage"
	"communibot/internal/transport"
	"communibot/pkg/logx"
)

const (
	announcementPrefix = "📢 ANNOUNCEMENT 📢\n\n"
	aiFallback         = "I'm having trouble processing your request right now. Please try again in a moment."
	motivatePrompt     = "Write a short, upbeat motivational message for our community members."
)

func (s *Service) handleStart(ctx context.Context, m transport.Message) {
	// The very first user to talk to the bot becomes its admin; everyone
	// after that needs to be added by an existing admin.
	n, err := s.store.CountAdmins(ctx)
	if err == nil && n == 0 {
		if err := s.store.AddAdmin(ctx, m.FromID, 0); err == nil {
			s.reply(ctx, m, fmt.Sprintf(
				"Welcome! You are the first user, so I've made you an admin.\n\n"+
					"Your user ID is: %d\n\nType /help to see available commands.", m.FromID))
			return
		}
	}
	s.reply(ctx, m, "Welcome to the community bot! I'm here to help answer your questions.\n\nType /help to see available commands.")
}

func (s *Service) handleHelp(ctx context.Context, m transport.Message) {
	var b strings.Builder
	b.WriteString("Just send me a message and I'll respond with an AI-generated answer.\n\n")
	b.WriteString("Available commands:\n")
	b.WriteString("/start - Start the bot\n")
	b.WriteString("/help - Show this help message\n")
	b.WriteString("/motivate - Get a motivational message\n")

	if ok, err := s.store.IsAdmin(ctx, m.FromID); err == nil && ok {
		b.WriteString("\nAdmin commands:\n")
		b.WriteString("/announce <text> - Send an announcement to all users\n")
		b.WriteString("/addadmin <id> - Add a new admin\n")
		b.WriteString("/removeadmin <id> - Remove an admin\n")
		b.WriteString("/listadmins - List all admins\n")
		b.WriteString("/setschedule <daily|weekly> <HH:MM> [day] <text> - Configure scheduled announcements\n")
	}
	s.reply(ctx, m, b.String())
}

func (s *Service) handleChat(ctx context.Context, m transport.Message) {
	if s.ai == nil {
		s.reply(ctx, m, "AI replies are not configured. Type /help to see available commands.")
		return
	}
	_ = s.out.NotifyTyping(ctx, transport.RecipientID(m.ChatID))

	actx, cancel := context.WithTimeout(ctx, s.cfg.AITimeout)
	defer cancel()
	text, err := s.ai.Generate(actx, m.Text)
	if err != nil {
		s.log.Warn("ai generation failed", logx.Int64("user", m.FromID), logx.Err(err))
		s.reply(ctx, m, aiFallback)
		return
	}
	s.reply(ctx, m, text)
}

func (s *Service) handleMotivate(ctx context.Context, m transport.Message) {
	if s.ai == nil {
		s.reply(ctx, m, "Keep going, you're doing great!")
		return
	}
	actx, cancel := context.WithTimeout(ctx, s.cfg.AITimeout)
	defer cancel()
	text, err := s.ai.Generate(actx, motivatePrompt)
	if err != nil {
		s.log.Warn("ai generation failed", logx.Int64("user", m.FromID), logx.Err(err))
		s.reply(ctx, m, "Keep going, you're doing great!")
		return
	}
	s.reply(ctx, m, text)
}

func (s *Service) handleAnnounce(ctx context.Context, m transport.Message, c AnnounceCmd) {
	rep, err := s.bc.Broadcast(ctx, "announce", announcementPrefix+c.Text)
	if err != nil {
		s.reply(ctx, m, "Could not start the announcement: the user roster is unavailable. Please try again.")
		return
	}
	s.reply(ctx, m, fmt.Sprintf("Announcement sent to %d users. (%d failed)", rep.Delivered, rep.Failed))
}

func (s *Service) handleAddAdmin(ctx context.Context, m transport.Message, c AddAdminCmd) {
	if err := s.store.AddAdmin(ctx, c.UserID, m.FromID); err != nil {
		s.log.Error("add admin failed", logx.Int64("target", c.UserID), logx.Err(err))
		s.reply(ctx, m, "Could not add the admin, please try again later.")
		return
	}
	s.reply(ctx, m, fmt.Sprintf("Added user %d as an admin.", c.UserID))
	s.notifyAdminChange(ctx, fmt.Sprintf("Community update: user %d is now an admin.", c.UserID))
}

func (s *Service) handleRemoveAdmin(ctx context.Context, m transport.Message, c RemoveAdminCmd) {
	err := s.store.RemoveAdmin(ctx, c.UserID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.reply(ctx, m, fmt.Sprintf("User %d is not an admin.", c.UserID))
		return
	case err != nil:
		s.log.Error("remove admin failed", logx.Int64("target", c.UserID), logx.Err(err))
		s.reply(ctx, m, "Could not remove the admin, please try again later.")
		return
	}
	s.reply(ctx, m, fmt.Sprintf("Removed admin %d.", c.UserID))
	s.notifyAdminChange(ctx, fmt.Sprintf("Community update: user %d is no longer an admin.", c.UserID))
}

// notifyAdminChange is structurally a one-off broadcast, so it goes
// through the same dispatcher as /announce.
func (s *Service) notifyAdminChange(ctx context.Context, text string) {
	if _, err := s.bc.Broadcast(ctx, "admin_change", text); err != nil {
		s.log.Warn("admin change notification failed", logx.Err(err))
	}
}

func (s *Service) handleListAdmins(ctx context.Context, m transport.Message) {
	admins, err := s.store.ListAdmins(ctx)
	if err != nil {
		s.log.Error("list admins failed", logx.Err(err))
		s.reply(ctx, m, "Could not list admins, please try again later.")
		return
	}
	if len(admins) == 0 {
		s.reply(ctx, m, "No admins are registered.")
		return
	}
	var b strings.Builder
	b.WriteString("Admins:\n")
	for _, a := range admins {
		fmt.Fprintf(&b, "- %d\n", a.ID)
	}
	s.reply(ctx, m, b.String())
}

func (s *Service) handleSetSchedule(ctx context.Context, m transport.Message, c SetScheduleCmd) {
	sc, err := s.store.UpsertScheduleByCadence(ctx, c.Schedule)
	if err != nil {
		s.log.Error("set schedule failed", logx.Err(err))
		s.reply(ctx, m, "Could not save the schedule, please try again later.")
		return
	}
	s.reply(ctx, m, describeSchedule(sc))
}

func describeSchedule(sc schedule.Schedule) string {
	switch sc.Cadence {
	case schedule.CadenceWeekly:
		return fmt.Sprintf("Weekly announcement set: every %s at %s.", sc.Day, sc.At)
	default:
		return fmt.Sprintf("Daily announcement set: every day at %s.", sc.At)
	}
}
