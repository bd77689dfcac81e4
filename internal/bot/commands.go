package bot

import (
	"fmt"
	"strconv"
	"strings"

	"communibot/internal/schedule"
)

// Command is the typed form of one chat command. Parsing resolves the
// command and validates its payload up front, so handlers never see a
// malformed argument (a weekly schedule without a day, a non-numeric
// user id) and the evaluator never sees an invalid schedule.
type Command interface{ isCommand() }

type (
	StartCmd       struct{}
	HelpCmd        struct{}
	MotivateCmd    struct{}
	AnnounceCmd    struct{ Text string }
	AddAdminCmd    struct{ UserID int64 }
	RemoveAdminCmd struct{ UserID int64 }
	ListAdminsCmd  struct{}
	SetScheduleCmd struct{ Schedule schedule.Schedule }
)

func (StartCmd) isCommand()       {}
func (HelpCmd) isCommand()        {}
func (MotivateCmd) isCommand()    {}
func (AnnounceCmd) isCommand()    {}
func (AddAdminCmd) isCommand()    {}
func (RemoveAdminCmd) isCommand() {}
func (ListAdminsCmd) isCommand()  {}
func (SetScheduleCmd) isCommand() {}

// IsCommand reports whether text is a slash command.
func IsCommand(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "/")
}

// ParseCommand turns "/cmd args" into its typed form. The returned error
// text is user-facing (usage hints, validation messages).
func ParseCommand(text string) (Command, error) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return nil, fmt.Errorf("not a command")
	}

	// Telegram appends "@botname" in groups.
	name := strings.ToLower(fields[0])
	if i := strings.IndexByte(name, '@'); i > 0 {
		name = name[:i]
	}
	args := fields[1:]

	switch name {
	case "/start":
		return StartCmd{}, nil
	case "/help":
		return HelpCmd{}, nil
	case "/motivate":
		return MotivateCmd{}, nil
	case "/listadmins":
		return ListAdminsCmd{}, nil
	case "/announce":
		msg := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), fields[0]))
		if msg == "" {
			return nil, fmt.Errorf("usage: /announce <text>")
		}
		return AnnounceCmd{Text: msg}, nil
	case "/addadmin":
		id, err := parseUserID(args)
		if err != nil {
			return nil, fmt.Errorf("usage: /addadmin <user id>")
		}
		return AddAdminCmd{UserID: id}, nil
	case "/removeadmin":
		id, err := parseUserID(args)
		if err != nil {
			return nil, fmt.Errorf("usage: /removeadmin <user id>")
		}
		return RemoveAdminCmd{UserID: id}, nil
	case "/setschedule":
		sc, err := parseSetSchedule(args)
		if err != nil {
			return nil, err
		}
		return SetScheduleCmd{Schedule: sc}, nil
	}
	return nil, fmt.Errorf("unknown command %s", name)
}

func parseUserID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected one argument")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id %q", args[0])
	}
	return id, nil
}

const setScheduleUsage = "usage: /setschedule <daily|weekly> <HH:MM> [day] <text>"

// parseSetSchedule validates the full schedule definition at the command
// boundary. A weekly schedule without a day never reaches the store or
// the trigger evaluator.
func parseSetSchedule(args []string) (schedule.Schedule, error) {
	if len(args) < 3 {
		return schedule.Schedule{}, fmt.Errorf("%s", setScheduleUsage)
	}

	cadence, err := schedule.ParseCadence(args[0])
	if err != nil {
		return schedule.Schedule{}, fmt.Errorf("%v\n%s", err, setScheduleUsage)
	}
	at, err := schedule.ParseTimeOfDay(args[1])
	if err != nil {
		return schedule.Schedule{}, fmt.Errorf("%v\n%s", err, setScheduleUsage)
	}

	sc := schedule.Schedule{Cadence: cadence, At: at, Enabled: true}
	rest := args[2:]

	if cadence == schedule.CadenceWeekly {
		day, err := schedule.ParseWeekday(rest[0])
		if err != nil {
			return schedule.Schedule{}, fmt.Errorf("weekly schedules need a day: %v\n%s", err, setScheduleUsage)
		}
		sc.Day = day
		rest = rest[1:]
	}

	sc.Content = strings.TrimSpace(strings.Join(rest, " "))
	if sc.Content == "" {
		return schedule.Schedule{}, fmt.Errorf("announcement text is empty\n%s", setScheduleUsage)
	}
	return sc, nil
}
