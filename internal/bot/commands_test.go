package bot

import (
	"strings"
	"testing"
	"time"

	"communibot/internal/schedule"
)

func TestParseCommandVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		want Command
	}{
		{name: "start", raw: "/start", want: StartCmd{}},
		{name: "help with bot suffix", raw: "/help@communibot", want: HelpCmd{}},
		{name: "motivate", raw: "/motivate", want: MotivateCmd{}},
		{name: "listadmins", raw: "/listadmins", want: ListAdminsCmd{}},
		{name: "announce", raw: "/announce Meeting moved to 5pm", want: AnnounceCmd{Text: "Meeting moved to 5pm"}},
		{name: "addadmin", raw: "/addadmin 12345", want: AddAdminCmd{UserID: 12345}},
		{name: "removeadmin", raw: "/removeadmin 12345", want: RemoveAdminCmd{UserID: 12345}},
		{
			name: "setschedule daily",
			raw:  "/setschedule daily 09:30 Good morning all!",
			want: SetScheduleCmd{Schedule: schedule.Schedule{
				Cadence: schedule.CadenceDaily,
				At:      schedule.TimeOfDay{Hour: 9, Minute: 30},
				Content: "Good morning all!",
				Enabled: true,
			}},
		},
		{
			name: "setschedule weekly",
			raw:  "/setschedule weekly 10:00 monday Weekly community update",
			want: SetScheduleCmd{Schedule: schedule.Schedule{
				Cadence: schedule.CadenceWeekly,
				At:      schedule.TimeOfDay{Hour: 10},
				Day:     time.Monday,
				Content: "Weekly community update",
				Enabled: true,
			}},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseCommand(tt.raw)
			if err != nil {
				t.Fatalf("ParseCommand(%q) error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("ParseCommand(%q) = %#v, want %#v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseCommandErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		raw     string
		errPart string
	}{
		{name: "unknown", raw: "/frobnicate", errPart: "unknown command"},
		{name: "announce empty", raw: "/announce", errPart: "usage: /announce"},
		{name: "announce whitespace", raw: "/announce   ", errPart: "usage: /announce"},
		{name: "addadmin missing id", raw: "/addadmin", errPart: "usage: /addadmin"},
		{name: "addadmin bad id", raw: "/addadmin notanumber", errPart: "usage: /addadmin"},
		{name: "setschedule too few args", raw: "/setschedule daily", errPart: setScheduleUsage},
		{name: "setschedule bad cadence", raw: "/setschedule hourly 09:00 hi", errPart: "invalid cadence"},
		{name: "setschedule bad time", raw: "/setschedule daily 25:00 hi", errPart: "invalid hour"},
		{name: "weekly missing day", raw: "/setschedule weekly 10:00 Weekly update", errPart: "weekly schedules need a day"},
		{name: "daily empty text", raw: "/setschedule daily 09:00   ", errPart: setScheduleUsage},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseCommand(tt.raw)
			if err == nil {
				t.Fatalf("ParseCommand(%q): expected error", tt.raw)
			}
			if !strings.Contains(err.Error(), tt.errPart) {
				t.Fatalf("ParseCommand(%q) error = %q, want substring %q", tt.raw, err, tt.errPart)
			}
		})
	}
}

func TestIsCommand(t *testing.T) {
	t.Parallel()
	if !IsCommand("/start") || !IsCommand("  /help") {
		t.Fatal("slash prefix not detected")
	}
	if IsCommand("hello there") || IsCommand("") {
		t.Fatal("plain text misdetected as command")
	}
}
