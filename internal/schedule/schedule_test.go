package schedule

import (
	"testing"
	"time"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Skipf("time zone %s unavailable: %v", name, err)
	}
	return loc
}

func ts(loc *time.Location, y int, mo time.Month, d, h, mi int) time.Time {
	return time.Date(y, mo, d, h, mi, 0, 0, loc)
}

func TestDueDaily(t *testing.T) {
	t.Parallel()
	loc := time.UTC
	fired := ts(loc, 2026, time.March, 2, 9, 0)

	tests := []struct {
		name string
		s    Schedule
		now  time.Time
		want bool
	}{
		{
			name: "never fired, at trigger time",
			s:    Schedule{Cadence: CadenceDaily, At: TimeOfDay{9, 0}, Enabled: true},
			now:  ts(loc, 2026, time.March, 2, 9, 0),
			want: true,
		},
		{
			name: "never fired, after trigger time",
			s:    Schedule{Cadence: CadenceDaily, At: TimeOfDay{9, 0}, Enabled: true},
			now:  ts(loc, 2026, time.March, 2, 14, 30),
			want: true,
		},
		{
			name: "never fired, before trigger time",
			s:    Schedule{Cadence: CadenceDaily, At: TimeOfDay{9, 0}, Enabled: true},
			now:  ts(loc, 2026, time.March, 2, 8, 59),
			want: false,
		},
		{
			name: "fired earlier today",
			s:    Schedule{Cadence: CadenceDaily, At: TimeOfDay{9, 0}, LastFiredAt: &fired, Enabled: true},
			now:  ts(loc, 2026, time.March, 2, 14, 0),
			want: false,
		},
		{
			name: "fired yesterday",
			s:    Schedule{Cadence: CadenceDaily, At: TimeOfDay{9, 0}, LastFiredAt: &fired, Enabled: true},
			now:  ts(loc, 2026, time.March, 3, 9, 5),
			want: true,
		},
		{
			name: "disabled never due",
			s:    Schedule{Cadence: CadenceDaily, At: TimeOfDay{9, 0}, Enabled: false},
			now:  ts(loc, 2026, time.March, 2, 9, 5),
			want: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Due(tt.now, loc, []Schedule{tt.s})
			if (len(got) == 1) != tt.want {
				t.Fatalf("due = %v, want %v", len(got) == 1, tt.want)
			}
		})
	}
}

func TestDueWeekly(t *testing.T) {
	t.Parallel()
	loc := time.UTC
	// 2026-03-02 is a Monday.
	monday := func(h, m int) time.Time { return ts(loc, 2026, time.March, 2, h, m) }

	s := Schedule{Cadence: CadenceWeekly, Day: time.Monday, At: TimeOfDay{9, 0}, Enabled: true}

	if got := Due(monday(9, 5), loc, []Schedule{s}); len(got) != 1 {
		t.Fatal("expected due on Monday 09:05")
	}
	if got := Due(monday(8, 55), loc, []Schedule{s}); len(got) != 0 {
		t.Fatal("expected not due on Monday 08:55")
	}

	// Already fired this Monday: stays quiet for the rest of the week's period.
	firedAt := monday(9, 5)
	s.LastFiredAt = &firedAt
	if got := Due(monday(14, 0), loc, []Schedule{s}); len(got) != 0 {
		t.Fatal("expected not due again on same Monday after firing")
	}
	// Next Monday is a new ISO week.
	if got := Due(ts(loc, 2026, time.March, 9, 9, 5), loc, []Schedule{s}); len(got) != 1 {
		t.Fatal("expected due on the following Monday")
	}
	// Wrong weekday never fires.
	if got := Due(ts(loc, 2026, time.March, 10, 9, 5), loc, []Schedule{s}); len(got) != 0 {
		t.Fatal("expected not due on Tuesday")
	}
}

func TestDueIsPure(t *testing.T) {
	t.Parallel()
	loc := time.UTC
	in := []Schedule{
		{ID: 1, Cadence: CadenceDaily, At: TimeOfDay{9, 0}, Enabled: true},
		{ID: 2, Cadence: CadenceWeekly, Day: time.Monday, At: TimeOfDay{10, 0}, Enabled: true},
		{ID: 3, Cadence: CadenceDaily, At: TimeOfDay{23, 0}, Enabled: true},
	}
	now := ts(loc, 2026, time.March, 2, 12, 0)

	first := Due(now, loc, in)
	second := Due(now, loc, in)
	if len(first) != len(second) {
		t.Fatalf("repeated evaluation differs: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("repeated evaluation differs at %d: %d vs %d", i, first[i].ID, second[i].ID)
		}
	}
	if in[0].LastFiredAt != nil {
		t.Fatal("evaluation mutated input")
	}
}

func TestDueRespectsLocation(t *testing.T) {
	t.Parallel()
	loc := mustLoc(t, "Asia/Jakarta") // UTC+7, no DST
	s := Schedule{Cadence: CadenceDaily, At: TimeOfDay{9, 0}, Enabled: true}

	// 01:30 UTC = 08:30 Jakarta: not yet due.
	if got := Due(time.Date(2026, time.March, 2, 1, 30, 0, 0, time.UTC), loc, []Schedule{s}); len(got) != 0 {
		t.Fatal("expected not due at 08:30 local")
	}
	// 02:30 UTC = 09:30 Jakarta: due.
	if got := Due(time.Date(2026, time.March, 2, 2, 30, 0, 0, time.UTC), loc, []Schedule{s}); len(got) != 1 {
		t.Fatal("expected due at 09:30 local")
	}
}

func TestDueDSTSpringForward(t *testing.T) {
	t.Parallel()
	loc := mustLoc(t, "America/New_York")
	// 2026-03-08: clocks jump from 02:00 to 03:00 local. A 02:30 trigger
	// has no exact wall time that day; it fires at the first tick after
	// the jump.
	s := Schedule{Cadence: CadenceDaily, At: TimeOfDay{2, 30}, Enabled: true}

	before := time.Date(2026, time.March, 8, 1, 59, 0, 0, loc)
	if got := Due(before, loc, []Schedule{s}); len(got) != 0 {
		t.Fatal("expected not due at 01:59 local")
	}
	after := time.Date(2026, time.March, 8, 3, 1, 0, 0, loc)
	if got := Due(after, loc, []Schedule{s}); len(got) != 1 {
		t.Fatal("expected due at 03:01 local (skipped hour)")
	}
}

func TestDueDSTFallBackNoDoubleFire(t *testing.T) {
	t.Parallel()
	loc := mustLoc(t, "America/New_York")
	// 2026-11-01: clocks fall back at 02:00. The 01:30 wall time occurs
	// twice; a fire during the first pass must suppress the second.
	s := Schedule{Cadence: CadenceDaily, At: TimeOfDay{1, 30}, Enabled: true}

	firstPass := time.Date(2026, time.November, 1, 5, 31, 0, 0, time.UTC) // 01:31 EDT
	got := Due(firstPass, loc, []Schedule{s})
	if len(got) != 1 {
		t.Fatal("expected due on first pass through 01:31")
	}
	fired := firstPass
	s.LastFiredAt = &fired

	secondPass := time.Date(2026, time.November, 1, 6, 31, 0, 0, time.UTC) // 01:31 EST, same day
	if got := Due(secondPass, loc, []Schedule{s}); len(got) != 0 {
		t.Fatal("expected no double fire on repeated wall time")
	}
}
