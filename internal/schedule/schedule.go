// Package schedule holds the recurring-announcement model and the pure
// trigger evaluation used by the scheduler loop.
package schedule

import (
	"fmt"
	"time"
)

// Cadence is the recurrence pattern of a schedule.
type Cadence string

const (
	CadenceDaily  Cadence = "daily"
	CadenceWeekly Cadence = "weekly"
)

// TimeOfDay is a wall-clock trigger time, local to the evaluation time zone.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) minutes() int { return t.Hour*60 + t.Minute }

// Schedule is a persisted recurring broadcast definition.
type Schedule struct {
	ID      int64
	Cadence Cadence
	At      TimeOfDay
	// Day is meaningful only when Cadence is CadenceWeekly.
	Day     time.Weekday
	Content string
	// LastFiredAt is nil if the schedule never fired. Once set it never
	// regresses; the store is the single writer.
	LastFiredAt *time.Time
	Enabled     bool
}

// Due returns the schedules that are due at now, evaluated in loc.
//
// A daily schedule is due when the local time of day has crossed At and the
// last fire (if any) was on an earlier calendar day. A weekly schedule
// additionally requires the local weekday to match and the last fire to fall
// in an earlier ISO week. Disabled schedules are never due.
//
// Pure function: no clock reads, no I/O. The "crossed" test is >= rather
// than ==, so a loop ticking coarser than a minute still fires within one
// tick after the due instant (and never before it). On a DST spring-forward
// day a trigger time inside the skipped hour fires at the first tick after
// the jump.
func Due(now time.Time, loc *time.Location, all []Schedule) []Schedule {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)

	var due []Schedule
	for _, s := range all {
		if s.due(local, loc) {
			due = append(due, s)
		}
	}
	return due
}

func (s Schedule) due(local time.Time, loc *time.Location) bool {
	if !s.Enabled {
		return false
	}
	nowMinutes := local.Hour()*60 + local.Minute()
	if nowMinutes < s.At.minutes() {
		return false
	}

	switch s.Cadence {
	case CadenceDaily:
		return s.LastFiredAt == nil || beforeDay(s.LastFiredAt.In(loc), local)
	case CadenceWeekly:
		if local.Weekday() != s.Day {
			return false
		}
		return s.LastFiredAt == nil || beforeWeek(s.LastFiredAt.In(loc), local)
	}
	return false
}

// beforeDay reports whether a falls on a calendar day strictly before b.
func beforeDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	if ay != by {
		return ay < by
	}
	if am != bm {
		return am < bm
	}
	return ad < bd
}

// beforeWeek reports whether a falls in an ISO week strictly before b's.
func beforeWeek(a, b time.Time) bool {
	ay, aw := a.ISOWeek()
	by, bw := b.ISOWeek()
	if ay != by {
		return ay < by
	}
	return aw < bw
}
