package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseCadence accepts "daily" or "weekly" (case-insensitive).
func ParseCadence(raw string) (Cadence, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "daily":
		return CadenceDaily, nil
	case "weekly":
		return CadenceWeekly, nil
	}
	return "", fmt.Errorf("invalid cadence %q (want daily or weekly)", raw)
}

// ParseTimeOfDay parses "HH:MM" in 24-hour time.
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), ":", 2)
	if len(parts) != 2 {
		return TimeOfDay{}, fmt.Errorf("invalid time %q (want HH:MM)", raw)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q", raw)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q", raw)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// ParseWeekday accepts full or three-letter English day names.
func ParseWeekday(raw string) (time.Weekday, error) {
	if d, ok := weekdays[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return d, nil
	}
	return 0, fmt.Errorf("invalid day %q (want e.g. monday)", raw)
}
