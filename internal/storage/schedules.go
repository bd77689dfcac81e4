package storage

import (
	"context"
	"database/sql"
	"time"

	"communibot/internal/schedule"
)

// ListEnabledSchedules returns the schedules the loop should evaluate.
func (s *Store) ListEnabledSchedules(ctx context.Context) ([]schedule.Schedule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, cadence, at_hour, at_minute, day_of_week, content, last_fired_ms, enabled
		 FROM schedules WHERE enabled = 1 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schedule.Schedule
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// UpsertScheduleByCadence replaces the schedule with the given cadence, or
// creates it. The command surface keeps one daily and one weekly
// announcement, mirroring the bot's settings model; replacing a schedule
// resets its fired state so the new content goes out at the next trigger.
func (s *Store) UpsertScheduleByCadence(ctx context.Context, sc schedule.Schedule) (schedule.Schedule, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM schedules WHERE cadence = ? ORDER BY id LIMIT 1`,
		string(sc.Cadence)).Scan(&id)
	switch {
	case isNoRows(err):
		id, err = s.insertSchedule(ctx, sc)
		if err != nil {
			return schedule.Schedule{}, err
		}
	case err != nil:
		return schedule.Schedule{}, err
	default:
		_, err = s.db.ExecContext(ctx,
			`UPDATE schedules
			 SET at_hour=?, at_minute=?, day_of_week=?, content=?, last_fired_ms=NULL, enabled=?
			 WHERE id=?`,
			sc.At.Hour, sc.At.Minute, int(sc.Day), sc.Content, boolInt(sc.Enabled), id)
		if err != nil {
			return schedule.Schedule{}, err
		}
	}
	sc.ID = id
	sc.LastFiredAt = nil
	return sc, nil
}

func (s *Store) insertSchedule(ctx context.Context, sc schedule.Schedule) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO schedules(cadence, at_hour, at_minute, day_of_week, content, last_fired_ms, enabled)
		 VALUES(?,?,?,?,?,NULL,?)`,
		string(sc.Cadence), sc.At.Hour, sc.At.Minute, int(sc.Day), sc.Content, boolInt(sc.Enabled))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// RecordFired persists the fire timestamp for one schedule. The guard
// keeps last_fired_ms monotonic: a stale writer can never move it back.
func (s *Store) RecordFired(ctx context.Context, id int64, firedAt time.Time) error {
	ms := firedAt.UnixMilli()
	_, err := s.db.ExecContext(ctx,
		`UPDATE schedules SET last_fired_ms = ?
		 WHERE id = ? AND (last_fired_ms IS NULL OR last_fired_ms < ?)`,
		ms, id, ms)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner) (schedule.Schedule, error) {
	var (
		sc      schedule.Schedule
		cadence string
		day     int
		firedMS sql.NullInt64
		enabled int
	)
	if err := row.Scan(&sc.ID, &cadence, &sc.At.Hour, &sc.At.Minute, &day, &sc.Content, &firedMS, &enabled); err != nil {
		return schedule.Schedule{}, err
	}
	sc.Cadence = schedule.Cadence(cadence)
	sc.Day = time.Weekday(day)
	sc.Enabled = enabled != 0
	if firedMS.Valid {
		t := time.UnixMilli(firedMS.Int64).UTC()
		sc.LastFiredAt = &t
	}
	return sc, nil
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
