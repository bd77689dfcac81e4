package storage

import (
	"context"
	"time"

	"communibot/internal/transport"
)

// UpsertUser inserts the user or refreshes its profile fields and
// last_active timestamp.
func (s *Store) UpsertUser(ctx context.Context, u User) error {
	now := time.Now().UTC()
	if u.LastActive.IsZero() {
		u.LastActive = now
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(user_id, username, first_name, last_name, created_at, last_active)
		 VALUES(?,?,?,?,?,?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   username=excluded.username,
		   first_name=excluded.first_name,
		   last_name=excluded.last_name,
		   last_active=excluded.last_active`,
		u.ID, nullStr(u.Username), nullStr(u.FirstName), nullStr(u.LastName),
		u.CreatedAt.Format(time.RFC3339Nano), u.LastActive.Format(time.RFC3339Nano),
	)
	return err
}

// ListRecipients returns every known user id. This is the broadcast roster.
func (s *Store) ListRecipients(ctx context.Context) ([]transport.RecipientID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM users ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []transport.RecipientID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, transport.RecipientID(id))
	}
	return out, rows.Err()
}

func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}
