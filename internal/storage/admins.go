package storage

import (
	"context"
	"time"
)

func (s *Store) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM admins WHERE user_id = ?`, userID).Scan(&one)
	if err == nil {
		return true, nil
	}
	if isNoRows(err) {
		return false, nil
	}
	return false, err
}

// AddAdmin grants admin rights. Adding an existing admin is a no-op.
func (s *Store) AddAdmin(ctx context.Context, userID, addedBy int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO admins(user_id, added_by, added_at) VALUES(?,?,?)
		 ON CONFLICT(user_id) DO NOTHING`,
		userID, addedBy, time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// RemoveAdmin revokes admin rights. Returns ErrNotFound if the user was
// not an admin.
func (s *Store) RemoveAdmin(ctx context.Context, userID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM admins WHERE user_id = ?`, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListAdmins(ctx context.Context) ([]Admin, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, added_by, added_at FROM admins ORDER BY added_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Admin
	for rows.Next() {
		var (
			a  Admin
			at string
		)
		if err := rows.Scan(&a.ID, &a.AddedBy, &at); err != nil {
			return nil, err
		}
		a.AddedAt, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) CountAdmins(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM admins`).Scan(&n)
	return n, err
}
