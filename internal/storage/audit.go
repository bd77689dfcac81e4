package storage

import (
	"context"
	"time"
)

// AppendBroadcastAudit records the summary of one dispatch.
func (s *Store) AppendBroadcastAudit(ctx context.Context, e AuditEntry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO broadcast_audit(at_ms, kind, total, delivered, failed, took_ms)
		 VALUES(?,?,?,?,?,?)`,
		e.At.UnixMilli(), e.Kind, e.Total, e.Delivered, e.Failed, e.TookMS)
	return err
}

// PruneBroadcastAudit deletes audit rows older than cutoff and reports how
// many were removed.
func (s *Store) PruneBroadcastAudit(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM broadcast_audit WHERE at_ms < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
