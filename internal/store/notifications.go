package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"

	"github.com/sermady/stockdata-core/internal/apperr"
	"github.com/sermady/stockdata-core/internal/domain"
)

// PutNotification durably persists n, then prunes userID's history down
// to the ring-buffer retention policy of §3: keep the smaller of the
// last domain.NotificationRetentionDays days and
// domain.NotificationRetentionCount rows. Callers broadcast to live
// subscribers only after this returns successfully.
func (s *Store) PutNotification(ctx context.Context, n domain.Notification) error {
	metadata, err := json.Marshal(n.Metadata)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "marshal notification metadata", err)
	}
	_, err = s.db.Conn().ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, type, title, content, link, source, severity, status, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.UserID, string(n.Type), n.Title, n.Content, n.Link, n.Source, string(n.Severity),
		string(n.Status), metadata, n.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return apperr.Wrap(apperr.StoreUnavailable, "insert notification", err)
	}
	return s.pruneNotifications(ctx, n.UserID)
}

// pruneNotifications deletes everything for userID older than the
// retention window, then trims any remainder beyond the row-count cap,
// keeping the newest domain.NotificationRetentionCount rows.
func (s *Store) pruneNotifications(ctx context.Context, userID string) error {
	cutoff := "datetime('now', '-" + strconv.Itoa(domain.NotificationRetentionDays) + " days')"
	if _, err := s.db.Conn().ExecContext(ctx, `
		DELETE FROM notifications WHERE user_id = ? AND created_at < `+cutoff, userID); err != nil {
		return apperr.Wrap(apperr.StoreUnavailable, "prune notifications by age", err)
	}

	if _, err := s.db.Conn().ExecContext(ctx, `
		DELETE FROM notifications WHERE user_id = ? AND id NOT IN (
			SELECT id FROM notifications WHERE user_id = ? ORDER BY created_at DESC LIMIT ?
		)
	`, userID, userID, domain.NotificationRetentionCount); err != nil {
		return apperr.Wrap(apperr.StoreUnavailable, "prune notifications by count", err)
	}
	return nil
}

// ListNotifications returns userID's notifications newest-first, paginated
// by limit/offset.
func (s *Store) ListNotifications(ctx context.Context, userID string, limit, offset int) ([]domain.Notification, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT id, user_id, type, title, content, link, source, severity, status, metadata, created_at
		FROM notifications WHERE user_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?
	`, userID, limit, offset)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreUnavailable, "list notifications", err)
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var typ, severity, status, createdAt string
		var metadata sql.NullString
		if err := rows.Scan(&n.ID, &n.UserID, &typ, &n.Title, &n.Content, &n.Link, &n.Source,
			&severity, &status, &metadata, &createdAt); err != nil {
			return nil, apperr.Wrap(apperr.StoreUnavailable, "scan notification", err)
		}
		n.Type = domain.NotificationType(typ)
		n.Severity = domain.Severity(severity)
		n.Status = domain.ReadStatus(status)
		n.CreatedAt = parseTime(createdAt)
		if metadata.Valid && metadata.String != "" {
			_ = json.Unmarshal([]byte(metadata.String), &n.Metadata)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// CountUnread returns the number of unread notifications for userID.
func (s *Store) CountUnread(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.Conn().QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notifications WHERE user_id = ? AND status = ?
	`, userID, string(domain.StatusUnread)).Scan(&n)
	if err != nil {
		return 0, apperr.Wrap(apperr.StoreUnavailable, "count unread", err)
	}
	return n, nil
}

// MarkRead marks one notification read. Idempotent: marking an
// already-read notification read again succeeds silently.
func (s *Store) MarkRead(ctx context.Context, userID, id string) error {
	_, err := s.db.Conn().ExecContext(ctx, `
		UPDATE notifications SET status = ? WHERE id = ? AND user_id = ?
	`, string(domain.StatusRead), id, userID)
	if err != nil {
		return apperr.Wrap(apperr.StoreUnavailable, "mark notification read", err)
	}
	return nil
}

// MarkAllRead marks every unread notification for userID read, and
// returns how many rows were changed.
func (s *Store) MarkAllRead(ctx context.Context, userID string) (int, error) {
	res, err := s.db.Conn().ExecContext(ctx, `
		UPDATE notifications SET status = ? WHERE user_id = ? AND status = ?
	`, string(domain.StatusRead), userID, string(domain.StatusUnread))
	if err != nil {
		return 0, apperr.Wrap(apperr.StoreUnavailable, "mark all read", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperr.Wrap(apperr.StoreUnavailable, "mark all read rows affected", err)
	}
	return int(n), nil
}
