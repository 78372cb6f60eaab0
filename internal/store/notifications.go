package store

import (
	"context"
	"fmt"
)

// InsertNotification records a user-visible surfacing of a recommendation
// or review outcome (C10).
func (s *Store) InsertNotification(ctx context.Context, n Notification) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO notifications (severity, message, finding_id)
		VALUES (:severity, :message, :finding_id)
	`, n)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// UnreadNotifications serves the notifications read API.
func (s *Store) UnreadNotifications(ctx context.Context) ([]Notification, error) {
	var notifs []Notification
	err := s.db.SelectContext(ctx, &notifs, `
		SELECT * FROM notifications WHERE read_at IS NULL ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("unread notifications: %w", err)
	}
	return notifs, nil
}

// MarkNotificationRead clears a notification's unread state.
func (s *Store) MarkNotificationRead(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE notifications SET read_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark notification %d read: %w", id, err)
	}
	return nil
}
