package store

import (
	"context"
	"fmt"
	"time"
)

// InsertDecisionQueueItem files a recommendation for human review (C10).
func (s *Store) InsertDecisionQueueItem(ctx context.Context, item DecisionQueueItem) (int64, error) {
	rows, err := s.db.NamedQueryContext(ctx, `
		INSERT INTO decision_queue_items (
			finding_id, action_type, action_summary, action_detail, severity,
			confidence, risk_level, priority, status, expires_at
		) VALUES (
			:finding_id, :action_type, :action_summary, :action_detail, :severity,
			:confidence, :risk_level, :priority, :status, :expires_at
		) RETURNING id
	`, item)
	if err != nil {
		return 0, fmt.Errorf("insert decision queue item: %w", err)
	}
	defer rows.Close()
	var id int64
	if rows.Next() {
		if err := rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("scan decision queue item id: %w", err)
		}
	}
	return id, nil
}

// PendingQueueItems returns every item still awaiting review, highest
// priority first.
func (s *Store) PendingQueueItems(ctx context.Context) ([]DecisionQueueItem, error) {
	var items []DecisionQueueItem
	err := s.db.SelectContext(ctx, &items, `
		SELECT * FROM decision_queue_items
		WHERE status = 'pending'
		ORDER BY priority DESC, created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("pending queue items: %w", err)
	}
	return items, nil
}

// GetQueueItem fetches a single decision queue item by id.
func (s *Store) GetQueueItem(ctx context.Context, id int64) (*DecisionQueueItem, error) {
	var item DecisionQueueItem
	err := s.db.GetContext(ctx, &item, `SELECT * FROM decision_queue_items WHERE id = $1`, id)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get queue item %d: %w", id, err)
	}
	return &item, nil
}

// ReviewQueueItem records a human reviewer's approve/reject decision.
// It reports false when the item is no longer pending — the UPDATE's
// affected-row count signals that race to findings.Writer.Review, which
// turns it into apperr.ErrReviewConflict.
func (s *Store) ReviewQueueItem(ctx context.Context, id int64, approve bool, reviewer, notes string) (bool, error) {
	status := QueueStatusRejected
	if approve {
		status = QueueStatusApproved
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE decision_queue_items
		SET status = $2, reviewer = $3, reviewed_at = now(), review_notes = $4
		WHERE id = $1 AND status = 'pending'
	`, id, status, reviewer, notes)
	if err != nil {
		return false, fmt.Errorf("review queue item %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("review queue item %d rows affected: %w", id, err)
	}
	return n == 1, nil
}

// ExpirePastDueQueueItems marks pending items whose expires_at has
// passed as expired, returning the count affected.
func (s *Store) ExpirePastDueQueueItems(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE decision_queue_items
		SET status = 'expired'
		WHERE status = 'pending' AND expires_at < $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("expire past due queue items: %w", err)
	}
	return res.RowsAffected()
}
