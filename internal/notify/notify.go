// Package notify formats and records user-visible notifications (C10),
// grounded on the teacher's Slack service (pkg/slack/service.go,
// pkg/slack/message.go): the same validate -> format -> emit shape, but
// emitting into the notifications table rather than a Slack channel,
// since sitewatch has no external notification channel in scope.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sitewatch/sitewatch/internal/store"
)

var severityEmoji = map[store.Severity]string{
	store.SeverityCritical: ":rotating_light:",
	store.SeverityHigh:     ":warning:",
	store.SeverityMedium:   ":large_orange_diamond:",
	store.SeverityLow:      ":information_source:",
}

var severityLabel = map[store.Severity]string{
	store.SeverityCritical: "Critical",
	store.SeverityHigh:     "High",
	store.SeverityMedium:   "Medium",
	store.SeverityLow:      "Low",
}

// Service formats and records notifications. Nil-safe: every method is a
// no-op on a nil receiver, matching the teacher's nil-safe Slack Service.
type Service struct {
	store  *store.Store
	logger *slog.Logger
}

// New builds a Service over an already-connected Store. Returns nil if s
// is nil, so a misconfigured caller degrades to the no-op path instead of
// panicking on first use.
func New(s *store.Store) *Service {
	if s == nil {
		return nil
	}
	return &Service{store: s, logger: slog.Default().With("component", "notify")}
}

// FindingInput describes a new finding surfaced for review.
type FindingInput struct {
	FindingID   int64
	PageURL     string
	Severity    store.Severity
	FindingType string
	Description string
}

// NotifyFindingCreated records a notification for a freshly written
// finding (§4.9 "submit" path). Fail-open: storage errors are logged,
// never returned, matching the bus's "never throws" posture (§4.3).
func (s *Service) NotifyFindingCreated(ctx context.Context, in FindingInput) {
	if s == nil {
		return
	}
	msg := formatFindingMessage(in)
	n := store.Notification{
		Severity:  in.Severity,
		Message:   msg,
		FindingID: &in.FindingID,
	}
	if err := s.store.InsertNotification(ctx, n); err != nil {
		s.logger.Error("failed to record finding notification",
			"finding_id", in.FindingID, "page_url", in.PageURL, "error", err)
	}
}

// DigestInput describes a completed weekly digest (§4.11 step 9).
type DigestInput struct {
	DigestID       int64
	PagesAudited   int
	BrokenLinks    int
	TrackingHealth string
}

// NotifyDigestReady records a notification that the weekly digest is
// available. Fail-open, same posture as NotifyFindingCreated.
func (s *Service) NotifyDigestReady(ctx context.Context, in DigestInput) {
	if s == nil {
		return
	}
	msg := fmt.Sprintf("%s Weekly digest ready: %d pages audited, %d broken links, tracking %s.",
		severityEmoji[store.SeverityLow], in.PagesAudited, in.BrokenLinks, in.TrackingHealth)
	n := store.Notification{Severity: store.SeverityLow, Message: msg}
	if err := s.store.InsertNotification(ctx, n); err != nil {
		s.logger.Error("failed to record digest notification", "digest_id", in.DigestID, "error", err)
	}
}

func formatFindingMessage(in FindingInput) string {
	emoji := severityEmoji[in.Severity]
	if emoji == "" {
		emoji = ":question:"
	}
	label := severityLabel[in.Severity]
	if label == "" {
		label = string(in.Severity)
	}
	return fmt.Sprintf("%s [%s] %s: %s", emoji, label, in.PageURL, in.Description)
}
