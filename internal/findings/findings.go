// Package findings is the Finding/Recommendation Writer (C10): it
// materializes the agent loop's two terminal actions into durable rows
// and runs the auto-resolution sweep that closes findings whose
// underlying condition has cleared.
package findings

import (
	"context"
	"fmt"
	"time"

	"github.com/sitewatch/sitewatch/internal/apperr"
	"github.com/sitewatch/sitewatch/internal/bus"
	"github.com/sitewatch/sitewatch/internal/notify"
	"github.com/sitewatch/sitewatch/internal/store"
)

const findingTTL = 48 * time.Hour

// priorityBySeverity maps Finding.Severity to DecisionQueueItem.Priority
// per §4.9's terminal semantics.
var priorityBySeverity = map[store.Severity]int{
	store.SeverityCritical: 10,
	store.SeverityHigh:     8,
	store.SeverityMedium:   5,
}

const defaultPriority = 3
const defaultConfidence = 0.7

// PriorityForSeverity maps a Finding.Severity to a DecisionQueueItem
// priority per §4.9's terminal semantics (critical->10, high->8,
// medium->5, else 3).
func PriorityForSeverity(severity store.Severity) int {
	if p, ok := priorityBySeverity[severity]; ok {
		return p
	}
	return defaultPriority
}

// signalByFindingType maps a finding_type to the spec's finding-type
// specific signal name.
var signalByFindingType = map[string]bus.EventType{
	"traffic_drop":  bus.EventPageTrafficDrop,
	"ranking_loss":  bus.EventPageRankingLoss,
	"speed_alert":   bus.EventPageSpeedAlert,
}

// SubmitInput is everything submit_finding needs to materialize a
// Finding + DecisionQueueItem pair.
type SubmitInput struct {
	PageURL               string
	FindingType           string
	Severity              store.Severity
	Title                 string
	Description           string
	BusinessImpact        string
	AgentLoopIterations   int
	ToolsUsed             []string
	InvestigationSummary  string
	ActionType            string
	ActionSummary         string
	ActionDetail          map[string]any
	Confidence            *float64
	RiskLevel             store.RiskLevel
	HealthScoreAtDetect   *int
}

// Writer wraps the store and signal bus with C10's side-effect
// guarantees: a Finding and its DecisionQueueItem are produced together,
// a ChangeLogEntry is appended, and a Notification is raised.
type Writer struct {
	store  *store.Store
	bus    *bus.Bus
	notify *notify.Service
}

// New builds a Writer. notify.New(s) is nil-safe, so a nil Store/Writer
// pairing degrades to no-op notifications rather than panicking.
func New(s *store.Store, b *bus.Bus) *Writer {
	return &Writer{store: s, bus: b, notify: notify.New(s)}
}

// SubmitFinding materializes the submit_finding terminal action.
func (w *Writer) SubmitFinding(ctx context.Context, in SubmitInput) (findingID int64, queueItemID int64, err error) {
	now := time.Now().UTC()
	expiresAt := now.Add(findingTTL)

	finding := store.Finding{
		PageURL:              &in.PageURL,
		FindingType:          in.FindingType,
		Severity:             in.Severity,
		Title:                in.Title,
		Description:          in.Description,
		BusinessImpact:       in.BusinessImpact,
		AgentLoopIterations:  in.AgentLoopIterations,
		ToolsUsed:            store.JSON[[]string]{Val: in.ToolsUsed},
		InvestigationSummary: in.InvestigationSummary,
		Status:               store.FindingStatusRecommendationDraft,
		ExpiresAt:            &expiresAt,
		HealthScoreAtDetect:  in.HealthScoreAtDetect,
	}

	findingID, err = w.store.InsertFinding(ctx, finding)
	if err != nil {
		return 0, 0, fmt.Errorf("insert finding: %w", err)
	}

	confidence := defaultConfidence
	if in.Confidence != nil {
		confidence = *in.Confidence
	}
	riskLevel := in.RiskLevel
	if riskLevel == "" {
		riskLevel = store.RiskLow
	}
	priority := PriorityForSeverity(in.Severity)

	queueItem := store.DecisionQueueItem{
		FindingID:     &findingID,
		ActionType:    in.ActionType,
		ActionSummary: in.ActionSummary,
		ActionDetail:  store.JSON[map[string]any]{Val: in.ActionDetail},
		Severity:      in.Severity,
		Confidence:    confidence,
		RiskLevel:     riskLevel,
		Priority:      priority,
		Status:        store.QueueStatusPending,
		ExpiresAt:     expiresAt,
	}
	queueItemID, err = w.store.InsertDecisionQueueItem(ctx, queueItem)
	if err != nil {
		return findingID, 0, fmt.Errorf("insert decision queue item: %w", err)
	}

	if _, err := w.store.AppendChangeLogEntry(ctx, store.ChangeLogEntry{
		Action:  "finding_submitted",
		Detail:  store.JSON[map[string]any]{Val: map[string]any{"finding_id": findingID, "page_url": in.PageURL, "finding_type": in.FindingType}},
		Outcome: store.OutcomePending,
	}); err != nil {
		return findingID, queueItemID, fmt.Errorf("append change log: %w", err)
	}

	w.notify.NotifyFindingCreated(ctx, notify.FindingInput{
		FindingID:   findingID,
		PageURL:     in.PageURL,
		Severity:    in.Severity,
		FindingType: in.FindingType,
		Description: in.Title,
	})

	if eventType, ok := signalByFindingType[in.FindingType]; ok {
		w.bus.Emit(ctx, eventType, map[string]any{"page_url": in.PageURL, "finding_id": findingID, "severity": string(in.Severity)})
	}
	if in.HealthScoreAtDetect != nil && *in.HealthScoreAtDetect < 30 {
		w.bus.Emit(ctx, bus.EventPageHealthCritical, map[string]any{"page_url": in.PageURL, "health_score": *in.HealthScoreAtDetect})
	}

	return findingID, queueItemID, nil
}

// SkipFinding materializes the skip_finding terminal action: a
// skipped Finding, strictly for audit, with no decision queue item.
func (w *Writer) SkipFinding(ctx context.Context, pageURL, reason, investigationSummary string, iterations int, toolsUsed []string) (int64, error) {
	if reason == "" {
		reason = "no reason given"
	}
	finding := store.Finding{
		PageURL:              &pageURL,
		FindingType:          "skipped",
		Severity:             store.SeverityLow,
		Title:                "Investigation skipped",
		Status:               store.FindingStatusSkipped,
		SkipReason:           reason,
		AgentLoopIterations:  iterations,
		ToolsUsed:            store.JSON[[]string]{Val: toolsUsed},
		InvestigationSummary: investigationSummary,
	}
	id, err := w.store.InsertFinding(ctx, finding)
	if err != nil {
		return 0, fmt.Errorf("insert skipped finding: %w", err)
	}

	if _, err := w.store.AppendChangeLogEntry(ctx, store.ChangeLogEntry{
		Action:  "finding_skipped",
		Detail:  store.JSON[map[string]any]{Val: map[string]any{"finding_id": id, "page_url": pageURL, "reason": reason}},
		Outcome: store.OutcomePending,
	}); err != nil {
		return id, fmt.Errorf("append change log: %w", err)
	}
	return id, nil
}

// Review applies a human reviewer's approve/reject decision: updates the
// queue item, mirrors the outcome onto the finding, appends a log entry,
// and raises a notification; the last three run only when the queue item
// references a finding. A queue item that is no longer pending yields
// apperr.ErrReviewConflict. The writes are separate store calls, not one
// transaction: if a later one fails, its error is returned and the
// earlier writes stay in place.
func (w *Writer) Review(ctx context.Context, queueItemID int64, approve bool, reviewer, notes string) error {
	ok, err := w.store.ReviewQueueItem(ctx, queueItemID, approve, reviewer, notes)
	if err != nil {
		return fmt.Errorf("review queue item %d: %w", queueItemID, err)
	}
	if !ok {
		return fmt.Errorf("%w: queue item %d is not pending", apperr.ErrReviewConflict, queueItemID)
	}

	item, err := w.store.GetQueueItem(ctx, queueItemID)
	if err != nil {
		return fmt.Errorf("reload queue item %d: %w", queueItemID, err)
	}
	if item != nil && item.FindingID != nil {
		newStatus := store.FindingStatusExpired
		outcome := store.OutcomeRejected
		if approve {
			newStatus = store.FindingStatusApproved
			outcome = store.OutcomeExecuted
		}
		if err := w.store.UpdateFindingStatus(ctx, *item.FindingID, newStatus); err != nil {
			return fmt.Errorf("mirror finding status: %w", err)
		}

		by := reviewer
		executedAt := time.Now().UTC()
		if _, err := w.store.AppendChangeLogEntry(ctx, store.ChangeLogEntry{
			Action:     "queue_item_reviewed",
			Detail:     store.JSON[map[string]any]{Val: map[string]any{"queue_item_id": queueItemID, "approve": approve, "notes": notes}},
			Outcome:    outcome,
			ExecutedAt: &executedAt,
			ExecutedBy: &by,
		}); err != nil {
			return fmt.Errorf("append change log: %w", err)
		}

		message := fmt.Sprintf("Recommendation %d rejected", queueItemID)
		if approve {
			message = fmt.Sprintf("Recommendation %d approved", queueItemID)
		}
		if err := w.store.InsertNotification(ctx, store.Notification{
			Severity:  item.Severity,
			Message:   message,
			FindingID: item.FindingID,
		}); err != nil {
			return fmt.Errorf("insert notification: %w", err)
		}
	}
	return nil
}

// RunAutoResolution closes findings whose underlying page has since
// returned to a non-flagged health score, sweeping every page with at
// least one open finding.
func (w *Writer) RunAutoResolution(ctx context.Context, pages []store.Page) (int, error) {
	resolved := 0
	for _, p := range pages {
		if p.HealthScore == nil || *p.HealthScore < 50 {
			continue
		}
		open, err := w.store.OpenFindingsForPage(ctx, p.URL)
		if err != nil {
			return resolved, fmt.Errorf("open findings for %q: %w", p.URL, err)
		}
		for _, f := range open {
			if f.Status != store.FindingStatusRecommendationDraft && f.Status != store.FindingStatusApproved {
				continue
			}
			if err := w.store.ResolveFinding(ctx, f.ID, *p.HealthScore); err != nil {
				return resolved, fmt.Errorf("resolve finding %d: %w", f.ID, err)
			}
			resolved++
		}
	}
	return resolved, nil
}
