// Package bus is the C3 Signal Bus: a thin, typed wrapper over the
// append-only signals table, giving every producer/consumer in
// sitewatch a closed vocabulary of event names instead of passing raw
// strings around. Emit never returns a fatal error to its caller — the
// bus is best-effort cross-agent coordination, so a write failure is
// logged and swallowed, matching spec.md §4.3 ("never throws").
package bus

import (
	"context"
	"log/slog"
	"time"

	"github.com/sitewatch/sitewatch/internal/store"
)

// EventType is the closed set of event names producers emit and
// consumers filter on.
type EventType string

const (
	EventPageTrafficDrop    EventType = "page_traffic_drop"
	EventPageRankingLoss    EventType = "page_ranking_loss"
	EventPageSpeedAlert     EventType = "page_speed_alert"
	EventPageHealthCritical EventType = "page_health_critical"
	EventTrendingSearchTerm EventType = "trending_search_term"
	EventHighCPCAlert       EventType = "high_cpc_alert"
	EventHealthScanComplete EventType = "health_scan_complete"
	EventSiteTrafficDrop    EventType = "site_traffic_change"
	EventNewBrokenLinks     EventType = "new_broken_links"
)

// sourceAgent identifies sitewatch's own signals in the shared log so
// other producers' signals (trending_search_term, high_cpc_alert) can be
// distinguished from sitewatch's own emissions when querying broadly.
const sourceAgent = "thyme"

// Bus wraps store.Store with the closed event vocabulary.
type Bus struct {
	store *store.Store
}

// New builds a Bus over an already-connected Store.
func New(s *store.Store) *Bus {
	return &Bus{store: s}
}

// Emit appends a signal. Failures are logged and swallowed per §4.3.
func (b *Bus) Emit(ctx context.Context, eventType EventType, payload map[string]any) {
	sig := store.Signal{
		SourceAgent: sourceAgent,
		EventType:   string(eventType),
		Payload:     store.JSON[map[string]any]{Val: payload},
	}
	if err := b.store.AppendSignal(ctx, sig); err != nil {
		slog.Warn("signal bus emit failed", "event_type", eventType, "error", err)
	}
}

// Query returns signals of any of the given event types within the
// window, optionally restricted to a single source agent (empty string
// means any producer).
func (b *Bus) Query(ctx context.Context, sourceAgentFilter string, eventTypes []EventType, since time.Time, limit int) ([]store.Signal, error) {
	names := make([]string, len(eventTypes))
	for i, et := range eventTypes {
		names[i] = string(et)
	}
	return b.store.QuerySignals(ctx, sourceAgentFilter, names, since, limit)
}

// QueryPayloadField applies a gojq expression across payloads matching
// eventType within the window, used by the weekly keyword-coverage sweep
// (§4.11 step 6) to pull a field out of third-party producers' opaque
// signal payloads.
func (b *Bus) QueryPayloadField(ctx context.Context, eventType EventType, jqExpr string, since time.Time) ([]any, error) {
	return b.store.QuerySignalPayloads(ctx, string(eventType), jqExpr, since)
}
