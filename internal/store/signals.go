package store

import (
	"context"
	"fmt"
	"time"

	"github.com/itchyny/gojq"
)

// AppendSignal writes a cross-agent coordination record (C3). The signal
// bus is append-only: consumers filter the log rather than mutating it.
func (s *Store) AppendSignal(ctx context.Context, sig Signal) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO signals (source_agent, event_type, payload)
		VALUES (:source_agent, :event_type, :payload)
	`, sig)
	if err != nil {
		return fmt.Errorf("append signal %q: %w", sig.EventType, err)
	}
	return nil
}

// SignalsSince returns every signal of a given event type recorded after
// the cutoff, newest first.
func (s *Store) SignalsSince(ctx context.Context, eventType string, since time.Time) ([]Signal, error) {
	var sigs []Signal
	err := s.db.SelectContext(ctx, &sigs, `
		SELECT * FROM signals
		WHERE event_type = $1 AND created_at >= $2
		ORDER BY created_at DESC
	`, eventType, since)
	if err != nil {
		return nil, fmt.Errorf("signals since for %q: %w", eventType, err)
	}
	return sigs, nil
}

// QuerySignals implements C3's general query contract: filter by
// source_agent (optional, empty means any), event_type membership, a
// time window, and a result limit.
func (s *Store) QuerySignals(ctx context.Context, sourceAgent string, eventTypes []string, since time.Time, limit int) ([]Signal, error) {
	if len(eventTypes) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}

	query, args, err := sqlxIn(`
		SELECT * FROM signals
		WHERE event_type IN (?) AND created_at >= ?
		  AND (? = '' OR source_agent = ?)
		ORDER BY created_at DESC
		LIMIT ?
	`, eventTypes, since, sourceAgent, sourceAgent, limit)
	if err != nil {
		return nil, fmt.Errorf("build signal query: %w", err)
	}

	var sigs []Signal
	if err := s.db.SelectContext(ctx, &sigs, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	return sigs, nil
}

// QuerySignalPayloads applies a gojq filter expression to every matching
// signal's opaque JSON payload, returning one result per payload for
// which the filter produced a truthy value. This is how the keyword
// coverage step in the weekly orchestrator (§4.11 step 6) pulls
// structured fields out of payloads whose shape it does not otherwise
// know, grounded on jordigilh/kubernaut's own gojq-based signal
// filtering.
func (s *Store) QuerySignalPayloads(ctx context.Context, eventType, jqExpr string, since time.Time) ([]any, error) {
	sigs, err := s.SignalsSince(ctx, eventType, since)
	if err != nil {
		return nil, err
	}
	query, err := gojq.Parse(jqExpr)
	if err != nil {
		return nil, fmt.Errorf("parse gojq expression %q: %w", jqExpr, err)
	}
	var out []any
	for _, sig := range sigs {
		iter := query.RunWithContext(ctx, sig.Payload.Val)
		for {
			v, ok := iter.Next()
			if !ok {
				break
			}
			if err, ok := v.(error); ok {
				return nil, fmt.Errorf("evaluate gojq expression on signal %d: %w", sig.ID, err)
			}
			if isTruthy(v) {
				out = append(out, v)
			}
		}
	}
	return out, nil
}

func isTruthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	default:
		return true
	}
}
