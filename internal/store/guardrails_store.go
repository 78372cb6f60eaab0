package store

import (
	"context"
	"fmt"
)

// UpsertGuardrail mirrors a config-file guardrail definition into the
// database, reconciling the fsnotify-driven hot-reload in
// internal/config with the persisted guardrails table spec §6 names.
// The config file remains the source of truth; this table exists so the
// API and decision queue can join against active guardrails without a
// process-local read of the YAML file.
func (s *Store) UpsertGuardrail(ctx context.Context, g Guardrail) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO guardrails (
			name, rule_category, blocked_action_types, min_confidence,
			violation_action, config, updated_at
		) VALUES (
			:name, :rule_category, :blocked_action_types, :min_confidence,
			:violation_action, :config, now()
		)
		ON CONFLICT (name) DO UPDATE SET
			rule_category = EXCLUDED.rule_category,
			blocked_action_types = EXCLUDED.blocked_action_types,
			min_confidence = EXCLUDED.min_confidence,
			violation_action = EXCLUDED.violation_action,
			config = EXCLUDED.config,
			updated_at = now()
	`, g)
	if err != nil {
		return fmt.Errorf("upsert guardrail %q: %w", g.Name, err)
	}
	return nil
}

// ActiveGuardrails returns every guardrail currently on record, used by
// the agent loop's guardrail-evaluation step before a recommendation is
// finalized.
func (s *Store) ActiveGuardrails(ctx context.Context) ([]Guardrail, error) {
	var guardrails []Guardrail
	err := s.db.SelectContext(ctx, &guardrails, `SELECT * FROM guardrails ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("active guardrails: %w", err)
	}
	return guardrails, nil
}

// DeleteGuardrailsNotIn removes rows for guardrails no longer present in
// the reloaded config file, keeping the table a mirror of the file.
func (s *Store) DeleteGuardrailsNotIn(ctx context.Context, names []string) error {
	if len(names) == 0 {
		_, err := s.db.ExecContext(ctx, `DELETE FROM guardrails`)
		if err != nil {
			return fmt.Errorf("delete all guardrails: %w", err)
		}
		return nil
	}
	query, args, err := sqlxIn(`DELETE FROM guardrails WHERE name NOT IN (?)`, names)
	if err != nil {
		return fmt.Errorf("build delete guardrails query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("delete stale guardrails: %w", err)
	}
	return nil
}
