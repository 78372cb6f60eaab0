package agent

import (
	"fmt"

	"github.com/sitewatch/sitewatch/internal/store"
)

// hardMinConfidence is the non-configurable floor (TESTABLE PROPERTIES #4):
// any recommendation evaluated below this confidence is always blocked,
// regardless of guardrail configuration.
const hardMinConfidence = 0.3

// EvaluationResult is evaluate_recommendation's tool output.
type EvaluationResult struct {
	Pass       bool     `json:"pass"`
	Violations []string `json:"violations"`
	Warnings   []string `json:"warnings"`
}

// evaluateRecommendation checks a candidate action against the hard
// confidence floor plus every active guardrail, per §4.9's guardrail
// evaluation step.
func evaluateRecommendation(actionType string, confidence float64, guardrails []store.Guardrail) EvaluationResult {
	var violations, warnings []string

	if confidence < hardMinConfidence {
		violations = append(violations, fmt.Sprintf("confidence %.2f is below the minimum allowed %.2f", confidence, hardMinConfidence))
	}

	for _, g := range guardrails {
		var failed bool
		var msg string

		if len(g.BlockedActions.Val) > 0 && containsString(g.BlockedActions.Val, actionType) {
			failed = true
			msg = fmt.Sprintf("guardrail %q blocks action_type %q", g.Name, actionType)
		}
		if g.MinConfidence != nil && confidence < *g.MinConfidence {
			failed = true
			if msg != "" {
				msg += fmt.Sprintf("; confidence %.2f is below guardrail %q's minimum %.2f", confidence, g.Name, *g.MinConfidence)
			} else {
				msg = fmt.Sprintf("confidence %.2f is below guardrail %q's minimum %.2f", confidence, g.Name, *g.MinConfidence)
			}
		}
		if !failed {
			continue
		}

		switch g.ViolationAction {
		case "block", "alert":
			violations = append(violations, msg)
		default:
			warnings = append(warnings, msg)
		}
	}

	return EvaluationResult{
		Pass:       len(violations) == 0,
		Violations: violations,
		Warnings:   warnings,
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
