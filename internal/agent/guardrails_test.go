package agent

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sitewatch/sitewatch/internal/store"
)

func ptr[T any](v T) *T { return &v }

func TestEvaluateRecommendation_HardConfidenceFloor(t *testing.T) {
	result := evaluateRecommendation("content_update", 0.2, nil)
	require.False(t, result.Pass)
	require.Len(t, result.Violations, 1)
}

func TestEvaluateRecommendation_NoGuardrails(t *testing.T) {
	result := evaluateRecommendation("content_update", 0.8, nil)
	require.True(t, result.Pass)
	require.Empty(t, result.Violations)
	require.Empty(t, result.Warnings)
}

func TestEvaluateRecommendation_BlockedActionType(t *testing.T) {
	guardrails := []store.Guardrail{
		{
			Name:            "no-auto-delete",
			BlockedActions:  store.JSON[[]string]{Val: []string{"delete_page"}},
			ViolationAction: "block",
		},
	}
	result := evaluateRecommendation("delete_page", 0.9, guardrails)
	require.False(t, result.Pass)
	require.Len(t, result.Violations, 1)
}

func TestEvaluateRecommendation_MinConfidenceWarnOnly(t *testing.T) {
	guardrails := []store.Guardrail{
		{
			Name:            "be-cautious",
			MinConfidence:   ptr(0.6),
			ViolationAction: "warn",
		},
	}
	result := evaluateRecommendation("content_update", 0.5, guardrails)
	require.True(t, result.Pass)
	require.Empty(t, result.Violations)
	require.Len(t, result.Warnings, 1)
}

func TestEvaluateRecommendation_MinConfidenceBlocking(t *testing.T) {
	guardrails := []store.Guardrail{
		{
			Name:            "strict",
			MinConfidence:   ptr(0.6),
			ViolationAction: "alert",
		},
	}
	result := evaluateRecommendation("content_update", 0.5, guardrails)
	require.False(t, result.Pass)
	require.Len(t, result.Violations, 1)
}
