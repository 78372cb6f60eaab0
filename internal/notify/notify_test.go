package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sitewatch/sitewatch/internal/store"
)

func TestNilServiceIsNoop(t *testing.T) {
	var s *Service
	require.NotPanics(t, func() {
		s.NotifyFindingCreated(context.Background(), FindingInput{FindingID: 1})
		s.NotifyDigestReady(context.Background(), DigestInput{DigestID: 1})
	})
}

func TestNewWithNilStoreReturnsNil(t *testing.T) {
	require.Nil(t, New(nil))
}

func TestFormatFindingMessage(t *testing.T) {
	msg := formatFindingMessage(FindingInput{
		PageURL:     "https://example.com/pricing",
		Severity:    store.SeverityCritical,
		Description: "Traffic dropped 40% week over week",
	})
	require.Contains(t, msg, "Critical")
	require.Contains(t, msg, "https://example.com/pricing")
	require.Contains(t, msg, "Traffic dropped 40% week over week")
}

func TestFormatFindingMessageUnknownSeverityFallsBackToRawValue(t *testing.T) {
	msg := formatFindingMessage(FindingInput{
		PageURL:     "https://example.com",
		Severity:    store.Severity("unexpected"),
		Description: "desc",
	})
	require.Contains(t, msg, "unexpected")
}
