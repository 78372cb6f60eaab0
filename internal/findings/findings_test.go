package findings

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sitewatch/sitewatch/internal/store"
)

func TestPriorityForSeverity(t *testing.T) {
	require.Equal(t, 10, PriorityForSeverity(store.SeverityCritical))
	require.Equal(t, 8, PriorityForSeverity(store.SeverityHigh))
	require.Equal(t, 5, PriorityForSeverity(store.SeverityMedium))
	require.Equal(t, 3, PriorityForSeverity(store.SeverityLow))
	require.Equal(t, 3, PriorityForSeverity(store.Severity("unknown")))
}
