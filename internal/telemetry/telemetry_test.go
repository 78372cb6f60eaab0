package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStartStageAndFinish(t *testing.T) {
	tr := New("sitewatch-test", "test")

	ctx, span := tr.StartStage(context.Background(), "scan")
	require.NotNil(t, ctx)
	require.NotNil(t, span)
	Finish(span, nil)

	_, errSpan := tr.StartAdapterCall(context.Background(), "analytics")
	Finish(errSpan, errors.New("boom"))
}

func TestStartAgentTurn(t *testing.T) {
	tr := New("sitewatch-test", "test")
	_, span := tr.StartAgentTurn(context.Background(), "https://example.com/page", 1)
	RecordToolCall(span, "get_page_analytics", 0, true)
	Finish(span, nil)
}
