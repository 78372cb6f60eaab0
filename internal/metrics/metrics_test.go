package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestObserveStageAndAdapterCall(t *testing.T) {
	r := New()

	r.ObserveStage("scan", true, 50*time.Millisecond)
	r.ObserveStage("scan", false, 10*time.Millisecond)
	r.ObserveAdapterCall("analytics", true)
	r.ObserveFinding("submit")
	r.ObserveFinding("skip")

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "sitewatch_stage_runs_total")
	require.Contains(t, body, "sitewatch_adapter_calls_total")
	require.Contains(t, body, "sitewatch_findings_total")
}
