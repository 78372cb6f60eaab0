package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
)

// triggerTimeout bounds a manually or cron-triggered run to the same
// wall-clock ceiling the orchestrator enforces internally, plus headroom
// for the goroutine to observe context cancellation.
const triggerTimeout = 150 * time.Second

// triggerScanHandler handles both POST /internal/scan (cron, bearer-auth)
// and POST /api/v1/scan/trigger (manual). Both dispatch the scan
// asynchronously and respond immediately, matching §6's "fire-and-forget,
// responds <1s" requirement.
func (s *Server) triggerScanHandler(c *echo.Context) error {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), triggerTimeout)
		defer cancel()
		result, err := s.scanOrch.Run(ctx)
		if err != nil {
			slog.Error("scan run failed", "error", err)
			return
		}
		slog.Info("scan run complete", "pages_scanned", result.PagesScanned, "findings_created", result.FindingsCreated)
	}()
	return c.JSON(http.StatusAccepted, &TriggerResponse{Status: "accepted", Message: "scan dispatched"})
}

// triggerWeeklyHandler handles POST /internal/weekly (cron, bearer-auth).
func (s *Server) triggerWeeklyHandler(c *echo.Context) error {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), triggerTimeout)
		defer cancel()
		result, err := s.weeklyOrch.Run(ctx)
		if err != nil {
			slog.Error("weekly run failed", "error", err)
			return
		}
		slog.Info("weekly run complete", "pages_audited", result.PagesAudited, "digest_id", result.DigestID)
	}()
	return c.JSON(http.StatusAccepted, &TriggerResponse{Status: "accepted", Message: "weekly audit dispatched"})
}
