// Command sitewatch runs the scheduled website-health surveillance
// pipeline: a cron-driven scan orchestrator (MWF) and weekly orchestrator
// (Sun), an HTTP API exposing trigger/review/read endpoints, and a
// Prometheus metrics endpoint, grounded on the teacher's cmd/tarsy/main.go
// sequential-init/graceful-shutdown shape.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	cron "github.com/robfig/cron/v3"

	"github.com/sitewatch/sitewatch/internal/adapters/analytics"
	"github.com/sitewatch/sitewatch/internal/adapters/cms"
	"github.com/sitewatch/sitewatch/internal/adapters/httputil"
	"github.com/sitewatch/sitewatch/internal/adapters/linkcheck"
	"github.com/sitewatch/sitewatch/internal/adapters/search"
	"github.com/sitewatch/sitewatch/internal/adapters/speed"
	"github.com/sitewatch/sitewatch/internal/agent"
	"github.com/sitewatch/sitewatch/internal/api"
	"github.com/sitewatch/sitewatch/internal/auth"
	"github.com/sitewatch/sitewatch/internal/bus"
	"github.com/sitewatch/sitewatch/internal/config"
	"github.com/sitewatch/sitewatch/internal/findings"
	"github.com/sitewatch/sitewatch/internal/inventory"
	"github.com/sitewatch/sitewatch/internal/llmclient"
	"github.com/sitewatch/sitewatch/internal/metrics"
	"github.com/sitewatch/sitewatch/internal/notify"
	"github.com/sitewatch/sitewatch/internal/ratelimit"
	"github.com/sitewatch/sitewatch/internal/scan"
	"github.com/sitewatch/sitewatch/internal/store"
	"github.com/sitewatch/sitewatch/internal/telemetry"
	"github.com/sitewatch/sitewatch/internal/weekly"
)

// Cron schedules per §5: the MWF scan at 14:00 UTC Mon/Wed/Fri, the
// weekly sweep at 14:00 UTC Sunday.
const (
	scanSchedule   = "0 14 * * 1,3,5"
	weeklySchedule = "0 14 * * 0"

	perfRateLimitInterval = 20 * time.Second
	speedAdapterRetries   = 2
	httpAdapterRetries    = 3
)

func main() {
	envFile := flag.String("env-file", os.Getenv("ENV_FILE"), "path to a .env file (optional)")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.New(ctx, store.Config{
		DatabaseURL:     cfg.DatabaseURL,
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	})
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to database, migrations applied")

	broker := auth.New(st, &auth.HTTPRefresher{
		Endpoint:     cfg.TokenEndpoint,
		ClientID:     cfg.CredentialClientID,
		ClientSecret: cfg.CredentialClientSecret,
		HTTPClient:   &http.Client{Timeout: 15 * time.Second},
	})

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("failed to parse REDIS_URL", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	limiter := ratelimit.New(redisClient, perfRateLimitInterval)

	httpClient := &http.Client{Timeout: 30 * time.Second}
	analyticsClient := &httputil.Client{BaseURL: "https://analyticsdata.googleapis.com", HTTPClient: httpClient, Tokens: broker, MaxRetries: httpAdapterRetries}
	searchClient := &httputil.Client{BaseURL: "https://searchconsole.googleapis.com", HTTPClient: httpClient, Tokens: broker, MaxRetries: httpAdapterRetries}
	speedClient := &httputil.Client{BaseURL: "https://www.googleapis.com/pagespeedonline/v5", HTTPClient: httpClient, Tokens: broker, MaxRetries: speedAdapterRetries}
	cmsClient := &httputil.Client{BaseURL: cfg.BaseSiteOrigin, HTTPClient: httpClient, Tokens: broker, MaxRetries: httpAdapterRetries}

	analyticsAdapter := analytics.New(analyticsClient, cfg.AnalyticsPropertyID)
	searchAdapter := search.New(searchClient, cfg.SearchIndexSiteURL)
	speedAdapter := speed.New(speedClient, limiter, cfg.PerfAPIKey)
	cmsAdapter := cms.New(cmsClient, cfg.CMSAPIToken)
	linkcheckAdapter := linkcheck.New(cfg.BaseSiteOrigin, "sitewatch/1.0")

	reconciler := inventory.New(cmsAdapter, linkcheckAdapter, st)
	eventBus := bus.New(st)
	notifier := notify.New(st)
	findingsWriter := findings.New(st, eventBus)

	llm := llmclient.New(cfg.LLMAPIKey, "")
	agentLoop := agent.New(llm, &agent.Deps{
		Analytics: analyticsAdapter,
		Search:    searchAdapter,
		Speed:     speedAdapter,
		CMS:       cmsAdapter,
		Bus:       eventBus,
	}, st, findingsWriter)

	metricsReg := metrics.New()
	tracer := telemetry.New("sitewatch", optionalEnv("ENVIRONMENT", "production"))

	guardrails, err := config.LoadGuardrails(cfg.GuardrailsPath)
	if err != nil {
		slog.Warn("failed to load guardrails, continuing with an empty set", "error", err)
	}
	guardrails.OnReload(func(loaded []config.Guardrail) {
		names := make([]string, 0, len(loaded))
		for _, g := range loaded {
			names = append(names, g.Name)
			sg := store.Guardrail{
				Name:            g.Name,
				RuleCategory:    g.RuleCategory,
				BlockedActions:  store.JSON[[]string]{Val: g.BlockedActions},
				MinConfidence:   g.MinConfidence,
				ViolationAction: g.ViolationAction,
				Config:          store.JSON[map[string]any]{Val: g.ExtraConfig},
			}
			if err := st.UpsertGuardrail(ctx, sg); err != nil {
				slog.Warn("guardrail upsert failed", "name", g.Name, "error", err)
			}
		}
		if err := st.DeleteGuardrailsNotIn(ctx, names); err != nil {
			slog.Warn("guardrail prune failed", "error", err)
		}
	})

	scanOrch := &scan.Orchestrator{
		Broker:     broker,
		Analytics:  analyticsAdapter,
		Search:     searchAdapter,
		Speed:      speedAdapter,
		CMS:        cmsAdapter,
		LinkCheck:  linkcheckAdapter,
		Inventory:  reconciler,
		Bus:        eventBus,
		Store:      st,
		AgentLoop:  agentLoop,
		Findings:   findingsWriter,
		SitemapURL: cfg.BaseSiteOrigin + "/sitemap.xml",
		Budget:     cfg.ScanBudget,
		Metrics:    metricsReg,
		Tracer:     tracer,
	}

	weeklyOrch := &weekly.Orchestrator{
		Broker:     broker,
		Analytics:  analyticsAdapter,
		Search:     searchAdapter,
		CMS:        cmsAdapter,
		LinkCheck:  linkcheckAdapter,
		Bus:        eventBus,
		Store:      st,
		LLM:        llm,
		Notify:     notifier,
		SitemapURL: cfg.BaseSiteOrigin + "/sitemap.xml",
		Budget:     cfg.ScanBudget,
		Metrics:    metricsReg,
		Tracer:     tracer,
	}

	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(scanSchedule, func() { runScan(scanOrch) }); err != nil {
		slog.Error("failed to register scan schedule", "error", err)
		os.Exit(1)
	}
	if _, err := c.AddFunc(weeklySchedule, func() { runWeekly(weeklyOrch) }); err != nil {
		slog.Error("failed to register weekly schedule", "error", err)
		os.Exit(1)
	}
	c.Start()
	defer c.Stop()

	server := api.NewServer(st, scanOrch, weeklyOrch, cfg.TriggerSharedSecret)
	server.SetFindingsWriter(findingsWriter)
	if err := server.ValidateWiring(); err != nil {
		slog.Error("server wiring incomplete", "error", err)
		os.Exit(1)
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metricsReg.Handler())
	metricsServer := &http.Server{Addr: ":9090", Handler: metricsMux}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server failed", "error", err)
		}
	}()

	httpDone := make(chan error, 1)
	go func() {
		slog.Info("starting HTTP server", "port", cfg.HTTPPort)
		httpDone <- server.Start(":" + cfg.HTTPPort)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-httpDone:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("http server exited unexpectedly", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("error during server shutdown", "error", err)
	}
	_ = metricsServer.Shutdown(shutdownCtx)
	slog.Info("sitewatch stopped")
}

func runScan(o *scan.Orchestrator) {
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Second)
	defer cancel()
	result, err := o.Run(ctx)
	if err != nil {
		slog.Error("scheduled scan failed", "error", err)
		return
	}
	slog.Info("scheduled scan completed",
		"pages_scanned", result.PagesScanned,
		"pages_flagged", result.PagesFlagged,
		"findings_created", result.FindingsCreated,
		"duration_ms", result.DurationMs)
}

func runWeekly(o *weekly.Orchestrator) {
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Second)
	defer cancel()
	result, err := o.Run(ctx)
	if err != nil {
		slog.Error("scheduled weekly sweep failed", "error", err)
		return
	}
	slog.Info("scheduled weekly sweep completed",
		"pages_audited", result.PagesAudited,
		"digest_id", result.DigestID,
		"duration_ms", result.DurationMs)
}

func optionalEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
