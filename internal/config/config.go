// Package config loads sitewatch's environment inputs once per process
// into a single immutable Config struct, following the teacher's
// pattern of an umbrella object returned by Initialize and threaded
// explicitly through every component (no ambient global reads inside
// adapters, so tests stay deterministic).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/sitewatch/sitewatch/internal/apperr"
)

// Config is the immutable, process-wide configuration object.
type Config struct {
	// Credentials / OAuth (C1 Token Broker).
	CredentialClientID     string
	CredentialClientSecret string
	CredentialRedirectURI  string
	TokenEndpoint          string

	// External data sources (C2).
	AnalyticsPropertyID string
	SearchIndexSiteURL  string
	PerfAPIKey          string
	CMSAPIToken         string
	BaseSiteOrigin      string

	// Language model.
	LLMAPIKey string

	// Trigger auth.
	TriggerSharedSecret string

	// Persistence.
	DatabaseURL string

	// Redis (backs the performance-tester rate limiter).
	RedisURL string

	// HTTP server.
	HTTPPort string

	// Scan orchestrator budget, overridable for tests.
	ScanBudget time.Duration

	// Guardrail config file, hot-reloaded (see guardrails.go).
	GuardrailsPath string
}

// requiredEnv fetches a required environment variable or returns a wrapped
// apperr.ErrConfig — fatal at process startup per §7 of the spec.
func requiredEnv(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("%w: missing required environment variable %s", apperr.ErrConfig, key)
	}
	return v, nil
}

func optionalEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Load reads all enumerated environment inputs into a Config. envFile, if
// non-empty, is loaded first via godotenv (mirroring cmd/tarsy/main.go's
// best-effort .env loading — a missing or unreadable file is ignored, not
// fatal).
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		_ = godotenv.Load(envFile) // best-effort; missing .env is not fatal
	}

	cfg := &Config{
		HTTPPort:       optionalEnv("HTTP_PORT", "8080"),
		GuardrailsPath: optionalEnv("GUARDRAILS_PATH", "./deploy/config/guardrails.yaml"),
		ScanBudget:     120 * time.Second,
	}

	var err error
	if cfg.CredentialClientID, err = requiredEnv("CREDENTIAL_CLIENT_ID"); err != nil {
		return nil, err
	}
	if cfg.CredentialClientSecret, err = requiredEnv("CREDENTIAL_CLIENT_SECRET"); err != nil {
		return nil, err
	}
	if cfg.CredentialRedirectURI, err = requiredEnv("CREDENTIAL_REDIRECT_URI"); err != nil {
		return nil, err
	}
	cfg.TokenEndpoint = optionalEnv("TOKEN_ENDPOINT", "https://oauth2.googleapis.com/token")

	if cfg.AnalyticsPropertyID, err = requiredEnv("ANALYTICS_PROPERTY_ID"); err != nil {
		return nil, err
	}
	if cfg.SearchIndexSiteURL, err = requiredEnv("SEARCH_INDEX_SITE_URL"); err != nil {
		return nil, err
	}
	if cfg.PerfAPIKey, err = requiredEnv("PERF_API_KEY"); err != nil {
		return nil, err
	}
	if cfg.CMSAPIToken, err = requiredEnv("CMS_API_TOKEN"); err != nil {
		return nil, err
	}
	if cfg.BaseSiteOrigin, err = requiredEnv("BASE_SITE_ORIGIN"); err != nil {
		return nil, err
	}
	if cfg.LLMAPIKey, err = requiredEnv("LLM_API_KEY"); err != nil {
		return nil, err
	}
	if cfg.TriggerSharedSecret, err = requiredEnv("TRIGGER_SHARED_SECRET"); err != nil {
		return nil, err
	}
	if cfg.DatabaseURL, err = requiredEnv("DATABASE_URL"); err != nil {
		return nil, err
	}
	cfg.RedisURL = optionalEnv("REDIS_URL", "redis://localhost:6379/0")

	if raw := os.Getenv("SCAN_BUDGET_SECONDS"); raw != "" {
		secs, convErr := strconv.Atoi(raw)
		if convErr != nil {
			return nil, fmt.Errorf("%w: SCAN_BUDGET_SECONDS must be an integer: %v", apperr.ErrConfig, convErr)
		}
		cfg.ScanBudget = time.Duration(secs) * time.Second
	}

	return cfg, nil
}
