package api

import "github.com/sitewatch/sitewatch/internal/store"

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status string                 `json:"status"`
	Checks map[string]HealthCheck `json:"checks"`
}

// HealthCheck represents the status of a single health check component.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// TriggerResponse is returned by the scan/weekly trigger endpoints.
type TriggerResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ReviewResponse is returned by POST /api/v1/review.
type ReviewResponse struct {
	ID      int64  `json:"id"`
	Action  string `json:"action"`
	Message string `json:"message"`
}

// OverviewResponse is returned by GET /api/v1/overview.
type OverviewResponse struct {
	TotalPages     int `json:"total_pages"`
	FlaggedPages   int `json:"flagged_pages"`
	OpenFindings   int `json:"open_findings"`
	PendingReviews int `json:"pending_reviews"`
	BrokenLinks    int `json:"broken_links"`
}

// PageListResponse is returned by GET /api/v1/pages.
type PageListResponse struct {
	Pages    []store.Page `json:"pages"`
	Total    int          `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
}

// FindingListResponse is returned by GET /api/v1/findings.
type FindingListResponse struct {
	Findings []store.Finding `json:"findings"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// TrendListResponse is returned by GET /api/v1/trends.
type TrendListResponse struct {
	Snapshots []store.TrendSnapshot `json:"snapshots"`
}
