package api

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"

	"github.com/sitewatch/sitewatch/internal/store"
)

// overviewHandler handles GET /api/v1/overview.
func (s *Server) overviewHandler(c *echo.Context) error {
	oc, err := s.store.Overview(c.Request().Context())
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, &OverviewResponse{
		TotalPages:     oc.TotalPages,
		FlaggedPages:   oc.FlaggedPages,
		OpenFindings:   oc.OpenFindings,
		PendingReviews: oc.PendingReviews,
		BrokenLinks:    oc.BrokenLinks,
	})
}

// listPagesHandler handles GET /api/v1/pages, grounded on the teacher's
// listSessionsHandler query-param pagination/sort/filter shape.
func (s *Server) listPagesHandler(c *echo.Context) error {
	params := store.PageListParams{
		SortBy:    "health_score",
		SortOrder: "asc",
		Page:      1,
		PageSize:  25,
	}

	if v := c.QueryParam("page"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			params.Page = p
		}
	}
	if v := c.QueryParam("page_size"); v != "" {
		if ps, err := strconv.Atoi(v); err == nil && ps > 0 && ps <= 100 {
			params.PageSize = ps
		}
	}
	if v := c.QueryParam("sort_by"); v != "" {
		switch v {
		case "health_score", "url", "broken_link_count":
			params.SortBy = v
		default:
			return echo.NewHTTPError(http.StatusBadRequest, "invalid sort_by: must be health_score, url, or broken_link_count")
		}
	}
	if v := c.QueryParam("sort_order"); v != "" {
		switch v {
		case "asc", "desc":
			params.SortOrder = v
		default:
			return echo.NewHTTPError(http.StatusBadRequest, "invalid sort_order: must be asc or desc")
		}
	}
	if v := c.QueryParam("page_type"); v != "" {
		switch store.PageType(v) {
		case store.PageTypeLanding, store.PageTypeSite, store.PageTypeBlog, store.PageTypePillar:
			params.PageType = store.PageType(v)
		default:
			return echo.NewHTTPError(http.StatusBadRequest, "invalid page_type")
		}
	}
	if v := c.QueryParam("flagged"); v != "" {
		flagged, err := strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid flagged: must be true or false")
		}
		params.Flagged = flagged
	}

	pages, total, err := s.store.ListPages(c.Request().Context(), params)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, &PageListResponse{
		Pages:    pages,
		Total:    total,
		Page:     params.Page,
		PageSize: params.PageSize,
	})
}

// listFindingsHandler handles GET /api/v1/findings.
func (s *Server) listFindingsHandler(c *echo.Context) error {
	params := store.FindingListParams{Page: 1, PageSize: 25}

	if v := c.QueryParam("page"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			params.Page = p
		}
	}
	if v := c.QueryParam("page_size"); v != "" {
		if ps, err := strconv.Atoi(v); err == nil && ps > 0 && ps <= 100 {
			params.PageSize = ps
		}
	}
	if v := c.QueryParam("status"); v != "" {
		params.Status = store.FindingStatus(v)
	}
	if v := c.QueryParam("severity"); v != "" {
		params.Severity = store.Severity(v)
	}

	list, total, err := s.store.ListFindings(c.Request().Context(), params)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, &FindingListResponse{
		Findings: list,
		Total:    total,
		Page:     params.Page,
		PageSize: params.PageSize,
	})
}

// listTrendsHandler handles GET /api/v1/trends.
func (s *Server) listTrendsHandler(c *echo.Context) error {
	period := c.QueryParam("period")
	if period == "" {
		period = "weekly"
	}
	n := 12
	if v := c.QueryParam("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 100 {
			n = parsed
		}
	}

	snaps, err := s.store.RecentTrendSnapshots(c.Request().Context(), period, n)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, &TrendListResponse{Snapshots: snaps})
}

// latestConversionAuditHandler handles GET /api/v1/conversion-audit/latest.
func (s *Server) latestConversionAuditHandler(c *echo.Context) error {
	result, err := s.store.LatestConversionAuditResult(c.Request().Context())
	if err != nil {
		return mapServiceError(err)
	}
	if result == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no conversion audit has run yet")
	}
	return c.JSON(http.StatusOK, result)
}
