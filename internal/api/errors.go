package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/sitewatch/sitewatch/internal/apperr"
)

// mapServiceError maps sitewatch's apperr sentinels to HTTP error
// responses, grounded on the teacher's pkg/api/errors.go.
func mapServiceError(err error) *echo.HTTPError {
	var validErr *apperr.ValidationError
	if errors.As(err, &validErr) {
		return echo.NewHTTPError(http.StatusBadRequest, validErr.Error())
	}
	if errors.Is(err, apperr.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "resource not found")
	}
	if errors.Is(err, apperr.ErrReviewConflict) {
		return echo.NewHTTPError(http.StatusNotFound, "decision queue item is not pending")
	}

	slog.Error("unexpected service error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
