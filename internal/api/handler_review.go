package api

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	echo "github.com/labstack/echo/v5"
)

var reviewValidator = validator.New()

// reviewHandler handles POST /api/v1/review: bind, validate, call the
// findings writer's transactional review, map errors, respond — the
// teacher's submitAlertHandler shape.
func (s *Server) reviewHandler(c *echo.Context) error {
	var req ReviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := reviewValidator.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	approve := req.Action == "approve"
	if err := s.findingsWriter.Review(c.Request().Context(), req.ID, approve, extractReviewer(c), req.Notes); err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, &ReviewResponse{
		ID:      req.ID,
		Action:  req.Action,
		Message: "review recorded",
	})
}

// extractReviewer identifies the human behind a review decision from the
// proxy-injected header sitewatch runs behind, falling back to a generic
// label — the teacher's extractAuthor pattern (pkg/api/auth.go).
func extractReviewer(c *echo.Context) string {
	if user := c.Request().Header.Get("X-Forwarded-User"); user != "" {
		return user
	}
	if email := c.Request().Header.Get("X-Forwarded-Email"); email != "" {
		return email
	}
	return "api-client"
}
