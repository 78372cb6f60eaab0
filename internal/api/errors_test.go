package api

import (
	"fmt"
	"net/http"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/require"

	"github.com/sitewatch/sitewatch/internal/apperr"
)

func TestMapServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		expectCode int
		expectMsg  string
	}{
		{
			name:       "validation error maps to 400",
			err:        apperr.NewValidationError("action", "must be approve or reject"),
			expectCode: http.StatusBadRequest,
			expectMsg:  "must be approve or reject",
		},
		{
			name:       "not found maps to 404",
			err:        fmt.Errorf("wrapped: %w", apperr.ErrNotFound),
			expectCode: http.StatusNotFound,
			expectMsg:  "resource not found",
		},
		{
			name:       "review conflict maps to 404",
			err:        fmt.Errorf("wrapped: %w", apperr.ErrReviewConflict),
			expectCode: http.StatusNotFound,
			expectMsg:  "not pending",
		},
		{
			name:       "unknown error maps to 500",
			err:        fmt.Errorf("something unexpected happened"),
			expectCode: http.StatusInternalServerError,
			expectMsg:  "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			he := mapServiceError(tt.err)
			require.IsType(t, &echo.HTTPError{}, he)
			require.Equal(t, tt.expectCode, he.Code)
			require.Contains(t, he.Error(), tt.expectMsg)
		})
	}
}
