package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v5"
)

// securityHeaders sets standard security response headers, matching the
// teacher's middleware.go.
func securityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			return next(c)
		}
	}
}

// bearerAuth rejects requests to the /internal/* scheduler endpoints whose
// Authorization header does not carry the shared trigger secret.
// subtle.ConstantTimeCompare avoids leaking the secret's length/prefix
// through response-time variance.
func (s *Server) bearerAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			const prefix = "Bearer "
			header := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(header, prefix) {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}
			token := strings.TrimPrefix(header, prefix)
			if subtle.ConstantTimeCompare([]byte(token), []byte(s.triggerSecret)) != 1 {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid bearer token")
			}
			return next(c)
		}
	}
}
