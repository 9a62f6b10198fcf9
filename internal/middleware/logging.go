// Package middleware provides Echo middleware for logging, metrics and security.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestLogger returns an Echo middleware that logs one line per request.
// Gateway-side failures (5xx) log at error, client errors at warn and the
// rest at info. Requests to quietPaths, such as liveness probes, log at debug.
func RequestLogger(logger *slog.Logger, quietPaths ...string) echo.MiddlewareFunc {
	quiet := make(map[string]bool, len(quietPaths))
	for _, p := range quietPaths {
		quiet[p] = true
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			req := c.Request()
			res := c.Response()
			status := responseStatus(c, err)

			level := slog.LevelInfo
			switch {
			case quiet[req.URL.Path]:
				level = slog.LevelDebug
			case status >= http.StatusInternalServerError:
				level = slog.LevelError
			case status >= http.StatusBadRequest:
				level = slog.LevelWarn
			}

			logger.Log(context.WithoutCancel(req.Context()), level, "request",
				"method", req.Method,
				"path", req.URL.Path,
				"route", c.Path(),
				"status", status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", res.Header().Get(echo.HeaderXRequestID),
				"remote_ip", c.RealIP(),
				"bytes_out", res.Size,
			)
			return err
		}
	}
}

// responseStatus returns the status the client sees. An *echo.HTTPError has
// not been written yet; Echo's error handler writes it after the chain unwinds.
func responseStatus(c echo.Context, err error) int {
	if err != nil && !c.Response().Committed {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he.Code
		}
		return http.StatusInternalServerError
	}
	return c.Response().Status
}
