package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"letterbox-gateway/internal/metrics"
)

// MetricsMiddleware records request count, latency and relayed bytes for
// each inbound request, labeled by the route prefix it fell under.
func MetricsMiddleware(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()

			start := time.Now()
			err := next(c)
			elapsed := time.Since(start).Seconds()

			prefix := m.NormalizePath(c.Request().URL.Path)
			method := metrics.NormalizeMethod(c.Request().Method)
			status := strconv.Itoa(responseStatus(c, err))

			m.RequestsTotal.WithLabelValues(method, status, prefix).Inc()
			m.RequestDuration.WithLabelValues(method, status, prefix).Observe(elapsed)
			if n := c.Response().Size; n > 0 {
				m.ResponseBytes.WithLabelValues(prefix).Add(float64(n))
			}

			return err
		}
	}
}
