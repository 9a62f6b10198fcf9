package handler

import (
	"log/slog"

	"github.com/labstack/echo/v4"

	"letterbox-gateway/internal/config"
	"letterbox-gateway/internal/route"
	"letterbox-gateway/internal/service"
)

// NewProxyHandlers builds one handler per route template, each bound to the
// forwarding strategy its body mode selects.
func NewProxyHandlers(tb route.Table, up service.Upstream, cfg *config.Config, et *ErrorTranslator, logger *slog.Logger) []*ProxyHandler {
	out := make([]*ProxyHandler, 0, len(tb))
	for _, tpl := range tb {
		fwd := service.NewForwarder(tpl, up, cfg.Backend.BaseURL, logger)
		out = append(out, NewProxyHandler(tpl, fwd, et, logger))
	}
	return out
}

// RegisterRoutes wires all route handlers onto the Echo instance.
func RegisterRoutes(e *echo.Echo, proxies []*ProxyHandler, health *HealthHandler) {
	e.GET("/healthz", health.Healthz)
	e.GET("/gateway/status", health.Status)

	for _, p := range proxies {
		tpl := p.Route()
		e.Match(tpl.Methods, tpl.Prefix, p.Handle)
		if tpl.Wildcard {
			e.Match(tpl.Methods, tpl.Prefix+"/*", p.Handle)
		}
	}
}
