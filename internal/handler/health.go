// Package handler wires the route table and health endpoints onto Echo.
package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"letterbox-gateway/internal/config"
	"letterbox-gateway/internal/route"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	cfg     *config.Config
	routes  route.Table
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, routes route.Table, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, routes: routes, version: v}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

type statusResponse struct {
	Status     string   `json:"status"`
	Version    string   `json:"version"`
	BackendURL string   `json:"backend_url"`
	Routes     []string `json:"routes"`
}

// Status returns gateway status information.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, statusResponse{
		Status:     "ok",
		Version:    string(h.version),
		BackendURL: h.cfg.Backend.BaseURL,
		Routes:     h.routes.Names(),
	})
}
