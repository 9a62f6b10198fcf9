package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"letterbox-gateway/internal/client"
	"letterbox-gateway/internal/config"
	"letterbox-gateway/internal/metrics"
	"letterbox-gateway/internal/route"
	"letterbox-gateway/internal/service"
)

// defaultFailureMessage is used for decode failures on routes without their own message.
const defaultFailureMessage = "Failed to decode backend response"

// ErrorTranslator turns forwarding failures into the gateway's own responses.
// Upstream error statuses never reach it; those are relayed as-is.
type ErrorTranslator struct {
	baseURL string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewErrorTranslator creates an ErrorTranslator. m may be nil.
func NewErrorTranslator(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *ErrorTranslator {
	return &ErrorTranslator{
		baseURL: cfg.Backend.BaseURL,
		logger:  logger.With("component", "error_translator"),
		metrics: m,
	}
}

// Translate returns the status, JSON body and metrics kind for err.
func (t *ErrorTranslator) Translate(tpl route.Template, err error) (int, map[string]string, string) {
	if errors.Is(err, service.ErrMissingAuthorization) {
		return http.StatusUnauthorized, map[string]string{
			"error": "Missing Authorization header",
		}, metrics.KindMissingCredential
	}

	var rbe *service.RequestBodyError
	if errors.As(err, &rbe) {
		return http.StatusBadRequest, map[string]string{
			"error": "could not read request body",
		}, metrics.KindRequestBody
	}

	var pde *service.PayloadDecodeError
	if errors.As(err, &pde) {
		msg := tpl.FailureMessage
		if msg == "" {
			msg = defaultFailureMessage
		}
		return http.StatusInternalServerError, map[string]string{
			"error":   msg,
			"details": pde.Error(),
		}, metrics.KindDecode
	}

	cause := err
	kind := metrics.KindTransport
	// The browser went away first; nobody reads this response.
	if errors.Is(err, context.Canceled) {
		kind = metrics.KindCanceled
	}
	var te *client.TransportError
	if errors.As(err, &te) {
		cause = te.Err
	}
	return http.StatusBadGateway, map[string]string{
		"detail": fmt.Sprintf("Proxy could not reach backend at %s. %v", t.baseURL, cause),
	}, kind
}

// Respond logs err and writes the translated response. Errors raised by echo
// middleware while the body was read (e.g. 413 from BodyLimit) are handed
// back to echo unchanged.
func (t *ErrorTranslator) Respond(c echo.Context, tpl route.Template, err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}

	status, body, kind := t.Translate(tpl, err)

	level := slog.LevelError
	switch {
	case kind == metrics.KindCanceled:
		level = slog.LevelDebug
	case status < http.StatusInternalServerError:
		level = slog.LevelWarn
	}
	t.logger.Log(c.Request().Context(), level, "gateway error",
		"err", err,
		"route", tpl.Name,
		"kind", kind,
		"status", status,
		"path", c.Request().URL.Path,
	)

	if t.metrics != nil {
		t.metrics.GatewayErrors.WithLabelValues(tpl.Name, kind).Inc()
	}
	return c.JSON(status, body)
}
