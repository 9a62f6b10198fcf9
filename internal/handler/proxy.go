package handler

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"letterbox-gateway/internal/model"
	"letterbox-gateway/internal/route"
	"letterbox-gateway/internal/service"
)

// relayBufferSize is the chunk size used when streaming upstream bodies.
const relayBufferSize = 32 * 1024

// ProxyHandler serves one route of the table through its Forwarder.
type ProxyHandler struct {
	route     route.Template
	forwarder service.Forwarder
	errors    *ErrorTranslator
	logger    *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(tpl route.Template, fwd service.Forwarder, et *ErrorTranslator, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		route:     tpl,
		forwarder: fwd,
		errors:    et,
		logger:    logger.With("component", "proxy_handler", "route", tpl.Name),
	}
}

// Route returns the template the handler serves.
func (h *ProxyHandler) Route() route.Template { return h.route }

// Handle forwards the request and relays the upstream response back.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	pr := &model.ProxyRequest{
		Ctx:      req.Context(),
		Method:   req.Method,
		Segments: h.segments(c),
		RawQuery: req.URL.RawQuery,
		Header:   req.Header,
		Body:     req.Body,
	}

	resp, err := h.forwarder.Forward(pr)
	if err != nil {
		return h.errors.Respond(c, h.route, err)
	}
	defer func() { _ = resp.Body.Close() }()

	hdr := c.Response().Header()
	for key, vals := range resp.Header {
		for _, v := range vals {
			hdr.Add(key, v)
		}
	}
	// A nil entry stops net/http from sniffing a type the upstream never sent.
	if _, ok := resp.Header["Content-Type"]; !ok {
		hdr["Content-Type"] = nil
	}
	c.Response().WriteHeader(resp.StatusCode)

	// The status is already sent, so a failure here can only truncate the
	// body; it is logged, not translated.
	if err := relay(c.Response(), resp.Body); err != nil {
		h.logger.Warn("streaming response body",
			"err", err,
			"path", req.URL.Path,
		)
	}
	return nil
}

// segments extracts the escaped trailing path of a wildcard route.
func (h *ProxyHandler) segments(c echo.Context) []string {
	if !h.route.Wildcard {
		return nil
	}
	escaped := c.Request().URL.EscapedPath()
	if rest, ok := strings.CutPrefix(escaped, h.route.Prefix); ok {
		return service.SplitSegments(rest)
	}
	return service.SplitSegments(c.Param("*"))
}

// relay copies src to w, flushing after every chunk so the browser sees
// upstream data as it arrives and a slow reader throttles the upstream read.
func relay(w *echo.Response, src io.Reader) error {
	flusher, _ := w.Writer.(http.Flusher)
	buf := make([]byte, relayBufferSize)
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}
