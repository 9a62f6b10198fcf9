package service

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"

	"letterbox-gateway/internal/model"
	"letterbox-gateway/internal/route"
)

// Upstream performs a single outbound exchange. *client.BackendClient satisfies it.
type Upstream interface {
	DoStream(ctx context.Context, method, target string, header http.Header, body io.Reader) (*model.ProxyResponse, error)
}

// Forwarder relays one browser request to the backend.
type Forwarder interface {
	Forward(pr *model.ProxyRequest) (*model.ProxyResponse, error)
}

// NewForwarder selects the forwarding strategy for tpl.
func NewForwarder(tpl route.Template, up Upstream, baseURL string, logger *slog.Logger) Forwarder {
	logger = logger.With("route", tpl.Name)
	if tpl.BodyMode == route.Buffered {
		return &BufferedForwarder{route: tpl, upstream: up, baseURL: baseURL, logger: logger.With("component", "buffered_forwarder")}
	}
	return &StreamingForwarder{route: tpl, upstream: up, baseURL: baseURL, logger: logger.With("component", "streaming_forwarder")}
}

// StreamingForwarder forwards the raw request body and hands back the
// upstream body as an open stream.
type StreamingForwarder struct {
	route    route.Template
	upstream Upstream
	baseURL  string
	logger   *slog.Logger
}

// Forward resolves the target, filters headers and performs exactly one
// upstream call. The caller is responsible for closing the response body.
func (f *StreamingForwarder) Forward(pr *model.ProxyRequest) (*model.ProxyResponse, error) {
	target := ResolveURL(f.baseURL, f.route, pr.Segments, pr.RawQuery)
	header := FilterRequestHeaders(pr.Header)

	var body io.Reader
	if sendsBody(pr.Method) && f.route.BodyMode != route.None {
		data, err := readBody(pr.Body)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}

	f.logger.Debug("forwarding request",
		"method", pr.Method,
		"target", target,
	)

	resp, err := f.upstream.DoStream(pr.Ctx, pr.Method, target, header, body)
	if err != nil {
		return nil, err
	}

	resp.Header = FilterResponseHeaders(resp.Header)
	return resp, nil
}

// sendsBody reports whether a request body is forwarded for method.
func sendsBody(method string) bool {
	return method != http.MethodGet && method != http.MethodHead
}

// readBody reads the whole inbound body as opaque bytes.
func readBody(r io.Reader) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &RequestBodyError{Err: err}
	}
	return data, nil
}
