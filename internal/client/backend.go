// Package client provides the upstream HTTP client for the internal backend.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"letterbox-gateway/internal/config"
	"letterbox-gateway/internal/metrics"
	"letterbox-gateway/internal/model"
)

// TransportError reports an upstream exchange that could not complete:
// name resolution, connection refusal, timeout or cancellation. A completed
// exchange with an error status is never a TransportError.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// BackendClient sends requests to the internal backend. It never follows
// redirects and never retries.
type BackendClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewBackendClient creates a BackendClient with connection pooling.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
func NewBackendClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *BackendClient {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.Backend.IdleConnections,
		MaxIdleConnsPerHost: cfg.Backend.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &BackendClient{
		httpClient: &http.Client{
			Transport: transport,
			// 3xx responses are relayed to the browser, which decides whether to follow.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
			Timeout: time.Duration(cfg.Backend.TimeoutSeconds) * time.Second,
		},
		logger:  logger.With("component", "backend_client"),
		metrics: m,
	}
}

// Do executes an HTTP request against the backend and returns the raw response.
// The caller is responsible for closing the response body.
func (c *BackendClient) Do(req *http.Request) (*model.ProxyResponse, error) {
	c.logger.Debug("upstream request",
		"method", req.Method,
		"path", req.URL.Path,
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req) //nolint:bodyclose // body ownership transfers to caller via ProxyResponse
	duration := time.Since(start).Seconds()

	method := metrics.NormalizeMethod(req.Method)
	if c.metrics != nil {
		c.metrics.UpstreamDuration.WithLabelValues(method).Observe(duration)
	}

	if err != nil {
		return nil, &TransportError{Method: req.Method, URL: req.URL.Redacted(), Err: unwrapURLError(err)}
	}

	if c.metrics != nil {
		c.metrics.UpstreamResponses.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()
	}

	return &model.ProxyResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}

// DoStream executes a request and returns the response body as a stream.
// The caller is responsible for closing the returned ReadCloser.
// ctx bounds the whole exchange, including reading the body: when the
// inbound request is canceled the upstream request is aborted too.
func (c *BackendClient) DoStream(ctx context.Context, method, target string, header http.Header, body io.Reader) (*model.ProxyResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header = header.Clone()
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	// Let the transport negotiate compression so it can transparently decode
	// the body; only content-type is relayed, never content-encoding.
	req.Header.Del("Accept-Encoding")

	return c.Do(req)
}

// unwrapURLError strips the *url.Error wrapper added by http.Client, whose
// message repeats the method and URL already carried by TransportError.
func unwrapURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) && ue.Err != nil {
		return ue.Err
	}
	return err
}
