package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"letterbox-gateway/internal/client"
	"letterbox-gateway/internal/model"
	"letterbox-gateway/internal/route"
)

// BufferedForwarder serves credential-gated JSON endpoints. It buffers both
// bodies, so the caller's payload and the backend's reply are re-serialized
// rather than relayed raw.
type BufferedForwarder struct {
	route    route.Template
	upstream Upstream
	baseURL  string
	logger   *slog.Logger
}

// Forward rejects callers without an Authorization header before touching
// the network, then performs one GET or PUT against the route's fixed path.
func (f *BufferedForwarder) Forward(pr *model.ProxyRequest) (*model.ProxyResponse, error) {
	auth := pr.Header.Get("Authorization")
	if auth == "" {
		return nil, ErrMissingAuthorization
	}

	var body io.Reader
	if pr.Method == http.MethodPut {
		raw, err := readBody(pr.Body)
		if err != nil {
			return nil, err
		}
		payload, err := reencodeJSON(raw)
		if err != nil {
			return nil, &PayloadDecodeError{Op: "decode request body", Err: err}
		}
		body = bytes.NewReader(payload)
	}

	target := ResolveURL(f.baseURL, f.route, nil, "")
	header := http.Header{
		"Authorization": {auth},
		"Content-Type":  {"application/json"},
	}

	f.logger.Debug("forwarding request",
		"method", pr.Method,
		"target", target,
	)

	resp, err := f.upstream.DoStream(pr.Ctx, pr.Method, target, header, body)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &client.TransportError{Method: pr.Method, URL: target, Err: err}
	}

	payload, err := reencodeJSON(raw)
	if err != nil {
		return nil, &PayloadDecodeError{Op: "decode upstream response", Err: err}
	}

	status := resp.StatusCode
	if status >= 200 && status < 300 {
		status = http.StatusOK
	}

	return &model.ProxyResponse{
		StatusCode: status,
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(payload)),
	}, nil
}

// errTrailingData reports bytes after the first JSON value.
var errTrailingData = errors.New("unexpected data after top-level JSON value")

// reencodeJSON parses exactly one JSON value and serializes it again.
// Numbers keep their literal form and HTML characters are left unescaped.
func reencodeJSON(data []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errTrailingData
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
