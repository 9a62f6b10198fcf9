// Package model defines shared types for the gateway.
package model

import (
	"context"
	"io"
	"net/http"
)

// ProxyRequest is a browser request as seen by a forwarder.
type ProxyRequest struct {
	Ctx    context.Context
	Method string
	// Segments are the escaped path segments after the route prefix.
	Segments []string
	// RawQuery is the original query string, without the leading '?'.
	RawQuery string
	Header   http.Header
	Body     io.Reader
}

// ProxyResponse is the result relayed back to the browser.
// The caller is responsible for closing Body.
type ProxyResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}
