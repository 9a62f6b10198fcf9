package service

import (
	"net/http"
	"strings"
)

// droppedRequestHeaders are connection-specific: Host would target the
// gateway's own authority and Content-Length is recomputed by the client.
var droppedRequestHeaders = []string{
	"Host",
	"Content-Length",
}

// FilterRequestHeaders copies every incoming header except the dropped ones,
// keeping key spelling and the order of repeated values. Values are not
// validated; the backend rejects malformed headers itself.
//
// Accept-Encoding survives this filter but is removed later by
// client.BackendClient.DoStream, so the transport negotiates and decodes
// compression itself. Only Content-Type is relayed back, never
// Content-Encoding.
func FilterRequestHeaders(src http.Header) http.Header {
	dst := make(http.Header, len(src))
	for key, vals := range src {
		if isDropped(key) {
			continue
		}
		dst[key] = append([]string(nil), vals...)
	}
	return dst
}

func isDropped(key string) bool {
	for _, d := range droppedRequestHeaders {
		if strings.EqualFold(key, d) {
			return true
		}
	}
	return false
}

// FilterResponseHeaders keeps only Content-Type from an upstream response.
// Everything else, transfer-encoding and connection included, belongs to the
// upstream hop.
func FilterResponseHeaders(src http.Header) http.Header {
	dst := make(http.Header)
	if ct := src.Get("Content-Type"); ct != "" {
		dst.Set("Content-Type", ct)
	}
	return dst
}
