// Package service implements the gateway's forwarding strategies.
package service

import (
	"strings"

	"letterbox-gateway/internal/route"
)

// ResolveURL joins the backend base URL, the route's upstream path and the
// trailing segments, then appends rawQuery verbatim when non-empty. Empty
// segments are dropped so "a//b/" resolves like "a/b". The query is never
// decoded, so percent-encoding reaches the backend byte for byte.
func ResolveURL(base string, tpl route.Template, segments []string, rawQuery string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(base, "/"))
	b.WriteString(tpl.UpstreamPath)
	for _, s := range segments {
		if s == "" {
			continue
		}
		b.WriteByte('/')
		b.WriteString(s)
	}
	if rawQuery != "" {
		b.WriteByte('?')
		b.WriteString(rawQuery)
	}
	return b.String()
}

// SplitSegments splits an escaped trailing path into its non-empty segments.
func SplitSegments(rest string) []string {
	if rest == "" {
		return nil
	}
	parts := strings.Split(rest, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
