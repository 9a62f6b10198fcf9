// Package route holds the static table of endpoints the gateway exposes.
package route

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
)

// BodyMode selects how a route treats request and response bodies.
type BodyMode int

const (
	// Streamed forwards the raw request body and relays the raw response stream.
	Streamed BodyMode = iota
	// Buffered parses and re-serializes JSON in both directions.
	Buffered
	// None never forwards a request body.
	None
)

// String returns the config spelling of the mode.
func (m BodyMode) String() string {
	switch m {
	case Streamed:
		return "streamed"
	case Buffered:
		return "buffered"
	case None:
		return "none"
	}
	return fmt.Sprintf("BodyMode(%d)", int(m))
}

// ParseBodyMode parses the config spelling of a body mode. Empty means Streamed.
func ParseBodyMode(s string) (BodyMode, error) {
	switch strings.ToLower(s) {
	case "", "streamed":
		return Streamed, nil
	case "buffered":
		return Buffered, nil
	case "none":
		return None, nil
	}
	return 0, fmt.Errorf("unknown body mode %q", s)
}

// Template describes how one exposed endpoint is forwarded. Templates are built
// once at startup and never mutated.
type Template struct {
	Name string
	// Prefix is the inbound path, e.g. /api/movies.
	Prefix string
	// UpstreamPath is appended to the backend base URL, e.g. /movies.
	UpstreamPath string
	Methods      []string
	BodyMode     BodyMode
	// Wildcard routes accept an arbitrary trailing path after Prefix.
	Wildcard bool
	// FailureMessage is used in the error body of buffered routes when the
	// upstream payload cannot be decoded.
	FailureMessage string
}

// Table is the ordered set of templates served by the gateway.
type Table []Template

var streamMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
}

// DefaultTable returns the endpoints the browser application relies on.
func DefaultTable() Table {
	return Table{
		{
			Name:         "auth",
			Prefix:       "/api/auth",
			UpstreamPath: "/auth",
			Methods:      slices.Clone(streamMethods),
			BodyMode:     Streamed,
			Wildcard:     true,
		},
		{
			Name:         "movies",
			Prefix:       "/api/movies",
			UpstreamPath: "/movies",
			Methods:      slices.Clone(streamMethods),
			BodyMode:     Streamed,
		},
		{
			Name:         "movie-search",
			Prefix:       "/api/movies/search",
			UpstreamPath: "/movies/search",
			Methods:      slices.Clone(streamMethods),
			BodyMode:     Streamed,
		},
		{
			Name:         "ratings",
			Prefix:       "/api/movies/ratings",
			UpstreamPath: "/movies/ratings",
			Methods:      slices.Clone(streamMethods),
			BodyMode:     Streamed,
			Wildcard:     true,
		},
		{
			Name:           "profile-summary",
			Prefix:         "/api/movies/profile/summary",
			UpstreamPath:   "/movies/profile/summary",
			Methods:        []string{http.MethodGet},
			BodyMode:       Buffered,
			FailureMessage: "Failed to fetch profile summary",
		},
		{
			Name:           "profile",
			Prefix:         "/api/profile/me",
			UpstreamPath:   "/profile/me",
			Methods:        []string{http.MethodGet, http.MethodPut},
			BodyMode:       Buffered,
			FailureMessage: "Failed to process profile request",
		},
	}
}

var knownMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodHead:   true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// Validate checks the table for malformed or conflicting templates.
func (tb Table) Validate() error {
	if len(tb) == 0 {
		return fmt.Errorf("route table is empty")
	}
	names := make(map[string]bool, len(tb))
	prefixes := make(map[string]bool, len(tb))
	for i, t := range tb {
		if t.Name == "" {
			return fmt.Errorf("route %d: name is required", i)
		}
		if names[t.Name] {
			return fmt.Errorf("route %q: duplicate name", t.Name)
		}
		names[t.Name] = true

		if !strings.HasPrefix(t.Prefix, "/") || strings.HasSuffix(t.Prefix, "/") {
			return fmt.Errorf("route %q: prefix must start with '/' and not end with '/'; got %q", t.Name, t.Prefix)
		}
		if prefixes[t.Prefix] {
			return fmt.Errorf("route %q: prefix %q is already served", t.Name, t.Prefix)
		}
		prefixes[t.Prefix] = true

		if !strings.HasPrefix(t.UpstreamPath, "/") {
			return fmt.Errorf("route %q: upstream path must start with '/'; got %q", t.Name, t.UpstreamPath)
		}
		if len(t.Methods) == 0 {
			return fmt.Errorf("route %q: at least one method is required", t.Name)
		}
		for _, m := range t.Methods {
			if !knownMethods[m] {
				return fmt.Errorf("route %q: unsupported method %q", t.Name, m)
			}
			if t.BodyMode == Buffered && m != http.MethodGet && m != http.MethodPut {
				return fmt.Errorf("route %q: buffered routes only support GET and PUT; got %q", t.Name, m)
			}
		}
		if t.BodyMode == Buffered && t.Wildcard {
			return fmt.Errorf("route %q: buffered routes cannot have a wildcard suffix", t.Name)
		}
	}
	return nil
}

// Prefixes returns the inbound prefix of every template.
func (tb Table) Prefixes() []string {
	out := make([]string, 0, len(tb))
	for _, t := range tb {
		out = append(out, t.Prefix)
	}
	return out
}

// Names returns the name of every template.
func (tb Table) Names() []string {
	out := make([]string, 0, len(tb))
	for _, t := range tb {
		out = append(out, t.Name)
	}
	return out
}
