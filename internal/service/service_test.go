package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"letterbox-gateway/internal/client"
	"letterbox-gateway/internal/config"
	"letterbox-gateway/internal/model"
	"letterbox-gateway/internal/route"
)

const base = "http://127.0.0.1:8000"

func templateNamed(t *testing.T, name string) route.Template {
	t.Helper()
	for _, tpl := range route.DefaultTable() {
		if tpl.Name == name {
			return tpl
		}
	}
	t.Fatalf("no route %q", name)
	return route.Template{}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingUpstream captures the single exchange a forwarder attempts.
type recordingUpstream struct {
	calls   atomic.Int32
	method  string
	target  string
	header  http.Header
	body    []byte
	hasBody bool

	resp *model.ProxyResponse
	err  error
}

func (u *recordingUpstream) DoStream(_ context.Context, method, target string, header http.Header, body io.Reader) (*model.ProxyResponse, error) {
	u.calls.Add(1)
	u.method = method
	u.target = target
	u.header = header
	if body != nil {
		u.hasBody = true
		u.body, _ = io.ReadAll(body)
	}
	if u.err != nil {
		return nil, u.err
	}
	return u.resp, nil
}

func jsonResponse(status int, body string) *model.ProxyResponse {
	return &model.ProxyResponse{
		StatusCode: status,
		Header:     http.Header{"Content-Type": {"application/json"}, "Set-Cookie": {"a=b"}, "Connection": {"close"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestResolveURL(t *testing.T) {
	movies := templateNamed(t, "movies")
	ratings := templateNamed(t, "ratings")

	tests := []struct {
		name     string
		base     string
		tpl      route.Template
		segments []string
		rawQuery string
		want     string
	}{
		{"fixed path no query", base, movies, nil, "", base + "/movies"},
		{"fixed path with query", base, movies, nil, "page=1", base + "/movies?page=1"},
		{"query kept byte for byte", base, movies, nil, "q=a%20b&page=1", base + "/movies?q=a%20b&page=1"},
		{"plus and repeated keys kept", base, movies, nil, "q=a+b&tag=x&tag=y", base + "/movies?q=a+b&tag=x&tag=y"},
		{"trailing segments", base, ratings, []string{"42", "history"}, "", base + "/movies/ratings/42/history"},
		{"empty segments dropped", base, ratings, []string{"", "42", ""}, "", base + "/movies/ratings/42"},
		{"escaped segment untouched", base, ratings, []string{"caf%C3%A9"}, "x=1", base + "/movies/ratings/caf%C3%A9?x=1"},
		{"base trailing slash", base + "/", movies, nil, "", base + "/movies"},
		{"base with path", "http://backend/internal", movies, nil, "", "http://backend/internal/movies"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveURL(tt.base, tt.tpl, tt.segments, tt.rawQuery))
		})
	}
}

func TestSplitSegments(t *testing.T) {
	assert.Nil(t, SplitSegments(""))
	assert.Nil(t, SplitSegments("/"))
	assert.Nil(t, SplitSegments("//"))
	assert.Equal(t, []string{"login"}, SplitSegments("/login"))
	assert.Equal(t, []string{"a", "b"}, SplitSegments("/a//b/"))
}

func TestFilterRequestHeaders(t *testing.T) {
	src := http.Header{
		"Host":            {"gateway.local"},
		"Content-Length":  {"42"},
		"content-length":  {"42"},
		"Authorization":   {"Bearer xyz"},
		"Accept":          {"application/json"},
		"X-Custom-Header": {"kept"},
		"Cookie":          {"a=1", "b=2"},
	}

	dst := FilterRequestHeaders(src)

	assert.Empty(t, dst.Values("Host"))
	assert.Empty(t, dst.Values("Content-Length"))
	assert.NotContains(t, dst, "content-length")
	assert.Equal(t, "Bearer xyz", dst.Get("Authorization"))
	assert.Equal(t, "kept", dst.Get("X-Custom-Header"))
	assert.Equal(t, []string{"a=1", "b=2"}, dst.Values("Cookie"))

	dst.Add("Cookie", "c=3")
	assert.Len(t, src.Values("Cookie"), 2, "source header must not be aliased")
}

func TestFilterResponseHeaders(t *testing.T) {
	dst := FilterResponseHeaders(http.Header{
		"Content-Type":      {"application/json"},
		"Transfer-Encoding": {"chunked"},
		"Connection":        {"keep-alive"},
		"Set-Cookie":        {"session=abc"},
		"Location":          {"/elsewhere"},
	})
	assert.Equal(t, http.Header{"Content-Type": {"application/json"}}, dst)

	assert.Empty(t, FilterResponseHeaders(http.Header{"X-Other": {"1"}}))
}

func TestStreamingForwarder_GetSendsNoBody(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodHead} {
		t.Run(method, func(t *testing.T) {
			up := &recordingUpstream{resp: jsonResponse(http.StatusOK, `{}`)}
			f := NewForwarder(templateNamed(t, "movies"), up, base, discardLogger())

			resp, err := f.Forward(&model.ProxyRequest{
				Ctx:      context.Background(),
				Method:   method,
				RawQuery: "page=1",
				Header:   http.Header{},
				Body:     strings.NewReader("ignored"),
			})
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.False(t, up.hasBody, "no body may be sent for %s", method)
			assert.Equal(t, base+"/movies?page=1", up.target)
		})
	}
}

func TestStreamingForwarder_BinaryBodyRoundTrip(t *testing.T) {
	payload := []byte{0x00, 0xff, 0xfe, 0x80, 'a', 0xc3, 0x28}
	up := &recordingUpstream{resp: jsonResponse(http.StatusCreated, `{}`)}
	f := NewForwarder(templateNamed(t, "ratings"), up, base, discardLogger())

	resp, err := f.Forward(&model.ProxyRequest{
		Ctx:      context.Background(),
		Method:   http.MethodPost,
		Segments: []string{"7"},
		Header:   http.Header{"Content-Type": {"application/octet-stream"}, "Content-Length": {"7"}},
		Body:     strings.NewReader(string(payload)),
	})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, payload, up.body)
	assert.Equal(t, http.MethodPost, up.method)
	assert.Equal(t, base+"/movies/ratings/7", up.target)
	assert.Empty(t, up.header.Values("Content-Length"))
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, http.Header{"Content-Type": {"application/json"}}, resp.Header)
	assert.EqualValues(t, 1, up.calls.Load())
}

func TestStreamingForwarder_BodyModeNone(t *testing.T) {
	tpl := templateNamed(t, "movies")
	tpl.BodyMode = route.None
	up := &recordingUpstream{resp: jsonResponse(http.StatusOK, `{}`)}

	resp, err := NewForwarder(tpl, up, base, discardLogger()).Forward(&model.ProxyRequest{
		Ctx:    context.Background(),
		Method: http.MethodDelete,
		Header: http.Header{},
		Body:   strings.NewReader("dropped"),
	})
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.False(t, up.hasBody)
}

func TestStreamingForwarder_TransportError(t *testing.T) {
	te := &client.TransportError{Method: http.MethodGet, URL: base + "/movies", Err: errors.New("connection refused")}
	up := &recordingUpstream{err: te}

	_, err := NewForwarder(templateNamed(t, "movies"), up, base, discardLogger()).Forward(&model.ProxyRequest{
		Ctx:    context.Background(),
		Method: http.MethodGet,
		Header: http.Header{},
	})
	require.Error(t, err)
	var gotTE *client.TransportError
	assert.ErrorAs(t, err, &gotTE)
	assert.EqualValues(t, 1, up.calls.Load())
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("client went away") }

func TestStreamingForwarder_RequestBodyError(t *testing.T) {
	up := &recordingUpstream{}
	_, err := NewForwarder(templateNamed(t, "auth"), up, base, discardLogger()).Forward(&model.ProxyRequest{
		Ctx:    context.Background(),
		Method: http.MethodPost,
		Header: http.Header{},
		Body:   failingReader{},
	})

	var rbe *RequestBodyError
	require.ErrorAs(t, err, &rbe)
	assert.Zero(t, up.calls.Load())
}

func TestBufferedForwarder_MissingAuthorization(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodPut} {
		t.Run(method, func(t *testing.T) {
			up := &recordingUpstream{}
			f := NewForwarder(templateNamed(t, "profile"), up, base, discardLogger())

			_, err := f.Forward(&model.ProxyRequest{
				Ctx:    context.Background(),
				Method: method,
				Header: http.Header{"Content-Type": {"application/json"}},
				Body:   strings.NewReader(`{"display_name":"Ada"}`),
			})
			assert.ErrorIs(t, err, ErrMissingAuthorization)
			assert.Zero(t, up.calls.Load(), "no upstream call may be attempted")
		})
	}
}

func TestBufferedForwarder_GetHappyPath(t *testing.T) {
	up := &recordingUpstream{resp: jsonResponse(http.StatusOK, `{"display_name":"Ada","ratings":12}`)}
	f := NewForwarder(templateNamed(t, "profile-summary"), up, base, discardLogger())

	resp, err := f.Forward(&model.ProxyRequest{
		Ctx:      context.Background(),
		Method:   http.MethodGet,
		RawQuery: "ignored=1",
		Header:   http.Header{"Authorization": {"Bearer xyz"}, "Cookie": {"dropped"}},
	})
	require.NoError(t, err)

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"display_name":"Ada","ratings":12}`, string(body))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	assert.Equal(t, base+"/movies/profile/summary", up.target)
	assert.Equal(t, http.Header{"Authorization": {"Bearer xyz"}, "Content-Type": {"application/json"}}, up.header)
	assert.False(t, up.hasBody)
}

func TestBufferedForwarder_PutReencodesBody(t *testing.T) {
	up := &recordingUpstream{resp: jsonResponse(http.StatusAccepted, `{"ok":true}`)}
	f := NewForwarder(templateNamed(t, "profile"), up, base, discardLogger())

	resp, err := f.Forward(&model.ProxyRequest{
		Ctx:    context.Background(),
		Method: http.MethodPut,
		Header: http.Header{"Authorization": {"Bearer xyz"}},
		Body:   strings.NewReader("  {\"display_name\" : \"Ada <3\", \"age\": 36.50}\n"),
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, up.method)
	assert.Equal(t, `{"age":36.50,"display_name":"Ada <3"}`, string(up.body))
	assert.Equal(t, http.StatusOK, resp.StatusCode, "2xx is normalized to 200")
}

func TestBufferedForwarder_UpstreamErrorRelayed(t *testing.T) {
	up := &recordingUpstream{resp: jsonResponse(http.StatusNotFound, `{"detail":"not found"}`)}
	f := NewForwarder(templateNamed(t, "profile"), up, base, discardLogger())

	resp, err := f.Forward(&model.ProxyRequest{
		Ctx:    context.Background(),
		Method: http.MethodPut,
		Header: http.Header{"Authorization": {"Bearer xyz"}},
		Body:   strings.NewReader(`{"display_name":"Ada"}`),
	})
	require.NoError(t, err)

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, `{"detail":"not found"}`, string(body))
}

func TestBufferedForwarder_DecodeErrors(t *testing.T) {
	tests := []struct {
		name      string
		method    string
		reqBody   string
		upstream  string
		wantOp    string
		wantCalls int32
	}{
		{"upstream html", http.MethodGet, "", "<html>oops</html>", "decode upstream response", 1},
		{"upstream empty", http.MethodGet, "", "", "decode upstream response", 1},
		{"upstream trailing data", http.MethodGet, "", `{"a":1} {"b":2}`, "decode upstream response", 1},
		{"request not json", http.MethodPut, "display_name=Ada", `{}`, "decode request body", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := &recordingUpstream{resp: jsonResponse(http.StatusOK, tt.upstream)}
			f := NewForwarder(templateNamed(t, "profile"), up, base, discardLogger())

			_, err := f.Forward(&model.ProxyRequest{
				Ctx:    context.Background(),
				Method: tt.method,
				Header: http.Header{"Authorization": {"Bearer xyz"}},
				Body:   strings.NewReader(tt.reqBody),
			})

			var pde *PayloadDecodeError
			require.ErrorAs(t, err, &pde)
			assert.Equal(t, tt.wantOp, pde.Op)
			assert.Equal(t, tt.wantCalls, up.calls.Load())
			var te *client.TransportError
			assert.False(t, errors.As(err, &te))
		})
	}
}

func TestStreamingForwarder_AgainstServer(t *testing.T) {
	var gotURI string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURI = r.RequestURI
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Backend-Only", "1")
		_, _ = w.Write([]byte(`{"movies":[],"page":1,"total_pages":1}`))
	}))
	defer srv.Close()

	cfg := &config.Config{Backend: config.BackendConfig{IdleConnections: 2}}
	bc := client.NewBackendClient(cfg, discardLogger(), nil)
	f := NewForwarder(templateNamed(t, "movie-search"), bc, srv.URL, discardLogger())

	resp, err := f.Forward(&model.ProxyRequest{
		Ctx:      context.Background(),
		Method:   http.MethodGet,
		RawQuery: "q=a%20b&page=1",
		Header:   http.Header{},
	})
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "/movies/search?q=a%20b&page=1", gotURI)
	assert.Equal(t, `{"movies":[],"page":1,"total_pages":1}`, string(body))
	assert.Empty(t, resp.Header.Get("X-Backend-Only"))
}
