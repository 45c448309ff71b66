package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/treefind/pkg/builder"
	"github.com/Sumatoshi-tech/treefind/pkg/config"
	"github.com/Sumatoshi-tech/treefind/pkg/observability"
	"github.com/Sumatoshi-tech/treefind/pkg/render"
	"github.com/Sumatoshi-tech/treefind/pkg/server"
	"github.com/Sumatoshi-tech/treefind/pkg/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type snapshotBody struct {
	Generation string `json:"generation"`
	Root       string `json:"root"`
	Height     int    `json:"height"`
	Nodes      []struct {
		ID    string  `json:"id"`
		Value float64 `json:"value"`
		Color string  `json:"color"`
	} `json:"nodes"`
	Path []string `json:"path"`
}

func newServer(t *testing.T, maxBytes int, deps server.Deps) (*server.Server, *session.Session) {
	t.Helper()

	sess := session.New(builder.DefaultOptions(), session.Deps{})
	srv := server.New(sess, config.Default().Server, render.HTMLOptions{}, maxBytes, deps)

	return srv, sess
}

func do(t *testing.T, srv *server.Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader

	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)

		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())

	return out
}

func colors(snap snapshotBody) map[float64]string {
	out := make(map[float64]string, len(snap.Nodes))
	for _, n := range snap.Nodes {
		out[n.Value] = n.Color
	}

	return out
}

func TestServer_Health(t *testing.T) {
	t.Parallel()

	srv, _ := newServer(t, 0, server.Deps{})

	rec := do(t, srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_Ready(t *testing.T) {
	t.Parallel()

	srv, _ := newServer(t, 0, server.Deps{})
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/readyz", nil).Code)

	notReady, _ := newServer(t, 0, server.Deps{ReadyChecks: []observability.ReadyCheck{
		func(context.Context) error { return errors.New("warming up") },
	}})

	rec := do(t, notReady, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "warming up")
}

func TestServer_RequestIDPropagated(t *testing.T) {
	t.Parallel()

	srv, _ := newServer(t, 0, server.Deps{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	req.Header.Set("X-Request-ID", "abc-123")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestServer_BuildAndFind(t *testing.T) {
	t.Parallel()

	srv, _ := newServer(t, 0, server.Deps{})

	rec := do(t, srv, http.MethodPost, "/api/tree", server.BuildRequest{Text: "5 3 8 1 4"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	built := decode[server.BuildResponse](t, rec)
	assert.Equal(t, 5, built.Nodes)
	assert.Equal(t, 3, built.Height)
	assert.Equal(t, built.Generation+"/0", string(built.Root))

	rec = do(t, srv, http.MethodPost, "/api/find", server.FindRequest{Query: "4"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	found := decode[session.Result](t, rec)
	assert.True(t, found.Searched)
	assert.True(t, found.Matched)
	assert.Equal(t, []float64{5, 3, 4}, found.Values)

	snap := decode[snapshotBody](t, do(t, srv, http.MethodGet, "/api/tree", nil))
	assert.Equal(t, map[float64]string{
		5: "in-path", 3: "in-path", 4: "match", 8: "unmarked", 1: "unmarked",
	}, colors(snap))
	assert.Len(t, snap.Path, 3)
}

func TestServer_FindNearMissAndInvalid(t *testing.T) {
	t.Parallel()

	srv, _ := newServer(t, 0, server.Deps{})
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/tree", server.BuildRequest{Text: "5 3 8"}).Code)

	found := decode[session.Result](t, do(t, srv, http.MethodPost, "/api/find", server.FindRequest{Query: "7"}))
	assert.False(t, found.Matched)
	assert.Equal(t, []float64{5, 8}, found.Values)

	rec := do(t, srv, http.MethodPost, "/api/find", server.FindRequest{Query: "abc"})
	require.Equal(t, http.StatusOK, rec.Code)

	invalid := decode[session.Result](t, rec)
	assert.False(t, invalid.Searched)
	assert.True(t, invalid.Invalid)

	snap := decode[snapshotBody](t, do(t, srv, http.MethodGet, "/api/tree", nil))
	assert.Equal(t, map[float64]string{5: "previous-root", 3: "unmarked", 8: "unmarked"}, colors(snap))
}

func TestServer_ParseError(t *testing.T) {
	t.Parallel()

	srv, sess := newServer(t, 0, server.Deps{})

	rec := do(t, srv, http.MethodPost, "/api/tree", server.BuildRequest{Text: "1 2\n x"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	body := decode[server.ErrorResponse](t, rec)
	assert.Equal(t, server.CodeParseError, body.Code)
	assert.Equal(t, 2, body.Line)
	assert.Equal(t, 2, body.Column)
	assert.Equal(t, "x", body.Token)
	assert.True(t, sess.Tree().IsEmpty())
}

func TestServer_StructuredFormat(t *testing.T) {
	t.Parallel()

	srv, _ := newServer(t, 0, server.Deps{})

	rec := do(t, srv, http.MethodPost, "/api/tree", server.BuildRequest{
		Text:   "value: 2\nright:\n  value: 3\n",
		Format: "yaml",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, decode[server.BuildResponse](t, rec).Nodes)
}

func TestServer_BadRequests(t *testing.T) {
	t.Parallel()

	srv, _ := newServer(t, 8, server.Deps{})

	tests := []struct {
		name string
		path string
		body any
	}{
		{name: "malformed json", path: "/api/tree", body: `{"text":`},
		{name: "text too large", path: "/api/tree", body: server.BuildRequest{Text: "1 2 3 4 5 6"}},
		{name: "unknown format", path: "/api/tree", body: server.BuildRequest{Text: "1", Format: "xml"}},
		{name: "query too long", path: "/api/find", body: server.FindRequest{Query: strings.Repeat("1", 300)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := do(t, srv, http.MethodPost, tt.path, tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, server.CodeInvalidRequest, decode[server.ErrorResponse](t, rec).Code)
		})
	}
}

func TestServer_BodyTooLarge(t *testing.T) {
	t.Parallel()

	srv, sess := newServer(t, 8, server.Deps{})

	tests := []struct {
		name string
		path string
		body any
	}{
		{name: "build", path: "/api/tree", body: server.BuildRequest{Text: strings.Repeat("1 ", 5000)}},
		{name: "find", path: "/api/find", body: `{"query":"` + strings.Repeat("9", 20_000) + `"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := do(t, srv, http.MethodPost, tt.path, tt.body)
			require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())
			assert.Equal(t, server.CodeBodyTooLarge, decode[server.ErrorResponse](t, rec).Code)
		})
	}

	assert.True(t, sess.Tree().IsEmpty())
}

func TestServer_ChartAndSchema(t *testing.T) {
	t.Parallel()

	srv, _ := newServer(t, 0, server.Deps{})
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/tree", server.BuildRequest{Text: "2 1 3"}).Code)

	rec := do(t, srv, http.MethodGet, "/api/tree/chart?subtitle=hello", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "echarts")
	assert.Contains(t, rec.Body.String(), "hello")

	rec = do(t, srv, http.MethodGet, "/api/schema", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"required": ["value"]`)
}

func TestServer_MetricsRoute(t *testing.T) {
	t.Parallel()

	withoutMetrics, _ := newServer(t, 0, server.Deps{})
	assert.Equal(t, http.StatusNotFound, do(t, withoutMetrics, http.MethodGet, "/metrics", nil).Code)

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("treefind_requests_total 1\n"))
	})

	withMetrics, _ := newServer(t, 0, server.Deps{MetricsHandler: handler})

	rec := do(t, withMetrics, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "treefind_requests_total")
}

func TestServer_RunShutsDownOnCancel(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	cfg := config.Default().Server
	cfg.Port = port

	sess := session.New(builder.DefaultOptions(), session.Deps{})
	srv := server.New(sess, cfg, render.HTMLOptions{}, 0, server.Deps{})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)

	go func() { errCh <- srv.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, getErr := http.Get("http://" + cfg.Addr() + "/healthz")
		if getErr != nil {
			return false
		}

		_ = resp.Body.Close()

		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case runErr := <-errCh:
		require.NoError(t, runErr)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}
