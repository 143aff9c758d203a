package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/briangreenhill/hotlist/internal/app"
	"github.com/briangreenhill/hotlist/internal/config"
	"github.com/briangreenhill/hotlist/internal/http/routes"
	"github.com/briangreenhill/hotlist/internal/upstream"
)

// MockUpstream answers the platform APIs the smoke test exercises
type MockUpstream struct {
	server *httptest.Server
	hits   atomic.Int32
}

func NewMockUpstream() *MockUpstream {
	m := &MockUpstream{}
	mux := http.NewServeMux()

	mux.HandleFunc("/api/topics/hot.json", func(w http.ResponseWriter, r *http.Request) {
		m.hits.Add(1)
		topics := []map[string]any{
			{"id": 1, "title": "first topic", "url": "https://www.v2ex.com/t/1", "replies": 30, "member": map[string]any{"username": "a"}},
			{"id": 2, "title": "second topic", "url": "https://www.v2ex.com/t/2", "replies": 20, "member": map[string]any{"username": "b"}},
		}
		_ = json.NewEncoder(w).Encode(topics)
	})
	mux.HandleFunc("/ajax/side/hotSearch", func(w http.ResponseWriter, r *http.Request) {
		m.hits.Add(1)
		_, _ = w.Write([]byte(`{"ok":1,"data":{"realtime":[{"mid":"9","word":"news","num":10}]}}`))
	})

	m.server = httptest.NewServer(mux)
	return m
}

func (m *MockUpstream) Close() {
	m.server.Close()
}

// RoundTrip sends every upstream request to the mock server, keeping the path
func (m *MockUpstream) RoundTrip(r *http.Request) (*http.Response, error) {
	target, _ := url.Parse(m.server.URL)
	r = r.Clone(r.Context())
	r.URL.Scheme = target.Scheme
	r.URL.Host = target.Host
	r.Host = target.Host
	return http.DefaultTransport.RoundTrip(r)
}

// TestSmokeTest runs the API against mocked platforms end to end
func TestSmokeTest(t *testing.T) {
	mock := NewMockUpstream()
	defer mock.Close()

	cfg := &config.Config{}
	cfg.Cache.TTL = time.Minute
	cfg.Cache.MaxEntries = 10
	cfg.Cache.Dir = t.TempDir()
	cfg.Upstream.Timeout = 2 * time.Second

	stack, err := app.Build(context.Background(), cfg, zerolog.Nop(),
		upstream.WithHTTPClient(&http.Client{Transport: mock}))
	require.NoError(t, err)
	defer stack.Close()

	server := routes.New(routes.ServerOptions{
		Aggregator: stack.Aggregator,
		Memory:     stack.Memory,
		Logger:     zerolog.Nop(),
	})

	get := func(target string) map[string]any {
		t.Helper()
		w := httptest.NewRecorder()
		server.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusOK, w.Code, "GET %s: %s", target, w.Body.String())
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		return body
	}

	t.Run("complete_request_flow", func(t *testing.T) {
		// 1. First request goes upstream
		body := get("/v2ex")
		require.Equal(t, false, body["fromCache"])
		require.Equal(t, float64(2), body["total"])
		require.Equal(t, int32(1), mock.hits.Load())

		// 2. Second request is served from memory
		body = get("/v2ex?limit=1")
		require.Equal(t, true, body["fromCache"])
		require.Equal(t, float64(1), body["total"])
		require.Equal(t, int32(1), mock.hits.Load())

		// 3. Bypass goes upstream again
		body = get("/v2ex?cache=false")
		require.Equal(t, false, body["fromCache"])
		require.Equal(t, int32(2), mock.hits.Load())

		// 4. A cleared memory tier falls back to the disk tier
		for _, key := range stack.Memory.Keys() {
			require.NoError(t, stack.Memory.Invalidate(context.Background(), key))
		}
		body = get("/v2ex")
		require.Equal(t, true, body["fromCache"])
		require.Equal(t, int32(2), mock.hits.Load())

		// 5. Another platform and the index
		body = get("/weibo")
		require.Equal(t, "weibo", body["name"])
		body = get("/all")
		require.Equal(t, float64(5), body["count"])

		// 6. Counters reflect the flow
		stats := get("/stats")["cache"].(map[string]any)
		require.Equal(t, float64(1), stats["secondary_hits"])
		require.Equal(t, float64(1), stats["bypasses"])
	})
}
