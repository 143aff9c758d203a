package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/hibiken/asynq"
	platformerrors "github.com/jmgilman/go/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briangreenhill/hotlist/cache"
	"github.com/briangreenhill/hotlist/internal/aggregator"
	"github.com/briangreenhill/hotlist/internal/hotlist"
	"github.com/briangreenhill/hotlist/internal/jobs"
	"github.com/briangreenhill/hotlist/internal/providers"
	"github.com/briangreenhill/hotlist/internal/upstream"
)

type testProvider struct{}

func (testProvider) Name() string { return "demo" }

func (testProvider) Info() hotlist.Info {
	return hotlist.Info{Name: "demo", Title: "Demo", Type: "hot", Link: "https://demo.example.com"}
}

func (testProvider) Request(q providers.Query) upstream.Request {
	return upstream.Request{URL: "https://demo.example.com/hot", Params: map[string]string{"type": q.Get("type", "all")}}
}

func (testProvider) Parse(body []byte) ([]hotlist.Item, error) {
	var items []hotlist.Item
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, platformerrors.Wrap(err, platformerrors.CodeSchemaFailed, "decode demo")
	}
	return items, nil
}

type stubDoer struct {
	mu     sync.Mutex
	body   string
	err    error
	calls  int
	params []map[string]string
}

func (d *stubDoer) Do(_ context.Context, req upstream.Request) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	d.params = append(d.params, req.Params)
	if d.err != nil {
		return nil, d.err
	}
	return []byte(d.body), nil
}

type fakeQueue struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (q *fakeQueue) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.tasks = append(q.tasks, task)
	q.opts = append(q.opts, opts)
	id, _ := optionValue(opts, asynq.TaskIDOpt).(string)
	return &asynq.TaskInfo{ID: id, Queue: jobs.QueueRefresh}, nil
}

func optionValue(opts []asynq.Option, typ asynq.OptionType) any {
	for _, o := range opts {
		if o.Type() == typ {
			return o.Value()
		}
	}
	return nil
}

const threeItems = `[{"id":"1","title":"a","hot":3},{"id":"2","title":"b","hot":2},{"id":"3","title":"c","hot":1}]`

func newTestServer(doer *stubDoer, queue Enqueuer) *Server {
	registry := providers.NewRegistry()
	registry.Register(testProvider{})
	mem := cache.NewMemory()
	agg := aggregator.New(registry, doer, cache.NewOrchestrator(mem, nil), zerolog.Nop())
	return New(ServerOptions{Aggregator: agg, Memory: mem, Queue: queue, Logger: zerolog.Nop()})
}

func get(t *testing.T, h http.Handler, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var body map[string]any
	if rec.Header().Get("Content-Type") != "" && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHealthz(t *testing.T) {
	s := newTestServer(&stubDoer{}, nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestListEnvelope(t *testing.T) {
	doer := &stubDoer{body: threeItems}
	s := newTestServer(doer, nil)

	rec, body := get(t, s, "/demo")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(200), body["code"])
	assert.Equal(t, "demo", body["name"])
	assert.Equal(t, "Demo", body["title"])
	assert.Equal(t, "hot", body["type"])
	assert.Equal(t, float64(3), body["total"])
	assert.Equal(t, false, body["fromCache"])
	assert.NotEmpty(t, body["updateTime"])
	assert.Len(t, body["data"], 3)

	_, body = get(t, s, "/demo?limit=1")
	assert.Equal(t, true, body["fromCache"])
	assert.Equal(t, float64(1), body["total"])
	assert.Equal(t, 1, doer.calls)
}

func TestListBypass(t *testing.T) {
	doer := &stubDoer{body: threeItems}
	s := newTestServer(doer, nil)

	get(t, s, "/demo")
	_, body := get(t, s, "/demo?cache=false")
	assert.Equal(t, false, body["fromCache"])
	assert.Equal(t, 2, doer.calls)
}

func TestListForwardsQuery(t *testing.T) {
	doer := &stubDoer{body: threeItems}
	s := newTestServer(doer, nil)

	get(t, s, "/demo?type=music&cache=false&limit=2")
	require.Len(t, doer.params, 1)
	assert.Equal(t, map[string]string{"type": "music"}, doer.params[0])
}

func TestListErrors(t *testing.T) {
	t.Run("unknown platform", func(t *testing.T) {
		rec, body := get(t, newTestServer(&stubDoer{}, nil), "/nope")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		errBody := body["error"].(map[string]any)
		assert.Equal(t, string(platformerrors.CodeNotFound), errBody["code"])
	})

	t.Run("upstream failure", func(t *testing.T) {
		doer := &stubDoer{err: platformerrors.New(platformerrors.CodeUnavailable, "down")}
		rec, _ := get(t, newTestServer(doer, nil), "/demo")
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("upstream timeout", func(t *testing.T) {
		doer := &stubDoer{err: platformerrors.New(platformerrors.CodeTimeout, "slow")}
		rec, _ := get(t, newTestServer(doer, nil), "/demo")
		assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	})

	t.Run("malformed payload", func(t *testing.T) {
		doer := &stubDoer{body: "<html>"}
		rec, body := get(t, newTestServer(doer, nil), "/demo")
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		errBody := body["error"].(map[string]any)
		assert.Equal(t, string(platformerrors.CodeSchemaFailed), errBody["code"])
	})
}

func TestAll(t *testing.T) {
	rec, body := get(t, newTestServer(&stubDoer{}, nil), "/all")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["count"])
	routes := body["routes"].([]any)
	first := routes[0].(map[string]any)
	assert.Equal(t, "demo", first["name"])
	assert.Equal(t, "/demo", first["path"])
}

func TestStats(t *testing.T) {
	s := newTestServer(&stubDoer{body: threeItems}, nil)
	get(t, s, "/demo")
	get(t, s, "/demo")

	rec, body := get(t, s, "/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := body["cache"].(map[string]any)
	assert.Equal(t, float64(1), stats["primary_hits"])
	assert.Equal(t, float64(1), stats["misses"])
	primary := body["primary"].(map[string]any)
	assert.Equal(t, float64(1), primary["size"])
	assert.Equal(t, float64(cache.DefaultCapacity), primary["capacity"])
}

func TestRefresh(t *testing.T) {
	post := func(s *Server, target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, target, nil))
		return rec
	}

	t.Run("queued", func(t *testing.T) {
		q := &fakeQueue{}
		rec := post(newTestServer(&stubDoer{}, q), "/demo/refresh?type=music")
		require.Equal(t, http.StatusAccepted, rec.Code)
		require.Len(t, q.tasks, 1)
		assert.Equal(t, jobs.TaskRefreshPlatform, q.tasks[0].Type())

		var p jobs.RefreshPayload
		require.NoError(t, json.Unmarshal(q.tasks[0].Payload(), &p))
		assert.Equal(t, "demo", p.Platform)
		assert.Equal(t, "music", p.Query["type"])

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.NotEmpty(t, body["requestId"])
		assert.Equal(t, body["requestId"], optionValue(q.opts[0], asynq.TaskIDOpt))
		assert.NotNil(t, optionValue(q.opts[0], asynq.UniqueOpt))
	})

	t.Run("identical requests share a payload", func(t *testing.T) {
		q := &fakeQueue{}
		s := newTestServer(&stubDoer{}, q)
		require.Equal(t, http.StatusAccepted, post(s, "/demo/refresh?type=music&page=2").Code)
		require.Equal(t, http.StatusAccepted, post(s, "/demo/refresh?page=2&type=music").Code)
		require.Len(t, q.tasks, 2)

		// asynq.Unique locks on queue, type and payload
		assert.Equal(t, q.tasks[0].Type(), q.tasks[1].Type())
		assert.Equal(t, string(q.tasks[0].Payload()), string(q.tasks[1].Payload()))
		assert.Equal(t, optionValue(q.opts[0], asynq.QueueOpt), optionValue(q.opts[1], asynq.QueueOpt))
		assert.NotEqual(t, optionValue(q.opts[0], asynq.TaskIDOpt), optionValue(q.opts[1], asynq.TaskIDOpt))
	})

	t.Run("duplicate", func(t *testing.T) {
		q := &fakeQueue{err: asynq.ErrDuplicateTask}
		rec := post(newTestServer(&stubDoer{}, q), "/demo/refresh")
		assert.Equal(t, http.StatusAccepted, rec.Code)
	})

	t.Run("no queue", func(t *testing.T) {
		rec := post(newTestServer(&stubDoer{}, nil), "/demo/refresh")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("unknown platform", func(t *testing.T) {
		rec := post(newTestServer(&stubDoer{}, &fakeQueue{}), "/nope/refresh")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
