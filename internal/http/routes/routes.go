package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	platformerrors "github.com/jmgilman/go/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/briangreenhill/hotlist/cache"
	"github.com/briangreenhill/hotlist/internal/aggregator"
	"github.com/briangreenhill/hotlist/internal/hotlist"
	appmw "github.com/briangreenhill/hotlist/internal/http/middleware"
	"github.com/briangreenhill/hotlist/internal/jobs"
	"github.com/briangreenhill/hotlist/internal/providers"
)

// Enqueuer submits background tasks; *asynq.Client satisfies it
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type Server struct {
	Router *chi.Mux
	Agg    *aggregator.Aggregator
	Memory *cache.Memory // optional; reported by /stats
	Queue  Enqueuer      // nil disables /{platform}/refresh
	Logger zerolog.Logger
}

type ServerOptions struct {
	Aggregator *aggregator.Aggregator
	Memory     *cache.Memory
	Queue      Enqueuer
	Logger     zerolog.Logger
	// RefreshDedup suppresses duplicate refresh tasks within this window
	RefreshDedup time.Duration
}

type envelope struct {
	Code int `json:"code"`
	*hotlist.List
}

type errorEnvelope struct {
	Code  int                           `json:"code"`
	Error *platformerrors.ErrorResponse `json:"error"`
}

func New(opts ServerOptions) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(hlog.NewHandler(opts.Logger))
	r.Use(requestIDLogger)
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(chimw.Recoverer)

	s := &Server{Router: r, Agg: opts.Aggregator, Memory: opts.Memory, Queue: opts.Queue, Logger: opts.Logger}
	dedup := opts.RefreshDedup

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("write health check response")
		}
	})

	r.Get("/all", s.handleAll)
	r.Get("/stats", s.handleStats)

	r.With(appmw.CacheOptions).Get("/{platform}", s.handleList)
	r.Post("/{platform}/refresh", func(w http.ResponseWriter, r *http.Request) {
		s.handleRefresh(w, r, dedup)
	})

	return s
}

// ServeHTTP lets the server be used directly as an http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

// requestIDLogger adds chi's request id to the request logger
func requestIDLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := chimw.GetReqID(r.Context()); id != "" {
			log := zerolog.Ctx(r.Context())
			log.UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("req_id", id)
			})
		}
		next.ServeHTTP(w, r)
	})
}

type routeInfo struct {
	hotlist.Info
	Path string `json:"path"`
}

func (s *Server) handleAll(w http.ResponseWriter, r *http.Request) {
	infos := s.Agg.Infos()
	routes := make([]routeInfo, 0, len(infos))
	for _, info := range infos {
		routes = append(routes, routeInfo{Info: info, Path: "/" + info.Name})
	}
	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"code":   http.StatusOK,
		"count":  len(routes),
		"routes": routes,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"code":  http.StatusOK,
		"cache": s.Agg.Stats(),
	}
	if s.Memory != nil {
		body["primary"] = map[string]any{
			"size":      s.Memory.Len(),
			"capacity":  s.Memory.Capacity(),
			"evictions": s.Memory.Evictions(),
		}
	}
	s.writeJSON(w, r, http.StatusOK, body)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "platform")
	reqOpts := appmw.Options(r.Context())

	list, err := s.Agg.Fetch(r.Context(), name, aggregator.FetchOptions{
		Query:  forwardedQuery(r),
		Bypass: reqOpts.Bypass,
		Limit:  reqOpts.Limit,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, envelope{Code: http.StatusOK, List: list})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request, dedup time.Duration) {
	name := chi.URLParam(r, "platform")
	if !s.Agg.Has(name) {
		s.writeError(w, r, platformerrors.Newf(platformerrors.CodeNotFound, "unknown platform %q", name))
		return
	}
	if s.Queue == nil {
		s.writeError(w, r, platformerrors.New(platformerrors.CodeUnavailable, "background refresh is not configured"))
		return
	}

	task, err := jobs.NewRefreshTask(jobs.RefreshPayload{
		Platform: name,
		Query:    forwardedQuery(r),
	})
	if err != nil {
		s.writeError(w, r, platformerrors.Wrap(err, platformerrors.CodeInternal, "build refresh task"))
		return
	}

	requestID := uuid.NewString()
	opts := append(jobs.EnqueueOptions(dedup), asynq.TaskID(requestID))
	info, err := s.Queue.EnqueueContext(r.Context(), task, opts...)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		s.writeJSON(w, r, http.StatusAccepted, map[string]any{
			"code":     http.StatusAccepted,
			"platform": name,
			"status":   "already queued",
		})
		return
	}
	if err != nil {
		s.writeError(w, r, platformerrors.Wrap(err, platformerrors.CodeUnavailable, "enqueue refresh"))
		return
	}

	hlog.FromRequest(r).Info().Str("platform", name).Str("task_id", info.ID).Str("request_id", requestID).Msg("refresh queued")
	s.writeJSON(w, r, http.StatusAccepted, map[string]any{
		"code":      http.StatusAccepted,
		"platform":  name,
		"taskId":    info.ID,
		"requestId": requestID,
		"status":    "queued",
	})
}

// forwardedQuery passes every non-control query parameter to the provider
func forwardedQuery(r *http.Request) providers.Query {
	q := providers.Query{}
	for k, v := range r.URL.Query() {
		if len(v) == 0 || slices.Contains(appmw.ControlParams, k) {
			continue
		}
		q[k] = v[0]
	}
	return q
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	event := hlog.FromRequest(r).Warn()
	if status >= http.StatusInternalServerError {
		event = hlog.FromRequest(r).Error()
	}
	event.Err(err).Int("status", status).Msg("request failed")

	s.writeJSON(w, r, status, errorEnvelope{Code: status, Error: platformerrors.ToJSON(err)})
}

// statusFor maps an error to an HTTP status. Upstream failures are gateway
// errors regardless of their code.
func statusFor(err error) int {
	code := platformerrors.GetCode(err)

	var fe *cache.FetchError
	if errors.As(err, &fe) {
		if code == platformerrors.CodeTimeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	}

	switch code {
	case platformerrors.CodeNotFound:
		return http.StatusNotFound
	case platformerrors.CodeInvalidInput:
		return http.StatusBadRequest
	case platformerrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	case platformerrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
