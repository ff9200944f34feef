package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"pressroom/internal/api"
	"pressroom/internal/config"
	"pressroom/internal/fanout"
	"pressroom/internal/jobs"
	"pressroom/internal/logging"
	"pressroom/internal/services"
)

const maxRequestBody = 1 << 20

type apiServer struct {
	bind    string
	token   string
	logger  *slog.Logger
	daemon  *Daemon
	jobsSvc *api.JobService
	preview *api.PreviewService
	stream  *fanout.StreamHandler

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	if cfg == nil || d == nil {
		return nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}
	srv := &apiServer{
		bind:    bind,
		token:   cfg.Paths.APIToken,
		logger:  logging.NewComponentLogger(logger, "api-server"),
		daemon:  d,
		jobsSvc: d.Jobs(),
		preview: d.Preview(),
	}
	if hub := d.Hub(); hub != nil {
		heartbeat := time.Duration(cfg.Fanout.HeartbeatInterval) * time.Second
		srv.stream = fanout.NewStreamHandler(hub, heartbeat, logger)
	}
	return srv
}

func (s *apiServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, s.requestLogger)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(s.token, false))
		r.Get("/api/status", s.handleStatus)
		r.Post("/api/preview", s.handlePreview)
		r.Route("/api/jobs", func(r chi.Router) {
			r.Get("/", s.handleListJobs)
			r.Post("/", s.handleEnqueue)
			r.Delete("/", s.handleClear)
			r.Post("/batch", s.handleEnqueueBatch)
			r.Get("/stats", s.handleStats)
			r.Get("/trend", s.handleTrend)
			r.Post("/confirm", s.handleConfirmMany)
			r.Post("/retry", s.handleRetryMany)
			r.Get("/{id}", s.handleDescribe)
			r.Post("/{id}/confirm", s.handleConfirm)
			r.Post("/{id}/retry", s.handleRetry)
		})
	})
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(s.token, true))
		r.Get("/api/events", s.handleEvents)
	})
	return r
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener
	// Request contexts hang off base, so cancelling it ends event streams,
	// which Shutdown alone would wait out.
	base, cancelStreams := context.WithCancel(context.Background())
	s.server = &http.Server{
		Handler:           s.routes(),
		BaseContext:       func(net.Listener) context.Context { return base },
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	server := s.server
	server.RegisterOnShutdown(cancelStreams)

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
		s.server = nil
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// addr reports the bound address once listening.
func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := middleware.GetReqID(ctx); id != "" {
			ctx = services.WithRequestID(ctx, id)
			r = r.WithContext(ctx)
		}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)
		logging.WithContext(ctx, s.logger).Debug("api request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", ww.Status()),
			logging.Duration("elapsed", time.Since(started)),
		)
	})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	checks := make([]api.CheckResult, 0, len(status.Preflight))
	for _, check := range status.Preflight {
		checks = append(checks, api.CheckResult{Name: check.Name, Passed: check.Passed, Detail: check.Detail})
	}
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		DBPath:       status.DBPath,
		LockFilePath: status.LockFilePath,
		Workers:      api.FromWorkerStatus(status.Workers),
		Counts:       status.Counts,
		Fanout:       api.FromFanoutStats(status.Fanout),
		Preflight:    checks,
	})
}

func (s *apiServer) handleListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var q api.ListQuery
	for _, value := range query["state"] {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				q.States = append(q.States, trimmed)
			}
		}
	}
	var ok bool
	if q.Limit, ok = s.intParam(w, query.Get("limit"), "limit"); !ok {
		return
	}
	if q.Offset, ok = s.intParam(w, query.Get("offset"), "offset"); !ok {
		return
	}
	page, err := s.jobsSvc.List(r.Context(), q)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}

func (s *apiServer) handleTrend(w http.ResponseWriter, r *http.Request) {
	days, ok := s.intParam(w, r.URL.Query().Get("days"), "days")
	if !ok {
		return
	}
	trend, err := s.jobsSvc.Trend(r.Context(), days)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, trend)
}

func (s *apiServer) handlePreview(w http.ResponseWriter, r *http.Request) {
	if s.preview == nil {
		s.writeError(w, http.StatusServiceUnavailable, "preview unavailable")
		return
	}
	var req api.PreviewRequest
	if !s.decode(w, r, &req) {
		return
	}
	// Model calls can outlast the server write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Now().Add(api.PreviewTimeout + 10*time.Second))
	preview, err := s.preview.Preview(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, preview)
}

func (s *apiServer) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req api.EnqueueRequest
	if !s.decode(w, r, &req) {
		return
	}
	job, err := s.jobsSvc.Enqueue(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if job.State == string(jobs.StatePending) {
		s.daemon.Wake()
	}
	s.writeJSON(w, http.StatusCreated, api.JobResponse{Job: *job})
}

func (s *apiServer) handleEnqueueBatch(w http.ResponseWriter, r *http.Request) {
	var req api.BatchEnqueueRequest
	if !s.decode(w, r, &req) {
		return
	}
	result, err := s.jobsSvc.EnqueueBatch(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if req.AutoConfirm && result.Created > 0 {
		s.daemon.Wake()
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *apiServer) handleDescribe(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobID(w, r)
	if !ok {
		return
	}
	job, err := s.jobsSvc.Describe(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobResponse{Job: *job})
}

func (s *apiServer) handleConfirm(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobID(w, r)
	if !ok {
		return
	}
	job, err := s.jobsSvc.Confirm(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.daemon.Wake()
	s.writeJSON(w, http.StatusOK, api.JobResponse{Job: *job})
}

func (s *apiServer) handleRetry(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobID(w, r)
	if !ok {
		return
	}
	job, err := s.jobsSvc.Retry(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.daemon.Wake()
	s.writeJSON(w, http.StatusOK, api.JobResponse{Job: *job})
}

func (s *apiServer) handleConfirmMany(w http.ResponseWriter, r *http.Request) {
	var req api.BulkRequest
	if !s.decode(w, r, &req) {
		return
	}
	result, err := s.jobsSvc.ConfirmMany(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if result.Updated > 0 {
		s.daemon.Wake()
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *apiServer) handleRetryMany(w http.ResponseWriter, r *http.Request) {
	var req api.BulkRequest
	if !s.decode(w, r, &req) {
		return
	}
	result, err := s.jobsSvc.RetryMany(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if result.Updated > 0 {
		s.daemon.Wake()
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *apiServer) handleStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.jobsSvc.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.StatsResponse{Counts: counts})
}

func (s *apiServer) handleClear(w http.ResponseWriter, r *http.Request) {
	removed, err := s.jobsSvc.Clear(r.Context(), strings.TrimSpace(r.URL.Query().Get("scope")))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ClearResponse{Removed: removed})
}

func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.stream == nil {
		s.writeError(w, http.StatusServiceUnavailable, "event stream unavailable")
		return
	}
	s.stream.ServeHTTP(w, r)
}

func (s *apiServer) jobID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid job id")
		return 0, false
	}
	return id, true
}

// intParam parses an optional integer query value; blank means zero.
func (s *apiServer) intParam(w http.ResponseWriter, raw, name string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid "+name+" "+strconv.Quote(raw))
		return 0, false
	}
	return n, true
}

func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, api.ErrInvalidRequest), errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, jobs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, jobs.ErrConflict), errors.Is(err, jobs.ErrPrecondition):
		return http.StatusConflict
	case errors.Is(err, api.ErrPreviewFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("api request failed", logging.Error(err))
	}
	s.writeError(w, status, err.Error())
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}
