// Package server implements the task REST backend consumed by the client:
// CRUD on /api/tasks, a health probe and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/taskcal/internal/taskdb"
)

// Server routes HTTP requests to a task repository.
type Server struct {
	repo     taskdb.Repository
	logger   *slog.Logger
	router   *mux.Router
	handler  http.Handler
	requests *prometheus.CounterVec
}

// New builds a Server. reg receives the request metrics and is served on
// /metrics; a nil reg gets a private registry.
func New(repo taskdb.Repository, logger *slog.Logger, reg *prometheus.Registry) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	s := &Server{
		repo:   repo,
		logger: logger,
		router: mux.NewRouter(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskcal_http_requests_total",
			Help: "HTTP requests handled by the task backend.",
		}, []string{"method", "route", "code"}),
	}
	reg.MustRegister(s.requests)

	s.routes(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	s.handler = s.instrument(s.router)
	return s
}

// routes sets up all routes for the application.
func (s *Server) routes(metrics http.Handler) {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/tasks", s.listTasks).Methods(http.MethodGet)
	api.HandleFunc("/tasks", s.createTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id:[0-9]+}", s.getTask).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{id:[0-9]+}", s.updateTask).Methods(http.MethodPut)
	api.HandleFunc("/tasks/{id:[0-9]+}", s.deleteTask).Methods(http.MethodDelete)
	api.HandleFunc("/health", s.health).Methods(http.MethodGet)
	s.router.Handle("/metrics", metrics).Methods(http.MethodGet)
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("task backend listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down task backend")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument counts every request by method, route template and status.
// Requests no route accepts, including 404 and 405 responses, are counted
// under the route "unknown".
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := s.routeTemplate(r)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.requests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", rec.status)
	})
}

func (s *Server) routeTemplate(r *http.Request) string {
	var match mux.RouteMatch
	if !s.router.Match(r, &match) || match.MatchErr != nil || match.Route == nil {
		return "unknown"
	}
	tmpl, err := match.Route.GetPathTemplate()
	if err != nil {
		return "unknown"
	}
	return tmpl
}
