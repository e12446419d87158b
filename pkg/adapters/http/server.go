// Package http exposes the telemetry engine over a JSON API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/aretw0/telemetry"
	"github.com/aretw0/telemetry/api"
	"github.com/aretw0/telemetry/internal/dto"
	"github.com/aretw0/telemetry/internal/logging"
	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/aretw0/telemetry/pkg/scheduler"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Engine is the part of telemetry.Engine the server uses.
type Engine interface {
	Kinds() []domain.Kind
	Closure(key string) ([]domain.Kind, error)
	Datasets(ctx context.Context, filter domain.DatasetFilter) ([]domain.Dataset, error)
	Artifacts(ctx context.Context, datasetID string) (map[string]domain.Artifact, error)
	ReconcileDataset(ctx context.Context, id string) (telemetry.Report, error)
	RemoveDataset(ctx context.Context, id string) error
	Make(ctx context.Context, target string, filter domain.DatasetFilter, opts telemetry.MakeOptions) (scheduler.Summary, error)
}

var _ Engine = (*telemetry.Engine)(nil)

// Server serves the API routes.
type Server struct {
	Engine   Engine
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithGatherer exposes the gatherer's metrics on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// NewHandler creates a new HTTP handler for the engine. Requests are
// validated against the OpenAPI contract before reaching a handler.
func NewHandler(engine Engine, opts ...Option) (http.Handler, error) {
	s := &Server{Engine: engine, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	doc, err := api.Load(context.Background())
	if err != nil {
		return nil, err
	}
	validate, err := s.validateRequests(doc)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(api.Spec)
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(validate)
		r.Get("/kinds", s.ListKinds)
		r.Get("/kinds/*", s.KindClosure)
		r.Get("/datasets", s.ListDatasets)
		r.Delete("/datasets/{id}", s.RemoveDataset)
		r.Get("/datasets/{id}/artifacts", s.ListArtifacts)
		r.Post("/datasets/{id}/reconcile", s.Reconcile)
		r.Post("/make", s.Make)
	})
	return r, nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("Request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// ListKinds handles GET /kinds.
func (s *Server) ListKinds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Engine.Kinds())
}

// KindClosure handles GET /kinds/{key}/closure. Keys may contain slashes
// (periodogram/slopes), so the route is matched by suffix.
func (s *Server) KindClosure(w http.ResponseWriter, r *http.Request) {
	rest := chi.URLParam(r, "*")
	const suffix = "/closure"
	if len(rest) <= len(suffix) || rest[len(rest)-len(suffix):] != suffix {
		http.NotFound(w, r)
		return
	}
	key := rest[:len(rest)-len(suffix)]

	kinds, err := s.Engine.Closure(key)
	if err != nil {
		s.fail(w, "Closure failed", err)
		return
	}
	writeJSON(w, http.StatusOK, kinds)
}

// ListDatasets handles GET /datasets?date=&days=&include_invalid=.
func (s *Server) ListDatasets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sel := dto.Selection{Date: q.Get("date")}
	if v := q.Get("days"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "Invalid days", http.StatusBadRequest)
			return
		}
		sel.Days = days
	}
	sel.IncludeInvalid, _ = strconv.ParseBool(q.Get("include_invalid"))

	filter, err := sel.Filter()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	list, err := s.Engine.Datasets(r.Context(), filter)
	if err != nil {
		s.fail(w, "List datasets failed", err)
		return
	}
	if list == nil {
		list = []domain.Dataset{}
	}
	writeJSON(w, http.StatusOK, list)
}

// ListArtifacts handles GET /datasets/{id}/artifacts.
func (s *Server) ListArtifacts(w http.ResponseWriter, r *http.Request) {
	arts, err := s.Engine.Artifacts(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "List artifacts failed", err)
		return
	}
	writeJSON(w, http.StatusOK, arts)
}

// Reconcile handles POST /datasets/{id}/reconcile.
func (s *Server) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := s.Engine.ReconcileDataset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "Reconcile failed", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// RemoveDataset handles DELETE /datasets/{id}.
func (s *Server) RemoveDataset(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.RemoveDataset(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, "Remove dataset failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Make handles POST /make. The batch runs within the request; per-dataset
// failures are part of the 200 response.
func (s *Server) Make(w http.ResponseWriter, r *http.Request) {
	var body dto.MakeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("Make: Invalid request body", "error", err)
		return
	}
	if body.Target == "" {
		http.Error(w, "target is required", http.StatusBadRequest)
		return
	}
	filter, err := body.Selection.Filter()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	opts := telemetry.MakeOptions{Force: body.Force, Recursive: true}
	if body.Recursive != nil {
		opts.Recursive = *body.Recursive
	}

	summary, err := s.Engine.Make(r.Context(), body.Target, filter, opts)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.fail(w, "Make failed", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromSummary(summary))
}

func (s *Server) fail(w http.ResponseWriter, msg string, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusOf(err error) int {
	var consistency *domain.ConsistencyError
	switch {
	case errors.Is(err, domain.ErrKindNotFound), errors.Is(err, domain.ErrDatasetNotFound):
		return http.StatusNotFound
	case domain.IsStructural(err):
		return http.StatusUnprocessableEntity
	case errors.As(err, &consistency), errors.Is(err, domain.ErrLockBusy):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
