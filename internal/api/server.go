// Package api serves the import engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/leadimport/internal/dedup"
	"github.com/sells-group/leadimport/internal/importjob"
	"github.com/sells-group/leadimport/internal/model"
)

// Importer is the import service surface the handlers call.
type Importer interface {
	Preview(ctx context.Context, req importjob.PreviewRequest) ([]model.DedupDecision, error)
	Execute(ctx context.Context, req importjob.ExecuteRequest) (*model.ImportJob, error)
	Job(ctx context.Context, tenantID, jobID string) (*model.ImportJob, error)
	JobRows(ctx context.Context, tenantID, jobID string) ([]model.DedupRow, error)
}

// Config tunes the HTTP surface.
type Config struct {
	AllowedOrigins []string
	RateLimitRPS   float64
	RateBurst      int
	MaxBodyBytes   int64
	Pinger         func(ctx context.Context) error
}

// Server holds the handler dependencies.
type Server struct {
	svc      Importer
	cfg      Config
	limiters *tenantLimiters
}

// NewRouter builds the chi router for the import API.
func NewRouter(svc Importer, cfg Config) http.Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 32 << 20
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	s := &Server{svc: svc, cfg: cfg, limiters: newTenantLimiters(cfg.RateLimitRPS, cfg.RateBurst)}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1/tenants/{tenantID}", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.rateLimit)
			r.Post("/imports/preview", s.handlePreview)
			r.Post("/imports", s.handleExecute)
			r.Post("/extension/leads", s.handleExtensionLeads)
		})
		r.Get("/imports/{jobID}", s.handleGetJob)
		r.Get("/imports/{jobID}/rows", s.handleJobRows)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.cfg.Pinger(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

type errorResponse struct {
	Error string           `json:"error"`
	Job   *model.ImportJob `json:"job,omitempty"`
}

// writeError maps service errors to status codes. Unexpected errors are
// logged and reported as 500.
func writeError(w http.ResponseWriter, r *http.Request, err error, job *model.ImportJob) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, dedup.ErrMissingTenant),
		errors.Is(err, dedup.ErrInvalidStrategy),
		errors.Is(err, importjob.ErrInvalidRequest),
		errors.Is(err, errBadBody):
		status = http.StatusBadRequest
	case errors.Is(err, importjob.ErrJobNotFound):
		status = http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	default:
		zap.L().Error("api: request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	if job != nil {
		job = job.Summary()
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Job: job})
}
