// Package httpapi exposes the fill pipeline and the admin summary over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/a3tai/visa-pdf-filler/internal/metrics"
	"github.com/a3tai/visa-pdf-filler/internal/service"
	"github.com/a3tai/visa-pdf-filler/internal/summary"
)

// Backend is the part of the service the handlers call.
type Backend interface {
	Fill(ctx context.Context, req service.FillRequest) (*service.FillOutcome, error)
	ResolveFields(ctx context.Context, id int64, recordType, country string) (*service.Resolution, error)
	Summary(ctx context.Context, id int64, recordType string) (*summary.View, error)
	SetLock(ctx context.Context, id int64, recordType string, locked bool) (*summary.View, error)
	Forms() []service.Form
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Options configures the router.
type Options struct {
	ServiceName    string
	Version        string
	Development    bool
	TLS            bool
	CORSOrigins    []string
	RateLimit      float64 // per client IP per second, 0 disables
	RateBurst      int
	MaxBodySize    int64
	DefaultFlatten bool
}

// Server holds the handler dependencies.
type Server struct {
	backend Backend
	health  HealthChecker
	metrics *metrics.Registry
	opts    Options
	logger  *zap.Logger
	upSince time.Time
}

// NewServer creates the HTTP layer. health and reg may be nil.
func NewServer(backend Backend, health HealthChecker, reg *metrics.Registry, opts Options, logger *zap.Logger) *Server {
	if opts.ServiceName == "" {
		opts.ServiceName = "Visa PDF Filler"
	}
	return &Server{
		backend: backend,
		health:  health,
		metrics: reg,
		opts:    opts,
		logger:  logger,
		upSince: time.Now(),
	}
}

// Router builds the chi router with middleware and all routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(requestIDMiddleware)
	r.Use(metricsMiddleware(s.metrics, s.logger))
	r.Use(s.recoverer)

	origins := s.opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Session-Key", RequestIDHeader},
		ExposedHeaders:   []string{"Content-Disposition", headerUpdated, headerMissing, headerMissingNames, RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if s.opts.RateLimit > 0 {
		r.Use(newRateLimiter(s.opts.RateLimit, s.opts.RateBurst).middleware)
	}
	if s.opts.MaxBodySize > 0 {
		r.Use(bodyLimit(s.opts.MaxBodySize))
	}

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/version", s.handleVersion)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/visa", func(r chi.Router) {
			r.Post("/fill-form", s.handleFillForm)
			r.Post("/resolve-fields", s.handleResolveFields)
			r.Get("/forms", s.handleForms)
		})
		r.Route("/records/{recordType}/{id}", func(r chi.Router) {
			r.Get("/summary", s.handleSummary)
			r.Post("/lock", s.handleLock)
		})
	})

	r.NotFound(s.handleNotFound)
	r.MethodNotAllowed(s.handleNotFound)

	s.logger.Info("router initialized",
		zap.Strings("corsOrigins", origins),
		zap.Float64("rateLimit", s.opts.RateLimit),
		zap.Int64("maxBodySize", s.opts.MaxBodySize))
	return r
}

// recoverer turns handler panics into a 500 JSON response.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Error("handler panic",
					zap.String("request_id", RequestID(r.Context())),
					zap.Any("panic", rec),
					zap.Stack("stack"))
				writeJSON(w, http.StatusInternalServerError, errorResponse{
					Success: false,
					Error:   "Internal server error",
					Message: s.detail("panic"),
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// detail returns msg in development and a generic message otherwise.
func (s *Server) detail(msg string) string {
	if s.opts.Development {
		return msg
	}
	return "Something went wrong"
}
