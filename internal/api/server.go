// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"
	"github.com/listing-trust/internal/logging"
	"github.com/listing-trust/internal/metrics"
	"github.com/listing-trust/internal/models"
	"github.com/listing-trust/internal/service"
)

// Service interfaces for dependency injection and testing

// TrustAnalyzer scores listings
type TrustAnalyzer interface {
	AnalyzeListing(ctx context.Context, listing *models.ListingRecord) (*models.AnalysisResult, error)
}

// PriceSubmitter accepts crowdsourced price samples
type PriceSubmitter interface {
	SubmitPriceSamples(ctx context.Context, sub *models.SampleSubmission) (*models.PriceReference, error)
}

// JobCoordinator hands out and settles collection jobs
type JobCoordinator interface {
	NextCollectionJob(ctx context.Context, req service.JobRequest) (*service.NextJobResult, error)
	MarkJobComplete(ctx context.Context, id string, success bool) (*models.CollectionJob, error)
	Job(ctx context.Context, id string) (*models.CollectionJob, error)
	Stats(ctx context.Context) (models.JobStats, error)
}

// HealthCheck reports whether one dependency is reachable
type HealthCheck func(ctx context.Context) error

// Server represents the HTTP API server.
type Server struct {
	router       *mux.Router
	httpServer   *http.Server
	trust        TrustAnalyzer
	prices       PriceSubmitter
	jobs         JobCoordinator
	healthChecks map[string]HealthCheck
	config       *ServerConfig
	logger       *logging.Logger
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host              string
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	RequestsPerMinute int // per client, 0 disables rate limiting
	Burst             int
}

// DefaultServerConfig returns the timeouts used when the caller only knows
// the address
func DefaultServerConfig(host, port string) *ServerConfig {
	return &ServerConfig{
		Host:              host,
		Port:              port,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   15 * time.Second,
		RequestsPerMinute: 600,
		Burst:             50,
	}
}

// NewServer creates a new API server instance.
func NewServer(config *ServerConfig, trust TrustAnalyzer, prices PriceSubmitter, jobs JobCoordinator) *Server {
	s := &Server{
		router:       mux.NewRouter(),
		trust:        trust,
		prices:       prices,
		jobs:         jobs,
		healthChecks: make(map[string]HealthCheck),
		config:       config,
		logger:       logging.GetGlobalLogger().WithComponent("api"),
	}

	s.setupRouter()

	return s
}

// AddHealthCheck registers a dependency probed by /healthz
func (s *Server) AddHealthCheck(name string, check HealthCheck) {
	s.healthChecks[name] = check
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	// order matters: recovery must wrap everything below logging
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	if s.config.RequestsPerMinute > 0 {
		s.router.Use(RateLimitMiddleware(NewRateLimiter(s.config.RequestsPerMinute, s.config.Burst)))
	}
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// preflight requests are answered by CORSMiddleware
	s.router.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", metrics.Handler()).Methods("GET")

	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/analyses", s.handleAnalyzeListing).Methods("POST")
	api.HandleFunc("/prices", s.handleSubmitPrices).Methods("POST")

	// "stats" is registered before {id} so it is not read as a job id
	api.HandleFunc("/jobs/next", s.handleNextJob).Methods("POST")
	api.HandleFunc("/jobs/stats", s.handleJobStats).Methods("GET")
	api.HandleFunc("/jobs/{id}", s.handleGetJob).Methods("GET")
	api.HandleFunc("/jobs/{id}/complete", s.handleCompleteJob).Methods("POST")
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// handleHealth probes every registered dependency
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(s.healthChecks))
	for name := range s.healthChecks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "healthy"
	checks := make(map[string]string, len(names))
	for _, name := range names {
		if err := s.healthChecks[name](ctx); err != nil {
			status = "degraded"
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, code, map[string]interface{}{
		"status":  status,
		"service": "listing-trust",
		"checks":  checks,
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
