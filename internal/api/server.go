// Package api serves the topodraw pipeline over HTTP: nmap XML in, draw.io
// diagrams or JSON inventories out.
//
//go:generate swag init -g server.go -o ../../docs/swagger --parseDependency --parseInternal
package api

// @title topodraw API
// @version 1.0
// @description Renders nmap XML scan reports as draw.io network diagrams.
// @description Report bodies are posted as application/xml.
//
// @license.name MIT
//
// @host localhost:8080
// @BasePath /api/v1

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/anstrom/topodraw/docs/swagger" // registers the OpenAPI document

	"github.com/anstrom/topodraw/internal/api/middleware"
	"github.com/anstrom/topodraw/internal/config"
	"github.com/anstrom/topodraw/internal/db"
	"github.com/anstrom/topodraw/internal/errors"
	"github.com/anstrom/topodraw/internal/logging"
	"github.com/anstrom/topodraw/internal/metrics"
	"github.com/anstrom/topodraw/internal/pipeline"
)

// Server timeout constants.
const (
	serverShutdownTimeout = 30 * time.Second
	healthCheckTimeout    = 5 * time.Second
	defaultRunsLimit      = 20
	maxRunsLimit          = 500
)

const drawioContentType = "application/xml"

// Scanner runs a live scan and returns its XML report.
type Scanner interface {
	Scan(ctx context.Context) ([]byte, error)
}

// RunStore persists and lists rendered runs.
type RunStore interface {
	pipeline.Store
	ListRuns(ctx context.Context, limit int) ([]db.Run, error)
}

// Pinger checks that a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps are the optional collaborators of the server. Nil fields disable the
// endpoints that need them.
type Deps struct {
	Metrics  *metrics.PrometheusMetrics
	Store    RunStore
	Database Pinger
	Scanner  Scanner
	Resolver pipeline.Resolver
}

// Server represents the API server.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	config     *config.Config
	deps       Deps
	recorder   metrics.Recorder
	logger     *logging.Logger
	startTime  time.Time
}

// New creates a new API server instance.
func New(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		config:    cfg,
		deps:      deps,
		recorder:  metrics.Nop{},
		logger:    logging.Default().WithComponent("api"),
		startTime: time.Now(),
	}
	if deps.Metrics != nil {
		s.recorder = deps.Metrics
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.GetAPIAddress(),
		Handler:      s.handler(),
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
		IdleTimeout:  cfg.API.IdleTimeout,
	}
	return s
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting API server",
		"address", s.httpServer.Addr,
		"read_timeout", s.httpServer.ReadTimeout,
		"write_timeout", s.httpServer.WriteTimeout)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("API server failed: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errChan:
		return err
	}
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")

	ctx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("API server shutdown error", "error", err)
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("API server stopped")
	return nil
}

// GetAddress returns the server address.
func (s *Server) GetAddress() string {
	return s.httpServer.Addr
}

// Handler returns the complete HTTP handler, CORS included.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handler() http.Handler {
	cors := s.config.API.CORS
	if !cors.Enabled {
		return s.router
	}
	return handlers.CORS(
		handlers.AllowedOrigins(cors.AllowedOrigins),
		handlers.AllowedMethods(cors.AllowedMethods),
		handlers.AllowedHeaders(cors.AllowedHeaders),
		handlers.ExposedHeaders([]string{middleware.RequestIDHeader, runIDHeader}),
	)(s.router)
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Recovery(s.logger))
	s.router.Use(middleware.Logging(s.logger))
	if s.deps.Metrics != nil {
		s.router.Use(middleware.Metrics(s.deps.Metrics))
	}
	s.router.Use(middleware.SecurityHeaders())
	s.router.Use(middleware.MaxBodySize(s.config.API.MaxRequestSize))
	s.router.Use(middleware.ContentType("application/xml", "text/xml", "application/octet-stream"))
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/liveness", s.livenessHandler).Methods(http.MethodGet)
	api.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)
	api.HandleFunc("/render", s.renderHandler).Methods(http.MethodPost)
	api.HandleFunc("/services", s.servicesHandler).Methods(http.MethodPost)
	api.HandleFunc("/hosts", s.hostsHandler).Methods(http.MethodPost)
	api.HandleFunc("/scan", s.scanHandler).Methods(http.MethodPost)
	api.HandleFunc("/runs", s.runsHandler).Methods(http.MethodGet)

	var registry prometheus.Gatherer = prometheus.DefaultGatherer
	if s.deps.Metrics != nil {
		registry = s.deps.Metrics.GetRegistry()
	}
	s.router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	s.router.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("none"),
	)).Methods(http.MethodGet)
}

// ErrorResponse represents a standard API error response.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      string    `json:"code,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// statusFor maps pipeline and scan error codes to HTTP statuses.
func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	if stderrors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge
	}

	switch errors.GetCode(err) {
	case errors.CodeMalformedRecord:
		return http.StatusUnprocessableEntity
	case errors.CodeSourceUnavailable, errors.CodeValidation:
		return http.StatusBadRequest
	case errors.CodeTimeout:
		return http.StatusGatewayTimeout
	case errors.CodeScanFailed:
		return http.StatusBadGateway
	case errors.CodeCanceled, errors.CodeDatabaseConnection:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes a standardized error response.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, statusCode int, err error) {
	s.logger.Error("API error",
		"method", r.Method,
		"path", r.URL.Path,
		"status", statusCode,
		"error", err,
		"request_id", middleware.GetRequestID(r))

	response := ErrorResponse{
		Error:     err.Error(),
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(r),
	}
	if code := errors.GetCode(err); code != errors.CodeUnknown {
		response.Code = string(code)
	}

	s.WriteJSON(w, r, statusCode, response)
}

// WriteJSON writes a JSON response.
func (s *Server) WriteJSON(w http.ResponseWriter, r *http.Request, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response",
			"error", err,
			"path", r.URL.Path,
			"method", r.Method)
	}
}

// GetQueryParamBool gets a boolean query parameter with optional default value.
func (s *Server) GetQueryParamBool(r *http.Request, key string, defaultValue bool) bool {
	if value := r.URL.Query().Get(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetQueryParamInt gets an integer query parameter with optional default value.
func (s *Server) GetQueryParamInt(r *http.Request, key string, defaultValue int) (int, error) {
	if value := r.URL.Query().Get(key); value != "" {
		return strconv.Atoi(value)
	}
	return defaultValue, nil
}
