package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/flowindex/pkg/httputil"
	"github.com/platinummonkey/flowindex/pkg/indexer"
	"github.com/platinummonkey/flowindex/pkg/middleware"
	"github.com/platinummonkey/flowindex/pkg/observability"
	"github.com/platinummonkey/flowindex/pkg/search"
	"github.com/platinummonkey/flowindex/pkg/swagger"
)

// Options configures a Server. Search, Indexer and WorkflowsDir are required;
// the rest are optional.
type Options struct {
	Search       *search.Service
	Indexer      *indexer.Indexer
	WorkflowsDir string
	Logger       *observability.Logger

	Health   *observability.HealthChecker
	Metrics  *observability.Metrics
	Gatherer prometheus.Gatherer

	// ReindexLimiter throttles POST /api/reindex per client when set
	ReindexLimiter *middleware.RateLimiter
	// Docs serves the OpenAPI document and Swagger UI
	Docs bool

	// AllowedOrigins enables CORS for the listed origins
	AllowedOrigins []string
	// BaseContext parents background reindex runs; defaults to context.Background
	BaseContext context.Context
}

// Server represents our API server
type Server struct {
	router       *mux.Router
	handler      http.Handler
	search       *search.Service
	indexer      *indexer.Indexer
	workflowsDir string
	logger       *observability.Logger
	baseCtx      context.Context
	limiter      *middleware.RateLimiter
}

// NewServer creates a new API server
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	baseCtx := opts.BaseContext
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	s := &Server{
		router:       mux.NewRouter(),
		search:       opts.Search,
		indexer:      opts.Indexer,
		workflowsDir: opts.WorkflowsDir,
		logger:       logger.WithField("component", "api"),
		baseCtx:      baseCtx,
		limiter:      opts.ReindexLimiter,
	}

	if opts.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(opts.Metrics))
	}
	s.setupRoutes()
	if opts.Health != nil {
		observability.RegisterHealthRoutes(s.router, opts.Health)
	}
	if opts.Gatherer != nil {
		observability.RegisterMetricsEndpoint(s.router, opts.Gatherer)
	}
	if opts.Docs {
		swagger.NewSwaggerHandlers().RegisterRoutes(s.router)
	}

	middlewares := []func(http.Handler) http.Handler{
		httputil.RecoveryMiddleware(s.logger),
		httputil.RequestIDMiddleware(s.logger),
		httputil.LoggingMiddleware(s.logger),
	}
	if len(opts.AllowedOrigins) > 0 {
		middlewares = append(middlewares, httputil.CORSMiddleware(opts.AllowedOrigins))
	}
	s.handler = otelhttp.NewHandler(httputil.Chain(middlewares...)(s.router), "flowindex.http",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/stats", s.getStats).Methods("GET")
	s.router.HandleFunc("/api/workflows", s.searchWorkflows).Methods("GET")
	s.router.HandleFunc("/api/workflows/{filename}", s.getWorkflow).Methods("GET")
	s.router.HandleFunc("/api/workflows/{filename}/download", s.downloadWorkflow).Methods("GET")
	s.router.HandleFunc("/api/integrations", s.listIntegrations).Methods("GET")

	var reindex http.Handler = http.HandlerFunc(s.reindex)
	if s.limiter != nil {
		reindex = middleware.RateLimit(s.limiter)(reindex)
	}
	s.router.Handle("/api/reindex", reindex).Methods("POST")
	s.router.HandleFunc("/api/reindex", s.reindexStatus).Methods("GET")
}

// Router exposes the router for additional routes
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements the http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
