package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/cuemby/swarmroll/pkg/deploy"
	"github.com/cuemby/swarmroll/pkg/events"
	"github.com/cuemby/swarmroll/pkg/health"
	"github.com/cuemby/swarmroll/pkg/log"
	"github.com/cuemby/swarmroll/pkg/metrics"
	"github.com/cuemby/swarmroll/pkg/platform"
	"github.com/cuemby/swarmroll/pkg/security"
	"github.com/cuemby/swarmroll/pkg/storage"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// maxBodyBytes bounds request bodies read by the API
const maxBodyBytes = 1 << 20

// Config configures the HTTP server
type Config struct {
	Addr         string
	Verifier     *security.Verifier
	WebhookRate  rate.Limit
	WebhookBurst int
}

// Server exposes the deploy webhook, the service registry and health endpoints
type Server struct {
	deployer  *deploy.Deployer
	store     storage.Store
	platform  platform.Platform
	publisher events.Publisher
	verifier  *security.Verifier
	limiter   *rate.Limiter
	health    *health.Monitor

	router     *mux.Router
	httpServer *http.Server
	logger     zerolog.Logger
}

// NewServer creates the API server
func NewServer(cfg Config, deployer *deploy.Deployer, store storage.Store, p platform.Platform, publisher events.Publisher) (*Server, error) {
	if cfg.Verifier == nil {
		return nil, fmt.Errorf("a signature verifier is required")
	}
	if publisher == nil {
		publisher = events.Discard
	}
	if cfg.WebhookRate <= 0 {
		cfg.WebhookRate = rate.Inf
	}
	if cfg.WebhookBurst <= 0 {
		cfg.WebhookBurst = 1
	}

	s := &Server{
		deployer:  deployer,
		store:     store,
		platform:  p,
		publisher: publisher,
		verifier:  cfg.Verifier,
		limiter:   rate.NewLimiter(cfg.WebhookRate, cfg.WebhookBurst),
		router:    NewRouter(),
		logger:    log.WithComponent("api"),
	}
	s.health = s.newHealthMonitor()
	s.registerHandlers()

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	metrics.RegisterComponent(metrics.ComponentAPI, false, "not listening")
	return s, nil
}

// NewRouter declares every route of the API by name
func NewRouter() *mux.Router {
	r := mux.NewRouter()
	r.NewRoute().Name("Deploy").Methods(http.MethodPost).Path("/deploy")
	r.NewRoute().Name("ListServices").Methods(http.MethodGet).Path("/services")
	r.NewRoute().Name("CreateService").Methods(http.MethodPost).Path("/services")
	r.NewRoute().Name("ServiceStatus").Methods(http.MethodGet).Path("/services/status")
	r.NewRoute().Name("GetService").Methods(http.MethodGet).Path("/services/{name}")
	r.NewRoute().Name("UpdateService").Methods(http.MethodPut).Path("/services/{name}")
	r.NewRoute().Name("DeleteService").Methods(http.MethodDelete).Path("/services/{name}")
	r.NewRoute().Name("Health").Methods(http.MethodGet).Path("/health")
	r.NewRoute().Name("Live").Methods(http.MethodGet).Path("/live")
	r.NewRoute().Name("Ready").Methods(http.MethodGet).Path("/ready")
	r.NewRoute().Name("Metrics").Methods(http.MethodGet).Path("/metrics")
	return r
}

func (s *Server) registerHandlers() {
	r := s.router
	r.Get("Deploy").Handler(s.rateLimit(http.HandlerFunc(s.handleDeploy)))
	r.Get("ListServices").HandlerFunc(s.handleListServices)
	r.Get("CreateService").HandlerFunc(s.handleCreateService)
	r.Get("ServiceStatus").HandlerFunc(s.handleServiceStatus)
	r.Get("GetService").HandlerFunc(s.handleGetService)
	r.Get("UpdateService").HandlerFunc(s.handleUpdateService)
	r.Get("DeleteService").HandlerFunc(s.handleDeleteService)
	r.Get("Health").Handler(metrics.HealthHandler())
	r.Get("Live").Handler(metrics.LivenessHandler())
	r.Get("Ready").HandlerFunc(s.handleReady)
	r.Get("Metrics").Handler(metrics.Handler())

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found", "No route for "+r.Method+" "+r.URL.Path)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", r.Method+" is not allowed on "+r.URL.Path)
	})

	r.Use(s.instrument)
}

// Handler returns the HTTP handler for embedding in other servers
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and serves until Shutdown
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown. Dependency health checks run in the
// background while serving.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("API server listening")
	metrics.UpdateComponent(metrics.ComponentAPI, true, "")
	s.health.Start()

	err := s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server, waiting for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	metrics.UpdateComponent(metrics.ComponentAPI, false, "shutting down")
	s.health.Stop()
	return s.httpServer.Shutdown(ctx)
}
