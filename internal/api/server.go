package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/blue-hydra/internal/device"
	"github.com/nerrad567/blue-hydra/internal/infrastructure/config"
	"github.com/nerrad567/blue-hydra/internal/infrastructure/logging"
	"github.com/nerrad567/blue-hydra/internal/scanner"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Catalog is the read side of the device tracker.
type Catalog interface {
	Get(address string) (*device.Device, error)
	Snapshot() []device.Device
	Stats() device.Stats
}

// PipelineStats reports scheduler counters. *scanner.Scheduler satisfies it.
type PipelineStats interface {
	Stats() scanner.Stats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	Logger  *logging.Logger
	Catalog Catalog
	History device.StatusHistoryRepository // optional
	Version string
}

// Server is the HTTP API server for the sensor.
//
// It manages the HTTP listener, routes, middleware, and the signal hub.
// The hub exists from New() so it can be registered as a signal observer
// before the pipeline starts.
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	catalog   Catalog
	history   device.StatusHistoryRepository
	pipeline  PipelineStats
	version   string
	startTime time.Time
	server    *http.Server
	listener  net.Listener
	hub       *Hub
	cancel    context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, catalog)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("device catalog is required")
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		catalog:   deps.Catalog,
		history:   deps.History,
		version:   deps.Version,
		startTime: time.Now(),
		hub:       NewHub(deps.Config.WS, deps.Logger),
	}, nil
}

// Hub returns the signal hub. Register it with the tracker as a
// device.SignalObserver.
func (s *Server) Hub() *Hub {
	return s.hub
}

// SetPipeline attaches the scheduler whose counters /stats reports.
// Must be called before Start.
func (s *Server) SetPipeline(p PipelineStats) {
	s.pipeline = p
}

// Start begins listening for HTTP connections.
//
// The listener is bound before Start returns, so a port conflict is reported
// to the caller. Requests are served in a background goroutine until Close().
//
// Parameters:
//   - ctx: Parent context for the hub; not used for listener lifetime
//
// Returns:
//   - error: If the listener cannot be bound
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}
	s.listener = ln
	s.logger.Info("API server starting", "address", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
