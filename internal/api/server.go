package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/sunspy/internal/history"
	"github.com/nerrad567/sunspy/internal/infrastructure/config"
	"github.com/nerrad567/sunspy/internal/infrastructure/logging"
	"github.com/nerrad567/sunspy/internal/schedule"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// StatusProvider returns a copy of the scheduler state.
type StatusProvider interface {
	Snapshot() schedule.Status
}

// HealthChecker is implemented by the database, MQTT and InfluxDB clients.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// SubscriptionCounter reports how many MQTT subscriptions are active.
type SubscriptionCounter interface {
	SubscriptionCount() int
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	Logger  *logging.Logger
	Status  StatusProvider
	Version string

	// History is optional; /firings returns 404 without it.
	History history.Repository

	// Metrics is optional; /metrics returns 404 without it.
	Metrics http.Handler

	// Checks are run by /health, keyed by component name.
	Checks map[string]HealthChecker

	// Subscriptions is optional; /system omits mqtt_subscriptions without it.
	Subscriptions SubscriptionCounter
}

// Server is the HTTP status server.
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	status    StatusProvider
	history   history.Repository
	metrics   http.Handler
	checks    map[string]HealthChecker
	subs      SubscriptionCounter
	version   string
	startedAt time.Time

	server   *http.Server
	listener net.Listener
}

// New creates a server. It is not listening until Start.
//
// Returns:
//   - *Server: Configured server
//   - error: If the logger or status provider is missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Status == nil {
		return nil, fmt.Errorf("status provider is required")
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		status:    deps.Status,
		history:   deps.History,
		metrics:   deps.Metrics,
		checks:    deps.Checks,
		subs:      deps.Subscriptions,
		version:   deps.Version,
		startedAt: time.Now(),
	}, nil
}

// Start binds the listener and serves in a background goroutine.
//
// Returns:
//   - error: If the address cannot be bound
func (s *Server) Start(_ context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding API listener on %s: %w", addr, err)
	}
	s.listener = ln

	read, write, idle := s.cfg.Timeouts.Durations()
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       read,
		ReadHeaderTimeout: read,
		WriteTimeout:      write,
		IdleTimeout:       idle,
	}

	s.logger.Info("API server listening", "address", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close waits up to 10 seconds for in-flight requests, then closes the
// remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports whether the server has been started.
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
