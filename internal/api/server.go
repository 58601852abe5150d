package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/taskledger/internal/audit"
	"github.com/nerrad567/taskledger/internal/auth"
	"github.com/nerrad567/taskledger/internal/events"
	"github.com/nerrad567/taskledger/internal/infrastructure/config"
	"github.com/nerrad567/taskledger/internal/infrastructure/logging"
	"github.com/nerrad567/taskledger/internal/task"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker is implemented by dependencies that report liveness.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// AuthTelemetry receives signup and login outcomes. *influxdb.Client
// implements it.
type AuthTelemetry interface {
	WriteAuthAttempt(action, outcome string)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	Logger    *logging.Logger
	DB        HealthChecker
	Sinks     map[string]HealthChecker // optional outbound connections, by name
	Auth      *auth.Service
	Tasks     *task.Service
	Sessions  *auth.SessionResolver
	AuditRepo audit.Repository // optional
	Events    events.Publisher // optional, e.g. MQTT
	Telemetry AuthTelemetry    // optional, e.g. InfluxDB
	Metrics   *Metrics         // optional; a private registry is created if nil
	Version   string
}

// Server is the taskledger HTTP API server.
//
// It owns the HTTP listener, routes, middleware, the WebSocket hub and the
// audit writer. Create it with New and start it with Start.
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	db        HealthChecker
	sinks     map[string]HealthChecker
	auth      *auth.Service
	tasks     *task.Service
	sessions  *auth.SessionResolver
	auditRepo audit.Repository
	auditCh   chan *audit.Entry
	events    events.Publisher
	telemetry AuthTelemetry
	metrics   *Metrics
	hub       *Hub
	version   string

	server  *http.Server
	cancel  context.CancelFunc
	workers sync.WaitGroup
}

// New creates a new API server with the given dependencies.
// The server is not started until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("auth service is required")
	}
	if deps.Tasks == nil {
		return nil, fmt.Errorf("task service is required")
	}
	if deps.Sessions == nil {
		return nil, fmt.Errorf("session resolver is required")
	}

	s := &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		db:        deps.DB,
		sinks:     deps.Sinks,
		auth:      deps.Auth,
		tasks:     deps.Tasks,
		sessions:  deps.Sessions,
		auditRepo: deps.AuditRepo,
		telemetry: deps.Telemetry,
		metrics:   deps.Metrics,
		version:   deps.Version,
	}

	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	if s.auditRepo != nil {
		s.auditCh = make(chan *audit.Entry, auditChanSize)
	}

	s.hub = NewHub(deps.Logger)

	// Domain events reach external consumers and the account's own live feed.
	s.events = events.Fanout{s.hub}
	if deps.Events != nil {
		s.events = events.Fanout{deps.Events, s.hub}
	}

	return s, nil
}

// Start launches the background workers and the HTTP listener.
// The listener runs in a background goroutine; stop it with Close.
func (s *Server) Start(ctx context.Context) error {
	s.startWorkers(ctx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// startWorkers runs the WebSocket hub and the audit writer until Close.
func (s *Server) startWorkers(ctx context.Context) {
	var workerCtx context.Context
	workerCtx, s.cancel = context.WithCancel(ctx)

	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		s.hub.Run(workerCtx)
	}()

	if s.auditCh != nil {
		s.workers.Add(1)
		go func() {
			defer s.workers.Done()
			s.drainAuditLog(workerCtx)
		}()
	}
}

// Close shuts the listener down, waiting up to 10 seconds for in-flight
// requests, then stops the hub and flushes queued audit entries.
func (s *Server) Close() error {
	var shutdownErr error
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		s.logger.Info("API server shutting down")
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("shutting down API server: %w", err)
		}
	}

	if s.cancel != nil {
		s.cancel()
	}
	s.workers.Wait()

	return shutdownErr
}

// HealthCheck verifies the API server is running.
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
