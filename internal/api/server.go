// Package api provides the HTTP admin surface for the daemon.
//
// It exposes read-only inspection endpoints (devices with derived online
// state, jobs, schedules, records, audit trail) and the two direct command
// operations, and mounts the device websocket gateway on the same
// listener. Campaign CRUD is owned by the upstream management application;
// this server never mutates schedules or images.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/facegate/facegate-core/internal/audit"
	"github.com/facegate/facegate-core/internal/device"
	"github.com/facegate/facegate-core/internal/gateway"
	"github.com/facegate/facegate-core/internal/infrastructure/config"
	"github.com/facegate/facegate-core/internal/infrastructure/database"
	"github.com/facegate/facegate-core/internal/infrastructure/logging"
	"github.com/facegate/facegate-core/internal/job"
	"github.com/facegate/facegate-core/internal/record"
	"github.com/facegate/facegate-core/internal/schedule"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	Gateway   config.GatewayConfig
	Logger    *logging.Logger
	DB        *database.DB
	Devices   device.Repository
	Jobs      job.Repository
	Schedules schedule.Repository
	Records   record.Repository
	Audits    audit.Repository
	Issuer    *gateway.Issuer
	WSHandler http.Handler // device gateway endpoint, mounted at Gateway.Path
	Version   string
}

// Server is the HTTP admin server.
type Server struct {
	cfg       config.APIConfig
	gwCfg     config.GatewayConfig
	logger    *logging.Logger
	db        *database.DB
	devices   device.Repository
	jobs      job.Repository
	schedules schedule.Repository
	records   record.Repository
	audits    audit.Repository
	issuer    *gateway.Issuer
	wsHandler http.Handler
	version   string
	server    *http.Server
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Devices == nil || deps.Jobs == nil || deps.Schedules == nil || deps.Records == nil {
		return nil, fmt.Errorf("repositories are required")
	}

	return &Server{
		cfg:       deps.Config,
		gwCfg:     deps.Gateway,
		logger:    deps.Logger,
		db:        deps.DB,
		devices:   deps.Devices,
		jobs:      deps.Jobs,
		schedules: deps.Schedules,
		records:   deps.Records,
		audits:    deps.Audits,
		issuer:    deps.Issuer,
		wsHandler: deps.WSHandler,
		version:   deps.Version,
	}, nil
}

// Start begins listening for HTTP connections in a background goroutine.
// The server is stopped with Close().
func (s *Server) Start(_ context.Context) error {
	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server, waiting up to 10 seconds for
// in-flight requests.
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
