// Package api exposes the HTTP control surface: run benchmarks, inspect
// results, compare paths, and scrape metrics.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/perflab/querybench/pkg/catalog"
	"github.com/perflab/querybench/pkg/config"
	"github.com/perflab/querybench/pkg/orchestrator"
	"github.com/perflab/querybench/pkg/store"
	"github.com/perflab/querybench/pkg/telemetry"
)

const shutdownTimeout = 10 * time.Second

// Server exposes the API HTTP server lifecycle.
type Server interface {
	Start(ctx context.Context) error
	Stop() error
}

// Compile-time interface check.
var _ Server = (*server)(nil)

type server struct {
	log        logrus.FieldLogger
	cfg        *config.ServerConfig
	defaults   *config.BenchmarkConfig
	catalog    *catalog.Catalog
	orch       *orchestrator.Orchestrator
	store      store.Store
	metrics    *telemetry.Metrics
	httpServer *http.Server
	wg         sync.WaitGroup
}

// NewServer creates a new API server over an already started store and a
// ready orchestrator. defaults supplies the load parameters a run request
// may omit.
func NewServer(
	log logrus.FieldLogger,
	cfg *config.ServerConfig,
	defaults *config.BenchmarkConfig,
	cat *catalog.Catalog,
	orch *orchestrator.Orchestrator,
	st store.Store,
	metrics *telemetry.Metrics,
) Server {
	return &server{
		log:      log.WithField("component", "api"),
		cfg:      cfg,
		defaults: defaults,
		catalog:  cat,
		orch:     orch,
		store:    st,
		metrics:  metrics,
	}
}

// Start binds the listener and serves until Stop.
func (s *server) Start(ctx context.Context) error {
	router := s.buildRouter()

	s.httpServer = &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Bind the listener synchronously so we fail fast on port conflicts.
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Listen, err)
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		s.log.WithField("listen", s.cfg.Listen).
			Info("API server starting")

		if err := s.httpServer.Serve(ln); err != nil &&
			err != http.ErrServerClosed {
			s.log.WithError(err).Error("HTTP server error")
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *server) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(
			context.Background(), shutdownTimeout,
		)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.log.WithError(err).Warn("HTTP server shutdown error")
		}
	}

	s.wg.Wait()

	s.log.Info("API server stopped")

	return nil
}
