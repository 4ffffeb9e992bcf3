// Package server wires the HTTP surface: routing, middleware, request
// handling, and graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lexiscope/lexiscope/engine/analysis"
	"github.com/lexiscope/lexiscope/engine/chat"
	"github.com/lexiscope/lexiscope/engine/document"
	"github.com/lexiscope/lexiscope/engine/feedback"
	"github.com/lexiscope/lexiscope/engine/infra/monitoring"
	"github.com/lexiscope/lexiscope/engine/infra/postgres"
	"github.com/lexiscope/lexiscope/engine/knowledge"
	"github.com/lexiscope/lexiscope/pkg/logger"
)

const defaultShutdownTimeout = 10 * time.Second

// Deps are the services the HTTP layer exposes. DB is optional; without
// it the health endpoint reports degraded persistence.
type Deps struct {
	Analysis   *analysis.Service
	Documents  *document.Service
	Chat       *chat.Service
	Feedback   *feedback.Service
	Scheduler  *feedback.Scheduler
	Index      *knowledge.Index
	Monitoring *monitoring.Service
	DB         *postgres.DB
}

// Config holds listener settings.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
}

type Server struct {
	cfg    Config
	deps   Deps
	router *gin.Engine
}

func New(cfg Config, deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	if deps.Monitoring != nil {
		router.Use(deps.Monitoring.Middleware())
	}
	s := &Server{cfg: cfg, deps: deps, router: router}
	s.registerRoutes()
	return s
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine { return s.router }

// Run serves until the context is canceled, then drains in-flight
// requests within the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	log.Info("http server listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	log.Info("http server draining", "timeout", timeout)
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}
