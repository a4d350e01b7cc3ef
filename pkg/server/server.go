package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/Tivon521/grok2aoi/pkg/proxy"
)

// Server runs the gateway's HTTP listener on top of an App.
type Server struct {
	app        *App
	httpServer *http.Server

	shutdownChan chan struct{}
	shutdownOnce sync.Once
	stopOnce     sync.Once

	mu        sync.Mutex
	isRunning bool
}

// NewServer creates a server for a constructed application.
func NewServer(app *App) *Server {
	return &Server{
		app:          app,
		shutdownChan: make(chan struct{}),
	}
}

// Start starts the application and the HTTP listener, then blocks until
// the context is cancelled, a termination signal arrives, or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	if err := s.app.Start(ctx); err != nil {
		return err
	}

	handler := proxy.NewHandler(
		s.app.Config,
		s.app.Conversations,
		s.app.Credentials,
		s.app.Upstream,
		s.app.Tasks,
		s.app.Runner,
		s.app.Stats,
		s.app.Metrics,
	)
	mux := http.NewServeMux()
	handler.Register(mux)

	checker := s.app.healthChecker()
	mux.Handle("GET /health/live", checker.LivenessHandler())
	mux.Handle("GET /health/ready", checker.ReadinessHandler())

	serverCfg := s.app.Config.Server
	s.httpServer = &http.Server{
		Addr:           serverCfg.ListenAddress,
		Handler:        mux,
		ReadTimeout:    serverCfg.ReadTimeout,
		WriteTimeout:   serverCfg.WriteTimeout,
		IdleTimeout:    serverCfg.IdleTimeout,
		MaxHeaderBytes: serverCfg.MaxHeaderBytes,
	}

	errChan := make(chan error, 1)
	go func() {
		s.app.Logger.Info("starting gateway", "address", serverCfg.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.app.Logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.app.Logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.closeApp()
		return err
	case <-s.shutdownChan:
		return s.Shutdown(context.Background())
	}
}

// Shutdown drains in-flight requests within the configured timeout, then
// closes the application, flushing conversation and statistics state.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.isRunning = false
		s.mu.Unlock()

		timeout := s.app.Config.Server.ShutdownTimeout
		s.app.Logger.Info("initiating graceful shutdown", "timeout", timeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		if err := s.closeApp(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	})

	return shutdownErr
}

// Stop requests shutdown from another goroutine.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.shutdownChan)
	})
}

func (s *Server) closeApp() error {
	if err := s.app.Close(); err != nil {
		s.app.Logger.Error("error during application close", "error", err)
		return err
	}
	return nil
}
