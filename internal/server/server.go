// Package server owns the responder's listener and process lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"hellod/internal/config"
	"hellod/internal/logging"
)

// ShutdownTimeout bounds how long in-flight requests may take to drain on stop
const ShutdownTimeout = 10 * time.Second

// Server represents the HTTP server
type Server struct {
	config     *config.Config
	httpServer *http.Server
	listener   net.Listener
}

// New creates a new server instance serving handler on the configured port
func New(cfg *config.Config, handler http.Handler) *Server {
	return &Server{
		config: cfg,
		// #nosec G112 -- request timeouts are left to net/http defaults
		httpServer: &http.Server{
			Addr:    cfg.ListenAddr(),
			Handler: handler,
		},
	}
}

// Listen binds the listener on all interfaces. On success it logs the bound port once.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.httpServer.Addr, err)
	}
	s.listener = ln

	logging.Infof("Server is listening on port %d", s.Port())
	return nil
}

// Port returns the bound port, or the configured one before Listen
func (s *Server) Port() int {
	if s.listener != nil {
		if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
			return addr.Port
		}
	}
	return s.config.Port
}

// Serve accepts connections until ctx is cancelled, then drains in-flight requests.
// Listen must have succeeded first.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return errors.New("server is not listening")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(s.listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logging.Infof("Shutting down server")
	return s.Shutdown()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

// Start binds and serves until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}
