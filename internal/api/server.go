// Package api exposes the prediction service over HTTP JSON.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/wardops/bedcast/internal/config"
)

// Server wraps the HTTP server and lifecycle helpers.
type Server struct {
	cfg        config.ServerConfig
	httpServer *http.Server
	listener   net.Listener
}

// NewServer constructs an HTTP server bound to the configured address.
func NewServer(cfg config.ServerConfig, handler http.Handler) (*Server, error) {
	lis, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.Address, err)
	}

	return &Server{
		cfg: cfg,
		httpServer: &http.Server{
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		listener: lis,
	}, nil
}

// Start serves incoming requests until Shutdown is invoked.
func (s *Server) Start() error {
	if s.httpServer == nil || s.listener == nil {
		return fmt.Errorf("server not initialised")
	}
	if err := s.httpServer.Serve(s.listener); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, forcing close when the context expires.
func (s *Server) Shutdown(ctx context.Context) {
	if s.httpServer == nil {
		return
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		_ = s.httpServer.Close()
	}
}

// Address exposes the bound listener address (useful for tests).
func (s *Server) Address() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// GracefulTimeout returns the configured graceful timeout duration.
func (s *Server) GracefulTimeout() time.Duration {
	return s.cfg.GracefulTimeout
}
