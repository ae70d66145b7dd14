package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultPath = "/metrics"

// Server exposes the engine counters over HTTP for Prometheus scraping.
type Server struct {
	addr string
	path string
	ln   net.Listener
	srv  *http.Server
}

// NewServer creates a scrape endpoint on addr. An empty path means /metrics.
func NewServer(addr, path string) *Server {
	if path == "" {
		path = defaultPath
	}
	return &Server{addr: addr, path: path}
}

// Start binds the listen address and begins serving in the background.
// Binding happens here rather than in the serve goroutine so an unusable
// address fails startup instead of logging after the fact.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("metrics listener on %s: %w", s.addr, err)
	}
	s.ln = ln

	mux := http.NewServeMux()
	mux.Handle(s.path, promhttp.Handler())
	s.srv = &http.Server{
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("metrics endpoint up", "addr", ln.Addr().String(), "path", s.path)
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound listen address. Differs from the configured one
// when the port was 0.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}

// Stop drains in-flight scrapes and shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown failed: %w", err)
	}
	slog.Info("metrics server stopped")
	return nil
}
