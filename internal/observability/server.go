package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JaimeStill/intake/pkg/lifecycle"
)

// Handler serves the metrics gathered by reg.
func Handler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Server exposes a registry over HTTP.
type Server struct {
	http   *http.Server
	addr   string
	logger *slog.Logger
}

// NewServer builds a metrics server for cfg. It does not listen until Start.
func NewServer(cfg *Config, reg *prom.Registry, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("GET "+cfg.Path, Handler(reg))

	return &Server{
		http: &http.Server{
			Addr:              cfg.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		addr:   cfg.Addr,
		logger: logger.With("system", "metrics"),
	}
}

// Addr returns the bound address once Start succeeded.
func (s *Server) Addr() string {
	return s.addr
}

// Start binds the listener, serves in the background, and registers a
// graceful shutdown with lc. Bind errors are returned immediately.
func (s *Server) Start(lc *lifecycle.Coordinator) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen metrics: %w", err)
	}
	s.addr = ln.Addr().String()

	go func() {
		s.logger.Info("metrics server listening", "addr", s.addr)
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server error", "error", err)
		}
	}()

	lc.OnShutdown(func(ctx context.Context) error {
		s.logger.Info("shutting down metrics server")
		if err := s.http.Shutdown(ctx); err != nil {
			return fmt.Errorf("metrics shutdown: %w", err)
		}
		s.logger.Info("metrics server shutdown complete")
		return nil
	})

	return nil
}
