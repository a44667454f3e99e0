package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"thermal_envelope/internal/config"

	"github.com/rs/cors"
)

// Server wraps an *http.Server to provide start/shutdown lifecycle.
type Server struct {
	mu         sync.Mutex
	httpServer *http.Server
}

const (
	maxHeaderBytes = 1 << 20 // 1 MB
	idleTimeout    = 60 * time.Second
	corsMaxAge     = 600 // seconds
)

// newHTTPServer builds a configured *http.Server for the given settings and handler.
// Fits of long series can take a while, so the write timeout comes from config.
func newHTTPServer(cfg config.Server, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              normalizeAddr(cfg.Port),
		Handler:           withCORS(cfg.CORSOrigins, handler),
		MaxHeaderBytes:    maxHeaderBytes,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       idleTimeout,
	}
}

// withCORS lets the listed browser origins call the API with a bearer token.
func withCORS(origins []string, handler http.Handler) http.Handler {
	if len(origins) == 0 {
		return handler
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         corsMaxAge,
	}).Handler(handler)
}

// normalizeAddr accepts "8080", ":8080" or "host:8080"; empty means ":8080".
func normalizeAddr(port string) string {
	if port == "" {
		return ":8080"
	}
	if strings.Contains(port, ":") {
		return port
	}
	return ":" + port
}

// Run starts the HTTP server and blocks until it stops. A server closed by
// Shutdown returns nil.
func (s *Server) Run(cfg config.Server, handler http.Handler) error {
	srv := newHTTPServer(cfg, handler)
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server, allowing in-flight requests to complete.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
