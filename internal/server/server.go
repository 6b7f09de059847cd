// Package server runs the bridge's web frontends: plain HTTP for
// discovery and the v1 API, HTTPS for modern Hue clients. Both
// listeners serve the same router.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Server hosts the shared router on HTTP and HTTPS listeners.
type Server struct {
	httpAddr  string
	httpsAddr string
	certFile  string
	keyFile   string
	handler   http.Handler
}

// New creates a web server for the given bind address and ports.
func New(bindAddr string, httpPort, httpsPort int, certFile, keyFile string, handler http.Handler) *Server {
	return &Server{
		httpAddr:  fmt.Sprintf("%s:%d", bindAddr, httpPort),
		httpsAddr: fmt.Sprintf("%s:%d", bindAddr, httpsPort),
		certFile:  certFile,
		keyFile:   keyFile,
		handler:   handler,
	}
}

// Run starts both listeners and blocks until the context is cancelled
// or either listener fails.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	httpServer := &http.Server{Addr: s.httpAddr, Handler: s.handler}
	httpsServer := &http.Server{Addr: s.httpsAddr, Handler: s.handler}

	errCh := make(chan error, 2)
	go func() {
		log.Info().Str("addr", s.httpAddr).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		log.Info().Str("addr", s.httpsAddr).Msg("Starting HTTPS server")
		if err := httpsServer.ListenAndServeTLS(s.certFile, s.keyFile); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("https server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if err := httpsServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTPS server shutdown error")
	}

	return runErr
}
