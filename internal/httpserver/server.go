package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Server wraps the http.Server with defaults suited to JSON and multipart traffic.
type Server struct {
	inner *http.Server
}

// New constructs a server listening on the provided port. WriteTimeout is left
// unset so realtime websocket connections are not cut off.
func New(port int, handler http.Handler) *Server {
	return &Server{
		inner: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully terminates the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}

// RegisterOnShutdown runs fn when Shutdown begins, used to close hijacked
// websocket connections that http.Server does not track.
func (s *Server) RegisterOnShutdown(fn func()) {
	s.inner.RegisterOnShutdown(fn)
}
