package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/terradock/terradock/internal/launcher"
	"github.com/terradock/terradock/internal/store"
)

// Server owns the launcher's HTTP front-end and the registry's lifetime. It
// binds the listener before reporting readiness, so consumers of Ready (such
// as the browser opener) never race the accept loop.
type Server struct {
	srv     *http.Server
	reg     *launcher.Registry
	history store.Store
	log     *slog.Logger

	ln    net.Listener
	ready chan struct{}
	done  chan struct{}
}

// NewServer builds a Server on addr from the router. The registry and the
// optional history store are shut down by Shutdown, in that order.
func NewServer(addr string, r *Router, reg *launcher.Registry, history store.Store, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           r.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		reg:     reg,
		history: history,
		log:     log.With("component", "server"),
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start binds the listener, closes the readiness channel, and serves in the
// background. It returns once the address is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	close(s.ready)
	s.log.Info("listening", "addr", ln.Addr().String())
	go func() {
		defer close(s.done)
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("serve failed", "error", err)
		}
	}()
	return nil
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr returns the bound address, useful when Start was given ":0".
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.srv.Addr
	}
	return s.ln.Addr().String()
}

// Shutdown drains the HTTP server, stops every running child through the
// registry, and closes the history store.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	select {
	case <-s.done:
	case <-ctx.Done():
	}
	s.reg.Shutdown()
	if s.history != nil {
		if cerr := s.history.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
