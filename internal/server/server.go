// Package server exposes the resolver over HTTP.
package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/tdh8316/handlecheck/internal/probe"
	"github.com/tdh8316/handlecheck/internal/session"
)

// Resolver is the batch operation behind POST /check.
type Resolver interface {
	Resolve(ctx context.Context, handles []string, creds session.Credentials) ([]probe.Result, error)
}

type Config struct {
	Addr string
	// MaxBodyBytes caps a request body; 0 means 64 KiB.
	MaxBodyBytes int64
	// MaxHandles caps distinct handles per request; 0 means no cap.
	MaxHandles        int
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration

	// Store supplies credentials when a request carries no cookies.
	Store  session.Store
	Logger logrus.FieldLogger
}

type Server struct {
	resolver Resolver
	cfg      Config
}

func New(resolver Resolver, cfg Config) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 64 << 10
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 5 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Store == nil {
		cfg.Store = session.NopStore{}
	}
	if cfg.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		cfg.Logger = l
	}
	return &Server{resolver: resolver, cfg: cfg}
}

// Handler returns the routed handler with request logging, speaking both
// HTTP/1.1 and cleartext HTTP/2.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.health)
	mux.HandleFunc("POST /check", s.check)
	return h2c.NewHandler(s.logRequests(mux), &http2.Server{})
}

// ListenAndServe serves on cfg.Addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", s.cfg.Addr)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then drains
// in-flight requests for up to cfg.ShutdownTimeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		s.cfg.Logger.WithField("addr", ln.Addr().String()).Info("listening")
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		return errors.Wrap(err, "serve")
	case <-ctx.Done():
	}

	s.cfg.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "serve")
	}
	return nil
}
