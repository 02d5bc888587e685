// Package server provides the HTTP server lifecycle management for accesslogd.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/airyra/accesslog/internal/api"
	"github.com/airyra/accesslog/internal/config"
	"github.com/airyra/accesslog/internal/logging"
	"github.com/airyra/accesslog/pkg/accesslog"
)

// Server manages the HTTP server lifecycle.
type Server struct {
	httpServer      *http.Server
	logger          *zap.SugaredLogger
	listener        net.Listener
	shutdownTimeout time.Duration
	mu              sync.Mutex
	started         bool
}

// Option configures a Server.
type Option func(*options)

type options struct {
	logger *zap.SugaredLogger
	sink   accesslog.Sink
}

// WithLogger sets the logger for lifecycle and panic messages.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(o *options) { o.logger = logger }
}

// WithAccessSink overrides the access log sink built from the config.
func WithAccessSink(sink accesslog.Sink) Option {
	return func(o *options) { o.sink = sink }
}

// New creates a new Server from cfg.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NewServerLogger(os.Stderr)
	}
	if o.sink == nil {
		sink, err := logging.NewSink(cfg.AccessLog)
		if err != nil {
			return nil, err
		}
		o.sink = sink
	}

	router, err := api.NewRouter(api.RouterConfig{
		Logger: o.logger,
		AccessLog: []accesslog.Option{
			accesslog.WithSink(o.sink),
			accesslog.WithFormat(cfg.AccessLog.Format),
		},
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})
	if err != nil {
		return nil, err
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Server.Bind,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger:          o.logger,
		shutdownTimeout: cfg.Server.ShutdownTimeout,
	}, nil
}

// Start starts the HTTP server and blocks until the server is shut down.
// It returns http.ErrServerClosed when the server is gracefully shut down.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}

	// Create listener first so we know the actual address (for port 0 case)
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	s.listener = ln
	s.started = true
	s.mu.Unlock()

	s.logger.Infof("listening on %s", ln.Addr().String())

	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server without interrupting active
// connections. A server shut down before Start never serves.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}

	s.logger.Info("server stopped")
	return nil
}

// Addr returns the address the server is listening on.
// Returns empty string if the server hasn't started yet.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// Run serves until ctx is cancelled or the listener fails, then shuts down
// within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.Start(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// ListenAndServe runs the server until SIGINT or SIGTERM.
func (s *Server) ListenAndServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return s.Run(ctx)
}
