// Package server accepts connections and runs one request/response exchange
// per connection: parse, before-steps, session resolution, routing, after-steps
// and serialization.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ridge/parallel"
	"go.uber.org/zap"

	"github.com/Brownie44l1/minihttp/internal/config"
	"github.com/Brownie44l1/minihttp/internal/request"
	"github.com/Brownie44l1/minihttp/internal/response"
	"github.com/Brownie44l1/minihttp/internal/router"
	"github.com/Brownie44l1/minihttp/internal/session"
	"github.com/Brownie44l1/minihttp/internal/static"
	"github.com/Brownie44l1/minihttp/internal/template"
)

// ErrServerStarted is returned by Serve when the server is already serving
var ErrServerStarted = errors.New("server already started")

// acceptBackoff is the pause after a failed accept
const acceptBackoff = 50 * time.Millisecond

// ErrorHandler builds the response for an error status
type ErrorHandler func(req *request.Request, code response.StatusCode) *response.Response

// Server serves one request per accepted connection. Everything is registered
// before Serve is called; registering afterwards panics.
type Server struct {
	cfg           config.ServerConfig
	logger        *zap.Logger
	router        *router.Router
	static        *static.Resolver
	sessions      *session.Store
	pipeline      Pipeline
	errorHandlers map[response.StatusCode]ErrorHandler
	renderer      template.Renderer
	metrics       *Metrics

	started atomic.Bool
	conns   sync.WaitGroup
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithSessionStore sets the session store shared by all connections
func WithSessionStore(store *session.Store) Option {
	return func(s *Server) {
		s.sessions = store
	}
}

// WithRenderer sets the template renderer handed to handlers
func WithRenderer(r template.Renderer) Option {
	return func(s *Server) {
		s.renderer = r
	}
}

// WithMetrics sets the metrics the server records to. A Metrics value must not
// be shared between servers.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// New creates a server. Zero values in cfg fall back to the defaults.
func New(cfg config.ServerConfig, opts ...Option) *Server {
	s := &Server{
		cfg:           withDefaults(cfg),
		logger:        zap.NewNop(),
		router:        router.New(),
		static:        static.NewResolver(),
		errorHandlers: make(map[response.StatusCode]ErrorHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sessions == nil {
		s.sessions = session.NewStore()
	}
	if s.renderer == nil {
		s.renderer = template.NewEngine(config.DefaultTemplateDir)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	s.metrics.trackSessions(s.sessions)
	return s
}

func withDefaults(cfg config.ServerConfig) config.ServerConfig {
	def := config.Default().Server
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if cfg.MaxHeaderBytes <= 0 {
		cfg.MaxHeaderBytes = def.MaxHeaderBytes
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = def.MaxBodyBytes
	}
	return cfg
}

func (s *Server) mustNotBeStarted(what string) {
	if s.started.Load() {
		panic(fmt.Sprintf("server: %s registered after Serve", what))
	}
}

// Handle registers a handler for method and pattern. Patterns are matched in
// registration order.
func (s *Server) Handle(method, pattern string, handler router.Handler) {
	s.mustNotBeStarted("route")
	s.router.Handle(method, pattern, handler)
}

func (s *Server) GET(pattern string, handler router.Handler) {
	s.Handle("GET", pattern, handler)
}

func (s *Server) POST(pattern string, handler router.Handler) {
	s.Handle("POST", pattern, handler)
}

func (s *Server) PUT(pattern string, handler router.Handler) {
	s.Handle("PUT", pattern, handler)
}

func (s *Server) DELETE(pattern string, handler router.Handler) {
	s.Handle("DELETE", pattern, handler)
}

func (s *Server) PATCH(pattern string, handler router.Handler) {
	s.Handle("PATCH", pattern, handler)
}

// Static serves files under dir for request paths starting with prefix.
// Mappings are tried in registration order, after all routes.
func (s *Server) Static(prefix, dir string) {
	s.mustNotBeStarted("static mapping")
	s.static.Register(prefix, dir)
}

// ErrorHandler sets the handler for responses with the given status. Without
// one, a plain-text "<code> Error" body is sent.
func (s *Server) ErrorHandler(code response.StatusCode, handler ErrorHandler) {
	s.mustNotBeStarted("error handler")
	s.errorHandlers[code] = handler
}

// Before appends a before-step
func (s *Server) Before(step BeforeFunc) {
	s.mustNotBeStarted("before-step")
	s.pipeline.Before(step)
}

// After appends an after-step
func (s *Server) After(step AfterFunc) {
	s.mustNotBeStarted("after-step")
	s.pipeline.After(step)
}

// Use appends both halves of mw
func (s *Server) Use(mw Middleware) {
	if mw.Before != nil {
		s.Before(mw.Before)
	}
	if mw.After != nil {
		s.After(mw.After)
	}
}

// Renderer returns the template renderer for use inside handlers
func (s *Server) Renderer() template.Renderer {
	return s.renderer
}

func (s *Server) Sessions() *session.Store {
	return s.sessions
}

func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Routes lists the registered routes in match order
func (s *Server) Routes() []router.Route {
	return s.router.Routes()
}

// StaticMappings lists the static mappings in match order
func (s *Server) StaticMappings() []static.Mapping {
	return s.static.Mappings()
}

// ListenAndServe listens on the configured address and serves until ctx is
// done
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then closes ln and waits
// up to the shutdown timeout for in-flight connections. It returns ctx.Err()
// after a shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrServerStarted
	}
	logger := s.logger.With(zap.Stringer("addr", ln.Addr()))

	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("accept", parallel.Fail, func(ctx context.Context) error {
			logger.Info("Serving requests")
			return s.accept(ctx, ln, logger)
		})

		spawn("shutdownHandler", parallel.Fail, func(ctx context.Context) error {
			<-ctx.Done()
			logger.Info("Shutting down")
			_ = ln.Close()

			if !s.waitConns(s.cfg.ShutdownTimeout) {
				logger.Warn("Shutdown timed out with connections in flight",
					zap.Duration("timeout", s.cfg.ShutdownTimeout))
				return ctx.Err()
			}
			logger.Info("Shutdown complete")
			return ctx.Err()
		})

		return nil
	})
}

// accept runs the accept loop. It never blocks on a connection.
func (s *Server) accept(ctx context.Context, ln net.Listener, logger *zap.Logger) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			s.metrics.acceptErrors.Inc()
			logger.Warn("Accept failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(acceptBackoff):
			}
			continue
		}

		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.serveConn(conn)
		}()
	}
}

func (s *Server) waitConns(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
