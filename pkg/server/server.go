package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/raven-ui/raven/internal/config"
	"github.com/raven-ui/raven/pkg/render"
	"github.com/raven-ui/raven/pkg/snapshot"
	"github.com/raven-ui/raven/pkg/vdom"
)

const reapInterval = 10 * time.Second

// Server serves cold page renders over HTTP and live sessions over
// WebSocket.
type Server struct {
	cfg      *config.Config
	sessions *Manager
	metrics  *Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
	upgrader websocket.Upgrader
	renderer *render.Renderer
	router   chi.Router

	httpServer *http.Server
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// Option configures a Server.
type Option func(*options)

type options struct {
	logger *slog.Logger
	store  snapshot.Store
}

// WithLogger sets the server's logger. Defaults to a text handler on
// stderr at the configured level.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSnapshotStore sets the snapshot store, overriding the backend
// named in the config. Required for the s3 backend, which needs a
// constructed client.
func WithSnapshotStore(s snapshot.Store) Option {
	return func(o *options) { o.store = s }
}

// New creates a server hosting the component built by root. Each
// session gets its own instance from the factory.
func New(cfg *config.Config, root func() vdom.Component, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: logLevel(cfg.LogLevel),
		}))
	}
	logger = logger.With("component", "server")

	store := o.store
	if store == nil {
		switch cfg.Snapshot.Backend {
		case "memory":
			store = snapshot.NewMemoryStore()
		default:
			return nil, fmt.Errorf("server: snapshot backend %q needs WithSnapshotStore", cfg.Snapshot.Backend)
		}
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	metrics := NewMetrics()
	tracer := otel.Tracer("github.com/raven-ui/raven/pkg/server")

	srv := &Server{
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
		tracer:  tracer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		renderer:   render.NewRenderer(),
		baseCtx:    baseCtx,
		cancelBase: cancel,
	}
	srv.sessions = NewManager(root, cfg.Session.ResumeWindow, cfg.Session.MaxSessions, store, logger, metrics, tracer)
	srv.router = srv.routes()
	return srv, nil
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (srv *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(srv.requestLogger)

	r.Get("/raven/live", srv.handleWebSocket)
	r.Get("/metrics", srv.metrics.Handler().ServeHTTP)
	r.Get("/healthz", srv.handleHealth)
	r.Get("/*", srv.handlePage)
	return r
}

// Handler returns the server's HTTP handler, mainly for tests.
func (srv *Server) Handler() http.Handler {
	return srv.router
}

// Sessions returns the session manager.
func (srv *Server) Sessions() *Manager {
	return srv.sessions
}

func (srv *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		srv.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

func (srv *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	io.WriteString(w, "ok\n")
}

// handlePage cold-renders a fresh session and streams the page. The
// session ID is embedded so the client's live connection can resume
// the exact tree it hydrates.
func (srv *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	ctx, span := srv.tracer.Start(r.Context(), "server.page")
	defer span.End()

	s, err := srv.sessions.Create(ctx)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrTooManySessions) {
			status = http.StatusServiceUnavailable
		}
		http.Error(w, http.StatusText(status), status)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, "<!doctype html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(w, "<meta name=\"raven-session\" content=\"%s\">\n", s.ID)
	io.WriteString(w, "</head>\n<body>\n")

	stream := srv.renderer.Stream(s.tree, render.StreamOptions{
		ChunkSize: srv.cfg.Render.ChunkSize,
	})
	flusher, _ := w.(http.Flusher)
	for {
		chunk, more := stream.Next()
		if len(chunk) > 0 {
			if _, err := w.Write(chunk); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if !more {
			break
		}
	}
	if err := stream.Err(); err != nil {
		srv.logger.Error("page render failed", "session", s.ID, "error", err)
		return
	}
	io.WriteString(w, "\n</body>\n</html>\n")
}

// Run starts the HTTP server and blocks until a termination signal,
// then drains sessions and shuts down cleanly.
func (srv *Server) Run() error {
	ctx, stop := signal.NotifyContext(srv.baseCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv.sessions.Start(reapInterval)

	srv.httpServer = &http.Server{
		Addr:              srv.cfg.Addr,
		Handler:           srv.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		srv.logger.Info("listening", "addr", srv.cfg.Addr)
		if err := srv.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	srv.logger.Info("shutting down")
	return srv.Shutdown()
}

// Shutdown stops accepting connections, persists live sessions, and
// releases resources.
func (srv *Server) Shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var err error
	if srv.httpServer != nil {
		err = srv.httpServer.Shutdown(shutdownCtx)
	}
	srv.sessions.Shutdown(shutdownCtx)
	srv.cancelBase()
	return err
}
