// Package server provides the HTTP control server: health and status,
// start/stop of the polling loop, overlay enumeration, runtime settings,
// a small control panel, and Prometheus metrics.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Guliveer/obs-channel-stats/internal/config"
	"github.com/Guliveer/obs-channel-stats/internal/constants"
	"github.com/Guliveer/obs-channel-stats/internal/logger"
	"github.com/Guliveer/obs-channel-stats/internal/model"
	"github.com/Guliveer/obs-channel-stats/internal/overlay"
	"github.com/Guliveer/obs-channel-stats/internal/scheduler"
)

// Controller starts and stops polling.
// *scheduler.Scheduler satisfies this interface.
type Controller interface {
	Start(ctx context.Context)
	Stop(ctx context.Context)
	Status() scheduler.Status
}

// SessionReporter describes the current polling session.
type SessionReporter interface {
	SessionInfo() model.SessionInfo
}

// Server serves the control API.
type Server struct {
	addr    string
	log     *logger.Logger
	srv     *http.Server
	ctrl    Controller
	session SessionReporter
	store   *config.Store
	sink    overlay.Sink

	mu sync.RWMutex
	// runCtx parents the polling worker, so a worker started from a request
	// outlives that request but not the service.
	runCtx context.Context
}

// New creates a Server bound to addr.
func New(addr string, ctrl Controller, session SessionReporter, store *config.Store, sink overlay.Sink, log *logger.Logger) *Server {
	s := &Server{
		addr:    addr,
		log:     log,
		ctrl:    ctrl,
		session: session,
		store:   store,
		sink:    sink,
		runCtx:  context.Background(),
	}

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return context.Background()
		},
	}

	return s
}

// Handler returns the routed, logged handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handlePanel)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/start", s.handleStart)
	mux.HandleFunc("POST /api/stop", s.handleStop)
	mux.HandleFunc("GET /api/overlays", s.handleOverlays)
	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", s.handlePutSettings)
	mux.Handle("GET /metrics", promhttp.Handler())

	return withLogging(s.log, mux)
}

// Run starts the HTTP server and blocks until the context is cancelled.
// It performs graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context) error {
	s.setRunContext(ctx)
	s.log.Info("Control server starting", "addr", s.addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("control server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.log.Info("Control server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultGracefulShutdownTimeout)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("control server shutdown: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) setRunContext(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runCtx = ctx
}

func (s *Server) runContext() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runCtx
}

func withLogging(log *logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		log.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"duration", time.Since(start).String(),
		)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code before writing it.
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
