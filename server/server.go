// Package server exposes a session over HTTP so browser renderers can query
// the forest, the aggregations and report selections back to the host.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ChristianF88/searchviz/analysis"
	"github.com/ChristianF88/searchviz/host"
	"github.com/ChristianF88/searchviz/output"
)

// Server holds the current session. Rebuilds swap in a fresh session;
// handlers only read.
type Server struct {
	mu      sync.RWMutex
	session *analysis.Session
	result  *output.JSONOutput

	sink   host.Sink
	logger *slog.Logger
	router *gin.Engine
}

// New creates a server reporting selections to sink. A nil logger uses
// slog.Default.
func New(sink host.Sink, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{sink: sink, logger: logger}

	router := gin.New()
	router.Use(gin.Recovery())
	RegisterRoutes(router, s)
	s.router = router
	return s
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetSession replaces the current session.
func (s *Server) SetSession(session *analysis.Session) {
	result := output.NewJSONOutput("serve", session.CreatedAt)
	analysis.FillOutput(result, session)
	result.Metadata.DurationMS = session.BuildDuration.Milliseconds()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = session
	s.result = result
}

// Session returns the current session and its output, or nil before the
// first build.
func (s *Server) Session() (*analysis.Session, *output.JSONOutput) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session, s.result
}

// Rebuild builds a new session from src and swaps it in. On failure the
// previous session stays current.
func (s *Server) Rebuild(ctx context.Context, src host.Source, opts analysis.SessionOptions) error {
	start := time.Now()
	session, err := analysis.NewSession(ctx, src, opts)
	if err != nil {
		s.logger.Error("session rebuild failed", "error", err)
		return err
	}
	s.SetSession(session)
	s.logger.Info("session rebuilt",
		"session", session.ID,
		"records", len(session.Records),
		"roots", len(session.Forest.Roots),
		"duration", time.Since(start))
	return nil
}

// WatchAndRebuild rebuilds the session whenever the watcher reports a
// change, until ctx is done or the watcher closes.
func (s *Server) WatchAndRebuild(ctx context.Context, w *host.Watcher, src host.Source, opts analysis.SessionOptions) {
	for {
		select {
		case <-ctx.Done():
			return
		case files, ok := <-w.Changes():
			if !ok {
				return
			}
			s.logger.Info("input changed", "files", files)
			_ = s.Rebuild(ctx, src, opts)
		}
	}
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		s.logger.Info("http server stopped")
		return nil
	}
}
