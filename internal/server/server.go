// Package server is the local preview behind the serve command: it builds
// the site, serves the output directory, and rebuilds on source changes
// while browsers follow along over a livereload SSE stream.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/fieldsite/fieldsite/internal/build"
	"github.com/fieldsite/fieldsite/internal/config"
	"github.com/fieldsite/fieldsite/internal/logfields"
	"github.com/fieldsite/fieldsite/internal/metrics"
)

type Server struct {
	configPath string

	mu  sync.RWMutex
	cfg *config.Config

	recorder metrics.Recorder
	registry *prom.Registry
	hub      *Hub
	status   *buildStatus
}

func New(cfg *config.Config, configPath string) *Server {
	return &Server{
		configPath: configPath,
		cfg:        cfg,
		recorder:   metrics.NoopRecorder{},
		hub:        NewHub(),
		status:     &buildStatus{},
	}
}

// SetRecorder injects a metrics recorder. Returns the server for chaining.
func (s *Server) SetRecorder(r metrics.Recorder) *Server {
	if r != nil {
		s.recorder = r
	}
	return s
}

// SetRegistry selects the prometheus registry behind /metrics.
func (s *Server) SetRegistry(reg *prom.Registry) *Server {
	s.registry = reg
	return s
}

// Run builds the site and serves it until ctx is canceled. The initial
// build must succeed; later rebuild failures keep the last good output
// online and show up on /healthz.
func (s *Server) Run(ctx context.Context) error {
	if err := s.rebuild(ctx, "initial"); err != nil {
		return fmt.Errorf("initial build: %w", err)
	}

	addr := s.currentConfig().Serve.Addr
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	watcher, err := NewWatcher(WatchPaths(s.currentConfig(), s.configPath))
	if err != nil {
		_ = ln.Close()
		return err
	}
	go watcher.Run(ctx)
	go s.rebuildLoop(ctx, watcher)

	srv := &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		// No write timeout: the livereload stream is long-lived.
		IdleTimeout: 300 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	slog.Info("serving site", logfields.Addr(ln.Addr().String()),
		logfields.Path(s.currentConfig().Output.Dir))

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.hub.Shutdown()
			return fmt.Errorf("serve: %w", err)
		}
	}

	// Closing the hub first lets SSE handlers return, so Shutdown is not
	// stuck waiting on connections that never end on their own.
	s.hub.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("server shutdown", logfields.Error(err))
	}
	return nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", injectLiveReload(http.HandlerFunc(s.serveSite)))
	mux.Handle("/livereload", s.hub)
	mux.HandleFunc("/livereload.js", serveScript)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", metrics.HTTPHandler(s.registry))
	return mux
}

// serveSite serves the output directory. Resolving the root per request
// keeps serving correct when a config reload moves the output dir.
func (s *Server) serveSite(w http.ResponseWriter, r *http.Request) {
	root := s.currentConfig().Output.Dir
	http.FileServer(http.Dir(root)).ServeHTTP(w, r)
}

func serveScript(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	if _, err := w.Write([]byte(Script)); err != nil {
		slog.Error("write livereload script", logfields.Error(err))
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	snap := s.status.snapshot()
	w.Header().Set("Content-Type", "application/json")
	if snap.Status == "starting" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(snap)
}

func (s *Server) currentConfig() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *Server) rebuildLoop(ctx context.Context, w *Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.Changed():
			s.recorder.IncRebuild("watch")
			if err := s.rebuild(ctx, "watch"); err != nil {
				slog.Error("rebuild failed", logfields.Error(err))
			}
		}
	}
}

// rebuild reloads the config and rebuilds the site. On success browsers are
// told to refresh; on failure the previous output stays in place and the
// error is surfaced through /healthz.
func (s *Server) rebuild(ctx context.Context, trigger string) error {
	slog.Info("building site", logfields.Trigger(trigger))
	cfg, err := config.Load(s.configPath)
	if err == nil {
		var rep *build.Report
		rep, err = build.New(cfg).SetRecorder(s.recorder).Run(ctx)
		if err == nil {
			s.mu.Lock()
			s.cfg = cfg
			s.mu.Unlock()
			s.status.setSuccess(rep)
			s.hub.Broadcast(strconv.FormatInt(time.Now().UnixNano(), 10))
			return nil
		}
	}
	s.status.setError(err)
	return err
}
