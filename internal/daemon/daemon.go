// Package daemon runs fieldsite unattended: collection on a schedule,
// rebuilds on source changes, and a small HTTP surface for status checks,
// with optional NATS event publishing.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/fieldsite/fieldsite/internal/archive"
	"github.com/fieldsite/fieldsite/internal/build"
	"github.com/fieldsite/fieldsite/internal/collect"
	"github.com/fieldsite/fieldsite/internal/config"
	"github.com/fieldsite/fieldsite/internal/events"
	"github.com/fieldsite/fieldsite/internal/logfields"
	"github.com/fieldsite/fieldsite/internal/metrics"
	"github.com/fieldsite/fieldsite/internal/quota"
	"github.com/fieldsite/fieldsite/internal/report"
	"github.com/fieldsite/fieldsite/internal/server"
	"github.com/fieldsite/fieldsite/internal/xapi"
)

type Daemon struct {
	configPath string

	mu  sync.RWMutex
	cfg *config.Config

	recorder metrics.Recorder
	registry *prom.Registry

	hub   *server.Hub
	state *runState

	store   *archive.Store
	pub     *events.Publisher
	sched   gocron.Scheduler
	httpSrv *http.Server
	addr    string

	cancel context.CancelFunc
	errCh  chan error
}

func New(cfg *config.Config, configPath string) *Daemon {
	return &Daemon{
		configPath: configPath,
		cfg:        cfg,
		recorder:   metrics.NoopRecorder{},
		hub:        server.NewHub(),
		state:      newRunState(),
		errCh:      make(chan error, 1),
	}
}

// SetRecorder injects a metrics recorder. Returns the daemon for chaining.
func (d *Daemon) SetRecorder(r metrics.Recorder) *Daemon {
	if r != nil {
		d.recorder = r
	}
	return d
}

// SetRegistry selects the prometheus registry behind /metrics.
func (d *Daemon) SetRegistry(reg *prom.Registry) *Daemon {
	d.registry = reg
	return d
}

// Addr returns the bound HTTP address once Start has succeeded.
func (d *Daemon) Addr() string { return d.addr }

// Err delivers a runtime failure of the HTTP server after a successful
// Start. The channel never closes.
func (d *Daemon) Err() <-chan error { return d.errCh }

// Start brings the daemon up: archive, optional NATS, an initial build, the
// collection schedule, the source watcher, and the HTTP surface. It returns
// once everything is running. A NATS connection failure is fatal because the
// URL is only set when events are wanted; a failing initial build is not,
// the schedule and watcher will retry.
func (d *Daemon) Start(ctx context.Context) error {
	cfg := d.currentConfig()
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	store, err := archive.Open(cfg.Collect.Archive)
	if err != nil {
		cancel()
		return fmt.Errorf("open archive: %w", err)
	}
	d.store = store

	if cfg.Daemon.NATS.URL != "" {
		pub, err := events.Connect(cfg.Daemon.NATS.URL, cfg.Daemon.NATS.Subject)
		if err != nil {
			d.closeQuietly()
			return fmt.Errorf("connect nats: %w", err)
		}
		d.pub = pub
	}

	ln, err := net.Listen("tcp", cfg.Daemon.Addr)
	if err != nil {
		d.closeQuietly()
		return fmt.Errorf("listen %s: %w", cfg.Daemon.Addr, err)
	}
	d.addr = ln.Addr().String()

	d.rebuild(runCtx, "initial")

	if interval := cfg.CollectInterval(); interval > 0 {
		sched, err := gocron.NewScheduler()
		if err != nil {
			_ = ln.Close()
			d.closeQuietly()
			return fmt.Errorf("create scheduler: %w", err)
		}
		_, err = sched.NewJob(
			gocron.DurationJob(interval),
			gocron.NewTask(func() { d.collectCycle(runCtx) }),
			gocron.WithName("collect"),
		)
		if err != nil {
			_ = ln.Close()
			d.closeQuietly()
			return fmt.Errorf("schedule collection: %w", err)
		}
		sched.Start()
		d.sched = sched
		slog.Info("collection scheduled", "every", interval.String())
	}

	if watchEnabled(cfg) {
		w, werr := server.NewWatcher(server.WatchPaths(cfg, d.configPath))
		if werr != nil {
			slog.Warn("source watching disabled", logfields.Error(werr))
		} else {
			go w.Run(runCtx)
			go d.watchLoop(runCtx, w)
		}
	}

	d.httpSrv = &http.Server{
		Handler:           d.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		// No write timeout: the livereload stream is long-lived.
		IdleTimeout: 300 * time.Second,
	}
	go func() {
		if err := d.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case d.errCh <- err:
			default:
			}
		}
	}()
	slog.Info("daemon listening", logfields.Addr(d.addr))
	return nil
}

// Stop tears the daemon down gracefully within ctx's deadline.
func (d *Daemon) Stop(ctx context.Context) error {
	var errs []error
	if d.cancel != nil {
		d.cancel()
	}
	if d.sched != nil {
		if err := d.sched.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("scheduler shutdown: %w", err))
		}
	}
	// Closing the hub first lets SSE handlers return, so Shutdown is not
	// stuck waiting on connections that never end on their own.
	d.hub.Shutdown()
	if d.httpSrv != nil {
		if err := d.httpSrv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	d.pub.Close()
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close archive: %w", err))
		}
	}
	slog.Info("daemon stopped")
	return errors.Join(errs...)
}

func (d *Daemon) closeQuietly() {
	if d.cancel != nil {
		d.cancel()
	}
	d.pub.Close()
	if d.store != nil {
		_ = d.store.Close()
	}
}

func (d *Daemon) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", d.handleHealthz)
	mux.HandleFunc("/status", d.handleStatus)
	mux.Handle("/livereload", d.hub)
	mux.Handle("/metrics", metrics.HTTPHandler(d.registry))
	return mux
}

func (d *Daemon) currentConfig() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

func watchEnabled(cfg *config.Config) bool {
	return cfg.Daemon.Watch == nil || *cfg.Daemon.Watch
}

func (d *Daemon) watchLoop(ctx context.Context, w *server.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.Changed():
			d.recorder.IncRebuild("watch")
			d.rebuild(ctx, "watch")
		}
	}
}

// rebuild reloads the config and rebuilds the site. Failures keep the last
// output in place and are surfaced on /healthz and /status.
func (d *Daemon) rebuild(ctx context.Context, trigger string) {
	slog.Info("building site", logfields.Trigger(trigger))
	cfg, err := config.Load(d.configPath)
	var rep *build.Report
	if err == nil {
		rep, err = build.New(cfg).SetRecorder(d.recorder).Run(ctx)
	}
	if err != nil {
		slog.Error("build failed", logfields.Trigger(trigger), logfields.Error(err))
		d.state.setBuildError(err)
		return
	}
	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()
	d.state.setBuild(rep)
	d.hub.Broadcast(strconv.FormatInt(time.Now().UnixNano(), 10))
	if d.store != nil {
		_ = d.store.AppendEvent(ctx, "build", rep.BuildID, rep.Summary())
	}
	if err := d.pub.Publish(events.KindBuildCompleted, rep.BuildID, map[string]any{
		"pages":  rep.Pages,
		"assets": rep.Assets,
	}); err != nil {
		slog.Warn("publish build event", logfields.Error(err))
	}
}

// collectCycle is one scheduled pass: collect new posts, regenerate the
// findings page, rebuild the site. An exhausted quota skips the pass.
func (d *Daemon) collectCycle(ctx context.Context) {
	cfg := d.currentConfig()
	bearer := os.Getenv("X_BEARER_TOKEN")
	if bearer == "" {
		slog.Warn("collection skipped: X_BEARER_TOKEN is not set")
		d.state.setCollectSkipped("X_BEARER_TOKEN is not set")
		return
	}

	client := xapi.NewClient(cfg.Collect.BaseURL, bearer)
	ledger := quota.NewLedger(d.store, cfg.Collect.MonthlyCap)
	runner := collect.NewRunner(cfg.Collect, client, d.store, ledger).SetRecorder(d.recorder)

	res, err := runner.Run(ctx, true)
	switch {
	case errors.Is(err, quota.ErrCapReached):
		slog.Info("collection skipped: monthly cap reached", logfields.Month(quota.MonthKey(time.Now())))
		d.state.setCollectSkipped("monthly cap reached")
		return
	case err != nil:
		slog.Error("collection failed", logfields.Error(err))
		d.state.setCollectError(err)
		return
	}
	d.state.setCollect(res)
	_ = d.store.AppendEvent(ctx, "collect", "",
		fmt.Sprintf("fetched=%d archived=%d remaining=%d", res.Fetched, res.Archived, res.Remaining))
	if err := d.pub.Publish(events.KindCollectCompleted, "", map[string]any{
		"fetched":   res.Fetched,
		"archived":  res.Archived,
		"remaining": res.Remaining,
	}); err != nil {
		slog.Warn("publish collect event", logfields.Error(err))
	}

	if len(cfg.Topics) > 0 {
		if _, err := report.New(cfg).Run(ctx, d.store); err != nil {
			slog.Warn("findings page not regenerated", logfields.Error(err))
		}
	}

	d.recorder.IncRebuild("schedule")
	d.rebuild(ctx, "schedule")
}
