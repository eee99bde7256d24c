package daemon

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/fieldsite/fieldsite/internal/build"
	"github.com/fieldsite/fieldsite/internal/collect"
	"github.com/fieldsite/fieldsite/internal/logfields"
	"github.com/fieldsite/fieldsite/internal/quota"
)

// runState remembers the last build and collection outcomes for /status and
// /healthz. Archive-derived numbers are queried live instead.
type runState struct {
	mu          sync.RWMutex
	startedAt   time.Time
	lastBuild   *buildRecord
	lastCollect *collectRecord
}

type buildRecord struct {
	At      time.Time `json:"at"`
	BuildID string    `json:"build_id,omitempty"`
	Pages   int       `json:"pages,omitempty"`
	Error   string    `json:"error,omitempty"`
}

type collectRecord struct {
	At          time.Time `json:"at"`
	Fetched     int       `json:"fetched"`
	Archived    int       `json:"archived"`
	Remaining   int       `json:"remaining"`
	RateLimited bool      `json:"rate_limited,omitempty"`
	Skipped     string    `json:"skipped,omitempty"`
	Error       string    `json:"error,omitempty"`
}

type deployRecord struct {
	At      time.Time `json:"at"`
	Ref     string    `json:"ref,omitempty"`
	Details string    `json:"details,omitempty"`
}

func newRunState() *runState {
	return &runState{startedAt: time.Now()}
}

func (s *runState) setBuild(rep *build.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastBuild = &buildRecord{At: time.Now(), BuildID: rep.BuildID, Pages: rep.Pages}
}

func (s *runState) setBuildError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := &buildRecord{At: time.Now(), Error: err.Error()}
	if s.lastBuild != nil {
		// Keep pointing at the last good build alongside the failure.
		rec.BuildID = s.lastBuild.BuildID
		rec.Pages = s.lastBuild.Pages
	}
	s.lastBuild = rec
}

func (s *runState) setCollect(res *collect.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCollect = &collectRecord{
		At:          time.Now(),
		Fetched:     res.Fetched,
		Archived:    res.Archived,
		Remaining:   res.Remaining,
		RateLimited: res.RateLimited,
	}
}

func (s *runState) setCollectSkipped(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCollect = &collectRecord{At: time.Now(), Skipped: reason}
}

func (s *runState) setCollectError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCollect = &collectRecord{At: time.Now(), Error: err.Error()}
}

// statusPayload is the /status response.
type statusPayload struct {
	Status         string         `json:"status"`
	Uptime         string         `json:"uptime"`
	LastBuild      *buildRecord   `json:"last_build,omitempty"`
	LastCollect    *collectRecord `json:"last_collect,omitempty"`
	LastDeploy     *deployRecord  `json:"last_deploy,omitempty"`
	ArchivedPosts  int            `json:"archived_posts"`
	QuotaMonth     string         `json:"quota_month"`
	QuotaRemaining int            `json:"quota_remaining"`
}

func (s *runState) snapshot() statusPayload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := statusPayload{
		Status:      "ok",
		Uptime:      time.Since(s.startedAt).Truncate(time.Second).String(),
		LastBuild:   s.lastBuild,
		LastCollect: s.lastCollect,
	}
	if s.lastBuild != nil && s.lastBuild.Error != "" {
		p.Status = "degraded"
	}
	if s.lastCollect != nil && s.lastCollect.Error != "" {
		p.Status = "degraded"
	}
	return p
}

func (d *Daemon) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	p := d.state.snapshot()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": p.Status, "uptime": p.Uptime})
}

func (d *Daemon) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := d.state.snapshot()

	if d.store != nil {
		if n, err := d.store.CountPosts(ctx); err == nil {
			p.ArchivedPosts = n
		} else {
			slog.Warn("status: count posts", logfields.Error(err))
		}
		p.QuotaMonth = quota.MonthKey(time.Now())
		ledger := quota.NewLedger(d.store, d.currentConfig().Collect.MonthlyCap)
		if rem, err := ledger.Remaining(ctx); err == nil {
			p.QuotaRemaining = rem
		}
		if evs, err := d.store.RecentEvents(ctx, 50); err == nil {
			for _, ev := range evs {
				if ev.Kind == "deploy" {
					p.LastDeploy = &deployRecord{At: ev.At, Ref: ev.Ref, Details: ev.Details}
					break
				}
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(p)
}
