package server

import (
	"sync"
	"time"

	"github.com/fieldsite/fieldsite/internal/build"
)

// buildStatus tracks the outcome of the most recent rebuild so /healthz can
// report failures while the last good output keeps being served.
type buildStatus struct {
	mu        sync.RWMutex
	hasGood   bool
	lastError string
	buildID   string
	builtAt   time.Time
	pages     int
}

func (b *buildStatus) setSuccess(rep *build.Report) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hasGood = true
	b.lastError = ""
	if rep != nil {
		b.buildID = rep.BuildID
		b.builtAt = rep.End
		b.pages = rep.Pages
	}
}

func (b *buildStatus) setError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.lastError = err.Error()
	}
}

// healthSnapshot is the /healthz payload. BuildID and friends describe the
// last good build even while Status reports a failed rebuild.
type healthSnapshot struct {
	Status    string    `json:"status"`
	BuildID   string    `json:"build_id,omitempty"`
	BuiltAt   time.Time `json:"built_at"`
	Pages     int       `json:"pages"`
	LastError string    `json:"last_error,omitempty"`
}

func (b *buildStatus) snapshot() healthSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	snap := healthSnapshot{
		Status:  "ok",
		BuildID: b.buildID,
		BuiltAt: b.builtAt,
		Pages:   b.pages,
	}
	if !b.hasGood {
		snap.Status = "starting"
	}
	if b.lastError != "" {
		snap.Status = "degraded"
		snap.LastError = b.lastError
	}
	return snap
}
