package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/fieldsite/fieldsite/internal/logfields"
)

const heartbeatInterval = 30 * time.Second

// Hub fans rebuild notifications out to connected browsers over SSE.
// Every successful rebuild broadcasts a fresh hash; the client script
// reloads the page whenever the hash changes.
type Hub struct {
	mu       sync.Mutex
	subs     map[*subscriber]struct{}
	lastHash string
	down     bool
	quit     chan struct{} // closed by Shutdown; ends every stream
}

// subscriber is one connected browser. evict is closed when the hub drops
// the subscriber for falling behind, which ends the stream so the client
// script reconnects and picks up the current hash.
type subscriber struct {
	events chan string
	evict  chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		subs: map[*subscriber]struct{}{},
		quit: make(chan struct{}),
	}
}

// ServeHTTP implements the SSE endpoint at /livereload.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}
	sub, current, ok := h.subscribe()
	if !ok {
		http.Error(w, "livereload shutting down", http.StatusServiceUnavailable)
		return
	}
	defer h.unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Open with a comment, then replay the current hash so late joiners
	// have a baseline to compare future broadcasts against.
	if !writeChunk(w, flusher, ": connected\n\n") {
		return
	}
	if current != "" && !writeHash(w, flusher, current) {
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.quit:
			return
		case <-sub.evict:
			return
		case <-heartbeat.C:
			if !writeChunk(w, flusher, ": ping\n\n") {
				return
			}
		case hash := <-sub.events:
			if !writeHash(w, flusher, hash) {
				return
			}
		}
	}
}

func writeHash(w http.ResponseWriter, f http.Flusher, hash string) bool {
	return writeChunk(w, f, fmt.Sprintf("data: {\"hash\":%q}\n\n", hash))
}

func writeChunk(w http.ResponseWriter, f http.Flusher, s string) bool {
	if _, err := fmt.Fprint(w, s); err != nil {
		slog.Debug("livereload write", logfields.Error(err))
		return false
	}
	f.Flush()
	return true
}

func (h *Hub) subscribe() (sub *subscriber, lastHash string, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.down {
		return nil, "", false
	}
	sub = &subscriber{events: make(chan string, 4), evict: make(chan struct{})}
	h.subs[sub] = struct{}{}
	return sub, h.lastHash, true
}

func (h *Hub) unsubscribe(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, sub)
}

// Broadcast sends a new hash to every subscriber. Empty and repeated hashes
// are ignored. Subscribers whose buffers are full are evicted rather than
// waited on; the client reconnects and replays the latest hash anyway.
func (h *Hub) Broadcast(hash string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.down || hash == "" || hash == h.lastHash {
		return
	}
	h.lastHash = hash

	evicted := 0
	for sub := range h.subs {
		select {
		case sub.events <- hash:
		default:
			delete(h.subs, sub)
			close(sub.evict)
			evicted++
		}
	}
	slog.Debug("livereload broadcast", "hash", hash, "clients", len(h.subs), "evicted", evicted)
}

// Shutdown ends all streams and refuses new connections.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.down {
		return
	}
	h.down = true
	close(h.quit)
	h.subs = map[*subscriber]struct{}{}
}

// Script is the client snippet served at /livereload.js and referenced from
// injected pages. It reloads the page when the broadcast hash changes.
const Script = `(() => {
  if (window.__FIELDSITE_LR__) return;
  window.__FIELDSITE_LR__ = true;
  function connect() {
    const es = new EventSource('/livereload');
    let first = true;
    let current = null;
    es.onmessage = (e) => {
      try {
        const p = JSON.parse(e.data);
        if (first) { current = p.hash; first = false; return; }
        if (p.hash && p.hash !== current) { location.reload(); }
      } catch (_) {}
    };
    es.onerror = () => { es.close(); setTimeout(connect, 2000); };
  }
  connect();
})();`
