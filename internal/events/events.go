// Package events publishes lifecycle notifications to NATS so other tools
// can react to builds, collections, and deploys. The publisher is nil-safe:
// a daemon running without NATS configured holds a nil *Publisher and every
// call is a no-op.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/fieldsite/fieldsite/internal/logfields"
)

// Event kinds published by the daemon.
const (
	KindBuildCompleted   = "build.completed"
	KindCollectCompleted = "collect.completed"
	KindDeployCompleted  = "deploy.completed"
)

// Event is the JSON payload on the wire.
type Event struct {
	Kind    string         `json:"kind"`
	Ref     string         `json:"ref,omitempty"`
	At      time.Time      `json:"at"`
	Details map[string]any `json:"details,omitempty"`
}

// Publisher writes events to a single NATS subject.
type Publisher struct {
	conn    *nats.Conn
	subject string
}

// Connect dials the NATS server. Callers that treat NATS as optional should
// skip the call entirely when no URL is configured.
func Connect(url, subject string) (*Publisher, error) {
	if url == "" {
		return nil, fmt.Errorf("nats url is not configured")
	}
	conn, err := nats.Connect(url, nats.Name("fieldsite"))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	slog.Info("Connected to NATS", logfields.URL(url), logfields.Subject(subject))
	return &Publisher{conn: conn, subject: subject}, nil
}

// Publish sends one event. Failures are returned, not fatal; callers log
// and move on since eventing is best-effort.
func (p *Publisher) Publish(kind, ref string, details map[string]any) error {
	if p == nil {
		return nil
	}
	data, err := json.Marshal(Event{Kind: kind, Ref: ref, At: time.Now().UTC(), Details: details})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", kind, err)
	}
	slog.Debug("Published event", slog.String("kind", kind), logfields.Subject(p.subject))
	return nil
}

// Close drains the connection so queued events flush before shutdown.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
