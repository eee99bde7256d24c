package events

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNilPublisherIsNoop(t *testing.T) {
	var p *Publisher
	if err := p.Publish(KindBuildCompleted, "b1", nil); err != nil {
		t.Fatalf("nil publisher returned error: %v", err)
	}
	p.Close()
}

func TestConnectRequiresURL(t *testing.T) {
	if _, err := Connect("", "fieldsite.events"); err == nil {
		t.Fatal("expected error for empty URL")
	}
}

func TestEventWireShape(t *testing.T) {
	evt := Event{
		Kind:    KindDeployCompleted,
		Ref:     "dep-42",
		At:      time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC),
		Details: map[string]any{"files": 12},
	}
	data, err := json.Marshal(evt)
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["kind"] != "deploy.completed" {
		t.Fatalf("kind = %v", decoded["kind"])
	}
	if decoded["ref"] != "dep-42" {
		t.Fatalf("ref = %v", decoded["ref"])
	}
	if _, ok := decoded["details"].(map[string]any); !ok {
		t.Fatalf("details missing: %v", decoded)
	}
}
