package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Priya8975/feature-materializer/internal/domain"
)

const definitionsYAML = `
anchors:
  - name: watch_anchor
    source:
      name: watch_events
      path: watch_events
      key_type: string
      fields: [watch_time]
    features:
      - name: watch_time_30d
        transform: SUM(watch_time)
        window: 720h
        interval: 24h
  - name: user_anchor
    source:
      name: users
      path: users
      key_type: string
      fields: [lifetime_days]
    features:
      - name: lifetime_days
        transform: LATEST(lifetime_days)
`

func TestLoadDefinitions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.yaml")
	if err := os.WriteFile(path, []byte(definitionsYAML), 0644); err != nil {
		t.Fatal(err)
	}

	specs, anchors, err := LoadDefinitions(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(specs) != 2 || len(anchors) != 2 {
		t.Fatalf("got %d specs, %d anchors", len(specs), len(anchors))
	}

	watch := specs[0]
	if watch.Name != "watch_time_30d" ||
		watch.Transform.Aggregation != domain.AggSum ||
		watch.Transform.Field != "watch_time" ||
		watch.Window != 720*time.Hour ||
		watch.Interval != 24*time.Hour ||
		watch.KeyType != domain.KeyString {
		t.Errorf("watch spec = %+v", watch)
	}

	lifetime := specs[1]
	if lifetime.Windowed() || lifetime.Transform.Aggregation != domain.AggLatest {
		t.Errorf("lifetime spec = %+v", lifetime)
	}

	// Loaded definitions must pass registration.
	r := New(nil, testLogger())
	if err := r.Register(context.Background(), specs, anchors, RegisterOptions{}); err != nil {
		t.Fatalf("registering loaded definitions failed: %v", err)
	}
}

func TestLoadDefinitions_BadTransform(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.yaml")
	bad := `
anchors:
  - name: a
    source: {name: s, path: s, key_type: string, fields: [x]}
    features:
      - name: f
        transform: MEDIAN(x)
`
	if err := os.WriteFile(path, []byte(bad), 0644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := LoadDefinitions(path); err == nil {
		t.Fatal("expected error for unknown aggregation")
	}
}
