package app

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/Priya8975/feature-materializer/internal/config"
	"github.com/Priya8975/feature-materializer/internal/domain"
	"github.com/Priya8975/feature-materializer/internal/online"
	"github.com/Priya8975/feature-materializer/internal/registry"
	"github.com/Priya8975/feature-materializer/internal/source"
	"github.com/Priya8975/feature-materializer/internal/store"
)

// End-to-end over the in-process pieces: segments on disk, registration,
// online sync into miniredis, lookup back out. The offline store needs a
// real Postgres and is covered by the materializer package tests.
func TestRegisterSyncLookupFlow(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	dir := t.TempDir()
	writeFixtures(t, dir)

	mr := miniredis.RunT(t)
	rs, err := store.NewRedis(ctx, "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("opening online store: %v", err)
	}
	t.Cleanup(func() { rs.Close() })

	cfg := &config.Config{
		Project:       "churn-test",
		ComputeTarget: config.TargetLocal,
		SourceDir:     dir,
		NumWorkers:    2,
	}
	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: registry.New(nil, logger),
		Online:   rs,
		Reader:   source.NewReader(dir, logger),
	}

	defsPath := filepath.Join(dir, "features.yaml")
	defs := `
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
        window: 30s
        interval: 1s
`
	if err := os.WriteFile(defsPath, []byte(defs), 0644); err != nil {
		t.Fatal(err)
	}
	if err := a.RegisterFromFile(ctx, defsPath, false); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	report, err := a.SyncOnline(ctx, []string{"watch_time_30d"}, time.Unix(25, 0).UTC())
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if report.Succeeded == 0 || report.Failed != 0 {
		t.Fatalf("sync report = %+v", report)
	}

	lookup := online.NewLookup(rs.Client(), logger)
	got, err := lookup.Get(ctx, "1", []string{"watch_time_30d"})
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if v := got["watch_time_30d"]; v == nil || *v != 15 {
		t.Fatalf("watch_time_30d = %v, want 15", v)
	}
}

func TestLoadTimelines_SharedSourceReadOnce(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	dir := t.TempDir()
	writeFixtures(t, dir)

	a := &App{
		Config:   &config.Config{SourceDir: dir, NumWorkers: 1},
		Logger:   logger,
		Registry: registry.New(nil, logger),
		Reader:   source.NewReader(dir, logger),
	}

	specs := []domain.FeatureSpec{
		{
			Name:      "watch_time_30d",
			KeyType:   domain.KeyString,
			Transform: domain.Transform{Aggregation: domain.AggSum, Field: "watch_time"},
			Window:    30 * time.Second,
			Interval:  time.Second,
		},
		{
			Name:      "watch_count_30d",
			KeyType:   domain.KeyString,
			Transform: domain.Transform{Aggregation: domain.AggCount, Field: "watch_time"},
			Window:    30 * time.Second,
			Interval:  time.Second,
		},
	}
	anchors := []domain.Anchor{{
		Name: "watch_anchor",
		Source: domain.SourceRef{
			Name: "watch_events", Path: "watch_events",
			KeyType: domain.KeyString, Fields: []string{"watch_time"},
		},
		Features: []string{"watch_time_30d", "watch_count_30d"},
	}}
	if err := a.Registry.Register(ctx, specs, anchors, registry.RegisterOptions{}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	timelines, err := a.LoadTimelines(ctx, specs)
	if err != nil {
		t.Fatalf("load timelines failed: %v", err)
	}
	// Two features, one shared source: events must not be duplicated.
	if timelines.Len() != 2 {
		t.Fatalf("expected 2 entities, got %d", timelines.Len())
	}
	first, _ := timelines.Get("1").Span()
	if first.Unix() != 1 {
		t.Errorf("first event at %v", first)
	}
}

func writeFixtures(t *testing.T, dir string) {
	t.Helper()
	events := []domain.EventRecord{
		{EntityKey: "1", Timestamp: time.Unix(1, 0).UTC(), Fields: map[string]float64{"watch_time": 10}},
		{EntityKey: "1", Timestamp: time.Unix(20, 0).UTC(), Fields: map[string]float64{"watch_time": 5}},
		{EntityKey: "2", Timestamp: time.Unix(3, 0).UTC(), Fields: map[string]float64{"watch_time": 7}},
	}
	if err := source.WriteSegment(filepath.Join(dir, "watch_events.seg"), []string{"watch_time"}, events); err != nil {
		t.Fatal(err)
	}
}
