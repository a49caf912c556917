package online

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Priya8975/feature-materializer/internal/domain"
	"github.com/Priya8975/feature-materializer/internal/pit"
)

func setupOnline(t *testing.T) (*redis.Client, *miniredis.Miniredis, *slog.Logger) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return client, mr, logger
}

func onlineSpecs() []domain.FeatureSpec {
	return []domain.FeatureSpec{
		{
			Name:      "watch_time_30d",
			KeyType:   domain.KeyString,
			Transform: domain.Transform{Aggregation: domain.AggSum, Field: "watch_time"},
			Window:    30 * time.Second,
			Interval:  time.Second,
		},
		{
			Name:      "lifetime_days",
			KeyType:   domain.KeyString,
			Transform: domain.Transform{Aggregation: domain.AggLatest, Field: "lifetime_days"},
		},
	}
}

func onlineTimelines() *pit.TimelineSet {
	return pit.BuildTimelines([]domain.EventRecord{
		{EntityKey: "1", Timestamp: time.Unix(1, 0).UTC(), Fields: map[string]float64{"watch_time": 10}},
		{EntityKey: "1", Timestamp: time.Unix(20, 0).UTC(), Fields: map[string]float64{"watch_time": 5}},
		{EntityKey: "1", Timestamp: time.Unix(2, 0).UTC(), Fields: map[string]float64{"lifetime_days": 100}},
		{EntityKey: "2", Timestamp: time.Unix(3, 0).UTC(), Fields: map[string]float64{"watch_time": 7}},
	})
}

func TestSyncThenLookup(t *testing.T) {
	client, _, logger := setupOnline(t)
	ctx := context.Background()

	syncer := NewSyncer(client, 4, logger)
	report, err := syncer.Sync(ctx, onlineSpecs(), onlineTimelines(), time.Unix(25, 0).UTC())
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if report.Failed != 0 {
		t.Fatalf("unexpected failures: %+v", report)
	}

	lookup := NewLookup(client, logger)
	got, err := lookup.Get(ctx, "1", []string{"watch_time_30d", "lifetime_days"})
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if got["watch_time_30d"] == nil || *got["watch_time_30d"] != 15 {
		t.Errorf("watch_time_30d = %v, want 15", got["watch_time_30d"])
	}
	if got["lifetime_days"] == nil || *got["lifetime_days"] != 100 {
		t.Errorf("lifetime_days = %v, want 100", got["lifetime_days"])
	}

	// Entity 2 has watch events but no lifetime_days field events; the
	// never-synced feature must come back as the nil sentinel.
	got, err = lookup.Get(ctx, "2", []string{"watch_time_30d", "lifetime_days"})
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if got["watch_time_30d"] == nil || *got["watch_time_30d"] != 7 {
		t.Errorf("watch_time_30d = %v, want 7", got["watch_time_30d"])
	}
	if got["lifetime_days"] != nil {
		t.Errorf("lifetime_days = %v, want nil sentinel", *got["lifetime_days"])
	}
}

func TestSync_LastWriteWins(t *testing.T) {
	client, _, logger := setupOnline(t)
	ctx := context.Background()
	syncer := NewSyncer(client, 2, logger)
	lookup := NewLookup(client, logger)

	if _, err := syncer.Sync(ctx, onlineSpecs(), onlineTimelines(), time.Unix(25, 0).UTC()); err != nil {
		t.Fatalf("first sync failed: %v", err)
	}

	// Later sync point: the 30s window has slid past the first event.
	if _, err := syncer.Sync(ctx, onlineSpecs(), onlineTimelines(), time.Unix(40, 0).UTC()); err != nil {
		t.Fatalf("second sync failed: %v", err)
	}

	got, err := lookup.Get(ctx, "1", []string{"watch_time_30d"})
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if got["watch_time_30d"] == nil || *got["watch_time_30d"] != 5 {
		t.Errorf("watch_time_30d = %v, want 5 after overwrite", fmtVal(got["watch_time_30d"]))
	}
}

func TestLookup_NeverSyncedEntity(t *testing.T) {
	client, _, logger := setupOnline(t)

	lookup := NewLookup(client, logger)
	got, err := lookup.Get(context.Background(), "ghost", []string{"watch_time_30d", "lifetime_days"})
	if err != nil {
		t.Fatalf("lookup must not error on missing keys: %v", err)
	}
	for name, v := range got {
		if v != nil {
			t.Errorf("%s = %v, want nil sentinel", name, *v)
		}
	}
}

func TestLookup_NoFeaturesRequested(t *testing.T) {
	client, _, logger := setupOnline(t)

	lookup := NewLookup(client, logger)
	got, err := lookup.Get(context.Background(), "1", nil)
	if err != nil {
		t.Fatalf("empty lookup must not error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty map, got %v", got)
	}
}

func TestSync_PartialFailureReported(t *testing.T) {
	client, mr, logger := setupOnline(t)
	ctx := context.Background()

	mr.SetError("store unavailable")
	syncer := NewSyncer(client, 2, logger)
	report, err := syncer.Sync(ctx, onlineSpecs(), onlineTimelines(), time.Unix(25, 0).UTC())

	var pw *domain.PartialWriteError
	if !errors.As(err, &pw) {
		t.Fatalf("expected PartialWriteError, got %v", err)
	}
	if report.Succeeded != 0 || report.Failed == 0 {
		t.Fatalf("report = %+v", report)
	}
	if len(pw.FailedKeys) != report.Failed {
		t.Errorf("failed key list does not match count: %d vs %d", len(pw.FailedKeys), report.Failed)
	}

	// After the store recovers, a retry sync succeeds.
	mr.SetError("")
	report, err = syncer.Sync(ctx, onlineSpecs(), onlineTimelines(), time.Unix(25, 0).UTC())
	if err != nil {
		t.Fatalf("retry sync failed: %v", err)
	}
	if report.Failed != 0 {
		t.Fatalf("retry report = %+v", report)
	}
}

func TestSync_ConcurrentWithLookups(t *testing.T) {
	client, _, logger := setupOnline(t)
	ctx := context.Background()
	syncer := NewSyncer(client, 4, logger)
	lookup := NewLookup(client, logger)

	if _, err := syncer.Sync(ctx, onlineSpecs(), onlineTimelines(), time.Unix(25, 0).UTC()); err != nil {
		t.Fatalf("seed sync failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			syncer.Sync(ctx, onlineSpecs(), onlineTimelines(), time.Unix(25+int64(i), 0).UTC())
		}
	}()

	// Lookups racing the syncs must always see a well-formed value: either
	// some previous sync's value or the current one, never garbage.
	for i := 0; i < 50; i++ {
		got, err := lookup.Get(ctx, "1", []string{"watch_time_30d"})
		if err != nil {
			t.Fatalf("lookup during sync failed: %v", err)
		}
		if v := got["watch_time_30d"]; v != nil && (*v < 0 || *v > 15) {
			t.Fatalf("torn value observed: %v", *v)
		}
	}
	<-done
}

func fmtVal(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
