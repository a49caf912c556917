package source

import (
	"context"
	"encoding/binary"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Priya8975/feature-materializer/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func sampleEvents() []domain.EventRecord {
	return []domain.EventRecord{
		{EntityKey: "7", Timestamp: time.Unix(300, 0).UTC(), Fields: map[string]float64{"watch_time": 2.5}},
		{EntityKey: "1", Timestamp: time.Unix(100, 0).UTC(), Fields: map[string]float64{"watch_time": 10}},
		{EntityKey: "1", Timestamp: time.Unix(50, 0).UTC(), Fields: map[string]float64{"watch_time": 4}},
	}
}

func TestSegmentRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch_events.seg")

	if err := WriteSegment(path, []string{"watch_time"}, sampleEvents()); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	seg, err := ReadSegment(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(seg.Events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(seg.Events))
	}

	// Events come back sorted by (entity, timestamp).
	if seg.Events[0].EntityKey != "1" || seg.Events[0].Timestamp.Unix() != 50 {
		t.Errorf("first event = %+v", seg.Events[0])
	}
	if seg.Events[2].EntityKey != "7" || seg.Events[2].Fields["watch_time"] != 2.5 {
		t.Errorf("last event = %+v", seg.Events[2])
	}
	if seg.MinTS.Unix() != 50 || seg.MaxTS.Unix() != 300 {
		t.Errorf("span = [%v, %v]", seg.MinTS, seg.MaxTS)
	}
}

func TestReadSegment_BadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.seg")
	if err := os.WriteFile(path, []byte("not a segment at all"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadSegment(path); err == nil {
		t.Fatal("expected error for corrupt segment")
	}
}

func TestReadSegment_Truncated(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.seg")
	if err := WriteSegment(path, []string{"x"}, sampleEvents()); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	trunc := filepath.Join(dir, "trunc.seg")
	if err := os.WriteFile(trunc, raw[:len(raw)/2], 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadSegment(trunc); err == nil {
		t.Fatal("expected error for truncated segment")
	}
}

func TestReadSegment_TruncatedKeyBlock(t *testing.T) {
	// Cutting the file inside the entity-key block must surface an error,
	// never a silently zero-padded key.
	dir := t.TempDir()
	path := filepath.Join(dir, "events.seg")
	if err := WriteSegment(path, []string{"watch_time"}, sampleEvents()); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	// magic + version + rowCount + fieldCount + one field name entry.
	headerLen := 4 + 2 + 4 + 2 + 2 + len("watch_time")
	keysLen := binary.LittleEndian.Uint32(raw[headerLen:])
	cut := headerLen + 4 + int(keysLen) - 1

	trunc := filepath.Join(dir, "trunc.seg")
	if err := os.WriteFile(trunc, raw[:cut], 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadSegment(trunc); err == nil {
		t.Fatal("expected error for truncated entity-key block")
	}
}

func TestReader_MergesSegmentParts(t *testing.T) {
	dir := t.TempDir()
	events := sampleEvents()

	if err := WriteSegment(filepath.Join(dir, "watch_events-001.seg"), []string{"watch_time"}, events[:2]); err != nil {
		t.Fatal(err)
	}
	if err := WriteSegment(filepath.Join(dir, "watch_events-002.seg"), []string{"watch_time"}, events[2:]); err != nil {
		t.Fatal(err)
	}
	// A different source must not be picked up.
	if err := WriteSegment(filepath.Join(dir, "users.seg"), []string{"lifetime_days"}, events[:1]); err != nil {
		t.Fatal(err)
	}

	r := NewReader(dir, testLogger())
	got, err := r.Read(context.Background(), "watch_events")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 merged events, got %d", len(got))
	}
}

func TestReader_BoundedRetryThenSourceReadError(t *testing.T) {
	r := &Reader{
		dir:         filepath.Join(t.TempDir(), "missing"),
		maxAttempts: 3,
		baseBackoff: time.Millisecond,
		logger:      testLogger(),
	}

	start := time.Now()
	_, err := r.Read(context.Background(), "watch_events")

	var srcErr *domain.SourceReadError
	if !errors.As(err, &srcErr) {
		t.Fatalf("expected SourceReadError, got %v", err)
	}
	if srcErr.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", srcErr.Attempts)
	}
	// 1ms + 2ms of backoff; far below a second even on slow machines.
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("retry loop took too long: %v", elapsed)
	}
}

func TestReader_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &Reader{
		dir:         filepath.Join(t.TempDir(), "missing"),
		maxAttempts: 5,
		baseBackoff: time.Minute,
		logger:      testLogger(),
	}
	_, err := r.Read(ctx, "watch_events")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
