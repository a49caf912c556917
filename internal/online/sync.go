package online

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spaolacci/murmur3"
	"golang.org/x/sync/errgroup"

	"github.com/Priya8975/feature-materializer/internal/domain"
	"github.com/Priya8975/feature-materializer/internal/pit"
)

const keyStripes = 64

// Syncer overwrites the online store with the most recent value of each
// feature per entity. Writes are last-write-wins; the offline store remains
// the source of historical truth.
//
// Entities sync in parallel, but writes to the same key serialize through a
// striped lock at the application level regardless of store guarantees.
type Syncer struct {
	client  *redis.Client
	workers int
	logger  *slog.Logger
	locks   [keyStripes]sync.Mutex
}

func NewSyncer(client *redis.Client, workers int, logger *slog.Logger) *Syncer {
	if workers < 1 {
		workers = 1
	}
	return &Syncer{client: client, workers: workers, logger: logger}
}

// FeatureSyncReport counts key writes for one feature.
type FeatureSyncReport struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// SyncReport is the machine-readable outcome of an online sync.
type SyncReport struct {
	SyncedAt   time.Time                     `json:"synced_at"`
	Features   map[string]*FeatureSyncReport `json:"features"`
	Succeeded  int                           `json:"succeeded"`
	Failed     int                           `json:"failed"`
	FailedKeys []string                      `json:"failed_keys,omitempty"`
}

// Sync computes, for every entity in the timeline set, the value of each
// feature as of now and overwrites the corresponding online key. A failed
// subset of writes never aborts the sync; failed keys are reported for retry.
func (s *Syncer) Sync(ctx context.Context, specs []domain.FeatureSpec, timelines *pit.TimelineSet, now time.Time) (*SyncReport, error) {
	report := &SyncReport{
		SyncedAt: now,
		Features: make(map[string]*FeatureSyncReport, len(specs)),
	}
	for _, spec := range specs {
		report.Features[spec.Name] = &FeatureSyncReport{}
	}

	entities := timelines.Entities()
	var mu sync.Mutex // guards report

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, entity := range entities {
		entity := entity
		g.Go(func() error {
			tl := timelines.Get(entity)
			for _, spec := range specs {
				value := pit.Evaluate(tl, spec, now)
				if value == nil {
					// Nothing qualifying; leave any previously synced
					// value in place rather than erasing it.
					continue
				}

				key := featureKey(entity, spec.Name)
				err := s.setGuarded(gctx, key, encodeValue(*value))

				mu.Lock()
				if err != nil {
					report.Failed++
					report.Features[spec.Name].Failed++
					report.FailedKeys = append(report.FailedKeys, key)
					mu.Unlock()
					s.logger.Warn("online write failed", "key", key, "error", err)
					continue
				}
				report.Succeeded++
				report.Features[spec.Name].Succeeded++
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	sort.Strings(report.FailedKeys)
	s.logger.Info("online sync complete",
		"entities", len(entities),
		"succeeded", report.Succeeded,
		"failed", report.Failed,
	)

	if report.Failed > 0 {
		return report, &domain.PartialWriteError{
			Succeeded:  report.Succeeded,
			Failed:     report.Failed,
			FailedKeys: report.FailedKeys,
		}
	}
	return report, nil
}

// setGuarded serializes same-key writes through a murmur3-striped lock. The
// underlying SET is atomic per key, so concurrent lookups observe either the
// old or the new value, never a torn one.
func (s *Syncer) setGuarded(ctx context.Context, key, value string) error {
	stripe := murmur3.Sum32([]byte(key)) % keyStripes
	s.locks[stripe].Lock()
	defer s.locks[stripe].Unlock()
	return s.client.Set(ctx, key, value, 0).Err()
}
