// Package materializer bulk-computes windowed feature aggregates per entity
// and persists them as versioned snapshots in the offline store.
package materializer

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Priya8975/feature-materializer/internal/domain"
	"github.com/Priya8975/feature-materializer/internal/pit"
)

// SnapshotWriter persists one partition's snapshots atomically: either the
// whole batch commits or nothing does. Upserts are keyed by
// (entity, feature, bucket) so re-runs over overlapping ranges are idempotent.
type SnapshotWriter interface {
	UpsertSnapshots(ctx context.Context, snaps []domain.FeatureSnapshot) error
}

// Materializer computes offline feature snapshots with a fixed pool of
// entity-partition workers. Entities are independent units of work; each
// output partition is owned by exactly one worker.
type Materializer struct {
	store   SnapshotWriter
	workers int
	logger  *slog.Logger
}

func New(store SnapshotWriter, workers int, logger *slog.Logger) *Materializer {
	if workers < 1 {
		workers = 1
	}
	return &Materializer{store: store, workers: workers, logger: logger}
}

// Materialize computes snapshots for every entity in the timeline set over
// the half-open range [start, end) and upserts them into the offline store.
//
// Cancellation is cooperative at partition boundaries: an in-flight entity
// finishes its atomic write, not-yet-started entities are abandoned. Partial
// write failures do not abort the run; the report carries per-feature counts
// and the returned error, if any, is a PartialWriteError listing failed
// entities for caller-driven retry.
func (m *Materializer) Materialize(ctx context.Context, specs []domain.FeatureSpec, timelines *pit.TimelineSet, start, end time.Time) (*Report, error) {
	report := NewReport(uuid.NewString(), start, end, specs)
	entities := timelines.Entities()

	m.logger.Info("offline materialization starting",
		"run_id", report.RunID,
		"entities", len(entities),
		"features", len(specs),
		"start", start,
		"end", end,
		"workers", m.workers,
	)

	p := newPool(m.workers, m.logger, func(ctx context.Context, entity string) partitionResult {
		return m.materializeEntity(ctx, entity, specs, timelines, start, end, report.RunID)
	})
	results := p.run(ctx, entities)

	for res := range results {
		report.merge(res)
	}

	m.logger.Info("offline materialization finished",
		"run_id", report.RunID,
		"entities_done", report.EntitiesSucceeded,
		"entities_failed", report.EntitiesFailed,
		"entities_skipped", len(entities)-report.EntitiesSucceeded-report.EntitiesFailed,
	)

	if err := report.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// materializeEntity computes every feature's buckets for one entity and
// writes them as a single atomic batch.
func (m *Materializer) materializeEntity(ctx context.Context, entity string, specs []domain.FeatureSpec, timelines *pit.TimelineSet, start, end time.Time, runID string) partitionResult {
	tl := timelines.Get(entity)
	res := partitionResult{entity: entity, buckets: make(map[string]int, len(specs))}

	var snaps []domain.FeatureSnapshot
	for _, spec := range specs {
		buckets := pit.BucketAggregates(tl, spec, start, end)
		for _, b := range buckets {
			snaps = append(snaps, domain.FeatureSnapshot{
				EntityKey:   entity,
				FeatureName: spec.Name,
				BucketStart: b.Start,
				Value:       b.Value,
				EventCount:  b.EventCount,
				RunID:       runID,
			})
		}
		res.buckets[spec.Name] = len(buckets)
	}

	if len(snaps) == 0 {
		return res
	}

	// Deterministic write order within the partition.
	sort.Slice(snaps, func(i, j int) bool {
		if snaps[i].FeatureName != snaps[j].FeatureName {
			return snaps[i].FeatureName < snaps[j].FeatureName
		}
		return snaps[i].BucketStart.Before(snaps[j].BucketStart)
	})

	if err := m.store.UpsertSnapshots(ctx, snaps); err != nil {
		m.logger.Warn("partition write failed",
			"entity", entity,
			"snapshots", len(snaps),
			"error", err,
		)
		res.err = err
	}
	return res
}
