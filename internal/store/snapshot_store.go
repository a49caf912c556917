package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Priya8975/feature-materializer/internal/domain"
)

// UpsertSnapshots writes one partition's snapshots in a single transaction:
// either the whole batch commits or nothing does. Rows are keyed by
// (entity, feature, bucket) so re-materializing an overlapping range
// overwrites instead of duplicating.
func (s *PostgresStore) UpsertSnapshots(ctx context.Context, snaps []domain.FeatureSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning snapshot tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, sn := range snaps {
		_, err := tx.Exec(ctx, `
			INSERT INTO feature_snapshots (entity_key, feature_name, bucket_start, value, event_count, run_id)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (entity_key, feature_name, bucket_start)
			DO UPDATE SET value = EXCLUDED.value,
			              event_count = EXCLUDED.event_count,
			              run_id = EXCLUDED.run_id,
			              updated_at = NOW()
		`, sn.EntityKey, sn.FeatureName, sn.BucketStart, sn.Value, sn.EventCount, sn.RunID)
		if err != nil {
			return fmt.Errorf("upserting snapshot %s/%s@%s: %w",
				sn.EntityKey, sn.FeatureName, sn.BucketStart.Format(time.RFC3339), err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing snapshot tx: %w", err)
	}
	return nil
}

// RangeQuery returns all snapshots of the named features with bucket starts
// in the half-open range [start, end), ordered by entity, feature, bucket.
func (s *PostgresStore) RangeQuery(ctx context.Context, featureNames []string, start, end time.Time) ([]domain.FeatureSnapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT entity_key, feature_name, bucket_start, value, event_count, run_id
		FROM feature_snapshots
		WHERE feature_name = ANY($1)
		  AND bucket_start >= $2
		  AND bucket_start < $3
		ORDER BY entity_key, feature_name, bucket_start
	`, featureNames, start, end)
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []domain.FeatureSnapshot
	for rows.Next() {
		var sn domain.FeatureSnapshot
		if err := rows.Scan(&sn.EntityKey, &sn.FeatureName, &sn.BucketStart, &sn.Value, &sn.EventCount, &sn.RunID); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		sn.BucketStart = sn.BucketStart.UTC()
		snaps = append(snaps, sn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshots: %w", err)
	}
	return snaps, nil
}

// EntityRange returns all snapshots for one entity across features, for
// debugging and the snapshot inspection API.
func (s *PostgresStore) EntityRange(ctx context.Context, entityKey string, start, end time.Time) ([]domain.FeatureSnapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT entity_key, feature_name, bucket_start, value, event_count, run_id
		FROM feature_snapshots
		WHERE entity_key = $1
		  AND bucket_start >= $2
		  AND bucket_start < $3
		ORDER BY feature_name, bucket_start
	`, entityKey, start, end)
	if err != nil {
		return nil, fmt.Errorf("querying entity snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []domain.FeatureSnapshot
	for rows.Next() {
		var sn domain.FeatureSnapshot
		if err := rows.Scan(&sn.EntityKey, &sn.FeatureName, &sn.BucketStart, &sn.Value, &sn.EventCount, &sn.RunID); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		sn.BucketStart = sn.BucketStart.UTC()
		snaps = append(snaps, sn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshots: %w", err)
	}
	return snaps, nil
}
