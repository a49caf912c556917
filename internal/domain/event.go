package domain

import (
	"time"
)

// EventRecord is one immutable fact read from a source segment: an entity
// key, an event timestamp and one or more numeric value fields.
type EventRecord struct {
	EntityKey string             `json:"entity_key"`
	Timestamp time.Time          `json:"event_timestamp"`
	Fields    map[string]float64 `json:"fields"`
}

// ObservationRow is one labeled training example: features are joined to it
// using only events strictly earlier than Timestamp.
type ObservationRow struct {
	EntityKey string    `json:"entity_key"`
	Label     float64   `json:"label"`
	Timestamp time.Time `json:"observation_timestamp"`
}

// TrainingRow is one observation with its point-in-time feature values
// attached. A nil value means no qualifying data existed for that feature.
type TrainingRow struct {
	EntityKey string              `json:"entity_key"`
	Label     float64             `json:"label"`
	Timestamp time.Time           `json:"observation_timestamp"`
	Features  map[string]*float64 `json:"features"`
}

// FeatureSnapshot is one materialized aggregate: the value of a feature for
// an entity over the bucket starting at BucketStart. Offline rows are
// versioned by RunID; online the latest snapshot per (entity, feature) wins.
type FeatureSnapshot struct {
	EntityKey   string    `json:"entity_key"`
	FeatureName string    `json:"feature_name"`
	BucketStart time.Time `json:"bucket_start"`
	Value       float64   `json:"value"`
	EventCount  int64     `json:"event_count"`
	RunID       string    `json:"run_id"`
}
