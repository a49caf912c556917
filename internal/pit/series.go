package pit

import (
	"sort"
	"time"

	"github.com/Priya8975/feature-materializer/internal/domain"
)

// series is the sorted bucket history of one (entity, feature) pair loaded
// from the offline store. prefix carries running sums so SUM/COUNT windows
// resolve with two binary searches.
type series struct {
	starts []int64 // bucket starts, unix micros, ascending
	values []float64
	prefix []float64
}

// SeriesSet indexes materialized snapshot series by entity and feature.
// It is immutable after construction.
type SeriesSet struct {
	byEntity map[string]map[string]*series
}

// NewSeriesSet builds a SeriesSet from offline snapshots.
func NewSeriesSet(snaps []domain.FeatureSnapshot) *SeriesSet {
	type pair struct{ entity, feature string }
	grouped := make(map[pair][]domain.FeatureSnapshot)
	for _, sn := range snaps {
		k := pair{sn.EntityKey, sn.FeatureName}
		grouped[k] = append(grouped[k], sn)
	}

	set := &SeriesSet{byEntity: make(map[string]map[string]*series)}
	for k, group := range grouped {
		sort.Slice(group, func(i, j int) bool {
			return group[i].BucketStart.Before(group[j].BucketStart)
		})

		s := &series{
			starts: make([]int64, len(group)),
			values: make([]float64, len(group)),
			prefix: make([]float64, len(group)+1),
		}
		for i, sn := range group {
			s.starts[i] = sn.BucketStart.UnixMicro()
			s.values[i] = sn.Value
			s.prefix[i+1] = s.prefix[i] + sn.Value
		}

		features, ok := set.byEntity[k.entity]
		if !ok {
			features = make(map[string]*series)
			set.byEntity[k.entity] = features
		}
		features[k.feature] = s
	}
	return set
}

// Evaluate resolves a feature value for an entity as visible strictly before
// asOf, combining only snapshot buckets fully contained in the window.
// Returns nil when no qualifying buckets exist.
func (set *SeriesSet) Evaluate(entity string, spec domain.FeatureSpec, asOf time.Time) *float64 {
	features := set.byEntity[entity]
	if features == nil {
		return nil
	}
	s := features[spec.Name]
	if s == nil {
		return nil
	}

	if !spec.Windowed() {
		// Scalar snapshots are written per ScalarSnapshotInterval with the
		// value as of each bucket's close; the latest fully closed bucket
		// before asOf is the visible value.
		iv := ScalarSnapshotInterval.Microseconds()
		idx := s.lowerBound(asOf.UnixMicro()-iv+1) - 1
		if idx < 0 {
			return nil
		}
		v := s.values[idx]
		return &v
	}

	lo, hi, ok := windowBounds(spec, asOf)
	if !ok {
		return nil
	}
	i := s.lowerBound(lo)
	j := s.lowerBound(hi)
	if i >= j {
		return nil
	}

	var v float64
	switch spec.Transform.Aggregation {
	case domain.AggSum, domain.AggCount:
		v = s.prefix[j] - s.prefix[i]
	case domain.AggMin:
		v = s.values[i]
		for k := i + 1; k < j; k++ {
			if s.values[k] < v {
				v = s.values[k]
			}
		}
	case domain.AggMax:
		v = s.values[i]
		for k := i + 1; k < j; k++ {
			if s.values[k] > v {
				v = s.values[k]
			}
		}
	default:
		v = s.values[j-1]
	}
	return &v
}

func (s *series) lowerBound(tsMicro int64) int {
	return sort.Search(len(s.starts), func(i int) bool { return s.starts[i] >= tsMicro })
}
