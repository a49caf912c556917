package pit

import (
	"time"

	"github.com/Priya8975/feature-materializer/internal/domain"
)

// ScalarSnapshotInterval is the bucket granularity used when materializing
// point-in-time scalar features offline, which carry no interval of their own.
const ScalarSnapshotInterval = 24 * time.Hour

// alignDown returns the largest multiple of interval <= ts.
func alignDown(ts, interval int64) int64 {
	r := ts % interval
	if r < 0 {
		r += interval
	}
	return ts - r
}

// alignUp returns the smallest multiple of interval >= ts.
func alignUp(ts, interval int64) int64 {
	down := alignDown(ts, interval)
	if down == ts {
		return ts
	}
	return down + interval
}

// windowBounds returns the half-open event span [lo, hi) covering exactly the
// buckets fully contained in [asOf-window, asOf). Because both bounds are
// bucket-aligned, an event lands in the span iff its bucket qualifies, and
// hi <= asOf enforces the strict leakage cutoff.
func windowBounds(spec domain.FeatureSpec, asOf time.Time) (lo, hi int64, ok bool) {
	interval := spec.Interval.Microseconds()
	window := spec.Window.Microseconds()
	at := asOf.UnixMicro()

	lo = alignUp(at-window, interval)
	hi = alignDown(at, interval)
	return lo, hi, lo < hi
}

// Evaluate computes the value of a feature for one timeline as visible
// strictly before asOf. It returns nil when no qualifying events exist.
//
// Windowed aggregates combine only events in buckets fully contained in
// [asOf-window, asOf); an event at exactly asOf is excluded. Scalar features
// take the value of the entity's latest event strictly before asOf.
func Evaluate(tl *Timeline, spec domain.FeatureSpec, asOf time.Time) *float64 {
	if tl == nil {
		return nil
	}
	if !spec.Windowed() {
		return evaluateScalar(tl, spec, asOf.UnixMicro())
	}

	lo, hi, ok := windowBounds(spec, asOf)
	if !ok {
		return nil
	}
	i := tl.lowerBound(lo)
	j := tl.lowerBound(hi)
	if i >= j {
		return nil
	}
	v, n := combine(spec.Transform, tl, i, j)
	if n == 0 {
		return nil
	}
	return &v
}

func evaluateScalar(tl *Timeline, spec domain.FeatureSpec, atMicro int64) *float64 {
	col, ok := tl.fields[spec.Transform.Field]
	if !ok {
		return nil
	}
	pres := tl.present[spec.Transform.Field]
	for idx := tl.lowerBound(atMicro) - 1; idx >= 0; idx-- {
		if pres[idx] {
			v := col[idx]
			return &v
		}
	}
	return nil
}

// combine folds the field values of events at indexes [i, j) of the timeline.
// Events that do not carry the field are skipped; n reports how many events
// contributed. n == 0 means no qualifying event carried the field.
func combine(t domain.Transform, tl *Timeline, i, j int) (v float64, n int) {
	col := tl.fields[t.Field]
	if col == nil {
		return 0, 0
	}
	pres := tl.present[t.Field]

	for k := i; k < j; k++ {
		if !pres[k] {
			continue
		}
		n++
		switch t.Aggregation {
		case domain.AggCount:
			v = float64(n)
		case domain.AggSum:
			v += col[k]
		case domain.AggMin:
			if n == 1 || col[k] < v {
				v = col[k]
			}
		case domain.AggMax:
			if n == 1 || col[k] > v {
				v = col[k]
			}
		case domain.AggLatest:
			v = col[k]
		}
	}
	return v, n
}

// Bucket is one materialized aggregate interval of a windowed feature, or
// one snapshot interval of a scalar feature.
type Bucket struct {
	Start      time.Time
	Value      float64
	EventCount int64
}

// BucketAggregates computes the per-bucket aggregates of a feature for one
// timeline over the half-open range [start, end). Only buckets fully
// contained in the range and holding at least one event carrying the field
// (or, for scalar features, preceded by one) are emitted.
func BucketAggregates(tl *Timeline, spec domain.FeatureSpec, start, end time.Time) []Bucket {
	interval := spec.Interval
	if !spec.Windowed() {
		interval = ScalarSnapshotInterval
	}
	iv := interval.Microseconds()
	lo := alignUp(start.UnixMicro(), iv)
	hi := alignDown(end.UnixMicro(), iv)
	if lo >= hi {
		return nil
	}

	var out []Bucket
	for b := lo; b < hi; b += iv {
		bucketEnd := b + iv

		if !spec.Windowed() {
			// Scalar snapshot: value as of the bucket's close.
			v := evaluateScalar(tl, spec, bucketEnd)
			if v == nil {
				continue
			}
			out = append(out, Bucket{Start: time.UnixMicro(b).UTC(), Value: *v, EventCount: 1})
			continue
		}

		i := tl.lowerBound(b)
		j := tl.lowerBound(bucketEnd)
		if i >= j {
			continue
		}
		v, n := combine(spec.Transform, tl, i, j)
		if n == 0 {
			continue
		}
		out = append(out, Bucket{
			Start:      time.UnixMicro(b).UTC(),
			Value:      v,
			EventCount: int64(n),
		})
	}
	return out
}
