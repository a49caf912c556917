// Package pit implements the point-in-time join engine: time-windowed
// aggregate evaluation over per-entity event timelines with a strict
// no-leakage cutoff at the observation timestamp.
package pit

import (
	"sort"
	"time"

	"github.com/Priya8975/feature-materializer/internal/domain"
)

// Timeline is the sorted, immutable event history of one entity. Once built
// it is never mutated, so concurrent readers need no locking.
//
// Events from every source an entity appears in share one timeline, so each
// field column tracks which events actually carry the field; evaluation
// ignores the rest rather than reading zero-filled slots.
type Timeline struct {
	entity  string
	ts      []int64 // unix micros, ascending
	fields  map[string][]float64
	present map[string][]bool
}

// TimelineSet indexes timelines by entity key.
type TimelineSet struct {
	byEntity map[string]*Timeline
}

// BuildTimelines groups events by entity and sorts each entity's history by
// timestamp. The input slice is not retained.
func BuildTimelines(events []domain.EventRecord) *TimelineSet {
	grouped := make(map[string][]domain.EventRecord)
	for _, ev := range events {
		grouped[ev.EntityKey] = append(grouped[ev.EntityKey], ev)
	}

	set := &TimelineSet{byEntity: make(map[string]*Timeline, len(grouped))}
	for entity, evs := range grouped {
		sort.Slice(evs, func(i, j int) bool {
			return evs[i].Timestamp.Before(evs[j].Timestamp)
		})

		tl := &Timeline{
			entity:  entity,
			ts:      make([]int64, len(evs)),
			fields:  make(map[string][]float64),
			present: make(map[string][]bool),
		}
		for i, ev := range evs {
			tl.ts[i] = ev.Timestamp.UnixMicro()
			for f, v := range ev.Fields {
				col, ok := tl.fields[f]
				if !ok {
					col = make([]float64, len(evs))
					tl.fields[f] = col
					tl.present[f] = make([]bool, len(evs))
				}
				col[i] = v
				tl.present[f][i] = true
			}
		}
		set.byEntity[entity] = tl
	}
	return set
}

// Get returns the timeline for an entity, or nil if the entity has no events.
func (s *TimelineSet) Get(entity string) *Timeline {
	return s.byEntity[entity]
}

// Entities returns all entity keys present in the set, sorted.
func (s *TimelineSet) Entities() []string {
	keys := make([]string, 0, len(s.byEntity))
	for k := range s.byEntity {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of entities in the set.
func (s *TimelineSet) Len() int {
	return len(s.byEntity)
}

// Entity returns the entity key this timeline belongs to.
func (t *Timeline) Entity() string {
	return t.entity
}

// Span returns the first and last event timestamps.
func (t *Timeline) Span() (time.Time, time.Time) {
	if len(t.ts) == 0 {
		return time.Time{}, time.Time{}
	}
	return time.UnixMicro(t.ts[0]).UTC(), time.UnixMicro(t.ts[len(t.ts)-1]).UTC()
}

// lowerBound returns the first index whose timestamp is >= tsMicro.
// Events strictly before tsMicro occupy indexes [0, lowerBound).
func (t *Timeline) lowerBound(tsMicro int64) int {
	return sort.Search(len(t.ts), func(i int) bool { return t.ts[i] >= tsMicro })
}
