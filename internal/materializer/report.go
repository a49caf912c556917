package materializer

import (
	"sort"
	"time"

	"github.com/Priya8975/feature-materializer/internal/domain"
)

// FeatureReport counts bucket writes for one feature across the run.
type FeatureReport struct {
	BucketsWritten int      `json:"buckets_written"`
	BucketsFailed  int      `json:"buckets_failed"`
	FailedEntities []string `json:"failed_entities,omitempty"`
}

// Report is the machine-readable outcome of a materialization run. The run
// always ends with one, never a silent partial success.
type Report struct {
	RunID string    `json:"run_id"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	Features map[string]*FeatureReport `json:"features"`

	EntitiesSucceeded int `json:"entities_succeeded"`
	EntitiesFailed    int `json:"entities_failed"`

	failedEntities []string
}

func NewReport(runID string, start, end time.Time, specs []domain.FeatureSpec) *Report {
	r := &Report{
		RunID:    runID,
		Start:    start,
		End:      end,
		Features: make(map[string]*FeatureReport, len(specs)),
	}
	for _, s := range specs {
		r.Features[s.Name] = &FeatureReport{}
	}
	return r
}

func (r *Report) merge(res partitionResult) {
	if res.err != nil {
		r.EntitiesFailed++
		r.failedEntities = append(r.failedEntities, res.entity)
		for feature, n := range res.buckets {
			fr := r.Features[feature]
			fr.BucketsFailed += n
			if n > 0 {
				fr.FailedEntities = append(fr.FailedEntities, res.entity)
			}
		}
		return
	}
	r.EntitiesSucceeded++
	for feature, n := range res.buckets {
		r.Features[feature].BucketsWritten += n
	}
}

// Err returns a PartialWriteError when any partition failed, nil otherwise.
func (r *Report) Err() error {
	if r.EntitiesFailed == 0 {
		return nil
	}
	failed := make([]string, len(r.failedEntities))
	copy(failed, r.failedEntities)
	sort.Strings(failed)
	return &domain.PartialWriteError{
		Succeeded:  r.EntitiesSucceeded,
		Failed:     r.EntitiesFailed,
		FailedKeys: failed,
	}
}
