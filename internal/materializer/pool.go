package materializer

import (
	"context"
	"log/slog"
	"sync"
)

// partitionResult is the outcome of materializing one entity partition.
type partitionResult struct {
	entity string
	// buckets written per feature name.
	buckets map[string]int
	err     error
}

// pool runs entity partitions on a fixed number of worker goroutines. Each
// partition is processed by exactly one worker, so no two workers ever write
// the same (entity, feature, bucket) key.
type pool struct {
	workers int
	logger  *slog.Logger
	work    func(ctx context.Context, entity string) partitionResult
}

func newPool(workers int, logger *slog.Logger, work func(ctx context.Context, entity string) partitionResult) *pool {
	return &pool{workers: workers, logger: logger, work: work}
}

// run feeds entities to the workers and returns the results channel. Workers
// stop picking up new partitions once ctx is cancelled; in-flight partitions
// run to completion so their atomic writes are never interrupted mid-batch.
func (p *pool) run(ctx context.Context, entities []string) <-chan partitionResult {
	jobs := make(chan string)
	results := make(chan partitionResult, p.workers)

	// Once a partition starts it runs on a non-cancellable context so its
	// atomic write completes even if the run is cancelled mid-flight.
	workCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for entity := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
					results <- p.work(workCtx, entity)
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, entity := range entities {
			select {
			case <-ctx.Done():
				return
			case jobs <- entity:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}
