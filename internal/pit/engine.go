package pit

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Priya8975/feature-materializer/internal/domain"
)

// Engine joins feature values to labeled observation rows. Rows are
// independent and processed in parallel; each row reads only immutable
// timeline or series snapshots.
type Engine struct {
	workers int
	logger  *slog.Logger
}

func NewEngine(workers int, logger *slog.Logger) *Engine {
	if workers < 1 {
		workers = 1
	}
	return &Engine{workers: workers, logger: logger}
}

// Join produces one training row per observation, attaching for each spec the
// value visible strictly before the observation timestamp. Entities with no
// qualifying events get a nil feature value, never an error.
func (e *Engine) Join(ctx context.Context, specs []domain.FeatureSpec, timelines *TimelineSet, obs []domain.ObservationRow) ([]domain.TrainingRow, error) {
	rows := make([]domain.TrainingRow, len(obs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i := range obs {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			o := obs[i]
			tl := timelines.Get(o.EntityKey)

			features := make(map[string]*float64, len(specs))
			for _, spec := range specs {
				features[spec.Name] = Evaluate(tl, spec, o.Timestamp)
			}
			rows[i] = domain.TrainingRow{
				EntityKey: o.EntityKey,
				Label:     o.Label,
				Timestamp: o.Timestamp,
				Features:  features,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	e.logger.Info("point-in-time join complete",
		"observations", len(obs),
		"features", len(specs),
	)
	return rows, nil
}

// JoinSeries is Join over materialized snapshot series instead of raw event
// timelines, for building training data from offline materializer output.
func (e *Engine) JoinSeries(ctx context.Context, specs []domain.FeatureSpec, set *SeriesSet, obs []domain.ObservationRow) ([]domain.TrainingRow, error) {
	rows := make([]domain.TrainingRow, len(obs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i := range obs {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			o := obs[i]

			features := make(map[string]*float64, len(specs))
			for _, spec := range specs {
				features[spec.Name] = set.Evaluate(o.EntityKey, spec, o.Timestamp)
			}
			rows[i] = domain.TrainingRow{
				EntityKey: o.EntityKey,
				Label:     o.Label,
				Timestamp: o.Timestamp,
				Features:  features,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}
