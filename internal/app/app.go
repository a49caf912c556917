// Package app wires the engine together: an explicitly constructed context
// holding the registry and store handles, opened at start and closed at the
// end of a run instead of living as ambient global state.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Priya8975/feature-materializer/internal/config"
	"github.com/Priya8975/feature-materializer/internal/domain"
	"github.com/Priya8975/feature-materializer/internal/materializer"
	"github.com/Priya8975/feature-materializer/internal/online"
	"github.com/Priya8975/feature-materializer/internal/pit"
	"github.com/Priya8975/feature-materializer/internal/registry"
	"github.com/Priya8975/feature-materializer/internal/source"
	"github.com/Priya8975/feature-materializer/internal/store"
)

// App holds the engine's long-lived handles.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *registry.Registry
	Offline  *store.PostgresStore
	Online   *store.RedisStore
	Reader   *source.Reader
}

// Options toggle which collaborators an App opens. Commands that never touch
// a store skip its connection entirely.
type Options struct {
	NeedOffline bool
	NeedOnline  bool
	// MigrationsDir is applied to the offline store when non-empty.
	MigrationsDir string
}

// Open connects the configured stores, applies migrations and loads
// persisted registry definitions.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	a := &App{
		Config: cfg,
		Logger: logger,
		Reader: source.NewReader(cfg.SourceDir, logger),
	}

	if opts.NeedOffline {
		if cfg.OfflineStoreURL == "" {
			return nil, fmt.Errorf("offline store URL is required (offline_store_url / DATABASE_URL)")
		}
		pg, err := store.NewPostgres(ctx, cfg.OfflineStoreURL)
		if err != nil {
			return nil, fmt.Errorf("opening offline store: %w", err)
		}
		a.Offline = pg
		logger.Info("connected to offline store")

		if opts.MigrationsDir != "" {
			if err := pg.RunMigrations(ctx, opts.MigrationsDir); err != nil {
				a.Close()
				return nil, fmt.Errorf("running migrations: %w", err)
			}
			logger.Info("offline store migrations applied")
		}
	}

	if opts.NeedOnline {
		if cfg.OnlineStoreURL == "" {
			a.Close()
			return nil, fmt.Errorf("online store URL is required (online_store_url / REDIS_URL)")
		}
		rs, err := store.NewRedis(ctx, cfg.OnlineStoreURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("opening online store: %w", err)
		}
		a.Online = rs
		logger.Info("connected to online store")
	}

	var regStore registry.Store
	if a.Offline != nil {
		regStore = a.Offline
	}
	a.Registry = registry.New(regStore, logger)
	if err := a.Registry.Open(ctx); err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

// Close releases all store handles.
func (a *App) Close() {
	if a.Offline != nil {
		a.Offline.Close()
	}
	if a.Online != nil {
		a.Online.Close()
	}
}

// RegisterFromFile loads the declarative definitions file and registers it.
func (a *App) RegisterFromFile(ctx context.Context, path string, override bool) error {
	specs, anchors, err := registry.LoadDefinitions(path)
	if err != nil {
		return err
	}
	return a.Registry.Register(ctx, specs, anchors, registry.RegisterOptions{Override: override})
}

// LoadTimelines reads the source datasets behind the given specs and builds
// the immutable per-entity timelines materialization works from.
func (a *App) LoadTimelines(ctx context.Context, specs []domain.FeatureSpec) (*pit.TimelineSet, error) {
	seen := make(map[string]bool)
	var events []domain.EventRecord
	for _, spec := range specs {
		anchor, ok := a.Registry.AnchorFor(spec.Name)
		if !ok {
			return nil, fmt.Errorf("feature %q has no registered anchor", spec.Name)
		}
		if seen[anchor.Source.Path] {
			continue
		}
		seen[anchor.Source.Path] = true

		evs, err := a.Reader.Read(ctx, anchor.Source.Path)
		if err != nil {
			return nil, err
		}
		events = append(events, evs...)
	}
	return pit.BuildTimelines(events), nil
}

// Materialize bulk-computes offline snapshots for the named features over
// [start, end). The report is returned even on partial failure.
func (a *App) Materialize(ctx context.Context, featureNames []string, start, end time.Time) (*materializer.Report, error) {
	specs, err := a.Registry.Specs(featureNames)
	if err != nil {
		return nil, err
	}
	timelines, err := a.LoadTimelines(ctx, specs)
	if err != nil {
		return nil, err
	}

	m := materializer.New(a.Offline, a.Config.NumWorkers, a.Logger)
	return m.Materialize(ctx, specs, timelines, start, end)
}

// SyncOnline pushes the latest value of each named feature per entity into
// the online store.
func (a *App) SyncOnline(ctx context.Context, featureNames []string, now time.Time) (*online.SyncReport, error) {
	specs, err := a.Registry.Specs(featureNames)
	if err != nil {
		return nil, err
	}
	timelines, err := a.LoadTimelines(ctx, specs)
	if err != nil {
		return nil, err
	}

	syncer := online.NewSyncer(a.Online.Client(), a.Config.NumWorkers, a.Logger)
	return syncer.Sync(ctx, specs, timelines, now)
}

// TrainingSet runs the point-in-time join of the observation set against the
// named features, reading materialized snapshots from the offline store.
func (a *App) TrainingSet(ctx context.Context, featureNames []string, obs []domain.ObservationRow, start, end time.Time) ([]domain.TrainingRow, error) {
	specs, err := a.Registry.Specs(featureNames)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}
	snaps, err := a.Offline.RangeQuery(ctx, names, start, end)
	if err != nil {
		return nil, err
	}

	engine := pit.NewEngine(a.Config.NumWorkers, a.Logger)
	return engine.JoinSeries(ctx, specs, pit.NewSeriesSet(snaps), obs)
}
