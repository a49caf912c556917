// Package registry holds validated feature specifications and anchor
// groupings. Registered definitions are immutable for the lifetime of a
// materialization run.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Priya8975/feature-materializer/internal/domain"
)

// Store persists registered definitions so re-registration can be checked
// against prior runs. A nil Store keeps the registry in-memory only.
type Store interface {
	LoadDefinitions(ctx context.Context) ([]domain.FeatureSpec, []domain.Anchor, error)
	SaveDefinitions(ctx context.Context, specs []domain.FeatureSpec, anchors []domain.Anchor) error
}

// RegisterOptions control conflict handling.
type RegisterOptions struct {
	// Override replaces a conflicting existing definition instead of
	// failing with a ConflictError.
	Override bool
}

// Registry validates and holds feature specs and anchors.
type Registry struct {
	mu      sync.RWMutex
	specs   map[string]domain.FeatureSpec
	anchors map[string]domain.Anchor
	// anchorOf maps each feature name to its owning anchor.
	anchorOf map[string]string

	store  Store
	logger *slog.Logger
}

func New(store Store, logger *slog.Logger) *Registry {
	return &Registry{
		specs:    make(map[string]domain.FeatureSpec),
		anchors:  make(map[string]domain.Anchor),
		anchorOf: make(map[string]string),
		store:    store,
		logger:   logger,
	}
}

// Open loads previously persisted definitions, if a store is configured.
func (r *Registry) Open(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	specs, anchors, err := r.store.LoadDefinitions(ctx)
	if err != nil {
		return fmt.Errorf("loading registry definitions: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range specs {
		r.specs[s.Name] = s
	}
	for _, a := range anchors {
		r.anchors[a.Name] = a
		for _, f := range a.Features {
			r.anchorOf[f] = a.Name
		}
	}
	return nil
}

// Register validates the batch and commits it atomically. Validation reports
// every violation found, not just the first. Re-registering an identical
// batch is a no-op; a changed spec under an existing name fails with a
// ConflictError unless opts.Override is set. No partial registry state
// survives a failed call.
func (r *Registry) Register(ctx context.Context, specs []domain.FeatureSpec, anchors []domain.Anchor, opts RegisterOptions) error {
	if err := validate(specs, anchors); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	changed := false
	for _, s := range specs {
		existing, ok := r.specs[s.Name]
		if !ok {
			changed = true
			continue
		}
		if existing == s {
			continue
		}
		if !opts.Override {
			return &domain.ConflictError{
				Name:   s.Name,
				Reason: fmt.Sprintf("registered as %s, submitted as %s", describe(existing), describe(s)),
			}
		}
		changed = true
	}
	for _, a := range anchors {
		existing, ok := r.anchors[a.Name]
		if !ok || !anchorsEqual(existing, a) {
			changed = true
		}
	}

	if !changed {
		r.logger.Info("registration is a no-op, definitions unchanged", "specs", len(specs))
		return nil
	}

	// Build the next state fully before touching the live maps.
	nextSpecs := make(map[string]domain.FeatureSpec, len(r.specs)+len(specs))
	for k, v := range r.specs {
		nextSpecs[k] = v
	}
	nextAnchors := make(map[string]domain.Anchor, len(r.anchors)+len(anchors))
	for k, v := range r.anchors {
		nextAnchors[k] = v
	}
	nextAnchorOf := make(map[string]string, len(r.anchorOf))
	for k, v := range r.anchorOf {
		nextAnchorOf[k] = v
	}
	for _, s := range specs {
		nextSpecs[s.Name] = s
	}
	for _, a := range anchors {
		nextAnchors[a.Name] = a
		for _, f := range a.Features {
			nextAnchorOf[f] = a.Name
		}
	}

	if r.store != nil {
		allSpecs := make([]domain.FeatureSpec, 0, len(nextSpecs))
		for _, s := range nextSpecs {
			allSpecs = append(allSpecs, s)
		}
		allAnchors := make([]domain.Anchor, 0, len(nextAnchors))
		for _, a := range nextAnchors {
			allAnchors = append(allAnchors, a)
		}
		if err := r.store.SaveDefinitions(ctx, allSpecs, allAnchors); err != nil {
			return fmt.Errorf("persisting registry definitions: %w", err)
		}
	}

	r.specs = nextSpecs
	r.anchors = nextAnchors
	r.anchorOf = nextAnchorOf

	r.logger.Info("features registered",
		"specs", len(specs),
		"anchors", len(anchors),
		"override", opts.Override,
	)
	return nil
}

// Spec returns a registered spec by name.
func (r *Registry) Spec(name string) (domain.FeatureSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.specs[name]
	return s, ok
}

// Specs resolves feature names to registered specs, failing on any unknown
// name. An empty names slice returns every registered spec.
func (r *Registry) Specs(names []string) ([]domain.FeatureSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(names) == 0 {
		out := make([]domain.FeatureSpec, 0, len(r.specs))
		for _, s := range r.specs {
			out = append(out, s)
		}
		return out, nil
	}

	out := make([]domain.FeatureSpec, 0, len(names))
	for _, name := range names {
		s, ok := r.specs[name]
		if !ok {
			return nil, fmt.Errorf("unknown feature %q", name)
		}
		out = append(out, s)
	}
	return out, nil
}

// AnchorFor returns the anchor owning the named feature.
func (r *Registry) AnchorFor(featureName string) (domain.Anchor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	anchorName, ok := r.anchorOf[featureName]
	if !ok {
		return domain.Anchor{}, false
	}
	a, ok := r.anchors[anchorName]
	return a, ok
}

// Anchors returns all registered anchors.
func (r *Registry) Anchors() []domain.Anchor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Anchor, 0, len(r.anchors))
	for _, a := range r.anchors {
		out = append(out, a)
	}
	return out
}

func describe(s domain.FeatureSpec) string {
	if s.Windowed() {
		return fmt.Sprintf("%s window=%s interval=%s", s.Transform, s.Window, s.Interval)
	}
	return s.Transform.String()
}

func anchorsEqual(a, b domain.Anchor) bool {
	if a.Name != b.Name || a.Source.Name != b.Source.Name ||
		a.Source.Path != b.Source.Path || a.Source.KeyType != b.Source.KeyType {
		return false
	}
	if len(a.Source.Fields) != len(b.Source.Fields) || len(a.Features) != len(b.Features) {
		return false
	}
	for i := range a.Source.Fields {
		if a.Source.Fields[i] != b.Source.Fields[i] {
			return false
		}
	}
	for i := range a.Features {
		if a.Features[i] != b.Features[i] {
			return false
		}
	}
	return true
}
