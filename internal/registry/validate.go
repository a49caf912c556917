package registry

import (
	"fmt"

	"github.com/Priya8975/feature-materializer/internal/domain"
)

// validate checks a registration batch and collects every violation before
// returning, so one call surfaces all configuration mistakes.
func validate(specs []domain.FeatureSpec, anchors []domain.Anchor) error {
	var violations []string

	seen := make(map[string]bool, len(specs))
	byName := make(map[string]domain.FeatureSpec, len(specs))
	for _, s := range specs {
		if s.Name == "" {
			violations = append(violations, "feature with empty name")
			continue
		}
		if seen[s.Name] {
			violations = append(violations, fmt.Sprintf("duplicate feature name %q", s.Name))
			continue
		}
		seen[s.Name] = true
		byName[s.Name] = s

		switch s.KeyType {
		case domain.KeyInt32, domain.KeyInt64, domain.KeyString:
		default:
			violations = append(violations, fmt.Sprintf("feature %q: unknown key type %q", s.Name, s.KeyType))
		}

		if s.Transform.Field == "" {
			violations = append(violations, fmt.Sprintf("feature %q: transform has no field", s.Name))
		}

		if s.Windowed() {
			if s.Interval <= 0 {
				violations = append(violations, fmt.Sprintf("feature %q: window %s requires a positive aggregation interval", s.Name, s.Window))
			} else if s.Window%s.Interval != 0 {
				violations = append(violations, fmt.Sprintf("feature %q: window %s is not a whole number of %s intervals", s.Name, s.Window, s.Interval))
			}
			if s.Transform.Aggregation == domain.AggLatest {
				violations = append(violations, fmt.Sprintf("feature %q: LATEST cannot be windowed", s.Name))
			}
		} else {
			if s.Interval != 0 {
				violations = append(violations, fmt.Sprintf("feature %q: aggregation interval without a window", s.Name))
			}
			switch s.Transform.Aggregation {
			case domain.AggLatest:
			default:
				violations = append(violations, fmt.Sprintf("feature %q: %s requires a window", s.Name, s.Transform.Aggregation))
			}
		}
	}

	// Every spec belongs to exactly one anchor; anchor schemas must carry
	// the fields and key types their features use.
	anchored := make(map[string]string, len(specs))
	for _, a := range anchors {
		if a.Name == "" {
			violations = append(violations, "anchor with empty name")
			continue
		}
		for _, fname := range a.Features {
			s, ok := byName[fname]
			if !ok {
				violations = append(violations, fmt.Sprintf("anchor %q references unknown feature %q", a.Name, fname))
				continue
			}
			if prev, dup := anchored[fname]; dup {
				violations = append(violations, fmt.Sprintf("feature %q belongs to both anchors %q and %q", fname, prev, a.Name))
				continue
			}
			anchored[fname] = a.Name

			if s.KeyType != a.Source.KeyType {
				violations = append(violations, fmt.Sprintf(
					"feature %q: key type %s does not match anchor %q source key type %s",
					fname, s.KeyType, a.Name, a.Source.KeyType))
			}
			if !a.Source.HasField(s.Transform.Field) && s.Transform.Aggregation != domain.AggCount {
				violations = append(violations, fmt.Sprintf(
					"feature %q: field %q not present in anchor %q source schema",
					fname, s.Transform.Field, a.Name))
			}
		}
	}
	for _, s := range specs {
		if s.Name == "" {
			continue
		}
		if _, ok := anchored[s.Name]; !ok {
			violations = append(violations, fmt.Sprintf("feature %q is not bound to any anchor", s.Name))
		}
	}

	if len(violations) > 0 {
		return &domain.ValidationError{Violations: violations}
	}
	return nil
}
