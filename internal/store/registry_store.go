package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Priya8975/feature-materializer/internal/domain"
)

// LoadDefinitions reads all persisted feature specs and anchors.
func (s *PostgresStore) LoadDefinitions(ctx context.Context) ([]domain.FeatureSpec, []domain.Anchor, error) {
	rows, err := s.pool.Query(ctx, `SELECT definition FROM feature_specs`)
	if err != nil {
		return nil, nil, fmt.Errorf("querying feature specs: %w", err)
	}
	defer rows.Close()

	var specs []domain.FeatureSpec
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, nil, fmt.Errorf("scanning feature spec: %w", err)
		}
		var spec domain.FeatureSpec
		if err := json.Unmarshal(raw, &spec); err != nil {
			return nil, nil, fmt.Errorf("decoding feature spec: %w", err)
		}
		specs = append(specs, spec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterating feature specs: %w", err)
	}

	arows, err := s.pool.Query(ctx, `SELECT definition FROM anchors`)
	if err != nil {
		return nil, nil, fmt.Errorf("querying anchors: %w", err)
	}
	defer arows.Close()

	var anchors []domain.Anchor
	for arows.Next() {
		var raw []byte
		if err := arows.Scan(&raw); err != nil {
			return nil, nil, fmt.Errorf("scanning anchor: %w", err)
		}
		var anchor domain.Anchor
		if err := json.Unmarshal(raw, &anchor); err != nil {
			return nil, nil, fmt.Errorf("decoding anchor: %w", err)
		}
		anchors = append(anchors, anchor)
	}
	if err := arows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterating anchors: %w", err)
	}

	return specs, anchors, nil
}

// SaveDefinitions persists the full registry state in one transaction, so a
// failed registration leaves no partial state behind.
func (s *PostgresStore) SaveDefinitions(ctx context.Context, specs []domain.FeatureSpec, anchors []domain.Anchor) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning registry tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, spec := range specs {
		raw, err := json.Marshal(spec)
		if err != nil {
			return fmt.Errorf("encoding feature spec %q: %w", spec.Name, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO feature_specs (name, definition)
			VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET definition = EXCLUDED.definition, updated_at = NOW()
		`, spec.Name, raw)
		if err != nil {
			return fmt.Errorf("upserting feature spec %q: %w", spec.Name, err)
		}
	}

	for _, anchor := range anchors {
		raw, err := json.Marshal(anchor)
		if err != nil {
			return fmt.Errorf("encoding anchor %q: %w", anchor.Name, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO anchors (name, definition)
			VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET definition = EXCLUDED.definition, updated_at = NOW()
		`, anchor.Name, raw)
		if err != nil {
			return fmt.Errorf("upserting anchor %q: %w", anchor.Name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing registry tx: %w", err)
	}
	return nil
}
