package online

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Lookup serves latest-value feature reads at inference time. Lookups are
// plain non-blocking reads: they may race with a concurrent sync and observe
// pre- or post-sync values per key, but never a torn value.
type Lookup struct {
	client *redis.Client
	logger *slog.Logger
}

func NewLookup(client *redis.Client, logger *slog.Logger) *Lookup {
	return &Lookup{client: client, logger: logger}
}

// Get returns the latest known value per requested feature for an entity.
// Features never synced for the entity map to nil, never to an error.
func (l *Lookup) Get(ctx context.Context, entityKey string, featureNames []string) (map[string]*float64, error) {
	if len(featureNames) == 0 {
		return map[string]*float64{}, nil
	}
	keys := make([]string, len(featureNames))
	for i, name := range featureNames {
		keys[i] = featureKey(entityKey, name)
	}

	raw, err := l.client.MGet(ctx, keys...).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("online lookup for %q: %w", entityKey, err)
	}

	out := make(map[string]*float64, len(featureNames))
	for i, name := range featureNames {
		out[name] = nil
		if i >= len(raw) || raw[i] == nil {
			continue
		}
		str, ok := raw[i].(string)
		if !ok {
			l.logger.Warn("unexpected online value type", "key", keys[i])
			continue
		}
		v, err := decodeValue(str)
		if err != nil {
			l.logger.Warn("corrupt online value", "key", keys[i], "error", err)
			continue
		}
		out[name] = &v
	}
	return out, nil
}
