// Package online pushes latest per-entity feature snapshots into the
// low-latency store and serves lookup reads from it.
package online

import (
	"fmt"
	"strconv"
)

// featureKey is the deterministic online key for one (entity, feature) pair.
func featureKey(entityKey, featureName string) string {
	return fmt.Sprintf("feat:%s:%s", entityKey, featureName)
}

func encodeValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func decodeValue(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}
