package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// KeyType is the declared type of an entity key column.
type KeyType string

const (
	KeyInt32  KeyType = "int32"
	KeyInt64  KeyType = "int64"
	KeyString KeyType = "string"
)

// Aggregation is the combine function applied to events inside a window,
// or LATEST for point-in-time scalar features.
type Aggregation string

const (
	AggSum    Aggregation = "SUM"
	AggCount  Aggregation = "COUNT"
	AggMin    Aggregation = "MIN"
	AggMax    Aggregation = "MAX"
	AggLatest Aggregation = "LATEST"
)

// Transform is a parsed transform expression such as SUM(watch_time).
type Transform struct {
	Aggregation Aggregation `json:"aggregation"`
	Field       string      `json:"field"`
}

func (t Transform) String() string {
	return fmt.Sprintf("%s(%s)", t.Aggregation, t.Field)
}

var transformRe = regexp.MustCompile(`^([A-Za-z_]+)\(([A-Za-z0-9_]+)\)$`)

// ParseTransform parses an expression like "SUM(watch_time)" or
// "LATEST(signup_age_days)". The aggregation name is case-insensitive.
func ParseTransform(expr string) (Transform, error) {
	m := transformRe.FindStringSubmatch(strings.TrimSpace(expr))
	if m == nil {
		return Transform{}, fmt.Errorf("malformed transform expression %q", expr)
	}
	agg := Aggregation(strings.ToUpper(m[1]))
	switch agg {
	case AggSum, AggCount, AggMin, AggMax, AggLatest:
		return Transform{Aggregation: agg, Field: m[2]}, nil
	default:
		return Transform{}, fmt.Errorf("unknown aggregation %q in transform %q", m[1], expr)
	}
}

// FeatureSpec is a validated, immutable feature definition. A zero Window
// means the feature is a point-in-time scalar (LATEST-style); a non-zero
// Window must be a whole multiple of Interval.
type FeatureSpec struct {
	Name      string        `json:"name"`
	KeyType   KeyType       `json:"key_type"`
	Transform Transform     `json:"transform"`
	Window    time.Duration `json:"window,omitempty"`
	Interval  time.Duration `json:"interval,omitempty"`
}

// Windowed reports whether the feature is a time-windowed aggregate.
func (s FeatureSpec) Windowed() bool {
	return s.Window > 0
}

// SourceRef describes the dataset an anchor binds its features to.
type SourceRef struct {
	Name    string   `json:"name"`
	Path    string   `json:"path"`
	KeyType KeyType  `json:"key_type"`
	Fields  []string `json:"fields"`
}

// HasField reports whether the source schema carries the named value field.
func (s SourceRef) HasField(name string) bool {
	for _, f := range s.Fields {
		if f == name {
			return true
		}
	}
	return false
}

// Anchor groups features that share a single source dataset. Every
// FeatureSpec belongs to exactly one anchor.
type Anchor struct {
	Name     string    `json:"name"`
	Source   SourceRef `json:"source"`
	Features []string  `json:"features"`
}
