package registry

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Priya8975/feature-materializer/internal/domain"
)

// Declarative feature definition file. The surface syntax is configuration
// data only; all checking happens at registration time.
type definitionsFile struct {
	Anchors []anchorDef `yaml:"anchors"`
}

type anchorDef struct {
	Name    string       `yaml:"name"`
	Source  sourceDef    `yaml:"source"`
	Feature []featureDef `yaml:"features"`
}

type sourceDef struct {
	Name    string   `yaml:"name"`
	Path    string   `yaml:"path"`
	KeyType string   `yaml:"key_type"`
	Fields  []string `yaml:"fields"`
}

type featureDef struct {
	Name      string   `yaml:"name"`
	Transform string   `yaml:"transform"`
	Window    duration `yaml:"window"`
	Interval  duration `yaml:"interval"`
}

// duration accepts Go duration syntax plus a day suffix ("30d"), which the
// windowed feature definitions use.
type duration time.Duration

func (d *duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return fmt.Errorf("malformed duration %q", s)
		}
		*d = duration(time.Duration(n) * 24 * time.Hour)
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("malformed duration %q: %w", s, err)
	}
	*d = duration(v)
	return nil
}

// LoadDefinitions parses a declarative feature definition file into specs and
// anchors ready for Register. Transform expressions must parse; everything
// else is left to registration-time validation.
func LoadDefinitions(path string) ([]domain.FeatureSpec, []domain.Anchor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading feature definitions: %w", err)
	}

	var file definitionsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, nil, fmt.Errorf("parsing feature definitions: %w", err)
	}

	var specs []domain.FeatureSpec
	var anchors []domain.Anchor
	for _, a := range file.Anchors {
		anchor := domain.Anchor{
			Name: a.Name,
			Source: domain.SourceRef{
				Name:    a.Source.Name,
				Path:    a.Source.Path,
				KeyType: domain.KeyType(a.Source.KeyType),
				Fields:  a.Source.Fields,
			},
		}
		for _, f := range a.Feature {
			transform, err := domain.ParseTransform(f.Transform)
			if err != nil {
				return nil, nil, fmt.Errorf("feature %q: %w", f.Name, err)
			}
			specs = append(specs, domain.FeatureSpec{
				Name:      f.Name,
				KeyType:   anchor.Source.KeyType,
				Transform: transform,
				Window:    time.Duration(f.Window),
				Interval:  time.Duration(f.Interval),
			})
			anchor.Features = append(anchor.Features, f.Name)
		}
		anchors = append(anchors, anchor)
	}
	return specs, anchors, nil
}
