package policy

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	labelerotel "github.com/ghelleks/email-labeler-agent-sub001/internal/otel"
)

var tracer = labelerotel.Tracer("github.com/ghelleks/email-labeler-agent-sub001/internal/policy")

// Load reads and validates a labeler.policy.yaml file.
// The content is schema-validated before unmarshalling, then checked against
// the business rules the classifier depends on (closed set, valid fallback).
func Load(ctx context.Context, path string) (*Policy, error) {
	_, span := tracer.Start(ctx, "policy.load")
	defer span.End()

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file %s: %w", path, err)
	}

	return Parse(content)
}

// Parse validates and unmarshals policy YAML content.
func Parse(content []byte) (*Policy, error) {
	if err := ValidateSchema(content); err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}

	var pol Policy
	if err := yaml.Unmarshal(content, &pol); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	if err := pol.validate(); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}

	return &pol, nil
}

func (p *Policy) validate() error {
	if p.Instructions == "" {
		return fmt.Errorf("instructions must not be empty")
	}
	if len(p.Categories) < 2 {
		return fmt.Errorf("at least two categories are required, got %d", len(p.Categories))
	}
	seen := make(map[string]bool, len(p.Categories))
	for i := range p.Categories {
		name := p.Categories[i].Name
		if name == "" {
			return fmt.Errorf("category %d has no name", i)
		}
		if seen[name] {
			return fmt.Errorf("duplicate category %q", name)
		}
		seen[name] = true
	}
	if p.Fallback == "" {
		return fmt.Errorf("fallback category must be set")
	}
	if !p.ValidCategory(p.Fallback) {
		return fmt.Errorf("fallback %q is not a member of the category set", p.Fallback)
	}
	if p.Knowledge != nil {
		for cat := range p.Knowledge.PerCategory {
			if !p.ValidCategory(cat) {
				return fmt.Errorf("knowledge ref for unknown category %q", cat)
			}
		}
	}
	return nil
}
