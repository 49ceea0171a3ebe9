// Package policy defines the classification policy: the closed category set,
// the classifier instructions, and knowledge references. The category set is
// deliberately policy data, not code: adding or removing a category is an
// edit to the policy YAML.
package policy

// Policy is a parsed labeler.policy.yaml.
type Policy struct {
	Name         string     `yaml:"name"`
	VersionTag   string     `yaml:"version"`
	Instructions string     `yaml:"instructions"`
	Fallback     string     `yaml:"fallback"`
	Categories   []Category `yaml:"categories"`
	Knowledge    *Knowledge `yaml:"knowledge,omitempty"`
}

// Category is one member of the closed, mutually exclusive label set.
type Category struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Knowledge holds references to instructional documents that are injected
// into the classification prompt. Refs are resolved by a knowledge.Provider;
// an unresolvable ref degrades to an absent knowledge section.
type Knowledge struct {
	Global      string            `yaml:"global,omitempty"`
	PerCategory map[string]string `yaml:"per_category,omitempty"`
}

// CategoryNames returns the category names in declaration order.
func (p *Policy) CategoryNames() []string {
	names := make([]string, len(p.Categories))
	for i := range p.Categories {
		names[i] = p.Categories[i].Name
	}
	return names
}

// ValidCategory reports whether name is a member of the closed category set.
func (p *Policy) ValidCategory(name string) bool {
	for i := range p.Categories {
		if p.Categories[i].Name == name {
			return true
		}
	}
	return false
}

// CategoryRef returns the knowledge ref for a category, or "".
func (p *Policy) CategoryRef(name string) string {
	if p.Knowledge == nil {
		return ""
	}
	return p.Knowledge.PerCategory[name]
}

// GlobalRef returns the global knowledge ref, or "".
func (p *Policy) GlobalRef() string {
	if p.Knowledge == nil {
		return ""
	}
	return p.Knowledge.Global
}
