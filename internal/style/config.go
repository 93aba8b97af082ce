package style

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/wegman-software/osm-areas-go/internal/element"
)

// Config selects which relations, members and closed ways become areas
type Config struct {
	// Relations picks the relations that are assembled
	Relations RelationConfig `yaml:"relations"`
	// Members restricts which way members are collected
	Members MemberConfig `yaml:"members,omitempty"`
	// Areas filters closed ways that are not members of any relation
	Areas *FilterConfig `yaml:"areas,omitempty"`
	// RepairGaps overrides the command line setting when present
	RepairGaps *bool `yaml:"repair_gaps,omitempty"`
}

// RelationConfig selects relations by their type tag and optional tag rules
type RelationConfig struct {
	Types  []string      `yaml:"types"`
	Filter *FilterConfig `yaml:"filter,omitempty"`
}

// MemberConfig restricts member roles. Empty means every role.
type MemberConfig struct {
	Roles []string `yaml:"roles,omitempty"`
}

// FilterConfig defines tag filtering rules
type FilterConfig struct {
	// Include specifies which tag keys/values to include
	// If empty, all tags are included (no filtering)
	Include map[string][]string `yaml:"include,omitempty"`
	// Exclude specifies which tag keys/values to exclude
	// Applied after include rules
	Exclude map[string][]string `yaml:"exclude,omitempty"`
	// RequireAny specifies that at least one of these tags must be present
	RequireAny []string `yaml:"require_any,omitempty"`
}

// DefaultConfig assembles multipolygon and boundary relations and every
// closed way not tagged area=no
func DefaultConfig() *Config {
	return &Config{
		Relations: RelationConfig{Types: []string{"multipolygon", "boundary"}},
		Areas: &FilterConfig{
			Exclude: map[string][]string{"area": {"no"}},
		},
	}
}

// LoadConfig reads a style file. Sections missing from the file keep
// their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read style file: %w", err)
	}
	return Parse(data)
}

// Parse decodes style YAML on top of DefaultConfig
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse style YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if len(c.Relations.Types) == 0 {
		return fmt.Errorf("style: relations.types must list at least one relation type")
	}
	return nil
}

// SelectRelation returns the relation predicate for the resolver
func (c *Config) SelectRelation() func(*element.Relation) bool {
	types := slices.Clone(c.Relations.Types)
	filter := NewFilter(c.Relations.Filter)
	return func(rel *element.Relation) bool {
		if !slices.Contains(types, rel.Tags.Get("type")) {
			return false
		}
		return filter.Match(rel.Tags)
	}
}

// KeepMember returns the member predicate, or nil when every role is kept
func (c *Config) KeepMember() func(*element.Relation, element.Member) bool {
	if len(c.Members.Roles) == 0 {
		return nil
	}
	roles := slices.Clone(c.Members.Roles)
	return func(_ *element.Relation, m element.Member) bool {
		return slices.Contains(roles, m.Role)
	}
}

// Standalone returns the predicate for closed ways outside relations
func (c *Config) Standalone() func(element.Tags) bool {
	filter := NewFilter(c.Areas)
	return func(tags element.Tags) bool {
		return filter.Match(tags)
	}
}

// Filter checks tags against a FilterConfig
type Filter struct {
	cfg *FilterConfig
}

// NewFilter creates a filter from configuration. A nil config matches everything.
func NewFilter(cfg *FilterConfig) *Filter {
	if cfg == nil {
		cfg = &FilterConfig{}
	}
	return &Filter{cfg: cfg}
}

// Match reports whether tags pass the filter
func (f *Filter) Match(tags map[string]string) bool {
	if len(f.cfg.RequireAny) > 0 {
		found := slices.ContainsFunc(f.cfg.RequireAny, func(key string) bool {
			_, ok := tags[key]
			return ok
		})
		if !found {
			return false
		}
	}

	if len(f.cfg.Include) > 0 && !matchesAny(f.cfg.Include, tags) {
		return false
	}
	if len(f.cfg.Exclude) > 0 && matchesAny(f.cfg.Exclude, tags) {
		return false
	}
	return true
}

// HasFilter returns true if any rule is configured
func (f *Filter) HasFilter() bool {
	return len(f.cfg.Include) > 0 || len(f.cfg.Exclude) > 0 || len(f.cfg.RequireAny) > 0
}

// matchesAny is true when some key in rules is present in tags with an
// allowed value. An empty value list or "*" allows any value.
func matchesAny(rules map[string][]string, tags map[string]string) bool {
	for key, values := range rules {
		v, ok := tags[key]
		if !ok {
			continue
		}
		if len(values) == 0 || slices.Contains(values, v) || slices.Contains(values, "*") {
			return true
		}
	}
	return false
}
