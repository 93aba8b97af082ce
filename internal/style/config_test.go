package style

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/wegman-software/osm-areas-go/internal/element"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	sel := cfg.SelectRelation()

	tests := []struct {
		name string
		tags element.Tags
		want bool
	}{
		{"multipolygon", element.Tags{"type": "multipolygon"}, true},
		{"boundary", element.Tags{"type": "boundary", "boundary": "administrative"}, true},
		{"route", element.Tags{"type": "route"}, false},
		{"untyped", element.Tags{"name": "x"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sel(&element.Relation{Tags: tt.tags}); got != tt.want {
				t.Errorf("SelectRelation(%v) = %v, want %v", tt.tags, got, tt.want)
			}
		})
	}

	if cfg.KeepMember() != nil {
		t.Error("default config keeps every role")
	}
	standalone := cfg.Standalone()
	if standalone(element.Tags{"area": "no", "highway": "service"}) {
		t.Error("area=no must not become a standalone area")
	}
	if !standalone(element.Tags{"building": "yes"}) {
		t.Error("building should become a standalone area")
	}
}

func TestLoadConfig(t *testing.T) {
	yml := `
relations:
  types: [multipolygon]
  filter:
    require_any: [natural, landuse]
members:
  roles: [outer, inner]
areas:
  include:
    building: []
    natural: [water, wood]
repair_gaps: false
`
	path := filepath.Join(t.TempDir(), "style.yaml")
	if err := os.WriteFile(path, []byte(yml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.RepairGaps == nil || *cfg.RepairGaps {
		t.Error("repair_gaps should be set to false")
	}

	sel := cfg.SelectRelation()
	if sel(&element.Relation{Tags: element.Tags{"type": "boundary", "natural": "water"}}) {
		t.Error("boundary relations are no longer selected")
	}
	if sel(&element.Relation{Tags: element.Tags{"type": "multipolygon", "building": "yes"}}) {
		t.Error("require_any should reject relations without natural or landuse")
	}
	if !sel(&element.Relation{Tags: element.Tags{"type": "multipolygon", "landuse": "grass"}}) {
		t.Error("landuse multipolygon should be selected")
	}

	keep := cfg.KeepMember()
	if keep == nil {
		t.Fatal("expected a member predicate")
	}
	if keep(nil, element.Member{Type: element.TypeWay, Role: ""}) {
		t.Error("empty role should be rejected")
	}
	if !keep(nil, element.Member{Type: element.TypeWay, Role: "inner"}) {
		t.Error("inner role should be kept")
	}

	standalone := cfg.Standalone()
	if !standalone(element.Tags{"building": "house"}) || standalone(element.Tags{"natural": "scrub"}) {
		t.Error("unexpected standalone filter result")
	}
}

func TestParseRejectsEmptyTypes(t *testing.T) {
	if _, err := Parse([]byte("relations:\n  types: []\n")); err == nil {
		t.Error("expected validation error")
	}
	if _, err := Parse([]byte("relations: [")); err == nil {
		t.Error("expected YAML error")
	}
}

func TestFilterHasFilter(t *testing.T) {
	if NewFilter(nil).HasFilter() {
		t.Error("nil config has no rules")
	}
	if !NewFilter(&FilterConfig{RequireAny: []string{"name"}}).HasFilter() {
		t.Error("require_any is a rule")
	}
}
