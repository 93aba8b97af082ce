package area_test

import (
	"errors"
	"testing"

	"github.com/wegman-software/osm-areas-go/internal/area"
	"github.com/wegman-software/osm-areas-go/internal/element"
	"github.com/wegman-software/osm-areas-go/internal/planar"
	"github.com/wegman-software/osm-areas-go/internal/relations"
)

type harness struct {
	builder  *area.Builder
	resolver *relations.Resolver
	areas    []*area.Area
}

func newHarness(t *testing.T, repair bool, standalone func(element.Tags) bool) *harness {
	t.Helper()
	h := &harness{}
	h.builder = area.NewBuilder(area.BuilderConfig{
		Geometry:   planar.Orb{},
		RepairGaps: repair,
		Standalone: standalone,
		Emit:       func(a *area.Area) { h.areas = append(h.areas, a) },
	})
	h.resolver = relations.New(relations.Config{MemberType: element.TypeWay}, h.builder)
	return h
}

// run drives both passes: relations first, then ways
func (h *harness) run(t *testing.T, rels []*element.Relation, ways []*element.Way) []relations.Incomplete {
	t.Helper()
	for _, rel := range rels {
		if err := h.resolver.Relation(rel); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := h.resolver.EndFirstPass(); err != nil {
		t.Fatal(err)
	}
	for _, w := range ways {
		if err := h.resolver.OfferMember(w); err != nil {
			t.Fatal(err)
		}
	}
	incomplete, err := h.resolver.EndSecondPass()
	if err != nil {
		t.Fatal(err)
	}
	return incomplete
}

func members(roles map[int64]string, ids ...int64) []element.Member {
	out := make([]element.Member, len(ids))
	for i, id := range ids {
		role := roles[id]
		if role == "" {
			role = "outer"
		}
		out[i] = element.Member{Type: element.TypeWay, Ref: id, Role: role}
	}
	return out
}

func TestBuildRelationFromTwoWays(t *testing.T) {
	h := newHarness(t, false, nil)
	rel := &element.Relation{
		ID:      1,
		Tags:    element.Tags{"type": "multipolygon", "landuse": "forest"},
		Members: members(nil, 10, 11),
	}
	h.run(t, []*element.Relation{rel}, []*element.Way{
		unitSquare.way(11, 3, 4, 1),
		unitSquare.way(10, 1, 2, 3),
	})

	if len(h.areas) != 1 {
		t.Fatalf("got %d areas, want 1", len(h.areas))
	}
	a := h.areas[0]
	if a.Source != element.TypeRelation || a.ID != 1 || a.AreaID() != 3 {
		t.Errorf("unexpected identity: %+v", a)
	}
	if len(a.Groups) != 1 || len(a.Groups[0].Inners) != 0 {
		t.Fatalf("expected one group without holes, got %+v", a.Groups)
	}
	if !sameCycle(a.Groups[0].Outer.NodeIDs, []int64{1, 2, 3, 4, 1}) {
		t.Errorf("shell = %v", a.Groups[0].Outer.NodeIDs)
	}
	if _, ok := a.Tags["type"]; ok {
		t.Error("type tag should not be copied to the area")
	}
	if a.Tags["landuse"] != "forest" {
		t.Errorf("tags = %v", a.Tags)
	}
	if a.Repaired || a.Boundary {
		t.Error("unexpected flags")
	}
}

func TestBuildStandaloneWay(t *testing.T) {
	h := newHarness(t, false, nil)
	h.run(t, nil, []*element.Way{
		{ID: 5, Tags: element.Tags{"building": "yes"}, Nodes: unitSquare.way(5, 1, 2, 3, 4, 1).Nodes},
		unitSquare.way(6, 1, 2, 3),
		unitSquare.way(7, 1, 2, 1),
	})

	if len(h.areas) != 1 {
		t.Fatalf("got %d areas, want 1", len(h.areas))
	}
	a := h.areas[0]
	if a.Source != element.TypeWay || a.ID != 5 || a.AreaID() != 10 {
		t.Errorf("unexpected identity: %+v", a)
	}
	if len(a.Groups) != 1 {
		t.Errorf("got %d groups", len(a.Groups))
	}
}

func TestStandaloneFilter(t *testing.T) {
	h := newHarness(t, false, func(tags element.Tags) bool {
		return tags.Get("area") != "no"
	})
	w := unitSquare.way(5, 1, 2, 3, 4, 1)
	w.Tags = element.Tags{"highway": "pedestrian", "area": "no"}
	h.run(t, nil, []*element.Way{w})

	if len(h.areas) != 0 {
		t.Errorf("filtered way produced %d areas", len(h.areas))
	}
}

func TestBuildUntaggedRelationTakesOuterTags(t *testing.T) {
	h := newHarness(t, false, nil)
	rel := &element.Relation{
		ID:      2,
		Tags:    element.Tags{"type": "multipolygon", "source": "survey"},
		Members: members(nil, 10),
	}
	outer := unitSquare.way(10, 1, 2, 3, 4, 1)
	outer.Tags = element.Tags{"natural": "water", "created_by": "editor"}
	h.run(t, []*element.Relation{rel}, []*element.Way{outer})

	if len(h.areas) != 1 {
		t.Fatalf("got %d areas", len(h.areas))
	}
	tags := h.areas[0].Tags
	if tags["natural"] != "water" {
		t.Errorf("outer way tags not merged: %v", tags)
	}
	if _, ok := tags["created_by"]; ok {
		t.Errorf("ignored key merged: %v", tags)
	}
}

func TestBuildTaggedInnerWay(t *testing.T) {
	g := grid{
		1: {0, 0}, 2: {10, 0}, 3: {10, 10}, 4: {0, 10},
		5: {2, 2}, 6: {4, 2}, 7: {4, 4}, 8: {2, 4},
		9: {6, 6}, 10: {8, 6}, 11: {8, 8}, 12: {6, 8},
	}
	outer := g.way(100, 1, 2, 3, 4, 1)
	lake := g.way(101, 5, 6, 7, 8, 5)
	lake.Tags = element.Tags{"natural": "water"}
	dup := g.way(102, 9, 10, 11, 12, 9)
	dup.Tags = element.Tags{"landuse": "forest"}

	rel := &element.Relation{
		ID:      3,
		Tags:    element.Tags{"type": "multipolygon", "landuse": "forest"},
		Members: members(map[int64]string{101: "inner", 102: "inner"}, 100, 101, 102),
	}

	h := newHarness(t, false, nil)
	h.run(t, []*element.Relation{rel}, []*element.Way{outer, lake, dup})

	if len(h.areas) != 2 {
		t.Fatalf("got %d areas, want relation area plus one inner area", len(h.areas))
	}
	mp, extra := h.areas[0], h.areas[1]
	if len(mp.Groups) != 1 || len(mp.Groups[0].Inners) != 2 {
		t.Errorf("relation area should keep both holes: %+v", mp.Groups)
	}
	if extra.Source != element.TypeWay || extra.ID != 101 {
		t.Errorf("extra area = %+v", extra)
	}
	if a := (planar.Orb{}).SignedArea(extra.Groups[0].Outer.Locations); a <= 0 {
		t.Error("extra area shell should be counter-clockwise")
	}
	if got := h.builder.Report().Warnings()["duplicate_tags_on_inner"]; got != 1 {
		t.Errorf("duplicate_tags_on_inner = %d, want 1", got)
	}
	if h.builder.Stats().InnerAreas != 1 {
		t.Errorf("InnerAreas = %d", h.builder.Stats().InnerAreas)
	}
}

func TestBuildRoleMismatch(t *testing.T) {
	h := newHarness(t, false, nil)
	rel := &element.Relation{
		ID:      4,
		Tags:    element.Tags{"type": "multipolygon", "building": "yes"},
		Members: members(map[int64]string{10: "inner"}, 10),
	}
	h.run(t, []*element.Relation{rel}, []*element.Way{unitSquare.way(10, 1, 2, 3, 4, 1)})

	if len(h.areas) != 1 {
		t.Fatalf("got %d areas", len(h.areas))
	}
	if got := h.builder.Report().Warnings()["role_mismatch"]; got != 1 {
		t.Errorf("role_mismatch = %d, want 1", got)
	}
}

func TestBuildFailuresAreReported(t *testing.T) {
	h := newHarness(t, false, nil)
	rels := []*element.Relation{
		{ID: 1, Tags: element.Tags{"type": "multipolygon"}, Members: members(nil, 10, 11)},
		{ID: 2, Tags: element.Tags{"type": "multipolygon"}, Members: members(nil, 12)},
		{ID: 3, Tags: element.Tags{"type": "multipolygon"}, Members: []element.Member{{Type: element.TypeNode, Ref: 1}}},
	}
	incomplete := h.run(t, rels, []*element.Way{
		unitSquare.way(10, 1, 2),
		unitSquare.way(11, 2, 3),
	})
	for _, inc := range incomplete {
		h.builder.Report().AddIncomplete(inc)
	}

	if len(h.areas) != 0 {
		t.Errorf("got %d areas, want none", len(h.areas))
	}
	summary := h.builder.Report().Summary()
	if summary["unclosed_ring"] != 1 || summary["incomplete"] != 1 || summary["no_members"] != 1 {
		t.Errorf("summary = %v", summary)
	}
	failures := h.builder.Report().Failures()
	if len(failures) != 3 || failures[0].ID != 1 || failures[2].ID != 3 {
		t.Errorf("failures = %+v", failures)
	}
}

func TestBuildRepairedBoundary(t *testing.T) {
	h := newHarness(t, true, nil)
	rel := &element.Relation{
		ID:      5,
		Tags:    element.Tags{"type": "boundary", "admin_level": "8"},
		Members: members(nil, 10),
	}
	h.run(t, []*element.Relation{rel}, []*element.Way{unitSquare.way(10, 1, 2, 3, 4)})

	if len(h.areas) != 1 {
		t.Fatalf("got %d areas", len(h.areas))
	}
	if !h.areas[0].Repaired || !h.areas[0].Boundary {
		t.Errorf("expected repaired boundary, got %+v", h.areas[0])
	}
	if h.builder.Report().Warnings()["repaired_gap"] != 1 {
		t.Error("repair should be counted as a warning")
	}
}

func TestGeometryErrorUnwraps(t *testing.T) {
	b := area.NewBuilder(area.BuilderConfig{Geometry: planar.Orb{}})
	_, _, err := b.BuildRelation(&element.Relation{ID: 9}, nil, nil)

	var gerr *area.GeometryError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected *GeometryError, got %T", err)
	}
	if gerr.ID != 9 || gerr.Type != element.TypeRelation {
		t.Errorf("unexpected error identity: %+v", gerr)
	}
	if !errors.Is(err, area.ErrInsufficientGeometry) {
		t.Errorf("expected ErrInsufficientGeometry, got %v", err)
	}
	if area.Reason(err) != "insufficient_geometry" {
		t.Errorf("Reason = %q", area.Reason(err))
	}
}
