package area

import (
	"slices"

	"go.uber.org/zap"

	"github.com/wegman-software/osm-areas-go/internal/element"
	"github.com/wegman-software/osm-areas-go/internal/logger"
	"github.com/wegman-software/osm-areas-go/internal/relations"
)

// IgnoredKeys are skipped whenever tags of relations and ways are compared
var IgnoredKeys = []string{"type", "created_by", "source", "note"}

// BuilderConfig configures a Builder
type BuilderConfig struct {
	Geometry   Geometry
	RepairGaps bool
	// Standalone decides which closed ways outside any relation become
	// areas. Nil accepts every closed way.
	Standalone func(element.Tags) bool
	// Emit receives every assembled area. Nil discards them.
	Emit   func(*Area)
	Report *Report
}

// BuilderStats counts builder outcomes
type BuilderStats struct {
	RelationAreas int64
	WayAreas      int64
	InnerAreas    int64
	Failed        int64
	Repaired      int64
	Reoriented    int64
}

// Builder turns completed relations and standalone closed ways into areas.
// It implements relations.Handler and runs on the resolver's goroutine.
type Builder struct {
	cfg       BuilderConfig
	assembler Assembler
	nester    Nester
	log       *zap.Logger
	stats     BuilderStats
}

var _ relations.Handler = (*Builder)(nil)

// NewBuilder creates a builder
func NewBuilder(cfg BuilderConfig) *Builder {
	if cfg.Report == nil {
		cfg.Report = NewReport()
	}
	if cfg.Emit == nil {
		cfg.Emit = func(*Area) {}
	}
	return &Builder{
		cfg:       cfg,
		assembler: Assembler{RepairGaps: cfg.RepairGaps},
		nester:    Nester{Geometry: cfg.Geometry},
		log:       logger.Get(),
	}
}

// Stats returns the builder counters
func (b *Builder) Stats() BuilderStats {
	return b.stats
}

// Report returns the failure report the builder writes to
func (b *Builder) Report() *Report {
	return b.cfg.Report
}

// RelationComplete assembles a relation whose member ways have all arrived
func (b *Builder) RelationComplete(e *relations.Entry) {
	rel := e.Relation()
	ways, members := e.Ways()

	a, extra, err := b.BuildRelation(rel, ways, members)
	if err != nil {
		b.fail(element.TypeRelation, rel.ID, err)
		return
	}
	b.stats.RelationAreas++
	b.cfg.Emit(a)
	for _, x := range extra {
		b.stats.InnerAreas++
		b.cfg.Emit(x)
	}
}

// RelationWithNoMembers records relations that have no way members at all
func (b *Builder) RelationWithNoMembers(rel *element.Relation) {
	b.stats.Failed++
	b.cfg.Report.AddFailure(element.TypeRelation, rel.ID, "no_members", "")
	b.log.Debug("Relation has no way members", zap.Int64("relation", rel.ID))
}

// MemberNotWanted turns closed ways that belong to no relation into areas
func (b *Builder) MemberNotWanted(obj element.Object) {
	w, ok := obj.(*element.Way)
	if !ok || !w.IsClosed() || len(w.Nodes) < 4 {
		return
	}
	if b.cfg.Standalone != nil && !b.cfg.Standalone(w.Tags) {
		return
	}

	a, err := b.BuildWay(w)
	if err != nil {
		b.fail(element.TypeWay, w.ID, err)
		return
	}
	b.stats.WayAreas++
	b.cfg.Emit(a)
}

// BuildWay assembles a single closed way
func (b *Builder) BuildWay(w *element.Way) (*Area, error) {
	set, err := b.assembler.Assemble([]*element.Way{w})
	if err != nil {
		return nil, &GeometryError{Type: element.TypeWay, ID: w.ID, Err: err}
	}
	groups, err := b.nester.Nest(slices.Collect(set.Rings()))
	if err != nil {
		return nil, &GeometryError{Type: element.TypeWay, ID: w.ID, Err: err}
	}
	b.countReoriented(groups)

	return &Area{
		ID:      w.ID,
		Source:  element.TypeWay,
		Version: w.Version,
		Tags:    w.Tags,
		Groups:  groups,
		Ways:    []int64{w.ID},
	}, nil
}

// BuildRelation assembles rel from its member ways. members holds the
// relation member entry for each way, in the same order. Besides the
// relation's own area it returns extra areas for tagged single-way holes.
func (b *Builder) BuildRelation(rel *element.Relation, ways []*element.Way, members []element.Member) (*Area, []*Area, error) {
	set, err := b.assembler.Assemble(ways)
	if err != nil {
		return nil, nil, &GeometryError{Type: element.TypeRelation, ID: rel.ID, Err: err}
	}
	clean := set.Clean()
	groups, err := b.nester.Nest(slices.Collect(set.Rings()))
	if err != nil {
		return nil, nil, &GeometryError{Type: element.TypeRelation, ID: rel.ID, Err: err}
	}
	b.countReoriented(groups)
	if !clean {
		b.stats.Repaired++
		b.cfg.Report.Warn("repaired_gap")
	}

	byID := make(map[int64]*element.Way, len(ways))
	roles := make(map[int64]string, len(ways))
	ids := make([]int64, 0, len(ways))
	for i, w := range ways {
		if _, seen := byID[w.ID]; seen {
			b.cfg.Report.Warn("duplicate_way_member")
			continue
		}
		byID[w.ID] = w
		roles[w.ID] = members[i].Role
		ids = append(ids, w.ID)
	}
	b.checkRoles(rel, groups, roles)

	extra := b.innerAreas(rel, groups, byID)
	tags := b.mergeOuterTags(rel.Tags.Without("type"), groups, byID)

	return &Area{
		ID:       rel.ID,
		Source:   element.TypeRelation,
		Version:  rel.Version,
		Tags:     tags,
		Groups:   groups,
		Repaired: !clean,
		Boundary: rel.Tags.Get("type") == "boundary",
		Ways:     ids,
	}, extra, nil
}

// checkRoles warns about ways whose role disagrees with the geometry
func (b *Builder) checkRoles(rel *element.Relation, groups []PolygonGroup, roles map[int64]string) {
	for _, g := range groups {
		for _, id := range g.Outer.Ways {
			if roles[id] == "inner" {
				b.cfg.Report.Warn("role_mismatch")
				b.log.Debug("Inner way used in outer ring", zap.Int64("relation", rel.ID), zap.Int64("way", id))
			}
		}
		for _, inner := range g.Inners {
			for _, id := range inner.Ways {
				if roles[id] == "outer" {
					b.cfg.Report.Warn("role_mismatch")
					b.log.Debug("Outer way used in inner ring", zap.Int64("relation", rel.ID), zap.Int64("way", id))
				}
			}
		}
	}
}

// innerAreas creates areas for holes made of one tagged way whose tags
// differ from the relation and from the enclosing single-way shell
func (b *Builder) innerAreas(rel *element.Relation, groups []PolygonGroup, byID map[int64]*element.Way) []*Area {
	var out []*Area
	for _, g := range groups {
		for _, inner := range g.Inners {
			if len(inner.Ways) != 1 {
				continue
			}
			w := byID[inner.Ways[0]]
			if w == nil || !w.Tags.Meaningful(IgnoredKeys...) {
				continue
			}
			if w.Tags.EqualIgnoring(rel.Tags, IgnoredKeys...) {
				b.cfg.Report.Warn("duplicate_tags_on_inner")
				continue
			}
			if len(g.Outer.Ways) == 1 {
				if outer := byID[g.Outer.Ways[0]]; outer != nil && w.Tags.EqualIgnoring(outer.Tags, IgnoredKeys...) {
					b.cfg.Report.Warn("duplicate_tags_on_inner")
					continue
				}
			}

			shell := &Ring{
				Locations: slices.Clone(inner.Locations),
				NodeIDs:   slices.Clone(inner.NodeIDs),
				Ways:      inner.Ways,
				Repaired:  inner.Repaired,
			}
			slices.Reverse(shell.Locations)
			slices.Reverse(shell.NodeIDs)
			out = append(out, &Area{
				ID:      w.ID,
				Source:  element.TypeWay,
				Version: w.Version,
				Tags:    w.Tags,
				Groups:  []PolygonGroup{{Outer: shell}},
				Ways:    []int64{w.ID},
			})
		}
	}
	return out
}

// mergeOuterTags pulls tags from shell ways into the area. Untagged
// relations take all tags of their outer ways. Tagged relations only take
// them when there is a single shell made of a single way.
func (b *Builder) mergeOuterTags(tags element.Tags, groups []PolygonGroup, byID map[int64]*element.Way) element.Tags {
	for _, g := range groups {
		for _, id := range g.Outer.Ways {
			w := byID[id]
			if w == nil || !w.Tags.Meaningful(IgnoredKeys...) {
				continue
			}
			if tags.EqualIgnoring(w.Tags, IgnoredKeys...) {
				continue
			}
			if !tags.Meaningful(IgnoredKeys...) || (len(groups) == 1 && len(g.Outer.Ways) == 1) {
				if !mergeTags(tags, w.Tags) {
					b.cfg.Report.Warn("tag_collision")
				}
			}
		}
	}
	return tags
}

// mergeTags copies keys missing from dst. It returns false if a key was
// present in both with different values.
func mergeTags(dst, src element.Tags) bool {
	ok := true
	for k, v := range src {
		if slices.Contains(IgnoredKeys, k) {
			continue
		}
		if cur, exists := dst[k]; exists {
			if cur != v {
				ok = false
			}
			continue
		}
		dst[k] = v
	}
	return ok
}

func (b *Builder) countReoriented(groups []PolygonGroup) {
	for _, g := range groups {
		if g.Outer.Reversed {
			b.stats.Reoriented++
		}
		for _, r := range g.Inners {
			if r.Reversed {
				b.stats.Reoriented++
			}
		}
	}
}

func (b *Builder) fail(typ element.Type, id int64, err error) {
	b.stats.Failed++
	b.cfg.Report.AddError(typ, id, err)
	b.log.Debug("Area assembly failed",
		zap.String("type", typ.String()),
		zap.Int64("id", id),
		zap.String("reason", Reason(err)),
		zap.Error(err))
}
