package area

import "github.com/wegman-software/osm-areas-go/internal/element"

// Area is an assembled (multi)polygon built from a relation or a closed way
type Area struct {
	// ID and Source identify the object the area was built from
	ID      int64
	Source  element.Type
	Version int
	Tags    element.Tags
	Groups  []PolygonGroup
	// Repaired is set when at least one ring needed gap repair
	Repaired bool
	// Boundary is set for relations tagged type=boundary
	Boundary bool
	// Ways lists the member ways that contributed rings
	Ways []int64
}

// AreaID derives a single id space for areas: ways map to even ids and
// relations to odd ids.
func (a *Area) AreaID() int64 {
	if a.Source == element.TypeRelation {
		return a.ID*2 + 1
	}
	return a.ID * 2
}

// RingCount returns the total number of rings in all groups
func (a *Area) RingCount() int {
	n := 0
	for _, g := range a.Groups {
		n += 1 + len(g.Inners)
	}
	return n
}
