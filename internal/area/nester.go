package area

import (
	"fmt"

	"github.com/wegman-software/osm-areas-go/internal/element"
)

// Geometry provides the planar predicates the nester relies on
type Geometry interface {
	// SignedArea is positive for counter-clockwise rings
	SignedArea(ring []element.Location) float64
	// RingContains reports whether pt lies inside or on the boundary of ring
	RingContains(ring []element.Location, pt element.Location) bool
}

// PolygonGroup is one shell with the holes directly inside it
type PolygonGroup struct {
	Outer  *Ring
	Inners []*Ring
}

// Nester classifies rings into shells and holes by containment depth
type Nester struct {
	Geometry Geometry
}

type ringInfo struct {
	ring     *Ring
	bounds   Bounds
	area     float64
	vertices map[element.Location]struct{}
}

// Nest builds the containment forest of rings. Rings at even depth become
// shells, rings at odd depth become holes of their direct parent. Shells are
// wound counter-clockwise and holes clockwise on return.
func (n *Nester) Nest(rings []*Ring) ([]PolygonGroup, error) {
	infos := make([]ringInfo, len(rings))
	for i, r := range rings {
		area := n.Geometry.SignedArea(r.Locations)
		if area == 0 {
			return nil, fmt.Errorf("%w: ring through way %d has zero area", ErrInsufficientGeometry, firstWay(r))
		}
		vertices := make(map[element.Location]struct{}, len(r.Locations))
		for _, l := range r.Locations {
			vertices[l] = struct{}{}
		}
		infos[i] = ringInfo{ring: r, bounds: r.Bounds(), area: area, vertices: vertices}
	}

	// contains[i][j]: ring i contains ring j
	contains := make([][]bool, len(infos))
	for i := range contains {
		contains[i] = make([]bool, len(infos))
	}
	for i := range infos {
		for j := range infos {
			if i == j {
				continue
			}
			inside, err := n.contains(&infos[i], &infos[j])
			if err != nil {
				return nil, err
			}
			contains[i][j] = inside
		}
	}

	depth := make([]int, len(infos))
	for j := range infos {
		for i := range infos {
			if contains[i][j] {
				if contains[j][i] {
					return nil, fmt.Errorf("%w: rings through ways %d and %d contain each other", ErrInvalidNesting, firstWay(rings[i]), firstWay(rings[j]))
				}
				depth[j]++
			}
		}
	}

	parent := make([]int, len(infos))
	for j := range infos {
		parent[j] = -1
		if depth[j] == 0 {
			continue
		}
		for i := range infos {
			if !contains[i][j] || depth[i] != depth[j]-1 {
				continue
			}
			if parent[j] >= 0 {
				return nil, fmt.Errorf("%w: ring through way %d has two direct parents", ErrInvalidNesting, firstWay(rings[j]))
			}
			parent[j] = i
		}
		if parent[j] < 0 {
			return nil, fmt.Errorf("%w: ring through way %d has no direct parent", ErrInvalidNesting, firstWay(rings[j]))
		}
		// every other ancestor of j must also be an ancestor of its parent
		for k := range infos {
			if k != parent[j] && contains[k][j] && !contains[k][parent[j]] {
				return nil, fmt.Errorf("%w: ring through way %d has inconsistent ancestors", ErrInvalidNesting, firstWay(rings[j]))
			}
		}
	}

	groups := make([]PolygonGroup, 0, len(infos))
	groupOf := make(map[int]int, len(infos))
	for i := range infos {
		if depth[i]%2 != 0 {
			continue
		}
		if infos[i].area < 0 {
			infos[i].ring.reverse()
		}
		groupOf[i] = len(groups)
		groups = append(groups, PolygonGroup{Outer: infos[i].ring})
	}
	for j := range infos {
		if depth[j]%2 == 0 {
			continue
		}
		if infos[j].area > 0 {
			infos[j].ring.reverse()
		}
		g := groupOf[parent[j]]
		groups[g].Inners = append(groups[g].Inners, infos[j].ring)
	}

	return groups, nil
}

// contains decides whether outer contains inner. Vertices shared by both
// rings are skipped; the remaining vertices must agree.
func (n *Nester) contains(outer, inner *ringInfo) (bool, error) {
	if !outer.bounds.Covers(inner.bounds) {
		return false, nil
	}
	if outer.bounds == inner.bounds {
		return false, fmt.Errorf("%w: rings through ways %d and %d have identical extents", ErrInvalidNesting, firstWay(outer.ring), firstWay(inner.ring))
	}

	in, out := 0, 0
	for _, l := range inner.ring.Locations[:len(inner.ring.Locations)-1] {
		if _, shared := outer.vertices[l]; shared {
			continue
		}
		if n.Geometry.RingContains(outer.ring.Locations, l) {
			in++
		} else {
			out++
		}
	}

	switch {
	case in > 0 && out > 0:
		return false, fmt.Errorf("%w: rings through ways %d and %d overlap", ErrInvalidNesting, firstWay(outer.ring), firstWay(inner.ring))
	case in == 0 && out == 0:
		return false, fmt.Errorf("%w: ring through way %d only uses vertices of ring through way %d", ErrInvalidNesting, firstWay(inner.ring), firstWay(outer.ring))
	}
	return in > 0, nil
}

func firstWay(r *Ring) int64 {
	if len(r.Ways) == 0 {
		return 0
	}
	return r.Ways[0]
}
