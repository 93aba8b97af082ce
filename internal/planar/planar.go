// Package planar implements the area nester's geometry predicates and
// converts assembled areas to orb geometries.
package planar

import (
	"math"

	"github.com/paulmach/orb"
	orbplanar "github.com/paulmach/orb/planar"

	"github.com/wegman-software/osm-areas-go/internal/area"
	"github.com/wegman-software/osm-areas-go/internal/element"
)

// Orb evaluates ring predicates with orb/planar on lon/lat degrees
type Orb struct{}

var _ area.Geometry = Orb{}

// SignedArea returns the ring's area, positive when counter-clockwise
func (Orb) SignedArea(ring []element.Location) float64 {
	r := Ring(ring)
	a := math.Abs(orbplanar.Area(r))
	switch r.Orientation() {
	case orb.CCW:
		return a
	case orb.CW:
		return -a
	}
	return 0
}

// RingContains reports whether pt is inside ring or on its boundary
func (Orb) RingContains(ring []element.Location, pt element.Location) bool {
	return orbplanar.RingContains(Ring(ring), Point(pt))
}

// Point converts a location to an orb point (x = lon, y = lat)
func Point(l element.Location) orb.Point {
	return orb.Point{l.Lon(), l.Lat()}
}

// Ring converts a location list to an orb ring
func Ring(locs []element.Location) orb.Ring {
	r := make(orb.Ring, len(locs))
	for i, l := range locs {
		r[i] = Point(l)
	}
	return r
}

// Polygon converts a group to an orb polygon, shell first
func Polygon(g area.PolygonGroup) orb.Polygon {
	p := make(orb.Polygon, 0, 1+len(g.Inners))
	p = append(p, Ring(g.Outer.Locations))
	for _, inner := range g.Inners {
		p = append(p, Ring(inner.Locations))
	}
	return p
}

// MultiPolygon converts an area to an orb multipolygon
func MultiPolygon(a *area.Area) orb.MultiPolygon {
	mp := make(orb.MultiPolygon, len(a.Groups))
	for i, g := range a.Groups {
		mp[i] = Polygon(g)
	}
	return mp
}

// Geometry returns a Polygon for single-group areas and a MultiPolygon otherwise
func Geometry(a *area.Area) orb.Geometry {
	if len(a.Groups) == 1 {
		return Polygon(a.Groups[0])
	}
	return MultiPolygon(a)
}
