package planar

import (
	"testing"

	"github.com/paulmach/orb"

	"github.com/wegman-software/osm-areas-go/internal/area"
	"github.com/wegman-software/osm-areas-go/internal/element"
)

func square(x0, y0, size float64) []element.Location {
	return []element.Location{
		element.FromDegrees(x0, y0),
		element.FromDegrees(x0+size, y0),
		element.FromDegrees(x0+size, y0+size),
		element.FromDegrees(x0, y0+size),
		element.FromDegrees(x0, y0),
	}
}

func TestSignedArea(t *testing.T) {
	ccw := square(0, 0, 2)
	if got := (Orb{}).SignedArea(ccw); got < 3.999 || got > 4.001 {
		t.Errorf("ccw area = %v, want 4", got)
	}

	cw := make([]element.Location, len(ccw))
	for i, l := range ccw {
		cw[len(ccw)-1-i] = l
	}
	if got := (Orb{}).SignedArea(cw); got > -3.999 || got < -4.001 {
		t.Errorf("cw area = %v, want -4", got)
	}
}

func TestRingContains(t *testing.T) {
	ring := square(0, 0, 10)
	tests := []struct {
		name string
		pt   element.Location
		want bool
	}{
		{"center", element.FromDegrees(5, 5), true},
		{"outside", element.FromDegrees(11, 5), false},
		{"far away", element.FromDegrees(-50, 40), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (Orb{}).RingContains(ring, tt.pt); got != tt.want {
				t.Errorf("RingContains(%v) = %v, want %v", tt.pt, got, tt.want)
			}
		})
	}
}

func TestGeometry(t *testing.T) {
	outer := &area.Ring{Locations: square(0, 0, 10)}
	inner := &area.Ring{Locations: square(2, 2, 2)}
	single := &area.Area{Groups: []area.PolygonGroup{{Outer: outer, Inners: []*area.Ring{inner}}}}

	poly, ok := Geometry(single).(orb.Polygon)
	if !ok {
		t.Fatalf("expected orb.Polygon, got %T", Geometry(single))
	}
	if len(poly) != 2 || len(poly[0]) != 5 {
		t.Errorf("unexpected polygon shape: %d rings", len(poly))
	}
	if poly[0][1] != (orb.Point{10, 0}) {
		t.Errorf("second shell point = %v", poly[0][1])
	}

	multi := &area.Area{Groups: []area.PolygonGroup{{Outer: outer}, {Outer: &area.Ring{Locations: square(20, 0, 1)}}}}
	if mp, ok := Geometry(multi).(orb.MultiPolygon); !ok || len(mp) != 2 {
		t.Errorf("expected 2-polygon multipolygon, got %T", Geometry(multi))
	}
}
