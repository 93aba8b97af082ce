package wkb

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/wegman-software/osm-areas-go/internal/area"
	"github.com/wegman-software/osm-areas-go/internal/element"
)

func square(x0, y0, size float64) *area.Ring {
	return &area.Ring{Locations: []element.Location{
		element.FromDegrees(x0, y0),
		element.FromDegrees(x0+size, y0),
		element.FromDegrees(x0+size, y0+size),
		element.FromDegrees(x0, y0+size),
		element.FromDegrees(x0, y0),
	}}
}

func TestEncodePolygon(t *testing.T) {
	enc := NewEncoder(64, SRID4326, nil)
	g := area.PolygonGroup{Outer: square(0, 0, 10), Inners: []*area.Ring{square(2, 2, 1)}}
	b := enc.EncodePolygon(g)

	// header 9 + ring count 4 + 2 * (4 + 5*16)
	if len(b) != 9+4+2*(4+80) {
		t.Fatalf("length = %d", len(b))
	}
	if b[0] != 0x01 {
		t.Error("expected little-endian marker")
	}
	if typ := binary.LittleEndian.Uint32(b[1:]); typ != wkbPolygon|wkbSRIDFlag {
		t.Errorf("type = %#x", typ)
	}
	if srid := binary.LittleEndian.Uint32(b[5:]); srid != SRID4326 {
		t.Errorf("srid = %d", srid)
	}
	if rings := binary.LittleEndian.Uint32(b[9:]); rings != 2 {
		t.Errorf("ring count = %d", rings)
	}
	if pts := binary.LittleEndian.Uint32(b[13:]); pts != 5 {
		t.Errorf("point count = %d", pts)
	}
	// second point of the shell is (10, 0)
	x := math.Float64frombits(binary.LittleEndian.Uint64(b[17+16:]))
	if x != 10 {
		t.Errorf("x = %v, want 10", x)
	}
}

func TestEncodeArea(t *testing.T) {
	enc := NewEncoder(0, SRID3857, func(lon, lat float64) (float64, float64) {
		return lon * 2, lat * 2
	})

	multi := &area.Area{Groups: []area.PolygonGroup{{Outer: square(0, 0, 1)}, {Outer: square(5, 5, 1)}}}
	b := enc.EncodeArea(multi)
	if typ := binary.LittleEndian.Uint32(b[1:]); typ != wkbMultiPolygon|wkbSRIDFlag {
		t.Fatalf("type = %#x", typ)
	}
	if n := binary.LittleEndian.Uint32(b[9:]); n != 2 {
		t.Errorf("polygon count = %d", n)
	}
	// first member polygon: marker, plain type, one ring, 5 points
	if typ := binary.LittleEndian.Uint32(b[14:]); typ != wkbPolygon {
		t.Errorf("member type = %#x", typ)
	}
	x := math.Float64frombits(binary.LittleEndian.Uint64(b[26+16:]))
	if x != 2 {
		t.Errorf("transformed x = %v, want 2", x)
	}

	single := &area.Area{Groups: []area.PolygonGroup{{Outer: square(0, 0, 1)}}}
	if typ := binary.LittleEndian.Uint32(enc.EncodeArea(single)[1:]); typ != wkbPolygon|wkbSRIDFlag {
		t.Errorf("single group type = %#x", typ)
	}
	if enc.EncodeMultiPolygon(nil) != nil {
		t.Error("empty multipolygon should encode to nil")
	}
}
