package wkb

import (
	"encoding/binary"
	"math"

	"github.com/wegman-software/osm-areas-go/internal/area"
	"github.com/wegman-software/osm-areas-go/internal/element"
)

// WKB type constants (ISO SQL/MM specification)
const (
	wkbPolygon      = 3
	wkbMultiPolygon = 6

	// SRID flag for EWKB (PostGIS extended WKB)
	wkbSRIDFlag = 0x20000000
)

// Common SRID constants
const (
	SRID4326 = 4326 // WGS84
	SRID3857 = 3857 // Web Mercator
)

// TransformFunc maps lon/lat degrees to output coordinates
type TransformFunc func(lon, lat float64) (x, y float64)

// Encoder encodes areas as little-endian EWKB with an SRID.
// The buffer is reused between calls; copy the result to keep it.
type Encoder struct {
	buf       []byte
	srid      uint32
	transform TransformFunc
}

// NewEncoder creates an encoder. A nil transform writes lon/lat unchanged.
func NewEncoder(initialSize int, srid int, transform TransformFunc) *Encoder {
	return &Encoder{
		buf:       make([]byte, 0, initialSize),
		srid:      uint32(srid),
		transform: transform,
	}
}

// SRID returns the encoder's SRID
func (e *Encoder) SRID() int {
	return int(e.srid)
}

// Reset clears the buffer for reuse
func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
}

// Bytes returns the encoded bytes
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// EncodeArea writes a Polygon for single-shell areas and a MultiPolygon otherwise
func (e *Encoder) EncodeArea(a *area.Area) []byte {
	if len(a.Groups) == 1 {
		return e.EncodePolygon(a.Groups[0])
	}
	return e.EncodeMultiPolygon(a.Groups)
}

// EncodePolygon encodes one shell with its holes
func (e *Encoder) EncodePolygon(g area.PolygonGroup) []byte {
	e.Reset()
	e.ensureCapacity(9 + groupSize(g))

	e.buf = append(e.buf, 0x01)
	e.appendUint32(wkbPolygon | wkbSRIDFlag)
	e.appendUint32(e.srid)
	e.appendRings(g)
	return e.buf
}

// EncodeMultiPolygon encodes every group as a member polygon
func (e *Encoder) EncodeMultiPolygon(groups []area.PolygonGroup) []byte {
	e.Reset()
	if len(groups) == 0 {
		return nil
	}

	size := 13
	for _, g := range groups {
		size += 5 + groupSize(g)
	}
	e.ensureCapacity(size)

	e.buf = append(e.buf, 0x01)
	e.appendUint32(wkbMultiPolygon | wkbSRIDFlag)
	e.appendUint32(e.srid)
	e.appendUint32(uint32(len(groups)))

	// member polygons carry no SRID
	for _, g := range groups {
		e.buf = append(e.buf, 0x01)
		e.appendUint32(wkbPolygon)
		e.appendRings(g)
	}
	return e.buf
}

// groupSize is the byte length of a polygon body: ring count plus rings
func groupSize(g area.PolygonGroup) int {
	n := 4 + 4 + len(g.Outer.Locations)*16
	for _, r := range g.Inners {
		n += 4 + len(r.Locations)*16
	}
	return n
}

func (e *Encoder) appendRings(g area.PolygonGroup) {
	e.appendUint32(uint32(1 + len(g.Inners)))
	e.appendRing(g.Outer.Locations)
	for _, r := range g.Inners {
		e.appendRing(r.Locations)
	}
}

func (e *Encoder) appendRing(locs []element.Location) {
	e.appendUint32(uint32(len(locs)))
	for _, l := range locs {
		x, y := l.Lon(), l.Lat()
		if e.transform != nil {
			x, y = e.transform(x, y)
		}
		e.appendFloat64(x)
		e.appendFloat64(y)
	}
}

func (e *Encoder) ensureCapacity(n int) {
	if cap(e.buf) < n {
		e.buf = make([]byte, 0, n)
	}
}

func (e *Encoder) appendUint32(v uint32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, v)
}

func (e *Encoder) appendFloat64(v float64) {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, math.Float64bits(v))
}
