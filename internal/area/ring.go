package area

import (
	"iter"
	"slices"

	"github.com/wegman-software/osm-areas-go/internal/element"
)

// Bounds is an axis aligned box in fixed-point coordinates
type Bounds struct {
	Min, Max element.Location
}

func boundsOf(locs []element.Location) Bounds {
	b := Bounds{Min: locs[0], Max: locs[0]}
	for _, l := range locs[1:] {
		b.Min.X = min(b.Min.X, l.X)
		b.Min.Y = min(b.Min.Y, l.Y)
		b.Max.X = max(b.Max.X, l.X)
		b.Max.Y = max(b.Max.Y, l.Y)
	}
	return b
}

// Covers reports whether o lies entirely inside b (edges included)
func (b Bounds) Covers(o Bounds) bool {
	return b.Min.X <= o.Min.X && b.Min.Y <= o.Min.Y &&
		b.Max.X >= o.Max.X && b.Max.Y >= o.Max.Y
}

// Ring is a closed sequence of locations; the first and last location are equal
type Ring struct {
	Locations []element.Location
	NodeIDs   []int64
	// Ways lists the member ways in the order they were chained
	Ways []int64
	// Repaired is set when a gap was closed with a synthetic segment
	Repaired bool
	// Reversed is set when nesting flipped the ring's winding
	Reversed bool
}

// Len returns the number of locations including the closing one
func (r *Ring) Len() int {
	return len(r.Locations)
}

// Bounds returns the ring's bounding box
func (r *Ring) Bounds() Bounds {
	return boundsOf(r.Locations)
}

func (r *Ring) reverse() {
	slices.Reverse(r.Locations)
	slices.Reverse(r.NodeIDs)
	r.Reversed = !r.Reversed
}

// distinct counts the distinct locations of the ring
func (r *Ring) distinct() int {
	seen := make(map[element.Location]struct{}, len(r.Locations))
	for _, l := range r.Locations {
		seen[l] = struct{}{}
	}
	return len(seen)
}

// RingSet is the output of one assembly run
type RingSet struct {
	rings   []*Ring
	clean   bool
	drained bool
}

// Clean is true when every ring closed without repair
func (s *RingSet) Clean() bool {
	return s.clean
}

// Len returns the number of rings that have not been handed out yet
func (s *RingSet) Len() int {
	if s.drained {
		return 0
	}
	return len(s.rings)
}

// Rings yields each ring once. The sequence is not restartable: ranging
// over it a second time yields nothing.
func (s *RingSet) Rings() iter.Seq[*Ring] {
	return func(yield func(*Ring) bool) {
		if s.drained {
			return
		}
		s.drained = true
		rings := s.rings
		s.rings = nil
		for _, r := range rings {
			if !yield(r) {
				return
			}
		}
	}
}
