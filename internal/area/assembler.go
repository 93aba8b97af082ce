package area

import (
	"fmt"

	"github.com/wegman-software/osm-areas-go/internal/element"
)

// Assembler chains member ways into closed rings by joining shared endpoint nodes
type Assembler struct {
	// RepairGaps closes a dangling chain with a straight segment back to
	// its start instead of failing with ErrUnclosedRing
	RepairGaps bool
}

// Assemble builds rings from ways. Ways are tried in the given order, so the
// result is deterministic for a fixed member list.
func (a *Assembler) Assemble(ways []*element.Way) (*RingSet, error) {
	usable := make([]*element.Way, 0, len(ways))
	for _, w := range ways {
		if w == nil {
			continue
		}
		if len(w.Nodes) == 0 {
			return nil, fmt.Errorf("%w: way %d has no nodes", ErrInsufficientGeometry, w.ID)
		}
		for _, n := range w.Nodes {
			if !n.Located {
				return nil, fmt.Errorf("%w: way %d node %d", ErrMissingPositions, w.ID, n.ID)
			}
		}
		if distinctLocations(w.Nodes) < 2 {
			return nil, fmt.Errorf("%w: way %d has fewer than 2 distinct positions", ErrInsufficientGeometry, w.ID)
		}
		usable = append(usable, w)
	}
	if len(usable) == 0 {
		return nil, fmt.Errorf("%w: no usable ways", ErrInsufficientGeometry)
	}

	// endpoint node id -> ways starting or ending there, in member order
	endpoints := make(map[int64][]int, len(usable)*2)
	for i, w := range usable {
		endpoints[w.FirstID()] = append(endpoints[w.FirstID()], i)
		if w.LastID() != w.FirstID() {
			endpoints[w.LastID()] = append(endpoints[w.LastID()], i)
		}
	}

	used := make([]bool, len(usable))
	set := &RingSet{clean: true}

	for start := range usable {
		if used[start] {
			continue
		}
		used[start] = true

		c := newChain(usable[start])
		for !c.closed() {
			next, reversed, ok := nextWay(usable, endpoints, used, c.tail().ID)
			if !ok {
				break
			}
			used[next] = true
			c.extend(usable[next], reversed)
		}

		if !c.closed() {
			if !a.RepairGaps {
				return nil, fmt.Errorf("%w: chain from node %d ends at node %d", ErrUnclosedRing, c.head().ID, c.tail().ID)
			}
			c.closeGap()
			set.clean = false
		}

		ring := c.ring()
		if ring.distinct() < 3 {
			return nil, fmt.Errorf("%w: ring through way %d has fewer than 3 distinct positions", ErrInsufficientGeometry, ring.Ways[0])
		}
		set.rings = append(set.rings, ring)
	}

	return set, nil
}

// nextWay finds the first unused open way with an endpoint at node. reversed
// is true when the way has to be walked backwards to continue the chain.
// Closed ways always form a ring of their own.
func nextWay(ways []*element.Way, endpoints map[int64][]int, used []bool, node int64) (idx int, reversed bool, ok bool) {
	for _, i := range endpoints[node] {
		if used[i] || ways[i].FirstID() == ways[i].LastID() {
			continue
		}
		if ways[i].FirstID() == node {
			return i, false, true
		}
		return i, true, true
	}
	return 0, false, false
}

func distinctLocations(nodes []element.WayNode) int {
	first := nodes[0].Loc
	for _, n := range nodes[1:] {
		if n.Loc != first {
			return 2
		}
	}
	return 1
}

// chain is a ring under construction
type chain struct {
	nodes    []element.WayNode
	ways     []int64
	repaired bool
}

func newChain(w *element.Way) *chain {
	nodes := make([]element.WayNode, len(w.Nodes))
	copy(nodes, w.Nodes)
	return &chain{nodes: nodes, ways: []int64{w.ID}}
}

func (c *chain) head() element.WayNode { return c.nodes[0] }
func (c *chain) tail() element.WayNode { return c.nodes[len(c.nodes)-1] }

// closed is true once the walk has returned to its first node, by id or by
// position (distinct nodes sharing a location also close a ring)
func (c *chain) closed() bool {
	if len(c.nodes) < 2 {
		return false
	}
	h, t := c.head(), c.tail()
	return h.ID == t.ID || h.Loc == t.Loc
}

func (c *chain) extend(w *element.Way, reversed bool) {
	if reversed {
		for i := len(w.Nodes) - 2; i >= 0; i-- {
			c.nodes = append(c.nodes, w.Nodes[i])
		}
	} else {
		c.nodes = append(c.nodes, w.Nodes[1:]...)
	}
	c.ways = append(c.ways, w.ID)
}

func (c *chain) closeGap() {
	c.nodes = append(c.nodes, c.head())
	c.repaired = true
}

// ring converts the chain to a Ring, dropping consecutive duplicate positions
func (c *chain) ring() *Ring {
	r := &Ring{
		Locations: make([]element.Location, 0, len(c.nodes)),
		NodeIDs:   make([]int64, 0, len(c.nodes)),
		Ways:      c.ways,
		Repaired:  c.repaired,
	}
	for i, n := range c.nodes {
		if i > 0 && n.Loc == r.Locations[len(r.Locations)-1] {
			continue
		}
		r.Locations = append(r.Locations, n.Loc)
		r.NodeIDs = append(r.NodeIDs, n.ID)
	}
	// closure by position may leave the last node id different from the first
	if r.Locations[len(r.Locations)-1] != r.Locations[0] {
		r.Locations = append(r.Locations, r.Locations[0])
		r.NodeIDs = append(r.NodeIDs, r.NodeIDs[0])
	}
	return r
}
