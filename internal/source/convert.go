package source

import (
	"github.com/paulmach/osm"

	"github.com/wegman-software/osm-areas-go/internal/element"
)

// FromNode converts a paulmach/osm node
func FromNode(n *osm.Node) *element.Node {
	return &element.Node{
		ID:      int64(n.ID),
		Version: n.Version,
		Tags:    tags(n.Tags),
		Loc:     element.FromDegrees(n.Lon, n.Lat),
	}
}

// FromWay converts a paulmach/osm way. Files written with locations on
// ways already carry coordinates, those nodes come out located.
func FromWay(w *osm.Way) *element.Way {
	nodes := make([]element.WayNode, len(w.Nodes))
	for i, wn := range w.Nodes {
		nodes[i].ID = int64(wn.ID)
		if wn.Lat != 0 || wn.Lon != 0 {
			nodes[i].Loc = element.FromDegrees(wn.Lon, wn.Lat)
			nodes[i].Located = true
		}
	}
	return &element.Way{
		ID:      int64(w.ID),
		Version: w.Version,
		Tags:    tags(w.Tags),
		Nodes:   nodes,
	}
}

// FromRelation converts a paulmach/osm relation
func FromRelation(r *osm.Relation) *element.Relation {
	members := make([]element.Member, 0, len(r.Members))
	for _, m := range r.Members {
		var typ element.Type
		switch m.Type {
		case osm.TypeNode:
			typ = element.TypeNode
		case osm.TypeWay:
			typ = element.TypeWay
		case osm.TypeRelation:
			typ = element.TypeRelation
		default:
			continue
		}
		members = append(members, element.Member{Type: typ, Ref: m.Ref, Role: m.Role})
	}
	return &element.Relation{
		ID:      int64(r.ID),
		Version: r.Version,
		Tags:    tags(r.Tags),
		Members: members,
	}
}

func tags(t osm.Tags) element.Tags {
	if len(t) == 0 {
		return element.Tags{}
	}
	return element.Tags(t.Map())
}
