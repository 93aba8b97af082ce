package element

// Object is implemented by every primitive that can be offered to the
// relation resolver as a member.
type Object interface {
	ObjectType() Type
	ObjectID() int64
}

// Member is one entry of a relation's ordered member list
type Member struct {
	Type Type
	Ref  int64
	Role string
}

// Relation is an ordered list of members plus tags
type Relation struct {
	ID      int64
	Version int
	Tags    Tags
	Members []Member
}

func (r *Relation) ObjectType() Type { return TypeRelation }
func (r *Relation) ObjectID() int64  { return r.ID }

// WayNode is a node reference inside a way. Located is false when the
// coordinate could not be resolved.
type WayNode struct {
	ID      int64
	Loc     Location
	Located bool
}

// Way is an ordered list of node references
type Way struct {
	ID      int64
	Version int
	Tags    Tags
	Nodes   []WayNode
}

func (w *Way) ObjectType() Type { return TypeWay }
func (w *Way) ObjectID() int64  { return w.ID }

// IsClosed returns true if the first and last node references are the same node
func (w *Way) IsClosed() bool {
	return len(w.Nodes) >= 2 && w.Nodes[0].ID == w.Nodes[len(w.Nodes)-1].ID
}

// Located returns true if every node reference carries a location
func (w *Way) Located() bool {
	for _, n := range w.Nodes {
		if !n.Located {
			return false
		}
	}
	return true
}

// FirstID and LastID return the endpoint node ids. The way must have nodes.
func (w *Way) FirstID() int64 { return w.Nodes[0].ID }
func (w *Way) LastID() int64  { return w.Nodes[len(w.Nodes)-1].ID }

// Node is a single point
type Node struct {
	ID      int64
	Version int
	Tags    Tags
	Loc     Location
}

func (n *Node) ObjectType() Type { return TypeNode }
func (n *Node) ObjectID() int64  { return n.ID }
