package relations

import "github.com/wegman-software/osm-areas-go/internal/element"

// Entry is the ledger record for one relation that is waiting for members.
// The resolver owns it; handlers must not keep it after RelationComplete returns.
type Entry struct {
	relation *element.Relation
	slots    []element.Object
	wanted   []bool
	needed   int
}

func newEntry(rel *element.Relation) *Entry {
	return &Entry{
		relation: rel,
		slots:    make([]element.Object, len(rel.Members)),
		wanted:   make([]bool, len(rel.Members)),
	}
}

// Relation returns the relation this entry was created for
func (e *Entry) Relation() *element.Relation {
	return e.relation
}

// Members returns the slot array in original member order. Positions that
// were not of interest, or are not filled yet, are nil.
func (e *Entry) Members() []element.Object {
	return e.slots
}

// Needed is the number of interesting members still missing
func (e *Entry) Needed() int {
	return e.needed
}

// Ways returns the filled way slots in member order along with their members
func (e *Entry) Ways() ([]*element.Way, []element.Member) {
	ways := make([]*element.Way, 0, len(e.slots))
	members := make([]element.Member, 0, len(e.slots))
	for i, obj := range e.slots {
		if w, ok := obj.(*element.Way); ok {
			ways = append(ways, w)
			members = append(members, e.relation.Members[i])
		}
	}
	return ways, members
}

// missing lists the interesting members that never arrived
func (e *Entry) missing() []element.Member {
	var out []element.Member
	for i, want := range e.wanted {
		if want && e.slots[i] == nil {
			out = append(out, e.relation.Members[i])
		}
	}
	return out
}

func (e *Entry) release() {
	e.slots = nil
	e.wanted = nil
}

// approxBytes is a rough per-entry memory cost used for sizing reports
func (e *Entry) approxBytes() int64 {
	return 64 + int64(len(e.slots))*17 + int64(len(e.relation.Members))*40
}

// ledger is the arena holding every pending Entry, keyed by relation id
type ledger struct {
	entries map[int64]*Entry
}

func newLedger() *ledger {
	return &ledger{entries: make(map[int64]*Entry)}
}

func (l *ledger) get(id int64) *Entry {
	return l.entries[id]
}

func (l *ledger) put(e *Entry) {
	l.entries[e.relation.ID] = e
}

func (l *ledger) remove(id int64) {
	delete(l.entries, id)
}

func (l *ledger) len() int {
	return len(l.entries)
}

// sorted returns the pending entries ordered by relation id
func (l *ledger) sorted() []*Entry {
	ids := make([]int64, 0, len(l.entries))
	for id := range l.entries {
		ids = append(ids, id)
	}
	element.SortIDs(ids)
	out := make([]*Entry, 0, len(ids))
	for _, id := range ids {
		out = append(out, l.entries[id])
	}
	return out
}

func (l *ledger) approxBytes() int64 {
	var total int64
	for _, e := range l.entries {
		total += e.approxBytes()
	}
	return total
}

func (l *ledger) clear() {
	clear(l.entries)
}
