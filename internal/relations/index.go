package relations

import "slices"

// memberRef points from a member id back to the relation slot waiting for it
type memberRef struct {
	relation int64
	pos      int32
}

// memberIndex maps member ids to every (relation, position) that wants them.
// Refs are handles into the ledger, never owners.
type memberIndex struct {
	buckets map[int64][]memberRef
	refs    int
}

func newMemberIndex() *memberIndex {
	return &memberIndex{buckets: make(map[int64][]memberRef)}
}

func (m *memberIndex) add(member int64, ref memberRef) {
	m.buckets[member] = append(m.buckets[member], ref)
	m.refs++
}

// lookup returns a copy of the bucket so callers may mutate the index while iterating
func (m *memberIndex) lookup(member int64) []memberRef {
	bucket, ok := m.buckets[member]
	if !ok {
		return nil
	}
	return slices.Clone(bucket)
}

func (m *memberIndex) contains(member int64) bool {
	_, ok := m.buckets[member]
	return ok
}

// removeRelation drops every ref from member's bucket that points at relation
func (m *memberIndex) removeRelation(member, relation int64) {
	bucket, ok := m.buckets[member]
	if !ok {
		return
	}
	kept := bucket[:0]
	for _, ref := range bucket {
		if ref.relation == relation {
			m.refs--
			continue
		}
		kept = append(kept, ref)
	}
	if len(kept) == 0 {
		delete(m.buckets, member)
		return
	}
	m.buckets[member] = kept
}

func (m *memberIndex) distinct() int {
	return len(m.buckets)
}

func (m *memberIndex) clear() {
	clear(m.buckets)
	m.refs = 0
}
