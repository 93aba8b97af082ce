package relations

import "fmt"

// checkIntegrity verifies that every index ref points to a live ledger slot
// that is still unfilled
func (r *Resolver) checkIntegrity() error {
	for member, bucket := range r.index.buckets {
		for _, ref := range bucket {
			e := r.ledger.get(ref.relation)
			if e == nil {
				return fmt.Errorf("member %d references missing relation %d", member, ref.relation)
			}
			if int(ref.pos) >= len(e.relation.Members) || e.relation.Members[ref.pos].Ref != member {
				return fmt.Errorf("member %d has bad position %d in relation %d", member, ref.pos, ref.relation)
			}
		}
	}
	for id, e := range r.ledger.entries {
		filled := 0
		wanted := 0
		for pos, want := range e.wanted {
			if !want {
				continue
			}
			wanted++
			if e.slots[pos] != nil {
				filled++
			}
		}
		if wanted-filled != e.needed {
			return fmt.Errorf("relation %d needs %d but has %d open slots", id, e.needed, wanted-filled)
		}
	}
	return nil
}
