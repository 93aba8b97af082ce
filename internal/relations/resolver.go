package relations

import (
	"fmt"
	"iter"
	"sync/atomic"

	"github.com/wegman-software/osm-areas-go/internal/element"
)

// Config selects which relations and members the resolver tracks
type Config struct {
	// MemberType is the only member kind that is collected (ways for areas)
	MemberType element.Type
	// SelectRelation filters relations fed through Resolver.Relation. Nil accepts all.
	SelectRelation func(*element.Relation) bool
	// KeepMember filters members of a registered relation. Nil keeps all of MemberType.
	KeepMember func(*element.Relation, element.Member) bool
}

// Handler receives resolver events. All callbacks run on the goroutine
// that drives the resolver.
type Handler interface {
	// RelationComplete fires exactly once, when every interesting member has arrived
	RelationComplete(e *Entry)
	// RelationWithNoMembers fires in pass 1 for relations without any interesting member
	RelationWithNoMembers(rel *element.Relation)
	// MemberNotWanted fires in pass 2 for objects of MemberType no relation asked for
	MemberNotWanted(obj element.Object)
}

// NopHandler ignores every event. Embed it to implement only some callbacks.
type NopHandler struct{}

func (NopHandler) RelationComplete(*Entry)                 {}
func (NopHandler) RelationWithNoMembers(*element.Relation) {}
func (NopHandler) MemberNotWanted(element.Object)          {}

// FirstPassStats describes what pass 2 will have to hold in memory
type FirstPassStats struct {
	PendingRelations int
	PendingMembers   int
	DistinctMembers  int
	IgnoredMembers   int
	EstimatedBytes   int64
}

// Stats holds resolver counters
type Stats struct {
	Registered         int64
	NoMembers          int64
	Completed          int64
	NotWanted          int64
	DuplicateOffers    int64
	DuplicateRelations int64
	Incomplete         int64
}

// Incomplete is a relation that never received all of its members
type Incomplete struct {
	Relation *element.Relation
	Missing  []element.Member
}

type phase uint8

const (
	phaseFirst phase = iota
	phaseSecond
	phaseDone
)

// Resolver collects the members of relations across two ordered passes.
// It is single-writer: one goroutine drives both passes.
type Resolver struct {
	cfg     Config
	handler Handler
	index   *memberIndex
	ledger  *ledger
	phase   phase

	// every relation id seen by BeginInterest, including those without
	// interesting members that never enter the ledger
	registered map[int64]struct{}

	duplicates []int64
	ignored    int
	incomplete []Incomplete
	stats      Stats

	// read by metrics from other goroutines
	pendingRelations atomic.Int64
	pendingMembers   atomic.Int64
}

// New creates a resolver. A nil handler is replaced by NopHandler.
func New(cfg Config, handler Handler) *Resolver {
	if cfg.MemberType == 0 {
		cfg.MemberType = element.TypeWay
	}
	if handler == nil {
		handler = NopHandler{}
	}
	return &Resolver{
		cfg:     cfg,
		handler: handler,
		index:   newMemberIndex(),
		ledger:  newLedger(),

		registered: make(map[int64]struct{}),
	}
}

// Relation feeds a pass 1 relation through SelectRelation and registers it if selected
func (r *Resolver) Relation(rel *element.Relation) error {
	if r.cfg.SelectRelation != nil && !r.cfg.SelectRelation(rel) {
		return nil
	}
	return r.BeginInterest(rel)
}

// BeginInterest registers rel and indexes every interesting member by position
func (r *Resolver) BeginInterest(rel *element.Relation) error {
	if r.phase != phaseFirst {
		return fmt.Errorf("%w: relation %d registered after first pass", ErrProtocol, rel.ID)
	}
	if _, seen := r.registered[rel.ID]; seen {
		r.duplicates = append(r.duplicates, rel.ID)
		r.stats.DuplicateRelations++
		return fmt.Errorf("%w: relation %d", ErrDuplicateInterest, rel.ID)
	}
	r.registered[rel.ID] = struct{}{}

	e := newEntry(rel)
	for pos, m := range rel.Members {
		if m.Type != r.cfg.MemberType {
			r.ignored++
			continue
		}
		if r.cfg.KeepMember != nil && !r.cfg.KeepMember(rel, m) {
			r.ignored++
			continue
		}
		e.wanted[pos] = true
		e.needed++
	}

	if e.needed == 0 {
		r.stats.NoMembers++
		r.handler.RelationWithNoMembers(rel)
		return nil
	}

	for pos, want := range e.wanted {
		if want {
			r.index.add(rel.Members[pos].Ref, memberRef{relation: rel.ID, pos: int32(pos)})
		}
	}
	r.ledger.put(e)
	r.stats.Registered++
	r.pendingRelations.Add(1)
	r.pendingMembers.Add(int64(e.needed))
	return nil
}

// EndFirstPass closes registration. It reports ErrDuplicateInterest if any
// relation id was registered twice, after which the resolver can still be used.
func (r *Resolver) EndFirstPass() (FirstPassStats, error) {
	if r.phase != phaseFirst {
		return FirstPassStats{}, fmt.Errorf("%w: first pass already ended", ErrProtocol)
	}
	r.phase = phaseSecond
	r.registered = nil

	stats := FirstPassStats{
		PendingRelations: r.ledger.len(),
		PendingMembers:   r.index.refs,
		DistinctMembers:  r.index.distinct(),
		IgnoredMembers:   r.ignored,
		EstimatedBytes:   r.ledger.approxBytes() + int64(r.index.refs)*16 + int64(r.index.distinct())*48,
	}
	if len(r.duplicates) > 0 {
		return stats, fmt.Errorf("%w: %d relation ids, first %d", ErrDuplicateInterest, len(r.duplicates), r.duplicates[0])
	}
	return stats, nil
}

// OfferMember hands a pass 2 object to every relation waiting for it.
// Objects of other types than MemberType are ignored.
func (r *Resolver) OfferMember(obj element.Object) error {
	switch r.phase {
	case phaseFirst:
		return fmt.Errorf("%w: member offered before first pass ended", ErrProtocol)
	case phaseDone:
		return fmt.Errorf("%w: member offered after second pass ended", ErrProtocol)
	}
	if obj.ObjectType() != r.cfg.MemberType {
		return nil
	}

	refs := r.index.lookup(obj.ObjectID())
	if refs == nil {
		r.stats.NotWanted++
		r.handler.MemberNotWanted(obj)
		return nil
	}

	for _, ref := range refs {
		e := r.ledger.get(ref.relation)
		if e == nil {
			// completed by an earlier ref in this bucket
			continue
		}
		if e.slots[ref.pos] != nil {
			r.stats.DuplicateOffers++
			continue
		}
		e.slots[ref.pos] = obj
		e.needed--
		r.pendingMembers.Add(-1)
		if e.needed == 0 {
			r.complete(e)
		}
	}
	return nil
}

func (r *Resolver) complete(e *Entry) {
	r.stats.Completed++
	r.handler.RelationComplete(e)

	id := e.relation.ID
	for pos, want := range e.wanted {
		if want {
			r.index.removeRelation(e.relation.Members[pos].Ref, id)
		}
	}
	r.ledger.remove(id)
	r.pendingRelations.Add(-1)
	e.release()
}

// EndSecondPass reports every relation that is still waiting and clears all state
func (r *Resolver) EndSecondPass() ([]Incomplete, error) {
	switch r.phase {
	case phaseFirst:
		return nil, fmt.Errorf("%w: second pass ended before first", ErrProtocol)
	case phaseDone:
		return nil, fmt.Errorf("%w: second pass already ended", ErrProtocol)
	}
	r.phase = phaseDone

	for _, e := range r.ledger.sorted() {
		r.incomplete = append(r.incomplete, Incomplete{
			Relation: e.relation,
			Missing:  e.missing(),
		})
		e.release()
	}
	r.stats.Incomplete = int64(len(r.incomplete))
	r.ledger.clear()
	r.index.clear()
	r.pendingRelations.Store(0)
	r.pendingMembers.Store(0)
	return r.incomplete, nil
}

// IncompleteRelations yields the relations reported by EndSecondPass
func (r *Resolver) IncompleteRelations() iter.Seq[Incomplete] {
	return func(yield func(Incomplete) bool) {
		for _, inc := range r.incomplete {
			if !yield(inc) {
				return
			}
		}
	}
}

// Stats returns a copy of the resolver counters
func (r *Resolver) Stats() Stats {
	return r.stats
}

// Pending returns the number of waiting relations and missing members.
// Safe to call from any goroutine.
func (r *Resolver) Pending() (relations, members int64) {
	return r.pendingRelations.Load(), r.pendingMembers.Load()
}

// Wants reports whether some pending relation is waiting for member id
func (r *Resolver) Wants(id int64) bool {
	return r.index.contains(id)
}
