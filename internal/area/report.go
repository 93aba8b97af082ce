package area

import (
	"cmp"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/wegman-software/osm-areas-go/internal/element"
	"github.com/wegman-software/osm-areas-go/internal/relations"
)

// Failure records why an object did not produce an area
type Failure struct {
	Type   element.Type `yaml:"-"`
	ID     int64        `yaml:"id"`
	Kind   string       `yaml:"type"`
	Reason string       `yaml:"reason"`
	Detail string       `yaml:"detail,omitempty"`
}

// Report collects failures and warnings. It is safe for concurrent use so
// several shards can share one report.
type Report struct {
	mu       sync.Mutex
	failures []Failure
	warnings map[string]int64
}

// NewReport creates an empty report
func NewReport() *Report {
	return &Report{warnings: make(map[string]int64)}
}

// AddFailure records a failed object
func (r *Report) AddFailure(typ element.Type, id int64, reason, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, Failure{Type: typ, ID: id, Kind: typ.String(), Reason: reason, Detail: detail})
}

// AddError records a failed object using the error's reason code
func (r *Report) AddError(typ element.Type, id int64, err error) {
	r.AddFailure(typ, id, Reason(err), err.Error())
}

// AddIncomplete records a relation whose members never all arrived
func (r *Report) AddIncomplete(inc relations.Incomplete) {
	ids := make([]int64, len(inc.Missing))
	for i, m := range inc.Missing {
		ids[i] = m.Ref
	}
	r.AddFailure(element.TypeRelation, inc.Relation.ID, "incomplete", formatIDs("missing ways", ids))
}

// Warn increments a named warning counter
func (r *Report) Warn(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings[name]++
}

// Failures returns all failures ordered by type then id
func (r *Report) Failures() []Failure {
	r.mu.Lock()
	out := slices.Clone(r.failures)
	r.mu.Unlock()

	slices.SortFunc(out, func(a, b Failure) int {
		if c := cmp.Compare(a.Type, b.Type); c != 0 {
			return c
		}
		return element.CompareIDs(a.ID, b.ID)
	})
	return out
}

// Summary counts failures by reason
func (r *Report) Summary() map[string]int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int64)
	for _, f := range r.failures {
		out[f.Reason]++
	}
	return out
}

// Warnings returns a copy of the warning counters
func (r *Report) Warnings() map[string]int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.warnings)
}

// Len returns the number of failures
func (r *Report) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.failures)
}

// maxListedIDs caps how many ids a failure detail spells out
const maxListedIDs = 10

func formatIDs(label string, ids []int64) string {
	var b strings.Builder
	b.WriteString(label)
	b.WriteString(":")
	for i, id := range ids {
		if i == maxListedIDs {
			b.WriteString(" ... (")
			b.WriteString(strconv.Itoa(len(ids)))
			b.WriteString(" total)")
			break
		}
		b.WriteString(" ")
		b.WriteString(strconv.FormatInt(id, 10))
	}
	return b.String()
}
