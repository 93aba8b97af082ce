package pipeline

import (
	"time"

	"github.com/wegman-software/osm-areas-go/internal/area"
	"github.com/wegman-software/osm-areas-go/internal/relations"
)

// ShardStats holds the counters of one input file
type ShardStats struct {
	Input        string
	Nodes        int64
	Ways         int64
	Relations    int64
	MissingNodes int64
	Emitted      int64
	FirstPass    relations.FirstPassStats
	Resolver     relations.Stats
	Builder      area.BuilderStats
	Duration     time.Duration
}

// RunStats holds combined statistics of a run
type RunStats struct {
	Shards   []ShardStats
	Outputs  map[string]int64
	Started  time.Time
	Duration time.Duration
}

// Totals sums the shard counters
func (s *RunStats) Totals() ShardStats {
	var t ShardStats
	for _, sh := range s.Shards {
		t.Nodes += sh.Nodes
		t.Ways += sh.Ways
		t.Relations += sh.Relations
		t.MissingNodes += sh.MissingNodes
		t.Emitted += sh.Emitted

		t.Resolver.Registered += sh.Resolver.Registered
		t.Resolver.NoMembers += sh.Resolver.NoMembers
		t.Resolver.Completed += sh.Resolver.Completed
		t.Resolver.NotWanted += sh.Resolver.NotWanted
		t.Resolver.DuplicateOffers += sh.Resolver.DuplicateOffers
		t.Resolver.DuplicateRelations += sh.Resolver.DuplicateRelations
		t.Resolver.Incomplete += sh.Resolver.Incomplete

		t.Builder.RelationAreas += sh.Builder.RelationAreas
		t.Builder.WayAreas += sh.Builder.WayAreas
		t.Builder.InnerAreas += sh.Builder.InnerAreas
		t.Builder.Failed += sh.Builder.Failed
		t.Builder.Repaired += sh.Builder.Repaired
		t.Builder.Reoriented += sh.Builder.Reoriented
	}
	return t
}
