package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wegman-software/osm-areas-go/internal/area"
	"github.com/wegman-software/osm-areas-go/internal/element"
	"github.com/wegman-software/osm-areas-go/internal/logger"
	"github.com/wegman-software/osm-areas-go/internal/nodeindex"
	"github.com/wegman-software/osm-areas-go/internal/planar"
	"github.com/wegman-software/osm-areas-go/internal/relations"
	"github.com/wegman-software/osm-areas-go/internal/source"
	"github.com/wegman-software/osm-areas-go/internal/style"
)

// checkEvery is how many objects a pass reads between context checks
const checkEvery = 1 << 16

// ShardConfig configures one input shard
type ShardConfig struct {
	Input         string
	NodeStore     string
	FlatNodesFile string
	KeepFlatNodes bool
	RepairGaps    bool
	Procs         int
	Style         *style.Config
	Report        *area.Report
}

// Shard runs both passes over a single input file with its own node
// store and resolver, sending assembled areas to out.
type Shard struct {
	cfg ShardConfig
	out chan<- *area.Area

	resolver atomic.Pointer[relations.Resolver]
	reader   atomic.Pointer[source.Reader]
	pass     atomic.Int32
	objects  atomic.Int64
	stats    ShardStats
}

// NewShard creates a shard for one input
func NewShard(cfg ShardConfig, out chan<- *area.Area) *Shard {
	if cfg.Style == nil {
		cfg.Style = style.DefaultConfig()
	}
	if cfg.Report == nil {
		cfg.Report = area.NewReport()
	}
	return &Shard{cfg: cfg, out: out, stats: ShardStats{Input: cfg.Input}}
}

// Stats returns the shard counters. Valid after Run returns.
func (s *Shard) Stats() ShardStats {
	return s.stats
}

// Pending returns the resolver's waiting relations and members. Safe to
// call from any goroutine.
func (s *Shard) Pending() (relations, members int64) {
	if r := s.resolver.Load(); r != nil {
		return r.Pending()
	}
	return 0, 0
}

// Run executes pass 1 (nodes and relations) and pass 2 (ways)
func (s *Shard) Run(ctx context.Context) error {
	start := time.Now()
	log := logger.Named("shard").With(zap.String("input", filepath.Base(s.cfg.Input)))

	store, err := nodeindex.Open(s.cfg.NodeStore, s.cfg.FlatNodesFile, s.cfg.KeepFlatNodes)
	if err != nil {
		return err
	}
	defer store.Close()

	builder := area.NewBuilder(area.BuilderConfig{
		Geometry:   planar.Orb{},
		RepairGaps: s.cfg.RepairGaps,
		Standalone: s.cfg.Style.Standalone(),
		Report:     s.cfg.Report,
		Emit: func(a *area.Area) {
			select {
			case s.out <- a:
				s.stats.Emitted++
			case <-ctx.Done():
			}
		},
	})
	resolver := relations.New(relations.Config{
		MemberType:     element.TypeWay,
		SelectRelation: s.cfg.Style.SelectRelation(),
		KeepMember:     s.cfg.Style.KeepMember(),
	}, builder)
	s.resolver.Store(resolver)

	log.Info("Pass 1: reading nodes and relations")
	if err := s.firstPass(ctx, resolver, store); err != nil {
		return fmt.Errorf("%s: pass 1: %w", s.cfg.Input, err)
	}
	fp, err := resolver.EndFirstPass()
	if err != nil {
		return fmt.Errorf("%s: %w", s.cfg.Input, err)
	}
	s.stats.FirstPass = fp
	log.Info("Pass 1 complete",
		zap.Int64("nodes", s.stats.Nodes),
		zap.Int64("relations", s.stats.Relations),
		zap.Int("pending_relations", fp.PendingRelations),
		zap.Int("pending_members", fp.PendingMembers),
		zap.Int("distinct_members", fp.DistinctMembers),
		zap.Int("ignored_members", fp.IgnoredMembers),
		zap.String("est_memory", FormatBytes(fp.EstimatedBytes)),
	)

	log.Info("Pass 2: reading ways")
	passErr := s.secondPass(ctx, resolver, store)
	if passErr != nil && ctx.Err() == nil {
		return fmt.Errorf("%s: pass 2: %w", s.cfg.Input, passErr)
	}
	// on cancellation the relations completed so far stay emitted and the
	// rest is reported as incomplete
	incomplete, err := resolver.EndSecondPass()
	if err != nil {
		return fmt.Errorf("%s: %w", s.cfg.Input, err)
	}
	for _, inc := range incomplete {
		s.cfg.Report.AddIncomplete(inc)
	}

	s.stats.Resolver = resolver.Stats()
	s.stats.Builder = builder.Stats()
	s.stats.Duration = time.Since(start)

	log.Info("Pass 2 complete",
		zap.Int64("ways", s.stats.Ways),
		zap.Int64("relation_areas", s.stats.Builder.RelationAreas),
		zap.Int64("way_areas", s.stats.Builder.WayAreas),
		zap.Int64("failed", s.stats.Builder.Failed),
		zap.Int("incomplete", len(incomplete)),
		zap.Int64("missing_nodes", s.stats.MissingNodes),
		zap.Duration("duration", s.stats.Duration.Round(time.Millisecond)),
	)
	return ctx.Err()
}

func (s *Shard) firstPass(ctx context.Context, resolver *relations.Resolver, store nodeindex.Store) error {
	return s.scan(ctx, 1, source.Options{SkipWays: true, Procs: s.cfg.Procs}, func(obj element.Object) error {
		switch o := obj.(type) {
		case *element.Node:
			store.Put(o.ID, o.Loc)
			s.stats.Nodes++
		case *element.Relation:
			s.stats.Relations++
			return resolver.Relation(o)
		}
		return nil
	})
}

func (s *Shard) secondPass(ctx context.Context, resolver *relations.Resolver, store nodeindex.Store) error {
	return s.scan(ctx, 2, source.Options{SkipNodes: true, SkipRelations: true, Procs: s.cfg.Procs}, func(obj element.Object) error {
		w, ok := obj.(*element.Way)
		if !ok {
			return nil
		}
		s.stats.Ways++
		// only ways that can become rings need coordinates
		if resolver.Wants(w.ID) || (w.IsClosed() && len(w.Nodes) >= 4) {
			s.stats.MissingNodes += int64(nodeindex.Locate(store, w))
		}
		return resolver.OfferMember(w)
	})
}

// scan reads one pass and hands every object to fn
func (s *Shard) scan(ctx context.Context, pass int32, opts source.Options, fn func(element.Object) error) error {
	r, err := source.Open(ctx, s.cfg.Input, opts)
	if err != nil {
		return err
	}
	s.objects.Store(0)
	s.pass.Store(pass)
	s.reader.Store(r)
	defer func() {
		s.reader.Store(nil)
		r.Close()
	}()

	var n int64
	for r.Next() {
		if err := fn(r.Object()); err != nil {
			return err
		}
		n++
		if n%checkEvery == 0 {
			s.objects.Store(n)
			if err := ctx.Err(); err != nil {
				return err
			}
		}
	}
	s.objects.Store(n)
	if err := r.Err(); err != nil {
		return err
	}
	return ctx.Err()
}

// progress returns the current pass with its tracker inputs, or pass 0
// when no pass is running
func (s *Shard) progress() (pass int32, objects, scanned, size int64) {
	r := s.reader.Load()
	if r == nil {
		return 0, 0, 0, 0
	}
	return s.pass.Load(), s.objects.Load(), r.ScannedBytes(), r.Size()
}
