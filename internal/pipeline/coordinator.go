package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wegman-software/osm-areas-go/internal/area"
	"github.com/wegman-software/osm-areas-go/internal/config"
	"github.com/wegman-software/osm-areas-go/internal/logger"
	"github.com/wegman-software/osm-areas-go/internal/metrics"
	"github.com/wegman-software/osm-areas-go/internal/output"
	"github.com/wegman-software/osm-areas-go/internal/style"
)

// progressInterval is how often pass progress is logged
const progressInterval = 5 * time.Second

// Coordinator runs one shard per input and fans the assembled areas out to every sink
type Coordinator struct {
	cfg    *config.Config
	style  *style.Config
	sinks  []output.Sink
	report *area.Report
	shards []*Shard
}

// NewCoordinator creates a coordinator. With no sinks the areas are counted and dropped.
func NewCoordinator(cfg *config.Config, styleCfg *style.Config, sinks []output.Sink) *Coordinator {
	if styleCfg == nil {
		styleCfg = style.DefaultConfig()
	}
	return &Coordinator{
		cfg:    cfg,
		style:  styleCfg,
		sinks:  sinks,
		report: area.NewReport(),
	}
}

// Report returns the failure report shared by all shards
func (c *Coordinator) Report() *area.Report {
	return c.report
}

// Pending sums waiting relations and members across running shards
func (c *Coordinator) Pending() (relations, members int64) {
	for _, s := range c.shards {
		r, m := s.Pending()
		relations += r
		members += m
	}
	return relations, members
}

// Run executes the two-pass assembly over every input
func (c *Coordinator) Run(ctx context.Context) (*RunStats, error) {
	log := logger.Get()
	stats := &RunStats{Started: time.Now(), Outputs: make(map[string]int64)}

	buffer := c.cfg.ChannelBuffer
	areas := make(chan *area.Area, buffer)

	procs := max(1, runtime.NumCPU()/max(1, min(c.cfg.Workers, len(c.cfg.Inputs))))
	c.shards = make([]*Shard, len(c.cfg.Inputs))
	for i, input := range c.cfg.Inputs {
		c.shards[i] = NewShard(ShardConfig{
			Input:         input,
			NodeStore:     c.cfg.NodeStore,
			FlatNodesFile: c.cfg.FlatNodesFile,
			KeepFlatNodes: c.cfg.KeepFlatNodes,
			RepairGaps:    c.cfg.RepairGaps,
			Procs:         procs,
			Style:         c.style,
			Report:        c.report,
		}, areas)
	}

	if c.cfg.MetricsInterval > 0 {
		metricsCtx, cancelMetrics := context.WithCancel(ctx)
		defer cancelMetrics()

		collector := metrics.NewCollector(c.cfg.MetricsInterval, log)
		collector.Register("pending_relations", func() int64 { r, _ := c.Pending(); return r })
		collector.Register("pending_members", func() int64 { _, m := c.Pending(); return m })
		go collector.Start(metricsCtx)
		log.Info("System metrics collection started",
			zap.Duration("interval", c.cfg.MetricsInterval))
	}

	progressCtx, cancelProgress := context.WithCancel(ctx)
	defer cancelProgress()
	go c.reportProgress(progressCtx)

	g, gctx := errgroup.WithContext(ctx)

	sinkChans := make([]chan *area.Area, len(c.sinks))
	counts := make([]int64, len(c.sinks))
	for i, sink := range c.sinks {
		ch := make(chan *area.Area, buffer)
		sinkChans[i] = ch
		g.Go(func() error {
			n, err := sink.Consume(gctx, ch)
			counts[i] = n
			if err != nil {
				return fmt.Errorf("%s output failed: %w", sink.Name(), err)
			}
			return nil
		})
	}

	g.Go(func() error {
		return route(gctx, areas, sinkChans)
	})

	g.Go(func() error {
		defer close(areas)
		sg, sctx := errgroup.WithContext(gctx)
		sg.SetLimit(c.cfg.Workers)
		for _, shard := range c.shards {
			sg.Go(func() error {
				return shard.Run(sctx)
			})
		}
		return sg.Wait()
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, sink := range c.sinks {
		stats.Outputs[sink.Name()] = counts[i]
	}
	for _, s := range c.shards {
		stats.Shards = append(stats.Shards, s.Stats())
	}
	stats.Duration = time.Since(stats.Started)

	t := stats.Totals()
	log.Info("Assembly complete",
		zap.Int("inputs", len(c.shards)),
		zap.Int64("relation_areas", t.Builder.RelationAreas),
		zap.Int64("way_areas", t.Builder.WayAreas),
		zap.Int64("inner_areas", t.Builder.InnerAreas),
		zap.Int64("failed", t.Builder.Failed),
		zap.Int64("incomplete", t.Resolver.Incomplete),
		zap.Int64("repaired", t.Builder.Repaired),
		zap.Duration("duration", stats.Duration.Round(time.Second)),
	)
	return stats, nil
}

// RunReport assembles the YAML report for a finished run
func (c *Coordinator) RunReport(stats *RunStats) *output.RunReport {
	t := stats.Totals()
	return &output.RunReport{
		Inputs:    c.cfg.Inputs,
		StartedAt: stats.Started.UTC().Truncate(time.Second),
		Duration:  stats.Duration.Round(time.Millisecond).String(),
		Areas: output.AreaCounts{
			Relations:  t.Builder.RelationAreas,
			Ways:       t.Builder.WayAreas,
			Inner:      t.Builder.InnerAreas,
			Repaired:   t.Builder.Repaired,
			Reoriented: t.Builder.Reoriented,
			Failed:     t.Builder.Failed,
			Incomplete: t.Resolver.Incomplete,
		},
		Outputs:  stats.Outputs,
		Reasons:  c.report.Summary(),
		Warnings: c.report.Warnings(),
		Failures: c.report.Failures(),
	}
}

// route copies every area to each sink channel and closes them when done
func route(ctx context.Context, in <-chan *area.Area, outs []chan *area.Area) error {
	defer func() {
		for _, ch := range outs {
			close(ch)
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case a, ok := <-in:
			if !ok {
				return nil
			}
			for _, ch := range outs {
				select {
				case ch <- a:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}

// reportProgress periodically logs the pass progress of every running shard
func (c *Coordinator) reportProgress(ctx context.Context) {
	log := logger.Get()
	trackers := make(map[*Shard]*ProgressTracker)

	tick(ctx, progressInterval, func() {
		for _, s := range c.shards {
			pass, objects, scanned, size := s.progress()
			if pass == 0 {
				continue
			}
			tr := trackers[s]
			if tr == nil || tr.Pass() != pass {
				tr = NewProgressTracker(s.cfg.Input, pass, size)
				trackers[s] = tr
			}
			relations, members := s.Pending()
			fields := append(tr.Calculate(objects, scanned).Fields(),
				zap.Int64("pending_relations", relations),
				zap.Int64("pending_members", members),
			)
			log.Info("Progress", fields...)
		}
	})
}
