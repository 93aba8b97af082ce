package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/wegman-software/osm-areas-go/internal/area"
	"github.com/wegman-software/osm-areas-go/internal/config"
	"github.com/wegman-software/osm-areas-go/internal/output"
)

const forestXML = `<?xml version="1.0" encoding="UTF-8"?>
<osm version="0.6">
  <node id="1" lat="50.0" lon="10.0" version="1"/>
  <node id="2" lat="50.0" lon="11.0" version="1"/>
  <node id="3" lat="51.0" lon="11.0" version="1"/>
  <node id="4" lat="51.0" lon="10.0" version="1"/>
  <node id="5" lat="50.2" lon="10.2" version="1"/>
  <node id="6" lat="50.2" lon="10.8" version="1"/>
  <node id="7" lat="50.8" lon="10.8" version="1"/>
  <node id="8" lat="50.8" lon="10.2" version="1"/>
  <node id="9" lat="20.0" lon="20.0" version="1"/>
  <node id="10" lat="20.0" lon="20.1" version="1"/>
  <node id="11" lat="20.1" lon="20.1" version="1"/>
  <node id="12" lat="20.1" lon="20.0" version="1"/>
  <way id="100" version="1"><nd ref="1"/><nd ref="2"/><nd ref="3"/></way>
  <way id="101" version="1"><nd ref="3"/><nd ref="4"/><nd ref="1"/></way>
  <way id="102" version="1"><nd ref="5"/><nd ref="6"/><nd ref="7"/><nd ref="8"/><nd ref="5"/></way>
  <way id="103" version="1">
    <nd ref="9"/><nd ref="10"/><nd ref="11"/><nd ref="12"/><nd ref="9"/>
    <tag k="building" v="yes"/>
  </way>
  <way id="104" version="1">
    <nd ref="1"/><nd ref="2"/>
    <tag k="highway" v="track"/>
  </way>
  <relation id="200" version="3">
    <member type="way" ref="100" role="outer"/>
    <member type="way" ref="101" role="outer"/>
    <member type="way" ref="102" role="inner"/>
    <tag k="type" v="multipolygon"/>
    <tag k="landuse" v="forest"/>
  </relation>
  <relation id="201" version="1">
    <member type="way" ref="999" role="outer"/>
    <tag k="type" v="multipolygon"/>
    <tag k="natural" v="water"/>
  </relation>
  <relation id="202" version="1">
    <member type="way" ref="104" role=""/>
    <tag k="type" v="route"/>
  </relation>
</osm>
`

// memorySink collects areas for assertions
type memorySink struct {
	mu    sync.Mutex
	areas []*area.Area
	err   error
}

func (m *memorySink) Name() string { return "memory" }

func (m *memorySink) Consume(ctx context.Context, areas <-chan *area.Area) (int64, error) {
	var n int64
	for a := range areas {
		if m.err != nil {
			return n, m.err
		}
		m.mu.Lock()
		m.areas = append(m.areas, a)
		m.mu.Unlock()
		n++
	}
	return n, nil
}

func (m *memorySink) ids() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, len(m.areas))
	for i, a := range m.areas {
		ids[i] = a.AreaID()
	}
	slices.Sort(ids)
	return ids
}

func writeInput(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testConfig(inputs ...string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Inputs = inputs
	cfg.MetricsInterval = 0
	cfg.Workers = 2
	cfg.ChannelBuffer = 4
	return cfg
}

func TestCoordinatorAssemblesAreas(t *testing.T) {
	input := writeInput(t, "forest.osm", forestXML)
	sinkA, sinkB := &memorySink{}, &memorySink{}

	c := NewCoordinator(testConfig(input), nil, []output.Sink{sinkA, sinkB})
	stats, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// relation 200 -> 401, way 103 -> 206
	want := []int64{206, 401}
	if got := sinkA.ids(); !slices.Equal(got, want) {
		t.Errorf("sink A got %v, want %v", got, want)
	}
	if got := sinkB.ids(); !slices.Equal(got, want) {
		t.Errorf("sink B got %v, want %v", got, want)
	}
	if stats.Outputs["memory"] != 2 {
		t.Errorf("outputs = %v", stats.Outputs)
	}

	var forest *area.Area
	for _, a := range sinkA.areas {
		if a.AreaID() == 401 {
			forest = a
		}
	}
	if forest == nil {
		t.Fatal("forest area missing")
	}
	if len(forest.Groups) != 1 || len(forest.Groups[0].Inners) != 1 {
		t.Errorf("forest has %d groups", len(forest.Groups))
	}
	if forest.Tags["landuse"] != "forest" || forest.Tags.Get("type") != "" {
		t.Errorf("forest tags = %v", forest.Tags)
	}

	tot := stats.Totals()
	if tot.Nodes != 12 || tot.Ways != 5 || tot.Relations != 3 {
		t.Errorf("read %d nodes, %d ways, %d relations", tot.Nodes, tot.Ways, tot.Relations)
	}
	if tot.Resolver.Registered != 2 || tot.Resolver.Completed != 1 || tot.Resolver.Incomplete != 1 {
		t.Errorf("resolver stats = %+v", tot.Resolver)
	}
	if tot.Builder.RelationAreas != 1 || tot.Builder.WayAreas != 1 {
		t.Errorf("builder stats = %+v", tot.Builder)
	}

	failures := c.Report().Failures()
	if len(failures) != 1 || failures[0].ID != 201 || failures[0].Reason != "incomplete" {
		t.Errorf("failures = %+v", failures)
	}

	rep := c.RunReport(stats)
	if rep.Areas.Relations != 1 || rep.Areas.Incomplete != 1 || rep.Reasons["incomplete"] != 1 {
		t.Errorf("run report = %+v", rep)
	}

	if r, m := c.Pending(); r != 0 || m != 0 {
		t.Errorf("pending after run = %d relations, %d members", r, m)
	}
}

func TestCoordinatorMultipleInputs(t *testing.T) {
	a := writeInput(t, "a.osm", forestXML)
	b := writeInput(t, "b.osm", forestXML)
	sink := &memorySink{}

	c := NewCoordinator(testConfig(a, b), nil, []output.Sink{sink})
	stats, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(stats.Shards) != 2 {
		t.Fatalf("got %d shards", len(stats.Shards))
	}
	if got := sink.ids(); !slices.Equal(got, []int64{206, 206, 401, 401}) {
		t.Errorf("got %v", got)
	}
	if len(c.Report().Failures()) != 2 {
		t.Errorf("each shard should report relation 201 incomplete")
	}
}

func TestCoordinatorWithoutSinks(t *testing.T) {
	input := writeInput(t, "forest.osm", forestXML)
	stats, err := NewCoordinator(testConfig(input), nil, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Totals().Emitted != 2 {
		t.Errorf("emitted %d areas, want 2", stats.Totals().Emitted)
	}
}

func TestCoordinatorSinkError(t *testing.T) {
	input := writeInput(t, "forest.osm", forestXML)
	boom := errors.New("disk full")
	sink := &memorySink{err: boom}

	_, err := NewCoordinator(testConfig(input), nil, []output.Sink{sink}).Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestCoordinatorMissingInput(t *testing.T) {
	cfg := testConfig(filepath.Join(t.TempDir(), "missing.osm"))
	if _, err := NewCoordinator(cfg, nil, nil).Run(context.Background()); err == nil {
		t.Fatal("expected error for missing input")
	}
}

func TestRouteStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan *area.Area, 1)
	out := make(chan *area.Area)
	in <- &area.Area{ID: 1}

	done := make(chan error, 1)
	go func() { done <- route(ctx, in, []chan *area.Area{out}) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("route did not stop")
	}
	if _, ok := <-out; ok {
		t.Error("output channel should be closed")
	}
}

func TestProgressTracker(t *testing.T) {
	p := NewProgressTracker("forest.osm", 2, 1000)
	got := p.Calculate(10, 250)
	if got.Percentage != 25 {
		t.Errorf("percentage = %v", got.Percentage)
	}
	if got.Input != "forest.osm" || got.Pass != 2 || got.Scanned != 250 {
		t.Errorf("snapshot = %+v", got)
	}
	if got := p.Calculate(10, 2000); got.Percentage != 100 || got.ETA != 0 {
		t.Errorf("overshoot = %+v", got)
	}

	fields := make(map[string]string)
	for _, f := range got.Fields() {
		fields[f.Key] = f.String
	}
	if fields["pass"] != "2 (ways)" || fields["progress"] != "25.0%" || fields["read"] != "250 B" {
		t.Errorf("fields = %v", fields)
	}
}

func TestFormatHelpers(t *testing.T) {
	if FormatBytes(1536) != "1.5 KB" || FormatBytes(12) != "12 B" {
		t.Error("FormatBytes")
	}
	if FormatThroughput(2_500_000) != "2.5M/s" || FormatThroughput(42) != "42/s" {
		t.Error("FormatThroughput")
	}
	if FormatETA(0) != "calculating..." || FormatETA(90*time.Second) != "1m 30s" {
		t.Error("FormatETA")
	}
}
