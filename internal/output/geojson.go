package output

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/paulmach/orb/geojson"

	"github.com/wegman-software/osm-areas-go/internal/area"
	"github.com/wegman-software/osm-areas-go/internal/planar"
	"github.com/wegman-software/osm-areas-go/internal/proj"
)

// GeoJSONSink writes newline delimited GeoJSON features
type GeoJSONSink struct {
	path      string
	transform *proj.Transformer
}

// NewGeoJSONSink creates a sink writing to path
func NewGeoJSONSink(path string, t *proj.Transformer) *GeoJSONSink {
	return &GeoJSONSink{path: path, transform: t}
}

func (s *GeoJSONSink) Name() string { return "geojson" }

func (s *GeoJSONSink) Consume(ctx context.Context, areas <-chan *area.Area) (int64, error) {
	f, err := os.Create(s.path)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", s.path, err)
	}
	w := bufio.NewWriterSize(f, 1<<20)

	n, err := drain(ctx, areas, func(a *area.Area) error {
		data, err := Feature(a, s.transform).MarshalJSON()
		if err != nil {
			return fmt.Errorf("failed to encode area %d: %w", a.AreaID(), err)
		}
		w.Write(data)
		return w.WriteByte('\n')
	})

	if ferr := w.Flush(); err == nil {
		err = ferr
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// Feature converts an area to a GeoJSON feature with its tags as properties
func Feature(a *area.Area, t *proj.Transformer) *geojson.Feature {
	geom := planar.Geometry(a)
	if t != nil {
		geom = t.Geometry(geom)
	}
	f := geojson.NewFeature(geom)
	f.ID = a.AreaID()
	f.Properties["osm_id"] = a.ID
	f.Properties["osm_type"] = a.Source.String()
	if a.Repaired {
		f.Properties["repaired"] = true
	}
	tags := make(map[string]string, len(a.Tags))
	for k, v := range a.Tags {
		tags[k] = v
	}
	f.Properties["tags"] = tags
	return f
}
