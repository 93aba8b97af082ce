// Package output writes assembled areas to files and PostgreSQL.
package output

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wegman-software/osm-areas-go/internal/area"
	"github.com/wegman-software/osm-areas-go/internal/config"
	"github.com/wegman-software/osm-areas-go/internal/proj"
)

// Output file names inside the output directory
const (
	GeoJSONFile = "areas.geojsonl"
	WKTFile     = "areas.wkt.tsv"
	ParquetFile = "areas.parquet"
)

// Sink consumes areas until the channel is closed and returns how many it wrote.
// Consume owns every resource the sink opened and releases them before returning.
type Sink interface {
	Name() string
	Consume(ctx context.Context, areas <-chan *area.Area) (int64, error)
}

// Open creates one sink per configured format
func Open(ctx context.Context, cfg *config.Config) ([]Sink, error) {
	t, err := proj.NewTransformer(proj.SRID4326, cfg.Projection)
	if err != nil {
		return nil, err
	}

	needsDir := cfg.HasFormat(config.FormatGeoJSON) || cfg.HasFormat(config.FormatWKT) || cfg.HasFormat(config.FormatParquet)
	if needsDir {
		if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	var sinks []Sink
	for _, format := range cfg.Formats {
		switch format {
		case config.FormatGeoJSON:
			sinks = append(sinks, NewGeoJSONSink(filepath.Join(cfg.OutputDir, GeoJSONFile), t))
		case config.FormatWKT:
			sinks = append(sinks, NewWKTSink(filepath.Join(cfg.OutputDir, WKTFile), t))
		case config.FormatParquet:
			sinks = append(sinks, NewParquetSink(filepath.Join(cfg.OutputDir, ParquetFile), cfg.BatchSize, t))
		case config.FormatPostgres:
			pg, err := NewPostgresSink(ctx, cfg, t)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, pg)
		default:
			return nil, fmt.Errorf("unknown output format %q", format)
		}
	}
	return sinks, nil
}

// drain calls fn for every area until the channel closes or ctx is done
func drain(ctx context.Context, areas <-chan *area.Area, fn func(*area.Area) error) (int64, error) {
	var n int64
	for {
		select {
		case <-ctx.Done():
			return n, ctx.Err()
		case a, ok := <-areas:
			if !ok {
				return n, nil
			}
			if err := fn(a); err != nil {
				return n, err
			}
			n++
		}
	}
}

// osmType is the one letter type code used in tabular outputs
func osmType(a *area.Area) string {
	return a.Source.Char()
}
