package output

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/paulmach/orb/encoding/wkt"

	"github.com/wegman-software/osm-areas-go/internal/area"
	"github.com/wegman-software/osm-areas-go/internal/planar"
	"github.com/wegman-software/osm-areas-go/internal/proj"
)

// wktHeader names the tab separated columns
const wktHeader = "area_id\tosm_type\tosm_id\ttags\tgeom\n"

// WKTSink writes one tab separated line per area with WKT geometry
type WKTSink struct {
	path      string
	transform *proj.Transformer
}

// NewWKTSink creates a sink writing to path
func NewWKTSink(path string, t *proj.Transformer) *WKTSink {
	return &WKTSink{path: path, transform: t}
}

func (s *WKTSink) Name() string { return "wkt" }

func (s *WKTSink) Consume(ctx context.Context, areas <-chan *area.Area) (int64, error) {
	f, err := os.Create(s.path)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", s.path, err)
	}
	w := bufio.NewWriterSize(f, 1<<20)
	w.WriteString(wktHeader)

	var line []byte
	n, err := drain(ctx, areas, func(a *area.Area) error {
		line = appendWKTLine(line[:0], a, s.transform)
		_, err := w.Write(line)
		return err
	})

	if ferr := w.Flush(); err == nil {
		err = ferr
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}

func appendWKTLine(buf []byte, a *area.Area, t *proj.Transformer) []byte {
	geom := planar.Geometry(a)
	if t != nil {
		geom = t.Geometry(geom)
	}
	buf = strconv.AppendInt(buf, a.AreaID(), 10)
	buf = append(buf, '\t')
	buf = append(buf, osmType(a)...)
	buf = append(buf, '\t')
	buf = strconv.AppendInt(buf, a.ID, 10)
	buf = append(buf, '\t')
	buf = append(buf, a.Tags.JSON()...)
	buf = append(buf, '\t')
	buf = append(buf, wkt.MarshalString(geom)...)
	return append(buf, '\n')
}
