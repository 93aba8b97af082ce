package output

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"

	"github.com/wegman-software/osm-areas-go/internal/area"
	"github.com/wegman-software/osm-areas-go/internal/proj"
	"github.com/wegman-software/osm-areas-go/internal/wkb"
)

// AreaSchema is the Parquet layout of an area row
var AreaSchema = arrow.NewSchema([]arrow.Field{
	{Name: "area_id", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
	{Name: "osm_id", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
	{Name: "osm_type", Type: arrow.BinaryTypes.String, Nullable: false},
	{Name: "tags", Type: arrow.BinaryTypes.String, Nullable: false},
	{Name: "repaired", Type: arrow.FixedWidthTypes.Boolean, Nullable: false},
	{Name: "geom_wkb", Type: arrow.BinaryTypes.Binary, Nullable: false},
}, nil)

// AreaWriter writes areas with EWKB geometry to a Zstd compressed Parquet file
type AreaWriter struct {
	file      *os.File
	writer    *pqarrow.FileWriter
	builder   *array.RecordBuilder
	encoder   *wkb.Encoder
	batchSize int
	count     int
}

// NewAreaWriter creates a Parquet writer flushing a row group every batchSize rows
func NewAreaWriter(path string, batchSize int, t *proj.Transformer) (*AreaWriter, error) {
	if batchSize <= 0 {
		batchSize = 10000
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	writerProps := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Zstd),
		parquet.WithDictionaryDefault(false),
	)

	writer, err := pqarrow.NewFileWriter(AreaSchema, f, writerProps, pqarrow.DefaultWriterProps())
	if err != nil {
		f.Close()
		return nil, err
	}

	return &AreaWriter{
		file:      f,
		writer:    writer,
		builder:   array.NewRecordBuilder(memory.DefaultAllocator, AreaSchema),
		encoder:   newEncoder(t),
		batchSize: batchSize,
	}, nil
}

// Write appends one area
func (w *AreaWriter) Write(a *area.Area) error {
	w.builder.Field(0).(*array.Int64Builder).Append(a.AreaID())
	w.builder.Field(1).(*array.Int64Builder).Append(a.ID)
	w.builder.Field(2).(*array.StringBuilder).Append(osmType(a))
	w.builder.Field(3).(*array.StringBuilder).Append(a.Tags.JSON())
	w.builder.Field(4).(*array.BooleanBuilder).Append(a.Repaired)
	w.builder.Field(5).(*array.BinaryBuilder).Append(w.encoder.EncodeArea(a))

	w.count++
	if w.count >= w.batchSize {
		return w.flush()
	}
	return nil
}

func (w *AreaWriter) flush() error {
	if w.count == 0 {
		return nil
	}
	rec := w.builder.NewRecord()
	defer rec.Release()
	err := w.writer.Write(rec)
	w.count = 0
	return err
}

// Close flushes pending rows and closes the file
func (w *AreaWriter) Close() error {
	defer w.builder.Release()
	if err := w.flush(); err != nil {
		w.writer.Close()
		return err
	}
	if err := w.writer.Close(); err != nil {
		return err
	}
	// the parquet writer may already have closed the file
	if err := w.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}

// ParquetSink writes areas through an AreaWriter
type ParquetSink struct {
	path      string
	batchSize int
	transform *proj.Transformer
}

// NewParquetSink creates a sink writing to path
func NewParquetSink(path string, batchSize int, t *proj.Transformer) *ParquetSink {
	return &ParquetSink{path: path, batchSize: batchSize, transform: t}
}

func (s *ParquetSink) Name() string { return "parquet" }

func (s *ParquetSink) Consume(ctx context.Context, areas <-chan *area.Area) (int64, error) {
	w, err := NewAreaWriter(s.path, s.batchSize, s.transform)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", s.path, err)
	}
	n, err := drain(ctx, areas, w.Write)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// newEncoder builds an EWKB encoder in the transformer's target SRID
func newEncoder(t *proj.Transformer) *wkb.Encoder {
	if t == nil || !t.NeedsTransform() {
		return wkb.NewEncoder(4096, proj.SRID4326, nil)
	}
	return wkb.NewEncoder(4096, t.TargetSRID, t.Transform)
}
