// Package source reads OSM primitives from PBF and XML files.
package source

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync/atomic"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"

	"github.com/wegman-software/osm-areas-go/internal/element"
)

// Format is the on-disk encoding of an input file
type Format int

const (
	FormatPBF Format = iota
	FormatXML
	FormatXMLGzip
)

func (f Format) String() string {
	switch f {
	case FormatPBF:
		return "pbf"
	case FormatXML:
		return "xml"
	case FormatXMLGzip:
		return "xml+gzip"
	default:
		return "unknown"
	}
}

// DetectFormat picks the format from the file name
func DetectFormat(path string) (Format, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".pbf"):
		return FormatPBF, nil
	case strings.HasSuffix(lower, ".osm.gz"), strings.HasSuffix(lower, ".xml.gz"):
		return FormatXMLGzip, nil
	case strings.HasSuffix(lower, ".osm"), strings.HasSuffix(lower, ".xml"):
		return FormatXML, nil
	default:
		return 0, fmt.Errorf("cannot detect format of %q (supported: .pbf, .osm, .osm.gz)", path)
	}
}

// Options selects which object types a pass reads
type Options struct {
	SkipNodes     bool
	SkipWays      bool
	SkipRelations bool
	// Procs is the number of PBF decoder goroutines (default: NumCPU)
	Procs int
}

// scanner is the common surface of the osmpbf and osmxml scanners
type scanner interface {
	Scan() bool
	Object() osm.Object
	Err() error
	Close() error
}

// Reader streams one pass over an input file
type Reader struct {
	file    *os.File
	gz      *gzip.Reader
	counter *countingReader
	pbf     *osmpbf.Scanner
	scanner scanner
	opts    Options
	size    int64
	current element.Object
}

// Open starts a pass over path
func Open(ctx context.Context, path string, opts Options) (*Reader, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	return OpenFormat(ctx, path, format, opts)
}

// OpenFormat starts a pass over path with an explicit format
func OpenFormat(ctx context.Context, path string, format Format, opts Options) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat input: %w", err)
	}

	r := &Reader{file: f, opts: opts, size: info.Size()}
	r.counter = &countingReader{r: f}

	switch format {
	case FormatPBF:
		procs := opts.Procs
		if procs <= 0 {
			procs = runtime.NumCPU()
		}
		s := osmpbf.New(ctx, f, procs)
		s.SkipNodes = opts.SkipNodes
		s.SkipWays = opts.SkipWays
		s.SkipRelations = opts.SkipRelations
		r.pbf = s
		r.scanner = s
	case FormatXML:
		r.scanner = osmxml.New(ctx, r.counter)
	case FormatXMLGzip:
		gz, err := gzip.NewReader(r.counter)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		r.gz = gz
		r.scanner = osmxml.New(ctx, gz)
	default:
		f.Close()
		return nil, fmt.Errorf("unsupported format %v", format)
	}
	return r, nil
}

// Next advances to the next object of a type the pass did not skip
func (r *Reader) Next() bool {
	for r.scanner.Scan() {
		if obj := r.convert(r.scanner.Object()); obj != nil {
			r.current = obj
			return true
		}
	}
	r.current = nil
	return false
}

// Object returns the object read by the last call to Next
func (r *Reader) Object() element.Object {
	return r.current
}

// Err returns the first scan error. End of input is not an error.
func (r *Reader) Err() error {
	if err := r.scanner.Err(); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// Size returns the input file size in bytes
func (r *Reader) Size() int64 {
	return r.size
}

// ScannedBytes reports how far into the file the pass has read. Safe to
// call from a progress goroutine.
func (r *Reader) ScannedBytes() int64 {
	if r.pbf != nil {
		return r.pbf.FullyScannedBytes()
	}
	return r.counter.n.Load()
}

// Close releases the scanner and the file
func (r *Reader) Close() error {
	err := r.scanner.Close()
	if r.gz != nil {
		r.gz.Close()
	}
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	return err
}

func (r *Reader) convert(obj osm.Object) element.Object {
	switch o := obj.(type) {
	case *osm.Node:
		if r.opts.SkipNodes {
			return nil
		}
		return FromNode(o)
	case *osm.Way:
		if r.opts.SkipWays {
			return nil
		}
		return FromWay(o)
	case *osm.Relation:
		if r.opts.SkipRelations {
			return nil
		}
		return FromRelation(o)
	}
	return nil
}

type countingReader struct {
	r io.Reader
	n atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}
