// Package nodeindex resolves node ids to locations for way assembly.
package nodeindex

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/wegman-software/osm-areas-go/internal/element"
)

// Store maps node ids to locations. Stores are filled in pass 1 and read
// in pass 2 by the goroutine that owns them.
type Store interface {
	Put(id int64, loc element.Location)
	Get(id int64) (element.Location, bool)
	Len() int64
	Close() error
}

const (
	KindMemory = "memory"
	KindMmap   = "mmap"
)

// Open creates a store of the given kind. path is only used by the mmap
// store; keep leaves the flat nodes file on disk after Close.
func Open(kind, path string, keep bool) (Store, error) {
	switch kind {
	case "", KindMemory:
		return NewMemoryIndex(), nil
	case KindMmap:
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create flat nodes directory: %w", err)
		}
		return NewMmapIndex(path, DefaultCapacity, keep)
	default:
		return nil, fmt.Errorf("unknown node store %q (supported: memory, mmap)", kind)
	}
}

// MemoryIndex keeps locations in a map at full precision
type MemoryIndex struct {
	locs map[int64]element.Location
}

// NewMemoryIndex creates an empty in-memory store
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{locs: make(map[int64]element.Location)}
}

func (m *MemoryIndex) Put(id int64, loc element.Location) {
	m.locs[id] = loc
}

func (m *MemoryIndex) Get(id int64) (element.Location, bool) {
	loc, ok := m.locs[id]
	return loc, ok
}

func (m *MemoryIndex) Len() int64 {
	return int64(len(m.locs))
}

func (m *MemoryIndex) Close() error {
	m.locs = nil
	return nil
}

// Locate fills in the location of every node reference of w and returns
// how many could not be resolved
func Locate(s Store, w *element.Way) int {
	missing := 0
	for i := range w.Nodes {
		loc, ok := s.Get(w.Nodes[i].ID)
		if !ok {
			missing++
			continue
		}
		w.Nodes[i].Loc = loc
		w.Nodes[i].Located = true
	}
	return missing
}
