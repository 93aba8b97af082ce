package nodeindex

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"

	"github.com/wegman-software/osm-areas-go/internal/element"
)

const (
	// Each node entry: lat (int32) + lon (int32) = 8 bytes at 1e-7 degrees
	entrySize = 8
	// DefaultCapacity covers every node id issued so far with room to spare
	DefaultCapacity = 10_000_000_000
	// fileScale converts element.Location units to the 1e-7 file units
	fileScale = element.Precision / 10_000_000
)

// MmapIndex is a memory-mapped flat node file. The coordinate of node id
// lives at offset id*8, giving O(1) lookups. Ids outside [0, capacity) go
// to an in-memory overflow map.
type MmapIndex struct {
	file     *os.File
	data     mmap.MMap
	capacity int64
	overflow map[int64]element.Location
	count    int64
	keep     bool
	path     string
}

// NewMmapIndex creates (or truncates) a flat node file sized for capacity ids.
// The file is sparse, so disk usage only grows with written nodes.
func NewMmapIndex(path string, capacity int64, keep bool) (*MmapIndex, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	size := capacity * entrySize

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create flat nodes file: %w", err)
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to size flat nodes file: %w", err)
	}

	data, err := mmap.MapRegion(f, int(size), mmap.RDWR, 0, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to mmap flat nodes file: %w", err)
	}

	return &MmapIndex{
		file:     f,
		data:     data,
		capacity: capacity,
		overflow: make(map[int64]element.Location),
		keep:     keep,
		path:     path,
	}, nil
}

// Put stores a node location
func (m *MmapIndex) Put(id int64, loc element.Location) {
	m.count++
	if id < 0 || id >= m.capacity {
		m.overflow[id] = loc
		return
	}

	offset := id * entrySize
	binary.LittleEndian.PutUint32(m.data[offset:], uint32(int32(loc.Y/fileScale)))
	binary.LittleEndian.PutUint32(m.data[offset+4:], uint32(int32(loc.X/fileScale)))
}

// Get returns the location of id. A stored (0, 0) is indistinguishable
// from an empty slot and reported as missing.
func (m *MmapIndex) Get(id int64) (element.Location, bool) {
	if id < 0 || id >= m.capacity {
		loc, ok := m.overflow[id]
		return loc, ok
	}

	offset := id * entrySize
	lat := int32(binary.LittleEndian.Uint32(m.data[offset:]))
	lon := int32(binary.LittleEndian.Uint32(m.data[offset+4:]))
	if lat == 0 && lon == 0 {
		return element.Location{}, false
	}
	return element.Location{X: int64(lon) * fileScale, Y: int64(lat) * fileScale}, true
}

// Len returns the number of Put calls
func (m *MmapIndex) Len() int64 {
	return m.count
}

// Sync flushes the mapping to disk
func (m *MmapIndex) Sync() error {
	return m.data.Flush()
}

// Close unmaps the file and removes it unless it was opened with keep
func (m *MmapIndex) Close() error {
	if err := m.data.Unmap(); err != nil {
		m.file.Close()
		return err
	}
	if err := m.file.Close(); err != nil {
		return err
	}
	if !m.keep {
		return os.Remove(m.path)
	}
	return nil
}
