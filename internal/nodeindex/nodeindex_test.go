package nodeindex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/wegman-software/osm-areas-go/internal/element"
)

func TestMmapIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodes.bin")
	idx, err := NewMmapIndex(path, 1_000_000, false)
	if err != nil {
		t.Fatalf("NewMmapIndex: %v", err)
	}

	monaco := element.FromDegrees(7.4246, 43.7384)
	idx.Put(42, monaco)
	idx.Put(-7, element.FromDegrees(-1.5, 2.25))
	idx.Put(5_000_000, element.FromDegrees(10, 10))

	tests := []struct {
		name string
		id   int64
		want element.Location
		ok   bool
	}{
		{"mapped", 42, monaco, true},
		{"negative overflow", -7, element.FromDegrees(-1.5, 2.25), true},
		{"beyond capacity", 5_000_000, element.FromDegrees(10, 10), true},
		{"unset", 43, element.Location{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := idx.Get(tt.id)
			if ok != tt.ok || got != tt.want {
				t.Errorf("Get(%d) = %v, %v; want %v, %v", tt.id, got, ok, tt.want, tt.ok)
			}
		})
	}

	if idx.Len() != 3 {
		t.Errorf("Len() = %d, want 3", idx.Len())
	}
	if err := idx.Sync(); err != nil {
		t.Errorf("Sync: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("flat nodes file should be removed when keep is false")
	}
}

func TestMmapIndexKeep(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodes.bin")
	idx, err := NewMmapIndex(path, 1000, true)
	if err != nil {
		t.Fatal(err)
	}
	idx.Put(1, element.FromDegrees(1, 1))
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("flat nodes file should be kept: %v", err)
	}
}

func TestOpen(t *testing.T) {
	s, err := Open(KindMemory, "", false)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, ok := s.(*MemoryIndex); !ok {
		t.Errorf("Open(memory) returned %T", s)
	}

	if _, err := Open("leveldb", "", false); err == nil {
		t.Error("expected error for unknown store kind")
	}
}

func TestLocate(t *testing.T) {
	s := NewMemoryIndex()
	s.Put(1, element.FromDegrees(0, 0))
	s.Put(2, element.FromDegrees(1, 0))

	w := &element.Way{ID: 10, Nodes: []element.WayNode{{ID: 1}, {ID: 2}, {ID: 3}}}
	if missing := Locate(s, w); missing != 1 {
		t.Errorf("missing = %d, want 1", missing)
	}
	if !w.Nodes[0].Located || !w.Nodes[1].Located || w.Nodes[2].Located {
		t.Errorf("unexpected located flags: %+v", w.Nodes)
	}
	if w.Located() {
		t.Error("way with an unresolved node must not be located")
	}
}
