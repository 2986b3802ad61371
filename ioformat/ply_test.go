package ioformat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/geo/r3"

	"github.com/youngstu/pais-mvs/patch"
)

func samplePatches() []*patch.Patch {
	live := patch.NewSeed(1, r3.Vector{X: 1, Y: 2, Z: 3}, r3.Vector{Z: 1}, []int{0})
	dropped := patch.NewSeed(2, r3.Vector{X: 9, Y: 9, Z: 9}, r3.Vector{Z: 1}, []int{0})
	dropped.Dropped = true
	return []*patch.Patch{live, dropped}
}

func TestWritePLYSkipsDropped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.ply")
	if err := WritePLY(path, samplePatches()); err != nil {
		t.Fatalf("WritePLY: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	content := string(data)

	if !strings.Contains(content, "element vertex 1") {
		t.Errorf("expected 1 vertex (dropped patch excluded), got header:\n%s", content)
	}
	if strings.Contains(content, "9 9 9") {
		t.Error("dropped patch leaked into output")
	}
	if !strings.HasPrefix(content, "ply\n") {
		t.Error("missing ply magic header")
	}
}

func TestWritePLYEmptyScene(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.ply")
	if err := WritePLY(path, nil); err != nil {
		t.Fatalf("WritePLY: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.Contains(string(data), "element vertex 0") {
		t.Errorf("expected zero-vertex header, got:\n%s", string(data))
	}
}
