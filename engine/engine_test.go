package engine

import (
	"testing"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/youngstu/pais-mvs/camera"
	"github.com/youngstu/pais-mvs/mvsconfig"
	"github.com/youngstu/pais-mvs/patch"
)

func flatImage(w, h int, v uint8) *camera.Image {
	pix := make([]uint8, w*h)
	for i := range pix {
		pix[i] = v
	}
	return &camera.Image{Width: w, Height: h, Pix: pix}
}

func testCamera(tx float64) *camera.Camera {
	rot := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	return camera.Build(200, 200, 50, 50, rot, r3.Vector{X: tx}, []*camera.Image{flatImage(100, 100, 200)})
}

func singleCamCfg() mvsconfig.Config {
	cfg := mvsconfig.Default()
	cfg.MinCamNum = 1
	return cfg
}

// validPatch builds a patch that already passes every RuntimeFiltering
// numeric check against a single testCamera(0), for exercising cell-map
// bookkeeping without running a real refinement pass.
func validPatch(id int, visibleCam int, px, py float64) *patch.Patch {
	p := patch.NewSeed(id, r3.Vector{X: 0, Y: 0, Z: 5}, r3.Vector{X: 0, Y: 0, Z: -1}, []int{visibleCam})
	p.ImagePoints = []r3.Vector{{X: px, Y: py}}
	p.Fitness = 0.1
	p.Correlation = 0.9
	p.Priority = 1.0
	return p
}

func TestSetCellMapsEmptyCamerasFails(t *testing.T) {
	e, err := New(nil, mvsconfig.Default(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := e.SetCellMaps(); err == nil {
		t.Error("expected SetCellMaps to fail with zero cameras")
	}
}

func TestExpansionPatchesEmptyCamerasIsNoOp(t *testing.T) {
	e, err := New(nil, mvsconfig.Default(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	e.ExpansionPatches() // must not panic or hang
	if e.PatchCount() != 0 {
		t.Errorf("PatchCount() = %d, want 0", e.PatchCount())
	}
}

func TestInsertAndDeletePatchCellMapConsistency(t *testing.T) {
	cams := []*camera.Camera{testCamera(0)}
	e, err := New(cams, singleCamCfg(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := e.SetCellMaps(); err != nil {
		t.Fatalf("SetCellMaps: %v", err)
	}

	p := validPatch(e.NewPatchID(), 0, 50, 50)
	if !e.InsertPatch(p) {
		t.Fatal("InsertPatch rejected a patch expected to pass runtime filtering")
	}

	cm := e.CellMaps[0]
	cx, cy := cm.CellIndex(50, 50)
	if !cm.Contains(cx, cy, p.ID) {
		t.Error("cell map does not contain inserted patch id")
	}
	if _, ok := e.Patch(p.ID); !ok {
		t.Error("patch map missing inserted patch")
	}

	e.DeletePatch(p)
	if cm.Contains(cx, cy, p.ID) {
		t.Error("cell still contains id after DeletePatch")
	}
	if _, ok := e.Patch(p.ID); ok {
		t.Error("patch map still has entry after DeletePatch")
	}
}

func TestSaturationRejectsFourthPatch(t *testing.T) {
	cams := []*camera.Camera{testCamera(0)}
	cfg := singleCamCfg()
	cfg.MaxCellPatchNum = 3
	e, err := New(cams, cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := e.SetCellMaps(); err != nil {
		t.Fatalf("SetCellMaps: %v", err)
	}

	for i := 0; i < 3; i++ {
		p := validPatch(e.NewPatchID(), 0, 50, 50)
		if !e.InsertPatch(p) {
			t.Fatalf("InsertPatch %d: expected acceptance while cell is under capacity", i)
		}
	}

	fourth := validPatch(e.NewPatchID(), 0, 50, 50)
	if e.InsertPatch(fourth) {
		t.Error("InsertPatch accepted a fourth patch into an already-saturated cell")
	}
}

func TestGetTopPriorityPatchIDNeverReturnsExpanded(t *testing.T) {
	cams := []*camera.Camera{testCamera(0)}
	e, err := New(cams, singleCamCfg(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := e.SetCellMaps(); err != nil {
		t.Fatalf("SetCellMaps: %v", err)
	}

	low := validPatch(e.NewPatchID(), 0, 10, 10)
	low.Priority = 0.1
	high := validPatch(e.NewPatchID(), 0, 90, 90)
	high.Priority = 0.9

	if !e.InsertPatch(low) || !e.InsertPatch(high) {
		t.Fatal("expected both patches to be accepted")
	}
	e.InitPriorityQueue()
	low.Expanded = true

	id, ok := e.GetTopPriorityPatchID()
	if !ok {
		t.Fatal("expected a patch id")
	}
	if id != high.ID {
		t.Errorf("GetTopPriorityPatchID returned %d (expanded), want %d", id, high.ID)
	}

	_, ok = e.GetTopPriorityPatchID()
	if ok {
		t.Error("expected the queue to be exhausted after the only unexpanded patch is popped")
	}
}
