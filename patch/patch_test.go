package patch

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/youngstu/pais-mvs/camera"
	"github.com/youngstu/pais-mvs/mvsconfig"
)

func identityRotation() *mat.Dense {
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}

func flatImage(w, h int, v uint8) *camera.Image {
	pix := make([]uint8, w*h)
	for i := range pix {
		pix[i] = v
	}
	return &camera.Image{Width: w, Height: h, Pix: pix}
}

func checkerImage(w, h int) *camera.Image {
	pix := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/4+y/4)%2 == 0 {
				pix[y*w+x] = 50
			} else {
				pix[y*w+x] = 200
			}
		}
	}
	return &camera.Image{Width: w, Height: h, Pix: pix}
}

func testCamera(tx float64, img *camera.Image) *camera.Camera {
	return camera.Build(500, 500, 320, 240, identityRotation(), r3.Vector{X: tx, Z: 10}, []*camera.Image{img})
}

func TestNewSeedAndCameraNumber(t *testing.T) {
	p := NewSeed(1, r3.Vector{Z: 5}, r3.Vector{Z: -1}, []int{0, 1, 2})
	if p.CameraNumber() != 3 {
		t.Errorf("CameraNumber() = %d, want 3", p.CameraNumber())
	}
	if p.ParentID != -1 {
		t.Errorf("seed ParentID = %d, want -1", p.ParentID)
	}
	if got := p.Normal.Norm(); math.Abs(got-1) > 1e-9 {
		t.Errorf("seed normal not unit: %v", got)
	}
}

func TestNewExpansionInheritsNormal(t *testing.T) {
	parent := NewSeed(1, r3.Vector{Z: 5}, r3.Vector{X: 0.6, Z: -0.8}, []int{0, 1})
	child := NewExpansion(2, r3.Vector{X: 1, Z: 5}, parent)
	if child.ParentID != 1 {
		t.Errorf("child ParentID = %d, want 1", child.ParentID)
	}
	if got := child.Normal.Sub(parent.Normal).Norm(); got > 1e-12 {
		t.Errorf("child normal diverges from parent by %v", got)
	}
}

func TestPlaneDistanceAndSignedDistance(t *testing.T) {
	p := NewSeed(1, r3.Vector{Z: 5}, r3.Vector{Z: -1}, []int{0})
	if got := p.SignedDistanceToPlane(p.Center); math.Abs(got) > 1e-9 {
		t.Errorf("signed distance to own center = %v, want 0", got)
	}
	off := p.SignedDistanceToPlane(r3.Vector{Z: 6})
	if math.Abs(off+1) > 1e-9 {
		t.Errorf("signed distance to {Z:6} = %v, want -1", off)
	}
}

func TestIsNeighborCoplanarVsFar(t *testing.T) {
	a := NewSeed(1, r3.Vector{Z: 5}, r3.Vector{Z: -1}, []int{0})
	coplanar := NewSeed(2, r3.Vector{X: 0.01, Z: 5}, r3.Vector{Z: -1}, []int{0})
	far := NewSeed(3, r3.Vector{Z: 20}, r3.Vector{Z: -1}, []int{0})

	if !IsNeighbor(a, coplanar, 0.1, 0.1) {
		t.Error("coplanar nearby patches should be neighbors")
	}
	if IsNeighbor(a, far, 0.1, 0.1) {
		t.Error("far patch should not be a neighbor")
	}
}

func TestSelectLODClampsToRange(t *testing.T) {
	cams := []*camera.Camera{testCamera(0, flatImage(640, 480, 100))}
	cfg := mvsconfig.Default()
	cfg.MinLOD = 0
	cfg.MaxLOD = 3

	p := NewSeed(1, r3.Vector{Z: 10000}, r3.Vector{Z: -1}, []int{0})
	p.ReferenceCamera = 0
	lod := p.SelectLOD(cams, cfg)
	if lod < cfg.MinLOD || lod > cfg.MaxLOD {
		t.Errorf("SelectLOD = %d, want within [%d,%d]", lod, cfg.MinLOD, cfg.MaxLOD)
	}
}

func TestRemoveInvisibleCameraDropsBackFacing(t *testing.T) {
	cams := []*camera.Camera{
		testCamera(0, checkerImage(640, 480)),
		testCamera(2, checkerImage(640, 480)),
	}
	cfg := mvsconfig.Default()
	kernel := NewDistanceKernel(cfg.PatchRadius, 2.5)

	p := NewSeed(1, r3.Vector{Z: 10}, r3.Vector{Z: 1}, []int{0, 1}) // normal faces away from both cameras
	p.ReferenceCamera = 0
	p.projectAll(cams)

	p.RemoveInvisibleCamera(cams, kernel, cfg)

	for _, camIdx := range p.VisibleCameras {
		if camIdx != 0 { // reference camera is always kept
			t.Errorf("expected back-facing camera %d to be dropped, kept %v", camIdx, p.VisibleCameras)
		}
	}
}

func TestReCenterRecoversOriginalPosition(t *testing.T) {
	cams := []*camera.Camera{
		testCamera(0, checkerImage(640, 480)),
		testCamera(2, checkerImage(640, 480)),
	}
	original := r3.Vector{X: 0.2, Y: -0.1, Z: 10}
	p := NewSeed(1, original, r3.Vector{Z: -1}, []int{0, 1})
	p.ReferenceCamera = 0
	p.projectAll(cams)

	p.Center = r3.Vector{} // perturb
	p.ReCenter(cams)

	if got := p.Center.Sub(original).Norm(); got > 1e-6 {
		t.Errorf("ReCenter = %v, want close to %v (diff %v)", p.Center, original, got)
	}
}

func TestRefineProducesFiniteResult(t *testing.T) {
	cams := []*camera.Camera{
		testCamera(0, checkerImage(640, 480)),
		testCamera(1, checkerImage(640, 480)),
	}
	cfg := mvsconfig.Default()
	cfg.ParticleNum = 4
	cfg.MaxIteration = 2
	kernel := NewDistanceKernel(cfg.PatchRadius, 2.5)
	opt := NewParticleOptimizer(cfg)

	p := NewSeed(1, r3.Vector{Z: 10}, r3.Vector{Z: -1}, []int{0, 1})
	p.ReferenceCamera = 0
	p.projectAll(cams)

	p.Refine(cams, kernel, cfg, opt)

	if math.IsNaN(p.Fitness) {
		t.Error("Refine left Fitness as NaN for a well-posed two-camera patch")
	}
	if got := p.Normal.Norm(); math.Abs(got-1) > 1e-9 {
		t.Errorf("Refine left Normal non-unit: %v", got)
	}
}
