package engine

import (
	"testing"

	"github.com/youngstu/pais-mvs/camera"
)

// TestRuntimeFilteringMonotoneInCameraNumberAndCorrelation exercises the
// thresholds behind spec.md §8 invariant 4: a patch accepted with 2
// cameras and correlation 0.9 is rejected once cameraNumber drops below
// MinCamNum or correlation drops below MinCorrelation.
func TestRuntimeFilteringMonotoneInCameraNumberAndCorrelation(t *testing.T) {
	cams := []*camera.Camera{testCamera(0), testCamera(-1), testCamera(1)}
	cfg := singleCamCfg()
	cfg.MinCamNum = 2
	cfg.MinCorrelation = 0.5
	e, err := New(cams, cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	base := validPatch(1, 0, 50, 50)
	base.VisibleCameras = []int{0, 1}
	base.ImagePoints = append(base.ImagePoints, base.ImagePoints[0])
	base.Correlation = 0.9

	if !e.RuntimeFiltering(base) {
		t.Fatal("expected base patch (2 cameras, high correlation) to pass")
	}

	fewerCams := validPatch(2, 0, 50, 50)
	fewerCams.Correlation = 0.9
	if e.RuntimeFiltering(fewerCams) {
		t.Error("patch with cameraNumber below MinCamNum was accepted")
	}

	lowerCorr := validPatch(3, 0, 50, 50)
	lowerCorr.VisibleCameras = []int{0, 1}
	lowerCorr.ImagePoints = append(lowerCorr.ImagePoints, lowerCorr.ImagePoints[0])
	lowerCorr.Correlation = 0.1
	if e.RuntimeFiltering(lowerCorr) {
		t.Error("patch with correlation below MinCorrelation was accepted")
	}
}

func TestRuntimeFilteringRejectsBackgroundProjection(t *testing.T) {
	img := flatImage(100, 100, 0) // all background
	cam := camera.Build(200, 200, 50, 50, testCamera(0).Rotation, testCamera(0).Translation, []*camera.Image{img})
	e, err := New([]*camera.Camera{cam}, singleCamCfg(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	p := validPatch(1, 0, 50, 50)
	if e.RuntimeFiltering(p) {
		t.Error("expected rejection: patch center projects onto a zero (background) pixel")
	}
}
