// Package patch models the oriented planar surface element at the heart of
// the reconstruction: its geometry, its photo-consistency against a set of
// calibrated cameras, and the refinement that brings the two into
// agreement.
package patch

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/youngstu/pais-mvs/camera"
	"github.com/youngstu/pais-mvs/mvsconfig"
)

// Patch is an oriented planar disc approximating a small piece of the
// observed surface. It is mutable during refinement; once Expanded is set
// it is never re-refined (spec.md §3 lifecycle).
type Patch struct {
	ID int

	Center r3.Vector
	Normal r3.Vector

	// Theta, Phi are the spherical-coordinate representation of Normal,
	// kept in sync by setNormal/SetNormalSpherical.
	Theta, Phi float64

	LOD             int
	ReferenceCamera int // index into VisibleCameras, not the global camera index

	// VisibleCameras holds global camera indices; ImagePoints holds the
	// parallel projected (u, v) coordinate for each, per spec.md §3's
	// invariant that the two slices have equal length.
	VisibleCameras []int
	ImagePoints    []r3.Vector

	Fitness     float64
	Correlation float64
	Priority    float64

	Expanded bool
	Dropped  bool

	ParentID int // -1 if this patch has no parent (a seed)
}

// NewSeed constructs an unrefined patch from a triangulated seed position,
// normal, and initial visible-camera set. ParentID is -1.
func NewSeed(id int, center, normal r3.Vector, visibleCameras []int) *Patch {
	p := &Patch{
		ID:             id,
		Center:         center,
		VisibleCameras: append([]int(nil), visibleCameras...),
		ParentID:       -1,
	}
	p.SetNormal(normal)
	return p
}

// NewExpansion constructs a child patch at the given center, inheriting the
// parent's normal and visible-camera set, per spec.md §4.5.
func NewExpansion(id int, center r3.Vector, parent *Patch) *Patch {
	p := &Patch{
		ID:             id,
		Center:         center,
		VisibleCameras: append([]int(nil), parent.VisibleCameras...),
		ParentID:       parent.ID,
	}
	p.SetNormal(parent.Normal)
	return p
}

// SetNormal sets Normal (normalizing it) and keeps the spherical
// representation in sync, maintaining the invariant in spec.md §3.
func (p *Patch) SetNormal(n r3.Vector) {
	norm := n.Norm()
	if norm < 1e-12 {
		n = r3.Vector{Z: 1}
		norm = 1
	}
	p.Normal = n.Mul(1.0 / norm)
	p.Theta, p.Phi = Normal2Spherical(p.Normal)
}

// SetNormalSpherical sets Normal from (theta, phi), keeping both
// representations consistent.
func (p *Patch) SetNormalSpherical(theta, phi float64) {
	p.Theta, p.Phi = theta, phi
	p.Normal = Spherical2Normal(theta, phi)
}

// CameraNumber returns the number of currently visible cameras.
func (p *Patch) CameraNumber() int { return len(p.VisibleCameras) }

// PlaneDistance returns the signed distance from the origin to the patch's
// plane along its normal: -normal . center, matching mvs.cpp's
// `dist = -normal.ddot(center)` used throughout quantization and neighbor
// tests.
func (p *Patch) PlaneDistance() float64 {
	return -p.Normal.Dot(p.Center)
}

// SignedDistanceToPlane returns the signed distance from point to this
// patch's tangent plane.
func (p *Patch) SignedDistanceToPlane(point r3.Vector) float64 {
	return p.Normal.Dot(point) + p.PlaneDistance()
}

// IsNeighbor reports whether a and b are neighbor patches: the plane-signed
// distance from each center to the other's plane is below a threshold
// derived from each patch's local sampling scale (spec.md §4.1). scale is
// typically the world-space size of one reference-view pixel at the
// patch's depth (see Scale below); a patch pair is a neighbor if it is
// within max(scaleA, scaleB) of either plane.
func IsNeighbor(a, b *Patch, scaleA, scaleB float64) bool {
	threshold := scaleA
	if scaleB > threshold {
		threshold = scaleB
	}
	if threshold <= 0 {
		threshold = 1e-9
	}
	da := math.Abs(a.SignedDistanceToPlane(b.Center))
	db := math.Abs(b.SignedDistanceToPlane(a.Center))
	return da < threshold && db < threshold
}

// Scale returns the world-space size of one pixel of the reference camera
// at this patch's depth: depth / focalLength. It is the local sampling
// scale referenced by IsNeighbor and by LOD selection.
func (p *Patch) Scale(cams []*camera.Camera) float64 {
	if len(p.VisibleCameras) == 0 || p.ReferenceCamera >= len(p.VisibleCameras) {
		return 0
	}
	cam := cams[p.VisibleCameras[p.ReferenceCamera]]
	depth := p.Center.Sub(cam.Center()).Norm()
	focal := (cam.FocalX + cam.FocalY) / 2
	if focal <= 0 {
		return 0
	}
	return depth / focal
}

// removeIndex removes the camera at visible-list position i from both
// VisibleCameras and ImagePoints, preserving the parallel-slice invariant.
func (p *Patch) removeIndex(i int) {
	p.VisibleCameras = append(p.VisibleCameras[:i], p.VisibleCameras[i+1:]...)
	if i < len(p.ImagePoints) {
		p.ImagePoints = append(p.ImagePoints[:i], p.ImagePoints[i+1:]...)
	}
}

// RemoveInvisibleCamera drops any visible camera whose post-refinement
// photo-consistency with the reference view falls below
// cfg.VisibleCorrelation, or whose viewing direction is back-facing
// (normal . (-opticalAxis) <= 0), per spec.md §4.1.
func (p *Patch) RemoveInvisibleCamera(cams []*camera.Camera, kernel *DistanceKernel, cfg mvsconfig.Config) {
	if len(p.VisibleCameras) == 0 {
		return
	}
	refIdx := p.VisibleCameras[p.ReferenceCamera]
	refCam := cams[refIdx]

	kept := make([]int, 0, len(p.VisibleCameras))
	for i, camIdx := range p.VisibleCameras {
		if camIdx == refIdx {
			kept = append(kept, i)
			continue
		}
		cam := cams[camIdx]
		if p.Normal.Dot(cam.OpticalAxis().Mul(-1)) <= 0 {
			continue // back-facing
		}
		ncc := windowNCC(refCam, cam, p, kernel, cfg.PatchRadius)
		if ncc < cfg.VisibleCorrelation {
			continue
		}
		kept = append(kept, i)
	}

	if len(kept) == len(p.VisibleCameras) {
		return
	}

	newCams := make([]int, len(kept))
	newPts := make([]r3.Vector, 0, len(kept))
	newRef := -1
	for out, in := range kept {
		newCams[out] = p.VisibleCameras[in]
		if in < len(p.ImagePoints) {
			newPts = append(newPts, p.ImagePoints[in])
		}
		if in == p.ReferenceCamera {
			newRef = out
		}
	}
	p.VisibleCameras = newCams
	p.ImagePoints = newPts
	if newRef >= 0 {
		p.ReferenceCamera = newRef
	} else if len(newCams) > 0 {
		p.ReferenceCamera = 0
	}
}

// ReCenter re-triangulates Center from the existing visible-camera
// projections without altering Normal, used after load to canonicalize
// seed geometry (spec.md §4.1). It computes the least-squares point
// closest to all viewing rays through the stored ImagePoints.
func (p *Patch) ReCenter(cams []*camera.Camera) {
	if len(p.VisibleCameras) == 0 || len(p.ImagePoints) != len(p.VisibleCameras) {
		return
	}

	var sum r3.Vector
	count := 0
	for i, camIdx := range p.VisibleCameras {
		cam := cams[camIdx]
		pt := p.ImagePoints[i]
		center := cam.Center()
		v12 := cam.Unproject(pt.X, pt.Y).Sub(center)
		u := intersectRayWithPlane(center, v12, p.Normal, p.Center)
		sum = sum.Add(center.Add(v12.Mul(u)))
		count++
	}
	if count > 0 {
		p.Center = sum.Mul(1.0 / float64(count))
	}
}

// intersectRayWithPlane returns the scalar u such that
// rayOrigin + u*rayDir lies on the plane through planePoint with the given
// normal, matching MVS::getExpansionPatchCenter's intersection math.
func intersectRayWithPlane(rayOrigin, rayDir, normal, planePoint r3.Vector) float64 {
	denom := normal.Dot(rayDir)
	if math.Abs(denom) < 1e-12 {
		return 0
	}
	v13 := planePoint.Sub(rayOrigin)
	return normal.Dot(v13) / denom
}

// SelectLOD picks the pyramid level so the patch disc projects to
// approximately patchSize*lodRatio pixels in the reference view, clamped
// to [minLOD, maxLOD], per spec.md §4.1.
func (p *Patch) SelectLOD(cams []*camera.Camera, cfg mvsconfig.Config) int {
	if len(p.VisibleCameras) == 0 {
		return cfg.MinLOD
	}
	refIdx := p.VisibleCameras[p.ReferenceCamera]
	cam := cams[refIdx]

	depth := p.Center.Sub(cam.Center()).Norm()
	focal := (cam.FocalX + cam.FocalY) / 2
	if depth <= 0 || focal <= 0 {
		return cfg.MinLOD
	}

	targetPixels := float64(cfg.PatchSize()) * cfg.LODRatio
	if targetPixels <= 0 {
		targetPixels = 1
	}
	// At LOD 0 the disc projects to ~2*patchRadius pixels; each LOD level
	// halves apparent size (pyramid downsampling by 2x per level).
	baseline := float64(2 * cfg.PatchRadius)
	if baseline <= 0 {
		baseline = 1
	}
	lod := int(math.Round(math.Log2(baseline / targetPixels)))
	if lod < cfg.MinLOD {
		lod = cfg.MinLOD
	}
	if lod > cfg.MaxLOD {
		lod = cfg.MaxLOD
	}
	return lod
}

// Refine adjusts (Center, Normal) to minimize photo-consistency cost
// across visible cameras at the current LOD, per spec.md §4.1. On return
// Fitness, Correlation, Priority, LOD, ReferenceCamera and ImagePoints are
// updated. opt is the pluggable black-box search (see Optimizer).
func (p *Patch) Refine(cams []*camera.Camera, kernel *DistanceKernel, cfg mvsconfig.Config, opt Optimizer) {
	if len(p.VisibleCameras) == 0 {
		p.Fitness = math.NaN()
		return
	}

	p.ReferenceCamera = pickReferenceCamera(p, cams)
	p.LOD = p.SelectLOD(cams, cfg)

	sctx := SearchContext{
		Patch:   p,
		Cameras: cams,
		Config:  cfg,
		Kernel:  kernel,
	}
	theta, phi, dist, _ := opt.Search(sctx)
	p.SetNormalSpherical(theta, phi)
	p.Center = p.Center.Add(p.Normal.Mul(p.PlaneDistanceRaw() - dist))

	// A second LOD pass: refinement may change depth enough to shift the
	// ideal LOD, so the optimizer effectively restarts once, per spec.md
	// §4.1 ("Refinement may iterate: after an LOD change, the optimizer
	// restarts").
	newRef := pickReferenceCamera(p, cams)
	newLOD := p.SelectLOD(cams, cfg)
	if newLOD != p.LOD || newRef != p.ReferenceCamera {
		p.ReferenceCamera = newRef
		p.LOD = newLOD
		theta, phi, dist, _ = opt.Search(sctx)
		p.SetNormalSpherical(theta, phi)
		p.Center = p.Center.Add(p.Normal.Mul(p.PlaneDistanceRaw() - dist))
	}

	p.projectAll(cams)
	p.Fitness, p.Correlation = patchConsistency(cams, p, kernel, cfg.PatchRadius)
	p.Priority = p.Fitness
}

// PlaneDistanceRaw is an alias retained for readability at call sites that
// read like the original's `dist = -normal.ddot(center)`.
func (p *Patch) PlaneDistanceRaw() float64 { return p.PlaneDistance() }

// projectAll recomputes ImagePoints for every visible camera from the
// current Center.
func (p *Patch) projectAll(cams []*camera.Camera) {
	pts := make([]r3.Vector, 0, len(p.VisibleCameras))
	for _, camIdx := range p.VisibleCameras {
		pt, _ := cams[camIdx].Project(p.Center)
		pts = append(pts, pt)
	}
	p.ImagePoints = pts
}

// pickReferenceCamera returns the index (into VisibleCameras) of the
// camera whose reversed viewing direction is most aligned with the patch
// normal, i.e. the most fronto-parallel view, per spec.md §3.
func pickReferenceCamera(p *Patch, cams []*camera.Camera) int {
	best := 0
	bestDot := -2.0
	for i, camIdx := range p.VisibleCameras {
		d := p.Normal.Dot(cams[camIdx].OpticalAxis().Mul(-1))
		if d > bestDot {
			bestDot = d
			best = i
		}
	}
	return best
}
