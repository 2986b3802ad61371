package engine

import (
	"github.com/golang/geo/r3"

	"github.com/youngstu/pais-mvs/camera"
	"github.com/youngstu/pais-mvs/patch"
)

// ExpansionPatches runs the best-first expansion loop until the priority
// queue is exhausted, per spec.md §4.5. Cell maps and the priority queue
// must already be populated (see Engine.SetCellMaps, Engine.InitPriorityQueue).
func (e *Engine) ExpansionPatches() {
	if len(e.Cameras) == 0 {
		return // spec.md §8 "Empty input": expansion is a no-op
	}

	for {
		id, ok := e.GetTopPriorityPatchID()
		if !ok {
			break
		}
		p, ok := e.Patch(id)
		if !ok {
			continue
		}

		if !e.RuntimeFiltering(p) {
			e.DeletePatch(p)
			continue
		}

		p.Expanded = true
		e.ExpandNeighborCell(p)

		e.expansionsSinceCheckpoint++
		e.maybeCheckpoint()
	}
}

// ExpandNeighborCell examines, for each of the parent's visible cameras
// equal to its reference camera, the four 4-connected neighbor cells of
// the parent's projection, spawning a child patch in each cell that is
// not saturated and has no established neighbor occupant, per spec.md
// §4.5.
func (e *Engine) ExpandNeighborCell(parent *patch.Patch) {
	refGlobalCam := parent.VisibleCameras[parent.ReferenceCamera]

	for i, camIdx := range parent.VisibleCameras {
		if camIdx != refGlobalCam {
			continue
		}
		if i >= len(parent.ImagePoints) {
			continue
		}

		cam := e.Cameras[camIdx]
		cm := e.CellMaps[camIdx]
		pt := parent.ImagePoints[i]
		cx, cy := cm.CellIndex(pt.X, pt.Y)

		offsets := [4][2]int{{-1, 0}, {0, -1}, {1, 0}, {0, 1}}
		for _, off := range offsets {
			nx, ny := cx+off[0], cy+off[1]
			if !cm.InMap(nx, ny) {
				continue
			}
			cell := cm.Cell(nx, ny)
			if e.skipNeighborCell(cell, parent) {
				continue
			}
			e.ExpandCell(cam, parent, nx, ny)
		}
	}
}

// skipNeighborCell reports whether the given cell should be skipped
// during expansion: it is full, or it already holds a robust-but-distinct
// occupant (correlation above MinCorrelation) or an established neighbor
// of ref, per spec.md §4.5 and MVS::skipNeighborCell.
func (e *Engine) skipNeighborCell(cell []int, ref *patch.Patch) bool {
	if len(cell) >= e.Config.MaxCellPatchNum {
		return true
	}
	refScale := ref.Scale(e.Cameras)
	for _, id := range cell {
		p, ok := e.Patch(id)
		if !ok {
			continue
		}
		if p.Correlation > e.Config.MinCorrelation {
			return true
		}
		if patch.IsNeighbor(ref, p, refScale, p.Scale(e.Cameras)) {
			return true
		}
	}
	return false
}

// ExpandCell constructs a child patch centered at the plane-intersection
// of the given cell's unprojected pixel center with the parent's tangent
// plane, refines it, drops invisible cameras, and attempts to insert it,
// per spec.md §4.5.
func (e *Engine) ExpandCell(cam *camera.Camera, parent *patch.Patch, cx, cy int) {
	cellSize := float64(e.Config.CellSize)
	px := (float64(cx) + 0.5) * cellSize
	py := (float64(cy) + 0.5) * cellSize

	center := expansionCenter(cam, parent, px, py)

	child := patch.NewExpansion(e.NewPatchID(), center, parent)
	// Child inherits parent's visible-camera list verbatim (NewExpansion),
	// so the reference-camera position carries over unchanged.
	child.ReferenceCamera = parent.ReferenceCamera

	child.Refine(e.Cameras, e.Kernel, e.Config, e.Optimizer)
	child.RemoveInvisibleCamera(e.Cameras, e.Kernel, e.Config)

	e.InsertPatch(child)
}

// expansionCenter unprojects the pixel (px, py) in cam's image plane to a
// world ray and intersects it with parent's tangent plane, matching
// MVS::getExpansionPatchCenter.
func expansionCenter(cam *camera.Camera, parent *patch.Patch, px, py float64) r3.Vector {
	camCenter := cam.Center()
	rayPoint := cam.Unproject(px, py)
	v12 := rayPoint.Sub(camCenter)
	v13 := parent.Center.Sub(camCenter)

	denom := parent.Normal.Dot(v12)
	if denom == 0 {
		return parent.Center
	}
	u := parent.Normal.Dot(v13) / denom
	return camCenter.Add(v12.Mul(u))
}
