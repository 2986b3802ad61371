package engine

import (
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/youngstu/pais-mvs/patch"
)

// RuntimeFiltering reports whether p passes every runtime acceptance
// check, per spec.md §4.6. It is pure with respect to engine state (reads
// only) and is called both during seed refinement (before cell maps
// exist) and during expansion/insert.
func (e *Engine) RuntimeFiltering(p *patch.Patch) bool {
	if p.Dropped {
		return false
	}
	if p.CameraNumber() < e.Config.MinCamNum {
		return false
	}
	if math.IsNaN(p.Fitness) || p.Fitness <= 0 || p.Fitness > e.Config.MaxFitness {
		return false
	}
	if math.IsNaN(p.Priority) || p.Priority > 10000 {
		return false
	}
	if math.IsNaN(p.Correlation) || p.Correlation < e.Config.MinCorrelation {
		return false
	}

	// Background/out-of-bounds check against every camera, not just the
	// visible set, matching MVS::runtimeFiltering.
	for _, cam := range e.Cameras {
		pt, ok := cam.Project(p.Center)
		if !ok {
			return false
		}
		if cam.IsBackground(pt.X, pt.Y) {
			return false
		}
	}

	// Front-facing visible-camera count.
	frontFacing := 0
	for _, camIdx := range p.VisibleCameras {
		cam := e.Cameras[camIdx]
		if p.Normal.Dot(cam.OpticalAxis().Mul(-1)) > 0 {
			frontFacing++
		}
	}
	if frontFacing < e.Config.MinCamNum {
		return false
	}

	if e.CellMaps == nil {
		return true // cell maps not yet built, during seed refinement
	}

	fullCells := 0
	for i, camIdx := range p.VisibleCameras {
		if i >= len(p.ImagePoints) {
			continue
		}
		pt := p.ImagePoints[i]
		cm := e.CellMaps[camIdx]
		cx, cy := cm.CellIndex(pt.X, pt.Y)
		cell := cm.Cell(cx, cy)
		if contains(cell, p.ID) {
			return true
		}
		if len(cell) >= e.Config.MaxCellPatchNum {
			fullCells++
		}
	}
	return fullCells < p.CameraNumber()
}

func contains(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// CellFiltering runs the cell-consistency filter: for each cell, a patch
// is marked for removal if its own correlation weighted by camera count
// falls below the summed correlation of its cell-mates, per spec.md §4.7.
func (e *Engine) CellFiltering() {
	for _, cm := range e.CellMaps {
		for cx := 0; cx < cm.Width(); cx++ {
			for cy := 0; cy < cm.Height(); cy++ {
				cell := cm.Cell(cx, cy)
				if len(cell) == 0 {
					continue
				}
				var toRemove []int
				for _, id := range cell {
					p, ok := e.Patch(id)
					if !ok {
						continue
					}
					var corrSum float64
					for _, otherID := range cell {
						if otherID == id {
							continue
						}
						if other, ok := e.Patch(otherID); ok {
							corrSum += other.Correlation
						}
					}
					if p.Correlation*float64(p.CameraNumber()) < corrSum {
						toRemove = append(toRemove, id)
					}
				}
				for _, id := range toRemove {
					if p, ok := e.Patch(id); ok {
						e.DeletePatch(p)
					}
				}
			}
		}
	}
}

// neighborOffsets are the 9 distinct (dx, dy) cell offsets examined by
// NeighborCellFiltering: the cell itself plus its 8 surrounding cells.
// spec.md §9 notes the original engine's inner loop shadows the outer
// loop variable, iterating index 0 of this array twice instead of
// covering all 9 distinct offsets; this is treated as a bug (not
// reproduced) and each of the 9 offsets below is visited exactly once.
var neighborOffsets = [9][2]int{
	{0, 0}, {-1, -1}, {1, -1}, {-1, 1}, {1, 1}, {1, 0}, {0, 1}, {-1, 0}, {0, -1},
}

// NeighborCellFiltering removes patches whose 3x3 cell-neighborhood
// neighbor-test ratio (neighbor patches / total patches examined) falls
// below ratio r, per spec.md §4.7.
func (e *Engine) NeighborCellFiltering(r float64) {
	patchScale := func(p *patch.Patch) float64 { return p.Scale(e.Cameras) }

	for _, cm := range e.CellMaps {
		for cx := 0; cx < cm.Width(); cx++ {
			for cy := 0; cy < cm.Height(); cy++ {
				cell := cm.Cell(cx, cy)
				var toRemove []int
				for _, id := range cell {
					center, ok := e.Patch(id)
					if !ok {
						continue
					}
					var neighborSum, neighborCount int
					for _, off := range neighborOffsets {
						nx, ny := cx+off[0], cy+off[1]
						if !cm.InMap(nx, ny) {
							continue
						}
						neighborCell := cm.Cell(nx, ny)
						neighborSum += len(neighborCell)
						for _, nid := range neighborCell {
							other, ok := e.Patch(nid)
							if !ok {
								continue
							}
							if patch.IsNeighbor(center, other, patchScale(center), patchScale(other)) {
								neighborCount++
							}
						}
					}
					if neighborSum == 0 || float64(neighborCount)/float64(neighborSum) < r {
						toRemove = append(toRemove, id)
					}
				}
				for _, id := range toRemove {
					if p, ok := e.Patch(id); ok {
						e.DeletePatch(p)
					}
				}
			}
		}
	}
}

// VisibilityFiltering decrements a patch's effective visible-camera count
// for every visible view in which a closer patch shares its cell
// (indicating occlusion), deleting the patch if the remaining count drops
// below MinCamNum, per spec.md §4.7.
func (e *Engine) VisibilityFiltering() {
	for _, p := range e.Patches() {
		visibleCount := p.CameraNumber()

		for i, camIdx := range p.VisibleCameras {
			if i >= len(p.ImagePoints) {
				continue
			}
			cam := e.Cameras[camIdx]
			depth := p.Center.Sub(cam.Center()).Norm()

			pt := p.ImagePoints[i]
			cm := e.CellMaps[camIdx]
			cx, cy := cm.CellIndex(pt.X, pt.Y)
			cell := cm.Cell(cx, cy)

			occluded := false
			for _, otherID := range cell {
				if otherID == p.ID {
					continue
				}
				other, ok := e.Patch(otherID)
				if !ok {
					continue
				}
				neighborDepth := other.Center.Sub(cam.Center()).Norm()
				if depth > neighborDepth {
					occluded = true
					break
				}
			}
			if occluded {
				visibleCount--
			}
		}

		if visibleCount < e.Config.MinCamNum {
			e.DeletePatch(p)
		}
	}
}

// patchDist pairs a patch id with its distance to a reference center.
type patchDist struct {
	id   int
	dist float64
}

// NeighborPatchFiltering is the k-NN filter: for each patch, the mean
// distance and mean normal-correlation to its LocalK nearest neighbors by
// center distance are computed; patches whose mean distance exceeds
// NeighborRadius or whose mean normal-correlation falls below
// VisibleCorrelation are removed, per spec.md §4.7. The per-patch distance
// computation is embarrassingly parallel (read-only over a snapshot);
// removal is a single serial pass afterward, mirroring mvs.cpp's
// `#pragma omp parallel for` / `#pragma omp critical` structure.
func (e *Engine) NeighborPatchFiltering() {
	all := e.Patches()
	if len(all) <= 1 {
		return
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > len(all) {
		workers = len(all)
	}
	if workers < 1 {
		workers = 1
	}

	var mu sync.Mutex
	var removeIDs []int
	var wg sync.WaitGroup

	jobs := make(chan *patch.Patch)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				if remove := e.evaluateNeighborFilter(p, all); remove {
					mu.Lock()
					removeIDs = append(removeIDs, p.ID)
					mu.Unlock()
				}
			}
		}()
	}
	for _, p := range all {
		jobs <- p
	}
	close(jobs)
	wg.Wait()

	for _, id := range removeIDs {
		if p, ok := e.Patch(id); ok {
			e.DeletePatch(p)
		}
	}
}

func (e *Engine) evaluateNeighborFilter(p *patch.Patch, all []*patch.Patch) bool {
	k := e.Config.LocalK
	if k >= len(all) {
		k = len(all) - 1
	}
	if k <= 0 {
		return false
	}

	dists := make([]patchDist, 0, len(all)-1)
	for _, other := range all {
		if other.ID == p.ID {
			continue
		}
		dists = append(dists, patchDist{id: other.ID, dist: p.Center.Sub(other.Center).Norm()})
	}
	sort.Slice(dists, func(i, j int) bool { return dists[i].dist < dists[j].dist })

	var avgDist, avgCorr float64
	byID := make(map[int]*patch.Patch, len(all))
	for _, o := range all {
		byID[o.ID] = o
	}
	for i := 0; i < k; i++ {
		avgDist += dists[i].dist
		if n, ok := byID[dists[i].id]; ok {
			avgCorr += p.Normal.Dot(n.Normal)
		}
	}
	avgDist /= float64(k)
	avgCorr /= float64(k)

	return avgDist > e.Config.NeighborRadius || avgCorr < e.Config.VisibleCorrelation
}
