// Package engine owns the reconstruction state — cameras, patches, cell
// maps, and the priority queue — and orchestrates refinement, expansion,
// filtering and quantization over them, mirroring MVS in the original
// engine.
package engine

import (
	"math"

	"go.viam.com/rdk/logging"

	"github.com/youngstu/pais-mvs/camera"
	"github.com/youngstu/pais-mvs/cellmap"
	"github.com/youngstu/pais-mvs/mvsconfig"
	"github.com/youngstu/pais-mvs/mvserr"
	"github.com/youngstu/pais-mvs/patch"
)

// PatchView is the read-only projection of a Patch handed to OnPatchUpdate,
// so viewer/GUI consumers never need to import package patch directly.
type PatchView struct {
	ID          int
	Center      [3]float64
	Normal      [3]float64
	Fitness     float64
	Correlation float64
	Priority    float64
}

func viewOf(p *patch.Patch) PatchView {
	return PatchView{
		ID:          p.ID,
		Center:      [3]float64{p.Center.X, p.Center.Y, p.Center.Z},
		Normal:      [3]float64{p.Normal.X, p.Normal.Y, p.Normal.Z},
		Fitness:     p.Fitness,
		Correlation: p.Correlation,
		Priority:    p.Priority,
	}
}

// Engine is a plain owned aggregate — construct once per reconstruction
// job, never a singleton (spec.md §9).
type Engine struct {
	Cameras  []*camera.Camera
	CellMaps []*cellmap.CellMap

	Config    mvsconfig.Config
	Kernel    *patch.DistanceKernel
	Optimizer patch.Optimizer

	logger logging.Logger

	patches map[int]*patch.Patch
	queue   []int
	nextID  int

	// OnPatchUpdate, when non-nil, is invoked after every accepted seed
	// refinement and every successful insert. The core never imports a
	// viewer/GUI package; wiring this hook onto a websocket, file dump, or
	// channel consumer is the caller's concern.
	OnPatchUpdate func(PatchView)

	// CheckpointWriter, when non-nil, is called every Config.CheckpointInterval
	// accepted expansions with the current patch snapshot.
	CheckpointWriter func(cameras []*camera.Camera, patches []*patch.Patch) error

	expansionsSinceCheckpoint int
}

// New constructs an Engine over the given cameras with the given config,
// validating the config up front (spec.md §4.3 "setConfig captures all
// tunables").
func New(cams []*camera.Camera, cfg mvsconfig.Config, logger logging.Logger) (*Engine, error) {
	e := &Engine{
		Cameras: cams,
		logger:  logger,
		patches: make(map[int]*patch.Patch),
	}
	if err := e.SetConfig(cfg); err != nil {
		return nil, err
	}
	return e, nil
}

// SetConfig validates cfg and (re)builds the patch distance kernel, per
// spec.md §4.3.
func (e *Engine) SetConfig(cfg mvsconfig.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.Config = cfg
	e.Kernel = patch.NewDistanceKernel(cfg.PatchRadius, cfg.DistWeighting)
	if e.Optimizer == nil {
		e.Optimizer = patch.NewParticleOptimizer(cfg)
	}
	return nil
}

// SetCellMaps allocates one CellMap per camera and projects every current
// patch into every visible view's cell, per spec.md §4.3. It fails with a
// ConfigError if there are no cameras (the "empty input" scenario in
// spec.md §8).
func (e *Engine) SetCellMaps() error {
	if len(e.Cameras) == 0 {
		return mvserr.NewConfigError("cameras", "at least one camera is required to build cell maps")
	}

	maps := make([]*cellmap.CellMap, len(e.Cameras))
	for i, cam := range e.Cameras {
		img := cam.PyramidLevel(0)
		maps[i] = cellmap.New(img.Width, img.Height, e.Config.CellSize)
	}
	e.CellMaps = maps

	for _, p := range e.patches {
		e.insertIntoCellMaps(p)
	}
	return nil
}

// InitPriorityQueue enumerates all current patches into the queue, per
// spec.md §4.3.
func (e *Engine) InitPriorityQueue() {
	e.queue = e.queue[:0]
	for id := range e.patches {
		e.queue = append(e.queue, id)
	}
}

// AddSeed registers a seed patch directly into the patch map (not yet the
// queue or cell maps — those are built explicitly via InitPriorityQueue /
// SetCellMaps once seed refinement has pruned the set).
func (e *Engine) AddSeed(p *patch.Patch) {
	if p.ID >= e.nextID {
		e.nextID = p.ID + 1
	}
	e.patches[p.ID] = p
}

// NewPatchID returns the next unused patch id; ids are never reused within
// a session (spec.md §3).
func (e *Engine) NewPatchID() int {
	id := e.nextID
	e.nextID++
	return id
}

// Patch looks up a live patch by id, returning (nil, false) if absent or
// dropped.
func (e *Engine) Patch(id int) (*patch.Patch, bool) {
	p, ok := e.patches[id]
	if !ok || p.Dropped {
		return nil, false
	}
	return p, true
}

// PatchCount returns the number of live patches in the patch map.
func (e *Engine) PatchCount() int { return len(e.patches) }

// Patches returns a snapshot slice of all live patches, in unspecified
// order (spec.md §3: insertion order is irrelevant).
func (e *Engine) Patches() []*patch.Patch {
	out := make([]*patch.Patch, 0, len(e.patches))
	for _, p := range e.patches {
		out = append(out, p)
	}
	return out
}

func (e *Engine) insertIntoCellMaps(p *patch.Patch) {
	for i, camIdx := range p.VisibleCameras {
		if i >= len(p.ImagePoints) {
			continue
		}
		pt := p.ImagePoints[i]
		cm := e.CellMaps[camIdx]
		cx, cy := cm.CellIndex(pt.X, pt.Y)
		cm.Insert(cx, cy, p.ID)
	}
}

func (e *Engine) dropFromCellMaps(p *patch.Patch) {
	if e.CellMaps == nil {
		return
	}
	for i, camIdx := range p.VisibleCameras {
		if i >= len(p.ImagePoints) {
			continue
		}
		pt := p.ImagePoints[i]
		cm := e.CellMaps[camIdx]
		cx, cy := cm.CellIndex(pt.X, pt.Y)
		cm.Drop(cx, cy, p.ID)
	}
}

// InsertPatch admits p if RuntimeFiltering holds: on success it is added
// to the patch map, appended to the queue, and projected into every
// visible camera's cell map, per spec.md §4.5.
func (e *Engine) InsertPatch(p *patch.Patch) bool {
	if !e.RuntimeFiltering(p) {
		return false
	}
	e.patches[p.ID] = p
	e.queue = append(e.queue, p.ID)
	e.insertIntoCellMaps(p)
	if e.OnPatchUpdate != nil {
		e.OnPatchUpdate(viewOf(p))
	}
	return true
}

// DeletePatch removes p from the patch map and from every visible
// camera's cell (if cell maps exist); the priority queue is left
// untouched — stale entries are filtered lazily on pop, per spec.md §4.5.
func (e *Engine) DeletePatch(p *patch.Patch) {
	p.Dropped = true
	e.dropFromCellMaps(p)
	delete(e.patches, p.ID)
}

// GetTopPriorityPatchID pops and returns the id of the unexpanded, live
// patch with minimum Priority, breaking ties by lowest id for determinism
// (spec.md §5). Patches found already expanded or dropped are discarded
// from the queue while scanning, matching MVS::getTopPriorityPatchId.
// Returns (0, false) if the queue is exhausted.
func (e *Engine) GetTopPriorityPatchID() (int, bool) {
	kept := e.queue[:0]
	bestIdx := -1
	bestPriority := math.Inf(1)
	bestID := math.MaxInt64

	for _, id := range e.queue {
		p, ok := e.patches[id]
		if !ok || p.Dropped || p.Expanded {
			continue
		}
		kept = append(kept, id)
		if p.Priority < bestPriority || (p.Priority == bestPriority && id < bestID) {
			bestPriority = p.Priority
			bestID = id
			bestIdx = len(kept) - 1
		}
	}

	if bestIdx == -1 {
		e.queue = kept
		return 0, false
	}

	kept = append(kept[:bestIdx], kept[bestIdx+1:]...)
	e.queue = kept
	return bestID, true
}
