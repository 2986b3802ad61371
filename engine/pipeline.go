package engine

import (
	"context"
	"fmt"

	"github.com/youngstu/pais-mvs/camera"
	"github.com/youngstu/pais-mvs/ioformat"
	"github.com/youngstu/pais-mvs/patch"
)

// RunOptions names the inputs and outputs of one reconstruction job: an
// NVM_V3 scene to densify and the output paths to write. It is the
// engine-facing counterpart of internal/jobspec.Job — cmd/mvs translates
// a loaded Job into RunOptions before calling Run.
type RunOptions struct {
	InputPath      string // NVM_V3 scene, read with ioformat.ReadNVM (the NVM2 variant is not detected)
	MVSOutput      string // native .mvs snapshot path (skipped if empty)
	PLYOutput      string // oriented point cloud path (optional, skipped if empty)
	PSROutput      string // Poisson surface reconstruction input path (optional, skipped if empty)
	CheckpointPath string // periodic .mvs snapshot path (optional, skipped if empty)
}

// Run executes the full reconstruction pipeline — LoadScene, RefineSeeds,
// BuildIndex, Expand, FilterCascade, Quantize, Write — as a stage table, logging a
// banner per stage and wrapping stage errors, directly grounded on the
// teacher's run.go (runCycle's []struct{name string; fn func(...) error}
// table). Unlike the teacher's infinite retry loop, a reconstruction job
// runs each stage once and returns.
func (e *Engine) Run(ctx context.Context, opts RunOptions) error {
	if e.logger != nil {
		e.logger.Info("Starting reconstruction")
	}
	if e.CheckpointWriter == nil && opts.CheckpointPath != "" {
		e.CheckpointWriter = func(cams []*camera.Camera, patches []*patch.Patch) error {
			return ioformat.WriteMVS(opts.CheckpointPath, cams, patches)
		}
	}

	stages := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"LoadScene", func(context.Context) error { return e.stageLoadScene(opts.InputPath) }},
		{"RefineSeeds", func(context.Context) error { e.RefineSeedPatches(); return nil }},
		{"BuildIndex", func(context.Context) error { return e.SetCellMaps() }},
		{"Expand", func(context.Context) error { e.InitPriorityQueue(); e.ExpansionPatches(); return nil }},
		{"FilterCascade", func(context.Context) error { e.runFilterCascade(); return nil }},
		{"Quantize", func(context.Context) error { e.PatchQuantization(); return nil }},
		{"Write", func(context.Context) error { return e.stageWrite(opts) }},
	}

	for _, stage := range stages {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if e.logger != nil {
			e.logger.Infof("=== %s ===", stage.name)
		}
		if err := stage.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", stage.name, err)
		}
	}

	if e.logger != nil {
		e.logger.Infof("Reconstruction complete: %d patches", e.PatchCount())
	}
	return nil
}

func (e *Engine) runFilterCascade() {
	e.CellFiltering()
	r := e.Config.NeighborCellRatio
	if r <= 0 {
		r = e.Config.MinRegionRatio
	}
	e.NeighborCellFiltering(r)
	e.VisibilityFiltering()
	e.NeighborPatchFiltering()
}

func (e *Engine) stageLoadScene(path string) error {
	cams, seeds, err := ioformat.ReadNVM(path)
	if err != nil {
		return err
	}
	e.Cameras = cams
	for _, p := range seeds {
		p.ReCenter(e.Cameras)
		e.AddSeed(p)
	}
	return nil
}

func (e *Engine) stageWrite(opts RunOptions) error {
	patches := e.Patches()
	if opts.MVSOutput != "" {
		if err := ioformat.WriteMVS(opts.MVSOutput, e.Cameras, patches); err != nil {
			return err
		}
	}
	if opts.PLYOutput != "" {
		if err := ioformat.WritePLY(opts.PLYOutput, patches); err != nil {
			return err
		}
	}
	if opts.PSROutput != "" {
		if err := ioformat.WritePSR(opts.PSROutput, patches); err != nil {
			return err
		}
	}
	return nil
}
