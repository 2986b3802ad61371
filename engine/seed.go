package engine

// RefineSeedPatches refines every patch currently in the patch map (seed
// patches loaded before cell maps exist), dropping any that fail the
// minimum-camera-count check up front or runtime filtering afterward, per
// spec.md §4.4. Cell maps are not yet built at this stage, so
// RuntimeFiltering's cell-saturation check is skipped automatically (it
// checks e.CellMaps == nil).
func (e *Engine) RefineSeedPatches() {
	for _, p := range e.Patches() {
		if p.CameraNumber() < e.Config.MinCamNum {
			e.DeletePatch(p)
			continue
		}

		p.Refine(e.Cameras, e.Kernel, e.Config, e.Optimizer)
		p.RemoveInvisibleCamera(e.Cameras, e.Kernel, e.Config)

		if !e.RuntimeFiltering(p) {
			e.DeletePatch(p)
			continue
		}

		if e.OnPatchUpdate != nil {
			e.OnPatchUpdate(viewOf(p))
		}
	}
}
