package engine

// maybeCheckpoint writes a full reconstruction snapshot every
// Config.CheckpointInterval accepted expansions (spec.md §4.5, default
// 500 per mvs.cpp's auto_save.mvs), via the caller-supplied
// CheckpointWriter. Grounded on the teacher's saveCachedTrajectory: warn
// and continue on failure rather than aborting the run, since losing one
// checkpoint should never derail a long reconstruction.
func (e *Engine) maybeCheckpoint() {
	if e.CheckpointWriter == nil || e.Config.CheckpointInterval <= 0 {
		return
	}
	if e.expansionsSinceCheckpoint < e.Config.CheckpointInterval {
		return
	}
	e.expansionsSinceCheckpoint = 0

	if err := e.CheckpointWriter(e.Cameras, e.Patches()); err != nil {
		if e.logger != nil {
			e.logger.Warnf("checkpoint failed: %v", err)
		}
		return
	}
	if e.logger != nil {
		e.logger.Debugf("checkpoint written at %d patches", e.PatchCount())
	}
}
