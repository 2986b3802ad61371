package engine

// SetViewerHook installs fn as the engine's OnPatchUpdate callback,
// invoked after every accepted seed refinement and successful insert
// (spec.md §4.4, §4.5). Grounded on the teacher's watch.go, which
// dispatches detection updates to callers — saving to disk, logging, or
// (here) forwarding to a viewer — rather than hard-wiring a GUI
// dependency into the core. Passing nil disables the hook.
func (e *Engine) SetViewerHook(fn func(PatchView)) {
	e.OnPatchUpdate = fn
}
