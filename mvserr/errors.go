// Package mvserr defines the error taxonomy shared by every package in
// pais-mvs: configuration problems, I/O failures, numeric corruption during
// refinement, and detected invariant violations in engine state.
package mvserr

import "fmt"

// ConfigError reports a missing or inconsistent configuration value.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: field %q: %s", e.Field, e.Reason)
}

// NewConfigError builds a ConfigError for the named field.
func NewConfigError(field, reason string) *ConfigError {
	return &ConfigError{Field: field, Reason: reason}
}

// IOError wraps a load/write failure with the path that caused it. It is
// never retried internally; callers surface it as-is.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// NewIOError builds an IOError for the given operation and path.
func NewIOError(op, path string, err error) *IOError {
	return &IOError{Op: op, Path: path, Err: err}
}

// NumericError reports a NaN fitness/priority/correlation encountered
// during refinement. Callers treat it as a filter failure (delete the
// patch and continue), never propagate it past the engine.
type NumericError struct {
	PatchID int
	Field   string
}

func (e *NumericError) Error() string {
	return fmt.Sprintf("patch %d: non-finite %s", e.PatchID, e.Field)
}

// InvariantViolation reports a structural inconsistency: a cell
// referencing an unknown patch id, or an image-projection/camera-index
// length mismatch on a patch. The engine does not check for these
// conditions and never returns this error; there is no separate debug or
// release handling of it.
type InvariantViolation struct {
	What string
}

func (e *InvariantViolation) Error() string {
	return "invariant violation: " + e.What
}

// NewInvariantViolation builds an InvariantViolation with the given detail.
func NewInvariantViolation(what string) *InvariantViolation {
	return &InvariantViolation{What: what}
}
