package ioformat

import (
	"bufio"
	"fmt"
	"os"

	"github.com/youngstu/pais-mvs/mvserr"
	"github.com/youngstu/pais-mvs/patch"
)

// WritePSR writes the accepted, non-dropped patches as a headerless
// "x y z nx ny nz" text file, the input format PoissonRecon expects for
// surface reconstruction (spec.md §5).
func WritePSR(path string, patches []*patch.Patch) error {
	file, err := os.Create(path)
	if err != nil {
		return mvserr.NewIOError("write psr", path, fmt.Errorf("create file: %w", err))
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	for _, cn := range liveCenterNormals(patches) {
		fmt.Fprintf(w, "%g %g %g %g %g %g\n",
			cn.center.X, cn.center.Y, cn.center.Z,
			cn.normal.X, cn.normal.Y, cn.normal.Z)
	}

	if err := w.Flush(); err != nil {
		return mvserr.NewIOError("write psr", path, err)
	}
	return nil
}
