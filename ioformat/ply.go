package ioformat

import (
	"bufio"
	"fmt"
	"os"

	"github.com/youngstu/pais-mvs/mvserr"
	"github.com/youngstu/pais-mvs/patch"
)

// WritePLY writes the accepted, non-dropped patches as an ASCII PLY
// oriented point cloud (position + normal per vertex), grounded on the
// teacher's savePointCloudToPCD: os.Create, defer Close, wrapped errors.
func WritePLY(path string, patches []*patch.Patch) error {
	file, err := os.Create(path)
	if err != nil {
		return mvserr.NewIOError("write ply", path, fmt.Errorf("create file: %w", err))
	}
	defer file.Close()

	w := bufio.NewWriter(file)

	live := liveCenterNormals(patches)

	fmt.Fprintln(w, "ply")
	fmt.Fprintln(w, "format ascii 1.0")
	fmt.Fprintf(w, "element vertex %d\n", len(live))
	fmt.Fprintln(w, "property float x")
	fmt.Fprintln(w, "property float y")
	fmt.Fprintln(w, "property float z")
	fmt.Fprintln(w, "property float nx")
	fmt.Fprintln(w, "property float ny")
	fmt.Fprintln(w, "property float nz")
	fmt.Fprintln(w, "end_header")

	for _, cn := range live {
		fmt.Fprintf(w, "%g %g %g %g %g %g\n",
			cn.center.X, cn.center.Y, cn.center.Z,
			cn.normal.X, cn.normal.Y, cn.normal.Z)
	}

	if err := w.Flush(); err != nil {
		return mvserr.NewIOError("write ply", path, err)
	}
	return nil
}
