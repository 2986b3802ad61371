package ioformat

import (
	"github.com/golang/geo/r3"

	"github.com/youngstu/pais-mvs/patch"
)

type centerNormal struct {
	center, normal r3.Vector
}

// liveCenterNormals extracts the (center, normal) pairs of every non-dropped
// patch, the common vertex set both PLY and PSR export.
func liveCenterNormals(patches []*patch.Patch) []centerNormal {
	out := make([]centerNormal, 0, len(patches))
	for _, p := range patches {
		if p.Dropped {
			continue
		}
		out = append(out, centerNormal{center: p.Center, normal: p.Normal})
	}
	return out
}
