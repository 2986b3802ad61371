package engine

import (
	"math"

	"github.com/youngstu/pais-mvs/patch"
)

// binKey identifies one (theta, phi, dist) voxel.
type binKey struct{ theta, phi, dist int }

// PatchQuantization voxelizes the (theta, phi, planeDistance) domain of
// the current patch set into ThetaBins x PhiBins x DistBins cells sized
// by the observed ranges, then snaps every patch's normal to its bin's
// representative direction and reassigns its center onto the
// representative plane, per spec.md §4.8.
//
// This resolves the open question in spec.md §9 over the original
// engine's unused `projCenter`: the whole point of quantization is to
// "reduce parameter-space dispersion before output" (spec.md §1), so the
// projected center is explicitly assigned back here rather than left
// untouched.
func (e *Engine) PatchQuantization() {
	all := e.Patches()
	if len(all) == 0 {
		return
	}

	minTheta, maxTheta := math.Inf(1), math.Inf(-1)
	minPhi, maxPhi := math.Inf(1), math.Inf(-1)
	minDist, maxDist := math.Inf(1), math.Inf(-1)

	for _, p := range all {
		d := p.PlaneDistance()
		minTheta, maxTheta = math.Min(minTheta, p.Theta), math.Max(maxTheta, p.Theta)
		minPhi, maxPhi = math.Min(minPhi, p.Phi), math.Max(maxPhi, p.Phi)
		minDist, maxDist = math.Min(minDist, d), math.Max(maxDist, d)
	}

	thetaRange := maxTheta - minTheta
	phiRange := maxPhi - minPhi
	distRange := maxDist - minDist

	thetaNum := e.Config.ThetaBins
	phiNum := e.Config.PhiBins
	distNum := e.Config.DistBins

	binOf := func(p *patch.Patch) binKey {
		d := p.PlaneDistance()
		thetaIdx := quantizeIndex(p.Theta, minTheta, thetaRange, thetaNum)
		phiIdx := quantizeIndex(p.Phi, minPhi, phiRange, phiNum)
		distIdx := quantizeIndex(d, minDist, distRange, distNum)
		return binKey{thetaIdx, phiIdx, distIdx}
	}

	thetaStep := safeStep(thetaRange, thetaNum)
	phiStep := safeStep(phiRange, phiNum)
	distStep := safeStep(distRange, distNum)

	for _, p := range all {
		bin := binOf(p)
		quanTheta := float64(bin.theta)*thetaStep + minTheta
		quanPhi := float64(bin.phi)*phiStep + minPhi
		quanDist := float64(bin.dist)*distStep + minDist

		quanNormal := patch.Spherical2Normal(quanTheta, quanPhi)

		d := p.Center.Add(quanNormal.Mul(quanDist)).Dot(quanNormal)
		projCenter := p.Center.Sub(quanNormal.Mul(d))

		p.SetNormalSpherical(quanTheta, quanPhi)
		p.Center = projCenter
	}
}

func quantizeIndex(v, min, rangeV float64, num int) int {
	if num <= 1 || rangeV == 0 {
		return 0
	}
	n := (v - min) / rangeV
	idx := int(math.Round(n * float64(num-1)))
	if idx < 0 {
		idx = 0
	}
	if idx > num-1 {
		idx = num - 1
	}
	return idx
}

func safeStep(rangeV float64, num int) float64 {
	if num <= 0 {
		return 0
	}
	return rangeV / float64(num)
}
