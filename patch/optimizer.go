package patch

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/youngstu/pais-mvs/camera"
	"github.com/youngstu/pais-mvs/mvsconfig"
)

// SearchContext bundles everything an Optimizer needs to evaluate a
// candidate (theta, phi, planeDistance) for one patch, without giving the
// optimizer a mutable handle on the patch itself.
type SearchContext struct {
	Patch   *Patch
	Cameras []*camera.Camera
	Config  mvsconfig.Config
	Kernel  *DistanceKernel
}

// Optimizer searches the (theta, phi, planeDistance) parameter space for
// the orientation and depth that best photo-consistency-matches a patch's
// visible cameras. It is a pluggable collaborator (spec.md §4.1): the
// engine depends only on this interface, never on a concrete search
// strategy.
type Optimizer interface {
	Search(ctx SearchContext) (theta, phi, dist float64, cost float64)
}

// ParticleOptimizer is a derivative-free local search: each iteration
// samples a ring of candidate directions around the current normal using
// golden-angle spiral spacing (grounded on apple_pose/view_planning.go's
// generateCandidateViews, which spaces camera-placement candidates the
// same way), plus a few candidate plane distances around the current
// depth, evaluates photo-consistency cost at each, keeps the best, and
// shrinks the search window — the idiomatic Go analogue of the original
// engine's particle-swarm search.
type ParticleOptimizer struct {
	ParticleNum  int
	MaxIteration int
}

// NewParticleOptimizer builds a ParticleOptimizer sized from cfg.
func NewParticleOptimizer(cfg mvsconfig.Config) *ParticleOptimizer {
	return &ParticleOptimizer{ParticleNum: cfg.ParticleNum, MaxIteration: cfg.MaxIteration}
}

const goldenAngle = math.Pi * (3 - 2.2360679774997896) // pi*(3-sqrt(5))

func (o *ParticleOptimizer) Search(ctx SearchContext) (theta, phi, dist float64, cost float64) {
	p := ctx.Patch
	theta, phi = p.Theta, p.Phi
	dist = p.PlaneDistance()

	bestCost := evaluateCost(ctx, theta, phi, dist)

	angleWindow := 0.3  // radians, ~17 degrees initial spread
	distWindow := distScale(ctx)

	n := o.ParticleNum
	if n < 1 {
		n = 1
	}
	iters := o.MaxIteration
	if iters < 1 {
		iters = 1
	}

	for it := 0; it < iters; it++ {
		improved := false
		for i := 0; i < n; i++ {
			// Golden-angle spiral offset within the current window,
			// indexed by i so successive particles fill the disc evenly.
			r := angleWindow * math.Sqrt(float64(i+1)/float64(n))
			a := float64(i) * goldenAngle
			dTheta := r * math.Cos(a)
			dPhi := r * math.Sin(a)
			dDist := distWindow * (2*float64((i*7919)%1000)/1000 - 1) // deterministic pseudo-jitter

			ct := theta + dTheta
			cp := phi + dPhi
			cd := dist + dDist

			c := evaluateCost(ctx, ct, cp, cd)
			if c < bestCost {
				bestCost = c
				theta, phi, dist = ct, cp, cd
				improved = true
			}
		}
		angleWindow *= 0.7
		distWindow *= 0.7
		if !improved && it > 2 {
			break
		}
	}

	return theta, phi, dist, bestCost
}

// distScale returns the initial plane-distance search radius: a few
// pixels' worth of depth at the reference camera.
func distScale(ctx SearchContext) float64 {
	p := ctx.Patch
	if len(p.VisibleCameras) == 0 {
		return 0.01
	}
	cam := ctx.Cameras[p.VisibleCameras[p.ReferenceCamera]]
	depth := p.Center.Sub(cam.Center()).Norm()
	focal := (cam.FocalX + cam.FocalY) / 2
	if focal <= 0 {
		return 0.01
	}
	return 4 * depth / focal
}

// evaluateCost builds a transient candidate patch at (theta, phi, dist)
// and returns its photo-consistency cost (1 - mean NCC across
// non-reference visible cameras).
func evaluateCost(ctx SearchContext, theta, phi, dist float64) float64 {
	normal := Spherical2Normal(theta, phi)
	candidate := *ctx.Patch
	candidate.Normal = normal
	candidate.Theta, candidate.Phi = theta, phi

	// Move Center along normal so that -normal.center == dist.
	cur := -normal.Dot(candidate.Center)
	candidate.Center = candidate.Center.Add(normal.Mul(cur - dist))

	fitness, _ := patchConsistency(ctx.Cameras, &candidate, ctx.Kernel, ctx.Config.PatchRadius)
	if math.IsNaN(fitness) {
		return math.Inf(1)
	}
	return fitness
}

// patchConsistency computes (fitness, correlation) for p against all of
// its visible cameras other than the reference, per spec.md §4.1: fitness
// is the mean of (1-NCC) across those views (lower is better), correlation
// is the mean NCC.
func patchConsistency(cams []*camera.Camera, p *Patch, kernel *DistanceKernel, radius int) (fitness, correlation float64) {
	if len(p.VisibleCameras) < 2 {
		return math.NaN(), math.NaN()
	}
	refCam := cams[p.VisibleCameras[p.ReferenceCamera]]

	var sumNCC float64
	count := 0
	for i, camIdx := range p.VisibleCameras {
		if i == p.ReferenceCamera {
			continue
		}
		ncc := windowNCC(refCam, cams[camIdx], p, kernel, radius)
		if math.IsNaN(ncc) {
			continue
		}
		sumNCC += ncc
		count++
	}
	if count == 0 {
		return math.NaN(), math.NaN()
	}
	correlation = sumNCC / float64(count)
	fitness = 1 - correlation
	return fitness, correlation
}

// windowNCC samples a (2*radius+1)^2 window of the patch's tangent plane,
// projects each sample into both cameras, bilinearly samples both pyramids
// at p.LOD, and returns the kernel-weighted normalized cross-correlation
// between the two windows, matching MVS::computeCorrelation's windowed NCC.
func windowNCC(refCam, otherCam *camera.Camera, p *Patch, kernel *DistanceKernel, radius int) float64 {
	u, v := tangentBasis(p.Normal)

	cam := refCam
	depth := p.Center.Sub(cam.Center()).Norm()
	focal := (cam.FocalX + cam.FocalY) / 2
	if focal <= 0 || depth <= 0 {
		return math.NaN()
	}
	step := depth / focal * float64(int(1)<<uint(p.LOD))

	size := 2*radius + 1
	a := make([]float64, 0, size*size)
	b := make([]float64, 0, size*size)
	w := make([]float64, 0, size*size)

	refImg := refCam.PyramidLevel(p.LOD)
	otherImg := otherCam.PyramidLevel(p.LOD)
	scale := 1.0 / float64(int(1)<<uint(p.LOD))

	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			offset := u.Mul(float64(dx) * step).Add(v.Mul(float64(dy) * step))
			world := p.Center.Add(offset)

			rp, ok1 := projectScaled(refCam, world, scale)
			op, ok2 := projectScaled(otherCam, world, scale)
			if !ok1 || !ok2 {
				continue
			}

			a = append(a, refImg.Bilinear(rp.X, rp.Y))
			b = append(b, otherImg.Bilinear(op.X, op.Y))
			w = append(w, kernel.At(dx+radius, dy+radius))
		}
	}

	if len(a) < size*size/2 {
		return math.NaN()
	}
	return weightedNCC(a, b, w)
}

// projectScaled projects a world point into cam's full-resolution image
// plane, then scales the result into the given pyramid level's pixel
// coordinates.
func projectScaled(cam *camera.Camera, world r3.Vector, scale float64) (r3.Vector, bool) {
	p, ok := cam.Project(world)
	if !ok {
		return r3.Vector{}, false
	}
	return r3.Vector{X: p.X * scale, Y: p.Y * scale}, true
}

// tangentBasis builds an orthonormal (u, v) basis for the plane
// perpendicular to n.
func tangentBasis(n r3.Vector) (u, v r3.Vector) {
	up := r3.Vector{Z: 1}
	if math.Abs(n.Z) > 0.9 {
		up = r3.Vector{X: 1}
	}
	u = up.Cross(n)
	u = u.Mul(1.0 / u.Norm())
	v = n.Cross(u)
	return u, v
}

// weightedNCC computes the kernel-weighted normalized cross-correlation
// between two equal-length sample sets.
func weightedNCC(a, b, w []float64) float64 {
	var sumW, meanA, meanB float64
	for i := range a {
		sumW += w[i]
		meanA += w[i] * a[i]
		meanB += w[i] * b[i]
	}
	if sumW <= 0 {
		return math.NaN()
	}
	meanA /= sumW
	meanB /= sumW

	var cov, varA, varB float64
	for i := range a {
		da := a[i] - meanA
		db := b[i] - meanB
		cov += w[i] * da * db
		varA += w[i] * da * da
		varB += w[i] * db * db
	}
	denom := math.Sqrt(varA * varB)
	if denom < 1e-9 {
		return math.NaN()
	}
	return cov / denom
}
