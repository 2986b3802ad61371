// Package camera models a single calibrated camera: its intrinsics,
// extrinsics, and grayscale image pyramid, plus the projection math the
// rest of pais-mvs builds on.
package camera

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Image is one level of a camera's grayscale image pyramid. A zero-valued
// pixel is background (spec.md §3): it is outside the reconstructed mask
// and never supports a patch.
type Image struct {
	Width, Height int
	Pix           []uint8 // row-major, length Width*Height
}

// At returns the pixel value at (x, y), or 0 if out of bounds.
func (img *Image) At(x, y int) uint8 {
	if x < 0 || y < 0 || x >= img.Width || y >= img.Height {
		return 0
	}
	return img.Pix[y*img.Width+x]
}

// Bilinear samples img at the given sub-pixel coordinate using bilinear
// interpolation; neighboring pixels outside the image read as 0 (see At).
func (img *Image) Bilinear(x, y float64) float64 {
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	x1, y1 := x0+1, y0+1
	fx, fy := x-float64(x0), y-float64(y0)

	v00 := float64(img.At(x0, y0))
	v10 := float64(img.At(x1, y0))
	v01 := float64(img.At(x0, y1))
	v11 := float64(img.At(x1, y1))

	top := v00*(1-fx) + v10*fx
	bot := v01*(1-fx) + v11*fx
	return top*(1-fy) + bot*fy
}

// Camera is immutable after Build: intrinsics, extrinsics, and an image
// pyramid, matching PAIS::Camera in the original engine.
type Camera struct {
	FocalX, FocalY   float64
	PrincipalX       float64
	PrincipalY       float64
	Rotation         *mat.Dense // 3x3, world-to-camera
	Translation      r3.Vector  // world-to-camera translation
	center           r3.Vector  // camera center in world coordinates
	opticalAxis      r3.Vector  // unit optical axis in world coordinates
	Pyramid          []*Image   // level 0 = full resolution
}

// Build derives the camera center and optical axis from rotation and
// translation, and stores the pyramid. Rotation must be orthonormal.
func Build(focalX, focalY, px, py float64, rotation *mat.Dense, translation r3.Vector, pyramid []*Image) *Camera {
	c := &Camera{
		FocalX:      focalX,
		FocalY:      focalY,
		PrincipalX:  px,
		PrincipalY:  py,
		Rotation:    rotation,
		Translation: translation,
		Pyramid:     pyramid,
	}
	c.center = computeCenter(rotation, translation)
	c.opticalAxis = computeOpticalAxis(rotation)
	return c
}

// computeCenter solves center = -R^T * t.
func computeCenter(rotation *mat.Dense, translation r3.Vector) r3.Vector {
	var rt mat.Dense
	rt.CloneFrom(rotation.T())
	t := mat.NewVecDense(3, []float64{translation.X, translation.Y, translation.Z})
	var c mat.VecDense
	c.MulVec(&rt, t)
	return r3.Vector{X: -c.AtVec(0), Y: -c.AtVec(1), Z: -c.AtVec(2)}
}

// computeOpticalAxis returns the camera's viewing direction (third row of
// rotation, i.e. the world-space direction the +Z camera axis points).
func computeOpticalAxis(rotation *mat.Dense) r3.Vector {
	v := r3.Vector{X: rotation.At(2, 0), Y: rotation.At(2, 1), Z: rotation.At(2, 2)}
	n := v.Norm()
	if n < 1e-12 {
		return r3.Vector{Z: 1}
	}
	return v.Mul(1.0 / n)
}

// Center returns the camera center in world coordinates.
func (c *Camera) Center() r3.Vector { return c.center }

// OpticalAxis returns the unit optical axis in world coordinates.
func (c *Camera) OpticalAxis() r3.Vector { return c.opticalAxis }

// toCameraSpace applies the world-to-camera rigid transform to a world
// point: R*p + t.
func (c *Camera) toCameraSpace(p r3.Vector) r3.Vector {
	wp := mat.NewVecDense(3, []float64{p.X, p.Y, p.Z})
	var cp mat.VecDense
	cp.MulVec(c.Rotation, wp)
	return r3.Vector{
		X: cp.AtVec(0) + c.Translation.X,
		Y: cp.AtVec(1) + c.Translation.Y,
		Z: cp.AtVec(2) + c.Translation.Z,
	}
}

// Project maps a world point into this camera's image plane. It returns
// false if the point is behind the camera or projects outside level 0.
func (c *Camera) Project(p r3.Vector) (r3.Vector, bool) {
	cp := c.toCameraSpace(p)
	if cp.Z <= 0 {
		return r3.Vector{}, false
	}
	u := c.FocalX*cp.X/cp.Z + c.PrincipalX
	v := c.FocalY*cp.Y/cp.Z + c.PrincipalY
	if len(c.Pyramid) == 0 {
		return r3.Vector{X: u, Y: v}, true
	}
	img := c.Pyramid[0]
	if u < 0 || v < 0 || u >= float64(img.Width) || v >= float64(img.Height) {
		return r3.Vector{X: u, Y: v}, false
	}
	return r3.Vector{X: u, Y: v}, true
}

// Unproject casts a ray from the camera center through pixel (px, py) at
// unit depth in camera space, returning the world-space point at that ray
// position (used to seed expansion-patch centers before plane intersection).
func (c *Camera) Unproject(px, py float64) r3.Vector {
	camX := (px - c.PrincipalX) / c.FocalX
	camY := (py - c.PrincipalY) / c.FocalY
	cp := mat.NewVecDense(3, []float64{camX, camY, 1.0})

	var rt mat.Dense
	rt.CloneFrom(c.Rotation.T())

	shifted := mat.NewVecDense(3, []float64{
		cp.AtVec(0) - c.Translation.X,
		cp.AtVec(1) - c.Translation.Y,
		cp.AtVec(2) - c.Translation.Z,
	})
	var wp mat.VecDense
	wp.MulVec(&rt, shifted)
	return r3.Vector{X: wp.AtVec(0), Y: wp.AtVec(1), Z: wp.AtVec(2)}
}

// PyramidLevel returns the image at the given LOD, clamped to the
// available range.
func (c *Camera) PyramidLevel(lod int) *Image {
	if lod < 0 {
		lod = 0
	}
	if lod >= len(c.Pyramid) {
		lod = len(c.Pyramid) - 1
	}
	return c.Pyramid[lod]
}

// IsBackground reports whether the level-0 pixel nearest (px, py) is zero
// valued, i.e. outside the reconstruction mask.
func (c *Camera) IsBackground(px, py float64) bool {
	img := c.PyramidLevel(0)
	return img.At(int(math.Round(px)), int(math.Round(py))) == 0
}
