package patch

import (
	"math"

	"github.com/golang/geo/r3"
)

// Normal2Spherical converts a unit normal to (theta, phi) spherical
// coordinates, matching Utility::normal2Spherical in the original engine:
// theta is the polar angle from +Z, phi is the azimuth in the XY plane.
func Normal2Spherical(n r3.Vector) (theta, phi float64) {
	theta = math.Acos(clamp(n.Z, -1, 1))
	phi = math.Atan2(n.Y, n.X)
	return theta, phi
}

// Spherical2Normal converts (theta, phi) back to a unit Cartesian normal,
// the inverse of Normal2Spherical and of Utility::spherical2Normal.
func Spherical2Normal(theta, phi float64) r3.Vector {
	sinTheta := math.Sin(theta)
	return r3.Vector{
		X: sinTheta * math.Cos(phi),
		Y: sinTheta * math.Sin(phi),
		Z: math.Cos(theta),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
