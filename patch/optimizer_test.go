package patch

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
)

func TestTangentBasisOrthonormal(t *testing.T) {
	normals := []r3.Vector{
		{Z: 1}, {X: 1}, {Y: 1}, {X: 0.5, Y: 0.5, Z: 0.707},
	}
	for _, n := range normals {
		n = n.Mul(1 / n.Norm())
		u, v := tangentBasis(n)
		if math.Abs(u.Norm()-1) > 1e-9 {
			t.Errorf("u not unit for normal %v: %v", n, u.Norm())
		}
		if math.Abs(v.Norm()-1) > 1e-9 {
			t.Errorf("v not unit for normal %v: %v", n, v.Norm())
		}
		if math.Abs(u.Dot(n)) > 1e-9 {
			t.Errorf("u not perpendicular to normal %v", n)
		}
		if math.Abs(u.Dot(v)) > 1e-9 {
			t.Errorf("u,v not orthogonal for normal %v", n)
		}
	}
}

func TestWeightedNCCIdenticalSignalsIsOne(t *testing.T) {
	a := []float64{10, 20, 30, 40, 50}
	w := []float64{1, 1, 1, 1, 1}
	got := weightedNCC(a, a, w)
	if math.Abs(got-1) > 1e-9 {
		t.Errorf("NCC of identical signal = %v, want 1", got)
	}
}

func TestWeightedNCCInvertedSignalsIsNegativeOne(t *testing.T) {
	a := []float64{10, 20, 30, 40, 50}
	b := []float64{50, 40, 30, 20, 10}
	w := []float64{1, 1, 1, 1, 1}
	got := weightedNCC(a, b, w)
	if math.Abs(got+1) > 1e-9 {
		t.Errorf("NCC of inverted signal = %v, want -1", got)
	}
}

func TestWeightedNCCConstantSignalIsNaN(t *testing.T) {
	a := []float64{5, 5, 5, 5}
	b := []float64{1, 2, 3, 4}
	w := []float64{1, 1, 1, 1}
	got := weightedNCC(a, b, w)
	if !math.IsNaN(got) {
		t.Errorf("NCC with zero-variance signal = %v, want NaN", got)
	}
}
